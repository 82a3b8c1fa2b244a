package validation

import (
	"context"
	"regexp"

	"concordlabs/concord/pkg/message"
)

// injectionPatterns match the common prompt-injection families seen in
// inter-agent traffic. A hit flags the message; it never rejects it,
// because legitimate governance content quotes attack text routinely.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(instructions?|guidelines?)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|in)\s`),
	regexp.MustCompile(`(?i)(override|bypass|disable)\s+(the\s+)?(system|safety|constitutional)\s+(prompt|check|validation)`),
	regexp.MustCompile(`(?i)pretend\s+(that\s+)?(you|the\s+constitution)`),
	regexp.MustCompile(`(?i)jailbreak`),
	regexp.MustCompile(`(?i)\bDAN\s+mode\b`),
}

// ContentScreen flags prompt-injection markers in message content.
// Findings are warnings recorded in the result metadata, never fatal.
type ContentScreen struct{}

// NewContentScreen creates the screen with the built-in pattern set.
func NewContentScreen() *ContentScreen {
	return &ContentScreen{}
}

// Validate scans the message content.
func (s *ContentScreen) Validate(_ context.Context, m *message.Message) (*message.ValidationResult, error) {
	r := message.OK()
	if m.Content == "" {
		return r, nil
	}

	var hits []string
	for _, p := range injectionPatterns {
		if match := p.FindString(m.Content); match != "" {
			hits = append(hits, match)
		}
	}
	if len(hits) > 0 {
		r.AddWarning(WarnContentFlagged)
		r.SetMeta("content_flags", hits)
	}
	return r, nil
}

// Name identifies the screen in metrics and logs.
func (s *ContentScreen) Name() string {
	return "content_screen"
}
