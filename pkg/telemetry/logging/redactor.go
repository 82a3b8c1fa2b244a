package logging

import (
	"regexp"
	"strings"

	"concordlabs/concord/pkg/message"
)

// Redactor masks sensitive values in log output: credentials in string
// values, values of sensitive keys, and full constitutional hashes
// (trimmed to their sanitized prefix form).
type Redactor struct {
	patterns []redactPattern
	hashes   *regexp.Regexp
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Pattern names for the built-in redaction rules.
const (
	PatternBearerToken = "bearer_token"
	PatternJWT         = "jwt"
	PatternAPIKey      = "api_key"
	PatternPassword    = "password"
	PatternHash        = "constitutional_hash"
)

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactPattern{
			{
				name:        PatternBearerToken,
				regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
				replacement: "Bearer ***",
			},
			{
				name:        PatternJWT,
				regex:       regexp.MustCompile(`\beyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\b`),
				replacement: "***",
			},
			{
				name:        PatternAPIKey,
				regex:       regexp.MustCompile(`(sk-[a-zA-Z0-9]+|api[-_]?key[-_:]\s*[a-zA-Z0-9]+)`),
				replacement: "sk-***",
			},
			{
				name:        PatternPassword,
				regex:       regexp.MustCompile(`(password|passwd|pwd)[:=]\s*\S+`),
				replacement: "$1: ***",
			},
		},
		hashes: regexp.MustCompile(`\b[0-9a-f]{16}\b`),
	}
}

// RedactString masks sensitive material in a string value. Full
// constitutional hashes are trimmed to their sanitized prefix so log
// lines never carry the complete hash.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}
	redacted = r.hashes.ReplaceAllStringFunc(redacted, message.SanitizeHash)

	return redacted
}

// RedactValue masks the value of a sensitive key completely, keeping a
// short prefix for identification.
func (r *Redactor) RedactValue(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "***"
	}
	return value[:4] + "***"
}

// IsSensitiveKey reports whether a key name indicates a value that must
// be masked regardless of its content.
func (r *Redactor) IsSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)

	sensitiveKeys := []string{
		"password", "passwd", "pwd",
		"secret", "token", "api_key", "apikey",
		"authorization", "credential",
		"private_key", "privatekey",
	}

	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}

	return false
}
