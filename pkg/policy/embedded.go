package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"concordlabs/concord/pkg/message"
)

// Ruleset is the YAML document the embedded backend evaluates.
type Ruleset struct {
	// Version identifies the ruleset for decision logs.
	Version string `yaml:"version"`

	// DefaultAllow is the verdict when no rule matches. Default: true
	DefaultAllow *bool `yaml:"default_allow"`

	// Rules are evaluated in order; the first match wins.
	Rules []Rule `yaml:"rules"`
}

// Rule is one declarative policy rule.
type Rule struct {
	// Name identifies the rule in reasons and logs.
	Name string `yaml:"name"`

	// Effect is "allow" or "deny".
	Effect string `yaml:"effect"`

	// Reason is attached to the decision when the rule matches.
	Reason string `yaml:"reason"`

	// Match selects the inputs the rule applies to. All specified
	// criteria must hold.
	Match RuleMatch `yaml:"match"`
}

// RuleMatch is the conjunction of rule criteria. Empty criteria match
// everything.
type RuleMatch struct {
	// Types matches the message type against any listed value.
	Types []string `yaml:"types"`

	// Actions matches the derived action against any listed value.
	Actions []string `yaml:"actions"`

	// Tenants matches the tenant id against any listed value.
	Tenants []string `yaml:"tenants"`

	// Agents matches the acting agent against any listed value.
	Agents []string `yaml:"agents"`

	// PriorityAtLeast matches priorities at or above the named level.
	PriorityAtLeast string `yaml:"priority_at_least"`

	// ContentPattern matches the content against a regular expression.
	ContentPattern string `yaml:"content_pattern"`
}

// compiledRule is a rule with its criteria pre-compiled.
type compiledRule struct {
	rule        Rule
	deny        bool
	minPriority message.Priority
	hasPriority bool
	pattern     *regexp.Regexp
}

type compiledRuleset struct {
	version      string
	defaultAllow bool
	rules        []compiledRule
}

// EmbeddedAdapter evaluates the declarative ruleset in-process. The
// ruleset file is watched and hot-reloaded on change; a broken edit
// keeps the previous ruleset active.
type EmbeddedAdapter struct {
	path    string
	ruleset atomic.Pointer[compiledRuleset]
	scorer  *Scorer
	watcher *fsnotify.Watcher
	done    chan struct{}
	logger  *slog.Logger
}

// NewEmbeddedAdapter loads the ruleset at path and starts watching it
// for changes.
func NewEmbeddedAdapter(path string, scorer *Scorer) (*EmbeddedAdapter, error) {
	a := &EmbeddedAdapter{
		path:   path,
		scorer: scorer,
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "policy.embedded"),
	}

	rs, err := loadRuleset(path)
	if err != nil {
		return nil, err
	}
	a.ruleset.Store(rs)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create ruleset watcher: %w", err)
	}
	// Watch the directory: editors replace files rather than rewrite
	// them, and a watch on the file itself dies with the old inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch ruleset directory: %w", err)
	}
	a.watcher = watcher
	go a.watch()

	a.logger.Info("embedded ruleset loaded", "path", path, "version", rs.version, "rules", len(rs.rules))
	return a, nil
}

// Evaluate applies the first matching rule, falling back to the
// ruleset default.
func (a *EmbeddedAdapter) Evaluate(_ context.Context, in *Input) (*Decision, error) {
	rs := a.ruleset.Load()

	for i := range rs.rules {
		r := &rs.rules[i]
		if !r.matches(in) {
			continue
		}
		d := &Decision{Allowed: !r.deny}
		if r.rule.Reason != "" {
			d.Reasons = []string{r.rule.Reason}
		} else {
			d.Reasons = []string{"rule " + r.rule.Name}
		}
		d.meta("mode", string(ModeEmbedded))
		d.meta("policy_version", rs.version)
		d.meta("rule", r.rule.Name)
		return d, nil
	}

	d := &Decision{Allowed: rs.defaultAllow}
	d.meta("mode", string(ModeEmbedded))
	d.meta("policy_version", rs.version)
	return d, nil
}

// Score delegates to the heuristic scorer.
func (a *EmbeddedAdapter) Score(_ context.Context, m *message.Message) (float64, error) {
	return a.scorer.Score(m), nil
}

// Mode identifies the backend.
func (a *EmbeddedAdapter) Mode() Mode {
	return ModeEmbedded
}

// Version is the loaded ruleset version.
func (a *EmbeddedAdapter) Version() string {
	return a.ruleset.Load().version
}

// Available reports whether a ruleset is loaded.
func (a *EmbeddedAdapter) Available() bool {
	return a.ruleset.Load() != nil
}

// Close stops the file watcher.
func (a *EmbeddedAdapter) Close() error {
	close(a.done)
	return a.watcher.Close()
}

// watch reloads the ruleset on file changes.
func (a *EmbeddedAdapter) watch() {
	target := filepath.Clean(a.path)
	for {
		select {
		case <-a.done:
			return
		case event, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			rs, err := loadRuleset(a.path)
			if err != nil {
				a.logger.Error("ruleset reload failed, keeping previous version",
					"path", a.path, "error", err)
				continue
			}
			a.ruleset.Store(rs)
			a.logger.Info("ruleset reloaded", "path", a.path, "version", rs.version, "rules", len(rs.rules))
		case err, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
			a.logger.Error("ruleset watcher error", "error", err)
		}
	}
}

// matches applies the rule's criteria conjunction.
func (r *compiledRule) matches(in *Input) bool {
	if len(r.rule.Match.Types) > 0 && !contains(r.rule.Match.Types, string(in.MessageType)) {
		return false
	}
	if len(r.rule.Match.Actions) > 0 && !contains(r.rule.Match.Actions, in.Action) {
		return false
	}
	if len(r.rule.Match.Tenants) > 0 && !contains(r.rule.Match.Tenants, in.TenantID) {
		return false
	}
	if len(r.rule.Match.Agents) > 0 && !contains(r.rule.Match.Agents, in.AgentID) {
		return false
	}
	if r.hasPriority && in.Priority < r.minPriority {
		return false
	}
	if r.pattern != nil && !r.pattern.MatchString(in.Content) {
		return false
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// loadRuleset reads, parses, and compiles the ruleset file.
func loadRuleset(path string) (*compiledRuleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &RulesetError{Path: path, Reason: err.Error()}
	}

	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, &RulesetError{Path: path, Reason: "parse: " + err.Error()}
	}
	return compileRuleset(path, &rs)
}

func compileRuleset(path string, rs *Ruleset) (*compiledRuleset, error) {
	out := &compiledRuleset{
		version:      rs.Version,
		defaultAllow: rs.DefaultAllow == nil || *rs.DefaultAllow,
	}
	if out.version == "" {
		out.version = "unversioned"
	}

	for i, rule := range rs.Rules {
		if rule.Name == "" {
			return nil, &RulesetError{Path: path, Reason: fmt.Sprintf("rule %d: name required", i)}
		}

		cr := compiledRule{rule: rule}
		switch rule.Effect {
		case "allow":
		case "deny":
			cr.deny = true
		default:
			return nil, &RulesetError{Path: path, Reason: fmt.Sprintf("rule %s: effect must be allow or deny", rule.Name)}
		}

		if rule.Match.PriorityAtLeast != "" {
			p, err := message.ParsePriority(rule.Match.PriorityAtLeast)
			if err != nil {
				return nil, &RulesetError{Path: path, Reason: fmt.Sprintf("rule %s: %v", rule.Name, err)}
			}
			cr.minPriority = p
			cr.hasPriority = true
		}
		if rule.Match.ContentPattern != "" {
			p, err := regexp.Compile(rule.Match.ContentPattern)
			if err != nil {
				return nil, &RulesetError{Path: path, Reason: fmt.Sprintf("rule %s: content_pattern: %v", rule.Name, err)}
			}
			cr.pattern = p
		}
		out.rules = append(out.rules, cr)
	}
	return out, nil
}
