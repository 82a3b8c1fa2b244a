package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"concordlabs/concord/pkg/message"
)

// Document paths on the remote decision point, relative to its data
// API root.
const (
	remoteAuthzPath = "concord/authz"
	remoteScorePath = "concord/impact"
)

// RemoteAdapter evaluates against an external policy decision point
// speaking the OPA data API: POST /v1/data/<path> with {"input": ...}
// returning {"result": ...}.
type RemoteAdapter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	// version caches the policy_version reported by the last
	// successful evaluation.
	version atomic.Pointer[string]
}

// remoteResult is the decision document the authz policy produces.
type remoteResult struct {
	Allow         bool     `json:"allow"`
	Reasons       []string `json:"reasons"`
	PolicyVersion string   `json:"policy_version"`
}

// remoteScore is the score document the impact policy produces.
type remoteScore struct {
	Score float64 `json:"score"`
}

// NewRemoteAdapter creates an adapter for the decision point at
// baseURL with the given per-call timeout.
func NewRemoteAdapter(baseURL string, timeout time.Duration) *RemoteAdapter {
	a := &RemoteAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default().With("component", "policy.remote"),
	}
	unknown := "unknown"
	a.version.Store(&unknown)
	return a
}

// Evaluate queries the authorization document.
func (a *RemoteAdapter) Evaluate(ctx context.Context, in *Input) (*Decision, error) {
	var result remoteResult
	if err := a.query(ctx, remoteAuthzPath, in, &result); err != nil {
		return nil, err
	}

	if result.PolicyVersion != "" {
		v := result.PolicyVersion
		a.version.Store(&v)
	}

	d := &Decision{Allowed: result.Allow, Reasons: result.Reasons}
	d.meta("mode", string(ModeRemote))
	d.meta("policy_version", a.Version())
	return d, nil
}

// Score queries the impact document.
func (a *RemoteAdapter) Score(ctx context.Context, m *message.Message) (float64, error) {
	in := map[string]any{
		"message_id":          m.ID,
		"tenant_id":           m.TenantID,
		"from_agent":          m.FromAgent,
		"type":                string(m.Type),
		"priority":            m.Priority.String(),
		"content":             m.Content,
		"constitutional_hash": m.ConstitutionalHash,
	}

	var result remoteScore
	if err := a.query(ctx, remoteScorePath, in, &result); err != nil {
		return 0, err
	}
	if result.Score < 0 || result.Score > 1 {
		return 0, &RemoteError{Endpoint: a.baseURL, Reason: fmt.Sprintf("score %v outside [0,1]", result.Score)}
	}
	return result.Score, nil
}

// Mode identifies the backend.
func (a *RemoteAdapter) Mode() Mode {
	return ModeRemote
}

// Version is the policy version the decision point last reported.
func (a *RemoteAdapter) Version() string {
	return *a.version.Load()
}

// Available reports whether a base URL is configured. Reachability is
// the circuit breaker's concern, not the adapter's.
func (a *RemoteAdapter) Available() bool {
	return a.baseURL != ""
}

// query posts {"input": in} to the document path and decodes the
// result envelope into out.
func (a *RemoteAdapter) query(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(map[string]any{"input": in})
	if err != nil {
		return fmt.Errorf("encode policy input: %w", err)
	}

	url := a.baseURL + "/v1/data/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build policy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return &RemoteError{Endpoint: a.baseURL, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &RemoteError{Endpoint: a.baseURL, StatusCode: resp.StatusCode, Reason: string(snippet)}
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &RemoteError{Endpoint: a.baseURL, Reason: "malformed response: " + err.Error()}
	}
	if len(envelope.Result) == 0 {
		return &RemoteError{Endpoint: a.baseURL, Reason: "document undefined"}
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return &RemoteError{Endpoint: a.baseURL, Reason: "malformed result: " + err.Error()}
	}
	return nil
}
