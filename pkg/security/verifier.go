package security

import (
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/message"
)

// Identity is the verified result of a registration token.
type Identity struct {
	// Principal is the token subject.
	Principal string

	// Roles are the role names granted by the token.
	Roles []string

	// Claims carries the remaining verified claims.
	Claims map[string]any
}

// Verifier checks registration tokens. A disabled verifier accepts
// everything, returning an anonymous identity.
type Verifier struct {
	enabled bool
	secret  []byte
	issuer  string
	logger  *slog.Logger
}

// NewVerifier creates a verifier from the identity configuration.
func NewVerifier(cfg config.IdentityConfig) (*Verifier, error) {
	if cfg.Enabled && cfg.JWTSecret == "" {
		return nil, ErrSecretRequired
	}
	return &Verifier{
		enabled: cfg.Enabled,
		secret:  []byte(cfg.JWTSecret),
		issuer:  cfg.Issuer,
		logger:  slog.Default().With("component", "security.verifier"),
	}, nil
}

// Enabled reports whether identity verification is active.
func (v *Verifier) Enabled() bool {
	return v.enabled
}

// Verify checks the security context's bearer token and returns the
// verified identity. When verification is disabled, the context's
// declared principal is returned unchecked.
func (v *Verifier) Verify(sc *message.SecurityContext) (*Identity, error) {
	if !v.enabled {
		if sc == nil {
			return &Identity{}, nil
		}
		return &Identity{Principal: sc.Principal, Roles: sc.Roles}, nil
	}

	if sc == nil || sc.Token == "" {
		return nil, ErrIdentityRequired
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(sc.Token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, &TokenError{Reason: err.Error()}
	}
	if !token.Valid {
		return nil, &TokenError{Reason: "token invalid"}
	}

	if v.issuer != "" {
		iss, err := claims.GetIssuer()
		if err != nil || iss != v.issuer {
			return nil, &TokenError{Reason: "issuer mismatch"}
		}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, &TokenError{Reason: "subject claim missing"}
	}

	return &Identity{
		Principal: sub,
		Roles:     roleClaims(claims),
		Claims:    map[string]any(claims),
	}, nil
}

// roleClaims extracts the "roles" claim, tolerating both string and
// string-slice encodings.
func roleClaims(claims jwt.MapClaims) []string {
	switch v := claims["roles"].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
