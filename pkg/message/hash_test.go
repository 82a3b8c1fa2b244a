package message

import (
	"strings"
	"testing"
)

func TestSanitizeHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
		want string
	}{
		{name: "full hash", hash: "cdd01ef066bc6cf2", want: "cdd01ef0…"},
		{name: "wrong hash", hash: "0000000000000000", want: "00000000…"},
		{name: "short value", hash: "abc", want: "abc…"},
		{name: "empty", hash: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeHash(tt.hash)
			if got != tt.want {
				t.Errorf("SanitizeHash(%q) = %q, want %q", tt.hash, got, tt.want)
			}
			if tt.hash != "" && strings.Contains(got, tt.hash) && len(tt.hash) > 8 {
				t.Error("sanitized output must not contain the full hash")
			}
		})
	}
}

func TestValidHashFormat(t *testing.T) {
	tests := []struct {
		name string
		hash string
		want bool
	}{
		{name: "default hash", hash: DefaultConstitutionalHash, want: true},
		{name: "all zeros", hash: "0000000000000000", want: true},
		{name: "too short", hash: "cdd01ef0", want: false},
		{name: "too long", hash: "cdd01ef066bc6cf2ff", want: false},
		{name: "uppercase rejected", hash: "CDD01EF066BC6CF2", want: false},
		{name: "non-hex", hash: "cdd01ef066bc6cgz", want: false},
		{name: "empty", hash: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidHashFormat(tt.hash); got != tt.want {
				t.Errorf("ValidHashFormat(%q) = %v, want %v", tt.hash, got, tt.want)
			}
		})
	}
}
