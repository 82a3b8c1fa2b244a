package message

// DefaultConstitutionalHash is the hash of the active constitution. Every
// message and every governance decision is pinned to it. Deployments
// override it through configuration when the constitution changes.
const DefaultConstitutionalHash = "cdd01ef066bc6cf2"

// hashVisibleChars is how much of a constitutional hash may appear in any
// error message, log line, or API payload.
const hashVisibleChars = 8

// SanitizeHash truncates a constitutional hash for safe display: the first
// eight characters followed by an ellipsis. Empty input stays empty.
func SanitizeHash(h string) string {
	if h == "" {
		return ""
	}
	if len(h) <= hashVisibleChars {
		return h + "…"
	}
	return h[:hashVisibleChars] + "…"
}

// ValidHashFormat reports whether h looks like a constitutional hash:
// exactly 16 lowercase hexadecimal characters.
func ValidHashFormat(h string) bool {
	if len(h) != 16 {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
