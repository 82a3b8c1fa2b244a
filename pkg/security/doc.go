// Package security verifies agent identity at registration time.
//
// When identity verification is enabled, every registration must carry
// a security context with an HMAC-signed JWT. The verifier checks the
// signature, expiry, and issuer, and extracts the principal and role
// claims. The bus never issues tokens; issuance belongs to an external
// identity provider.
package security
