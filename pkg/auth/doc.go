// Package auth implements user accounts and API token issuance.
//
// Users are keyed by email. Passwords are stored as bcrypt hashes and never
// serialized out. Tokens are opaque bearer credentials: 32 random bytes,
// base64url-encoded behind a "cook_" prefix; only the SHA-256 hash is stored.
package auth
