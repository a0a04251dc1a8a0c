// Package auth provides authentication and authorisation for Doorkeeper Core.
//
// It implements a two-role model (user, admin) with:
//   - Argon2id password hashing over a configured, process-wide salt
//   - Stateless HS512 session tokens with a 30 minute lifetime
//   - Purpose-scoped reset tokens bound to the password they replace
//   - A Guard that turns an Authorization header into verified claims
//
// Tokens are never stored server-side. A reset token is rejected once the
// account's password hash changes, which makes reset links single-use without
// a revocation table.
package auth
