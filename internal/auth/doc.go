// Package auth provides authentication for warelay.
//
// # Tokens
//
// Users authenticate with JWT tokens signed HS256 using the configured
// jwt_secret. Tokens carry the username as the subject plus display name and
// role claims, and expire after the configured TTL.
//
// # Accounts
//
// The Service handles registration and login against the account store.
// Passwords are hashed with bcrypt; login compares against a dummy hash for
// unknown users so response timing does not reveal whether an account exists.
//
// # HTTP
//
// Middleware extracts a bearer token from the Authorization header, verifies
// it, and attaches the resulting Principal to the request context. Handlers
// retrieve it with FromContext.
package auth
