// Package signature authenticates inbound interaction callbacks.
//
// The platform signs every callback with its long-lived Ed25519 key. The
// signed message is the value of the X-Signature-Timestamp header followed
// immediately by the raw request body, with no delimiter. The detached
// signature travels hex-encoded in X-Signature-Ed25519.
//
// Verification is delegated to crypto/ed25519, which compares in constant
// time. Every failure mode (missing headers, malformed hex, wrong lengths,
// bad key, signature mismatch) collapses to a plain "not verified" so callers
// cannot leak details to the client.
package signature
