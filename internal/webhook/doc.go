// Package webhook serves the platform's interactions endpoint.
//
// Every POST is authenticated with an Ed25519 signature over the request
// timestamp and raw body before anything else looks at it. Verified bodies
// are decoded into an interaction event; handshake probes are acknowledged
// and command invocations are routed to a handler whose result is encoded
// as the platform's response shape.
//
// # Request Flow
//
//  1. HTTP POST arrives at the configured path
//  2. Body size checked (413 if too large)
//  3. X-Signature-Ed25519 / X-Signature-Timestamp verified (401 on failure)
//  4. Body decoded (400 if malformed)
//  5. Handshake answered with {"type":1}; commands routed with a bounded context;
//     any other interaction type gets the fallback message
//  6. 200 OK with the encoded response
//
// # Error Responses
//
// Rejections carry a generic {"error": "..."} body. Signature failures are
// always reported as "invalid request signature" whichever check failed.
//
// # Other Routes
//
//	GET /          {"status":"ok"}
//	GET /metrics   Prometheus exposition, when enabled
package webhook
