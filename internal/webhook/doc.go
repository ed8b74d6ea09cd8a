// Package webhook serves the interactions endpoint.
//
// The platform delivers every interaction as a signed POST to a single URL.
// Each request is handled independently: nothing is shared between requests
// except the verifying key and the command word lists, both read-only.
//
// # Request Flow
//
//  1. HTTP POST arrives at /
//  2. Body size checked (reject with 413 if too large)
//  3. X-Signature-Ed25519 and X-Signature-Timestamp extracted (400 if absent or malformed)
//  4. Ed25519 signature verified over timestamp ++ body (400 if the hex is malformed, 401 if it fails)
//  5. Optional freshness window applied (401 if stale)
//  6. Body decoded into a Ping or ApplicationCommand (400 if unrecognized)
//  7. Command dispatched (400 for unknown commands)
//  8. Response encoded with its fixed type discriminant and returned with 200
//
// Verification always runs before the body is parsed.
//
// # Error Responses
//
// Error bodies are JSON objects with a fixed message per class. Decode
// errors, crypto failures and command names never reach the caller; they are
// logged at WARN instead.
//
// # Example Usage
//
//	srv := webhook.New(webhook.Config{Listen: "0.0.0.0:3000"}, verifier, registry,
//		webhook.WithLogger(logger))
//	ln, err := net.Listen("tcp", "0.0.0.0:3000")
//	if err != nil {
//		return err
//	}
//	return srv.Serve(ctx, ln)
package webhook
