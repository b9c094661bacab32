// Package protocol encodes and decodes pub/sub wire frames.
//
// Outgoing requests:
//   - LISTEN / UNLISTEN carry a nonce and a list of topics
//   - PING keeps the connection alive (no nonce)
//
// Incoming frames: RESPONSE, MESSAGE, PONG and RECONNECT. Decoding never
// panics on remote input; malformed frames come back as *DecodeError.
package protocol
