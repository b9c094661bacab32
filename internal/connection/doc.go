// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Keeps a pool of WebSocket connections, each owning at most MaxTopics topics
//   - Places each requested topic on the first connection with room, or
//     queues it and dials a new connection
//   - Correlates RESPONSE frames with LISTEN / UNLISTEN requests by nonce
//   - Sends application PINGs on every connection and watches for PONGs
//   - Re-listens the topics of a closed connection, dialing with exponential backoff
//   - Hands MESSAGE frames to a Dispatcher
package connection
