// Package relay implements the untrusted relay and the client side of its
// websocket protocol.
//
// The relay never sees plaintext or private keys. It keeps three pieces of
// connection-scoped state:
//
//   - Directory: connection id → announced identity (username, public key,
//     room). Presence lists are derived per room and never cross rooms.
//   - Hub: live websocket connections, joined or not.
//   - signaling.Table: at most one call per connection.
//
// Delivery is best effort. Messages, typing notices and call signals to
// unknown connections are dropped without a receipt. Malformed payloads are
// rejected before they reach the directory or the call table.
//
// HTTP surface (gin)
//
//	GET /ws       websocket upgrade; frames are {"event": ..., "data": ...}
//	GET /healthz  liveness
//	GET /rooms    member counts per room and active calls
//
// Client dials the websocket, emits frames and runs a read loop for inbound
// events.
package relay
