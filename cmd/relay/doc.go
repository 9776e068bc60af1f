// Package main runs the enclave relay.
//
// The relay is a websocket hub. Clients announce a username and public key
// with join and are grouped into rooms; the relay forwards ciphertext
// envelopes, typing notices and call signals between connections. It never
// sees plaintext or private keys and keeps no history: all state is held in
// memory and dies with the connection that created it.
//
// HTTP
//
//	GET /ws       websocket endpoint, frames are {"event": ..., "data": ...}
//	GET /healthz  liveness
//	GET /rooms    member count per room, no identities
//
// Usage
//
//	relay serve --addr :3001 --default-room global --log-level info
package main
