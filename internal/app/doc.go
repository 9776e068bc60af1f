// Package app wires the client together for the CLI.
//
// It builds the identity, presence, message and call services from Config,
// dials the relay, and turns inbound relay frames into Notices the
// interactive surface can render. The CLI never touches frames or keys
// directly.
package app
