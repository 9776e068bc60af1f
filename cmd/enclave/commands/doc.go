// Package commands defines the enclave CLI.
//
// Commands
//
//   - keygen       Generate a key pair and print its public half and fingerprint
//   - fingerprint  Print the fingerprint of a public key given as JWK JSON
//   - chat         Join a room on a relay and chat interactively
//
// Keys live only as long as the process: chat generates a fresh pair on
// every start. What persists under --home is the known-keys book used to
// notice when a contact's key changes.
package commands
