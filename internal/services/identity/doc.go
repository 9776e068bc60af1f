// Package identity owns the client's key pair for the current login.
//
// A fresh P-256 pair is generated when the service is built and can be
// regenerated on demand. The private key never leaves the process: it is
// not persisted and not sent anywhere. Regenerating also resets the
// shared-secret cache so no secret derived from the old key survives.
package identity
