// Package message sends and receives end-to-end encrypted messages.
//
// Every envelope is sealed with AES-256-GCM under the pairwise secret shared
// with its single recipient. A group message is a fan-out of such envelopes,
// one per room member, each with its own nonce and ciphertext; there is no
// group key. Metadata (self-destruct and time-lock) travels in cleartext
// beside the ciphertext.
package message
