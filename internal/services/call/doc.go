// Package call drives the client side of call signaling.
//
// It runs the same transition function as the relay (signaling.Next) over
// the client's single call, and owns the MediaSession for it. Local ICE
// candidates are held back until the offer or answer they belong to has
// been sent, since the relay drops candidates for calls it does not know.
package call
