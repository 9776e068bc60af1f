// Package media implements call media sessions over pion/webrtc.
//
// The relay only forwards signals; the PeerConnection lives here, on the
// client. Sessions open a single data channel so a terminal client can
// establish and test a call path without capture devices.
package media
