package types

// Identity is a live connection's announced username, public key and room.
// The relay owns one per joined connection.
type Identity struct {
	ID        ConnectionID  `json:"id"`
	Username  Username      `json:"username"`
	PublicKey PublicKeyBlob `json:"publicKey"`
	Room      RoomID        `json:"room"`
}
