package app

import (
	"errors"
	"net/url"

	"github.com/google/uuid"

	"enclave/internal/domain"
)

// roomParam is the query parameter invite links carry the room in.
const roomParam = "room"

// NewRoomID returns a random, unguessable room id.
func NewRoomID() domain.RoomID {
	return domain.RoomID(uuid.NewString())
}

// InviteLink appends room to base as a query parameter.
func InviteLink(base string, room domain.RoomID) (string, error) {
	if room == "" {
		return "", errors.New("room required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(roomParam, room.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RoomFromLink extracts the room from an invite link. A link without one
// names the default room.
func RoomFromLink(link string) (domain.RoomID, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	if room := u.Query().Get(roomParam); room != "" {
		return domain.RoomID(room), nil
	}
	return domain.DefaultRoom, nil
}
