package domain

import "strings"

// RoomSeparator joins server and channel names. Server names never contain it.
const RoomSeparator = "/"

// RoomID names one channel of one server: "server/channel".
// The relay treats it as opaque and pre-validated.
type RoomID string

func NewRoomID(server, channel string) RoomID {
	return RoomID(server + RoomSeparator + channel)
}

// Split returns the server and channel parts. The first separator wins,
// so a channel part may itself contain the separator.
func (id RoomID) Split() (server, channel string, ok bool) {
	server, channel, ok = strings.Cut(string(id), RoomSeparator)
	if !ok || server == "" || channel == "" {
		return "", "", false
	}
	return server, channel, true
}

func (id RoomID) Server() string {
	server, _, _ := id.Split()
	return server
}
