package live

import (
	"strings"
	"time"

	"github.com/sihhaapp/sihha/internal/database"
)

const (
	maxRoomNameLen = 128
	stampLayout    = "2006-01-02T15:04:05.000Z"
)

func sanitize(s, fallback string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fallback
	}

	return b.String()
}

// RoomName derives the media channel for the session in roomId. The request
// time anchors the name, so every join within one negotiation lands in the
// same channel and a new negotiation gets a fresh one.
func RoomName(prefix, roomId string, s database.LiveSession) string {
	stamp := "session"
	switch {
	case s.RequestedAt != nil:
		stamp = s.RequestedAt.UTC().Format(stampLayout)
	case s.RespondedAt != nil:
		stamp = s.RespondedAt.UTC().Format(stampLayout)
	}

	name := sanitize(prefix, "sihha") + "-" + sanitize(roomId, "room") + "-" + sanitize(stamp, "session")
	if len(name) > maxRoomNameLen {
		name = name[:maxRoomNameLen]
	}

	return name
}

func stamp(t time.Time) *time.Time {
	return &t
}
