package ledger

import (
	"strings"

	"github.com/sihhaapp/sihha/internal/database"
)

var markers = map[database.EventKind]string{
	database.EventRequest: "[LIVE_REQUEST]",
	database.EventAccept:  "[LIVE_ACCEPT]",
	database.EventReject:  "[LIVE_REJECT]",
	database.EventStart:   "[LIVE_START]",
	database.EventStop:    "[LIVE_STOP]",
	database.EventSignal:  "[LIVE_SIGNAL]",
}

// Marker renders the transcript tag of kind, or "" for ordinary chat.
func Marker(kind database.EventKind) string {
	return markers[kind]
}

// ParseMarker splits a recognised leading "[LIVE_…]" tag off content.
func ParseMarker(content string) (database.EventKind, string, bool) {
	for kind, tag := range markers {
		if rest, ok := strings.CutPrefix(content, tag); ok {
			return kind, strings.TrimSpace(rest), true
		}
	}

	return database.EventNone, content, false
}

// Preview is the room summary line shown for m.
func Preview(m database.Message) string {
	switch m.Type {
	case database.MessageAudio:
		return "Voice message"
	case database.MessageImage:
		return "Image"
	case database.MessageLive:
		body := strings.TrimSpace(strings.Join([]string{Marker(m.EventKind), m.Content}, " "))
		if body == "" {
			body = "Live update"
		}
		return "[LIVE] " + body
	default:
		return m.Content
	}
}
