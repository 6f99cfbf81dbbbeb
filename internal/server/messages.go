package server

import (
	"net/http"
	"time"

	"github.com/sihhaapp/sihha/internal/types"
)

const (
	EventMessage = "message"
	EventLive    = "live"
	EventRoom    = "room"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the only frame clients send: a keepalive the server
// acknowledges.
type ClientMessage struct {
	BaseMessage
	Ping *Ping `json:"ping,omitempty"`
}

type Ping struct{}

type ServerMessage struct {
	BaseMessage
	Response     *Response     `json:"response,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	UserId       string        `json:"-"`
	SkipClient   *Client       `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Notification struct {
	Event   string             `json:"event"`
	RoomId  string             `json:"room_id"`
	Message *types.Message     `json:"message,omitempty"`
	Session *types.LiveSession `json:"session,omitempty"`
	Room    *types.Room        `json:"room,omitempty"`
}

func notify(n *Notification) *ServerMessage {
	return &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: Now()},
		Notification: n,
	}
}

func MessagePosted(m types.Message) *ServerMessage {
	return notify(&Notification{Event: EventMessage, RoomId: m.RoomId, Message: &m})
}

// LiveChanged carries the new session state and, when one was written, the
// transcript entry of the transition.
func LiveChanged(s types.LiveSession, m *types.Message) *ServerMessage {
	return notify(&Notification{Event: EventLive, RoomId: s.RoomId, Session: &s, Message: m})
}

func RoomChanged(r types.Room) *ServerMessage {
	return notify(&Notification{Event: EventRoom, RoomId: r.Id, Room: &r})
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
