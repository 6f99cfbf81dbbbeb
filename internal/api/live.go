package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/live"
	"github.com/sihhaapp/sihha/internal/server"
	"github.com/sihhaapp/sihha/internal/stats"
	"github.com/sihhaapp/sihha/internal/types"
)

type LiveStatusResponse struct {
	Session        types.LiveSession `json:"session"`
	PeerLastSeenAt *time.Time        `json:"peerLastSeenAt"`
	PeerOnline     bool              `json:"peerOnline"`
}

type LiveTransitionResponse struct {
	Session types.LiveSession `json:"session"`
	Message types.Message     `json:"message"`
}

type LiveJoinResponse struct {
	Session             types.LiveSession `json:"session"`
	Url                 string            `json:"url"`
	Token               string            `json:"token"`
	RoomName            string            `json:"roomName"`
	ParticipantIdentity string            `json:"participantIdentity"`
	AudioOnly           bool              `json:"audioOnly"`
}

type transitionFunc func(ctx context.Context, caller database.User, room database.Room) (live.Transition, error)

func (a *App) liveStatus(w http.ResponseWriter, r *http.Request) {
	room, ok := a.room(w, r)
	if !ok {
		return
	}

	st, err := a.live.Status(r.Context(), caller(r), room)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, LiveStatusResponse{
		Session:        types.NewLiveSession(st.Session),
		PeerLastSeenAt: st.PeerLastSeenAt,
		PeerOnline:     st.PeerOnline,
	})
}

// liveTransition serves one negotiator state change and pushes the new state
// to both participants.
func (a *App) liveTransition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, ok := a.room(w, r)
		if !ok {
			return
		}

		t, err := fn(r.Context(), caller(r), room)
		if err != nil {
			a.writeError(w, err)
			return
		}

		resp := LiveTransitionResponse{
			Session: types.NewLiveSession(t.Session),
			Message: types.NewMessage(t.Message),
		}
		a.incr(stats.LiveTransitions)
		a.cs.Push(server.LiveChanged(resp.Session, &resp.Message), room.PatientId, room.DoctorId)

		a.writeJson(w, http.StatusCreated, resp)
	}
}

func (a *App) liveJoin(w http.ResponseWriter, r *http.Request) {
	room, ok := a.room(w, r)
	if !ok {
		return
	}

	cred, err := a.live.Join(r.Context(), caller(r), room)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, LiveJoinResponse{
		Session:             types.NewLiveSession(cred.Session),
		Url:                 cred.URL,
		Token:               cred.Token,
		RoomName:            cred.RoomName,
		ParticipantIdentity: cred.ParticipantIdentity,
		AudioOnly:           cred.AudioOnly,
	})
}

func (a *App) postLiveSignal(w http.ResponseWriter, r *http.Request) {
	room, ok := a.room(w, r)
	if !ok {
		return
	}

	var req LiveSignalRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	m, err := a.live.Signal(r.Context(), caller(r), room, req.Content)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.pushMessage(room, m)
	a.writeJson(w, http.StatusCreated, map[string]any{"message": types.NewMessage(m)})
}
