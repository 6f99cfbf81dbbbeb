// Package live negotiates real-time voice sessions layered on a room.
//
// A session moves idle -> pending -> active -> idle. Every transition needs
// the other participant to have a fresh, active presence in the room.
package live

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/ledger"
	"github.com/sihhaapp/sihha/internal/livekit"
	"github.com/sihhaapp/sihha/internal/policy"
	"github.com/sihhaapp/sihha/internal/presence"
	"github.com/sihhaapp/sihha/internal/rooms"
	"go.uber.org/zap"
)

var (
	ErrPeerOffline       = apperr.Conflict("live-peer-offline", "the other participant is offline")
	ErrAlreadyActive     = apperr.Conflict("live-already-active", "live conversation is already active")
	ErrPendingOther      = apperr.Conflict("live-request-pending-other", "there is already a pending request")
	ErrNoPendingRequest  = apperr.Conflict("live-no-pending-request", "no pending live request")
	ErrCannotAcceptOwn   = apperr.Conflict("live-cannot-accept-own", "requester cannot accept own request")
	ErrCannotRejectOwn   = apperr.Conflict("live-cannot-reject-own", "requester cannot reject own request")
	ErrNotActive         = apperr.Conflict("live-not-active", "live conversation is not active")
	ErrContentRequired   = apperr.Validation("live-content-required", "live content is required")
	ErrMediaNotAvailable = apperr.Unavailable("livekit-not-configured", "call server is not configured", nil)
)

// TokenIssuer grants access to a media channel.
type TokenIssuer interface {
	Configured() bool
	URL() string
	Issue(g livekit.Grant) (string, error)
}

// Transition is the outcome of a state change: the new session and the
// transcript entry recording it.
type Transition struct {
	Session database.LiveSession
	Message database.Message
}

type Status struct {
	Session        database.LiveSession
	PeerLastSeenAt *time.Time
	PeerOnline     bool
}

// Credential lets a participant join the session's media channel.
type Credential struct {
	Session             database.LiveSession
	URL                 string
	Token               string
	RoomName            string
	ParticipantIdentity string
	AudioOnly           bool
}

type Negotiator struct {
	repo       database.Repository
	presence   *presence.Tracker
	ledger     *ledger.Ledger
	tokens     TokenIssuer
	roomPrefix string
	log        *zap.Logger
}

func NewNegotiator(
	repo database.Repository,
	tracker *presence.Tracker,
	msgs *ledger.Ledger,
	tokens TokenIssuer,
	roomPrefix string,
	logger *zap.Logger,
) *Negotiator {
	return &Negotiator{
		repo:       repo,
		presence:   tracker,
		ledger:     msgs,
		tokens:     tokens,
		roomPrefix: roomPrefix,
		log:        logger,
	}
}

// Status reports the session together with the peer's liveness.
func (n *Negotiator) Status(ctx context.Context, caller database.User, room database.Room) (Status, error) {
	if err := n.guard(caller, room); err != nil {
		return Status{}, err
	}

	s, err := loadSession(ctx, n.repo, room.Id)
	if err != nil {
		return Status{}, err
	}

	peer, fresh, err := n.presence.Peer(ctx, room.Id, room.PeerOf(caller.Id))
	if err != nil {
		return Status{}, err
	}

	st := Status{Session: s, PeerOnline: fresh}
	if !peer.LastSeenAt.IsZero() {
		st.PeerLastSeenAt = stamp(peer.LastSeenAt)
	}

	return st, nil
}

// Request asks the peer to go live. Re-requesting one's own pending request
// restarts it.
func (n *Negotiator) Request(ctx context.Context, caller database.User, room database.Room) (Transition, error) {
	return n.request(ctx, caller, room, false)
}

// Start behaves like Request but replaces a pending request from the peer.
func (n *Negotiator) Start(ctx context.Context, caller database.User, room database.Room) (Transition, error) {
	return n.request(ctx, caller, room, true)
}

func (n *Negotiator) request(ctx context.Context, caller database.User, room database.Room, override bool) (Transition, error) {
	if err := n.guard(caller, room); err != nil {
		return Transition{}, err
	}
	if err := n.touchAndCheckPeer(ctx, caller, room); err != nil {
		return Transition{}, err
	}

	return n.transition(ctx, caller, room, func(s database.LiveSession, now time.Time) (database.LiveSession, database.EventKind, error) {
		if s.Status == database.LiveActive {
			return s, "", ErrAlreadyActive
		}
		if !override && s.Status == database.LivePending && s.RequestedBy != nil && *s.RequestedBy != caller.Id {
			return s, "", ErrPendingOther
		}

		requester := caller.Id
		return database.LiveSession{
			RoomId:      room.Id,
			Status:      database.LivePending,
			RequestedBy: &requester,
			RequestedAt: stamp(now),
		}, database.EventRequest, nil
	})
}

// Accept activates the peer's pending request. The requester must still be
// present.
func (n *Negotiator) Accept(ctx context.Context, caller database.User, room database.Room) (Transition, error) {
	if err := n.guard(caller, room); err != nil {
		return Transition{}, err
	}
	if err := n.presence.Touch(ctx, room.Id, caller.Id); err != nil {
		return Transition{}, err
	}

	return n.transition(ctx, caller, room, func(s database.LiveSession, now time.Time) (database.LiveSession, database.EventKind, error) {
		if s.Status != database.LivePending || s.RequestedBy == nil {
			return s, "", ErrNoPendingRequest
		}
		if *s.RequestedBy == caller.Id {
			return s, "", ErrCannotAcceptOwn
		}

		_, fresh, err := n.presence.Peer(ctx, room.Id, *s.RequestedBy)
		if err != nil {
			return s, "", err
		}
		if !fresh {
			return s, "", ErrPeerOffline
		}

		requestedAt := s.RequestedAt
		if requestedAt == nil {
			requestedAt = stamp(now)
		}

		return database.LiveSession{
			RoomId:      room.Id,
			Status:      database.LiveActive,
			RequestedBy: s.RequestedBy,
			RequestedAt: requestedAt,
			RespondedAt: stamp(now),
		}, database.EventStart, nil
	})
}

// Reject declines the peer's pending request. The requester's presence is
// not consulted.
func (n *Negotiator) Reject(ctx context.Context, caller database.User, room database.Room) (Transition, error) {
	if err := n.guard(caller, room); err != nil {
		return Transition{}, err
	}
	if err := n.presence.Touch(ctx, room.Id, caller.Id); err != nil {
		return Transition{}, err
	}

	return n.transition(ctx, caller, room, func(s database.LiveSession, now time.Time) (database.LiveSession, database.EventKind, error) {
		if s.Status != database.LivePending || s.RequestedBy == nil {
			return s, "", ErrNoPendingRequest
		}
		if *s.RequestedBy == caller.Id {
			return s, "", ErrCannotRejectOwn
		}

		return idle(room.Id, now), database.EventReject, nil
	})
}

// Stop ends the session from any state and marks the caller as having left.
func (n *Negotiator) Stop(ctx context.Context, caller database.User, room database.Room) (Transition, error) {
	if err := n.guard(caller, room); err != nil {
		return Transition{}, err
	}

	t, err := n.transition(ctx, caller, room, func(_ database.LiveSession, now time.Time) (database.LiveSession, database.EventKind, error) {
		return idle(room.Id, now), database.EventStop, nil
	})
	if err != nil {
		return Transition{}, err
	}

	if err := n.presence.Leave(ctx, room.Id, caller.Id); err != nil {
		return Transition{}, err
	}

	return t, nil
}

// Join issues a media credential for an active session.
func (n *Negotiator) Join(ctx context.Context, caller database.User, room database.Room) (Credential, error) {
	if err := n.guard(caller, room); err != nil {
		return Credential{}, err
	}

	s, err := loadSession(ctx, n.repo, room.Id)
	if err != nil {
		return Credential{}, err
	}
	if s.Status != database.LiveActive {
		return Credential{}, ErrNotActive
	}

	if err := n.touchAndCheckPeer(ctx, caller, room); err != nil {
		return Credential{}, err
	}

	if n.tokens == nil || !n.tokens.Configured() {
		return Credential{}, ErrMediaNotAvailable
	}

	name := RoomName(n.roomPrefix, room.Id, s)
	token, err := n.tokens.Issue(livekit.Grant{Room: name, Identity: caller.Id, Name: caller.Name})
	if err != nil {
		n.log.Error("issue media token", zap.String("room_id", room.Id), zap.Error(err))
		return Credential{}, apperr.Unavailable("livekit-token-failed", "unable to create call access token", err)
	}

	return Credential{
		Session:             s,
		URL:                 n.tokens.URL(),
		Token:               token,
		RoomName:            name,
		ParticipantIdentity: caller.Id,
		AudioOnly:           true,
	}, nil
}

// Signal relays negotiation content through the transcript. Content that
// starts with a known "[LIVE_…]" tag is recorded as that event; other
// bracketed content is kept verbatim; anything else is a signal and stays out
// of the room preview.
func (n *Negotiator) Signal(ctx context.Context, caller database.User, room database.Room, content string) (database.Message, error) {
	if err := n.guard(caller, room); err != nil {
		return database.Message{}, err
	}
	if err := rooms.EnsureWritable(room, caller.Id); err != nil {
		return database.Message{}, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return database.Message{}, ErrContentRequired
	}

	s, err := loadSession(ctx, n.repo, room.Id)
	if err != nil {
		return database.Message{}, err
	}
	if s.Status != database.LiveActive {
		return database.Message{}, ErrNotActive
	}

	if err := n.touchAndCheckPeer(ctx, caller, room); err != nil {
		return database.Message{}, err
	}

	kind, body, ok := ledger.ParseMarker(content)
	if !ok && !strings.HasPrefix(content, "[") {
		kind = database.EventSignal
	}

	return n.ledger.Transcript(ctx, room.Id, caller, kind, body)
}

type step func(current database.LiveSession, now time.Time) (database.LiveSession, database.EventKind, error)

// transition applies next to the locked session and records the transcript
// entry in the same transaction.
func (n *Negotiator) transition(ctx context.Context, caller database.User, room database.Room, next step) (Transition, error) {
	var out Transition
	err := n.repo.WithTx(ctx, func(tx database.Repository) error {
		current, found, err := lockSession(ctx, tx, room.Id)
		if err != nil {
			return err
		}

		s, kind, err := next(current, n.presence.Now())
		if err != nil {
			return err
		}

		if found {
			err = tx.UpsertLiveSession(ctx, s)
		} else {
			err = tx.InsertLiveSession(ctx, s)
		}
		if errors.Is(err, database.ErrStale) {
			// a concurrent first transition created the row; its lock is held
			// until that transaction commits, so the re-read sees its outcome
			current, _, err = lockSession(ctx, tx, room.Id)
			if err != nil {
				return err
			}
			if s, kind, err = next(current, n.presence.Now()); err != nil {
				return err
			}
			err = tx.UpsertLiveSession(ctx, s)
		}
		if err != nil {
			return err
		}

		msg, err := n.ledger.WithStore(tx).Transcript(ctx, room.Id, caller, kind, caller.Name)
		if err != nil {
			return err
		}

		out = Transition{Session: s, Message: msg}
		return nil
	})
	if err != nil {
		return Transition{}, err
	}

	n.log.Debug("live session transition",
		zap.String("room_id", room.Id),
		zap.String("user_id", caller.Id),
		zap.String("status", string(out.Session.Status)),
	)

	return out, nil
}

func (n *Negotiator) guard(caller database.User, room database.Room) error {
	if err := policy.Check(policy.LiveNegotiate, caller.Role); err != nil {
		return err
	}
	if !room.HasParticipant(caller.Id) {
		return rooms.ErrForbidden
	}

	return nil
}

// touchAndCheckPeer refreshes the caller's presence, which sticks even when
// the peer turns out to be offline.
func (n *Negotiator) touchAndCheckPeer(ctx context.Context, caller database.User, room database.Room) error {
	if err := n.presence.Touch(ctx, room.Id, caller.Id); err != nil {
		return err
	}

	_, fresh, err := n.presence.Peer(ctx, room.Id, room.PeerOf(caller.Id))
	if err != nil {
		return err
	}
	if !fresh {
		return ErrPeerOffline
	}

	return nil
}

func loadSession(ctx context.Context, store database.LiveSessionStore, roomId string) (database.LiveSession, error) {
	s, _, err := lockSession(ctx, store, roomId)
	return s, err
}

// lockSession reads the session row, locked when store is transactional. A
// room without a row reads as idle with found false.
func lockSession(ctx context.Context, store database.LiveSessionStore, roomId string) (database.LiveSession, bool, error) {
	s, err := store.GetLiveSession(ctx, roomId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.LiveSession{RoomId: roomId, Status: database.LiveIdle}, false, nil
		}
		return database.LiveSession{}, false, err
	}
	if s.Status == "" {
		s.Status = database.LiveIdle
	}

	return s, true, nil
}

func idle(roomId string, now time.Time) database.LiveSession {
	return database.LiveSession{
		RoomId:      roomId,
		Status:      database.LiveIdle,
		RespondedAt: stamp(now),
	}
}
