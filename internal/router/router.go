// Package router normalizes member-issued control actions — slash
// commands and button presses alike — and forwards them to the right
// session. It owns authorization and idempotency; everything after that
// is the session's problem.
package router

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groovekeeper/internal/player"
)

// Kind identifies a control action.
type Kind string

const (
	KindEnqueue  Kind = "enqueue"
	KindPause    Kind = "pause"
	KindResume   Kind = "resume"
	KindSkip     Kind = "skip"
	KindPrevious Kind = "previous"
	KindStop     Kind = "stop"
	KindVolume   Kind = "volume"
	KindLoop     Kind = "loop"
	KindShuffle  Kind = "shuffle"
	KindRemove   Kind = "remove"
	KindMove     Kind = "move"
)

// Destructive actions are restricted to operators (DJ role or manage-guild
// permission, resolved by the glue); everything else is open to any member.
var operatorOnly = map[Kind]bool{
	KindStop:   true,
	KindRemove: true,
	KindMove:   true,
}

var (
	ErrUnknownAction   = errors.New("unknown action kind")
	ErrUnauthorized    = errors.New("actor is not allowed to perform this action")
	ErrDuplicateAction = errors.New("duplicate action")
	ErrNoSession       = errors.New("no active session for this guild")
	ErrBadPayload      = errors.New("invalid action payload")
)

// Actor identifies who issued an action. Operator is resolved upstream
// from roles/permissions.
type Actor struct {
	ID       string
	Operator bool
}

// Action is a normalized control request. It exists only in transit.
type Action struct {
	ID      uuid.UUID
	GuildID string
	Kind    Kind
	Actor   Actor

	Track  *player.Track // enqueue
	Count  int           // skip
	Volume int           // volume
	Loop   player.LoopMode
	Index  int // remove
	From   int // move
	To     int // move
}

// Result carries what the glue needs to answer the actor.
type Result struct {
	Notice   player.Notice
	Snapshot player.Snapshot
}

// Router dispatches actions against the session registry.
type Router struct {
	reg  *player.Registry
	seen *seenCache
	log  zerolog.Logger
}

// New creates a router.
func New(reg *player.Registry, log zerolog.Logger) *Router {
	return &Router{
		reg:  reg,
		seen: newSeenCache(256),
		log:  log.With().Str("component", "router").Logger(),
	}
}

// Dispatch validates, authorizes and applies one action. A repeated action
// ID is a no-op and returns ErrDuplicateAction.
func (r *Router) Dispatch(a Action) (Result, error) {
	if a.ID != uuid.Nil && !r.seen.add(a.ID) {
		r.log.Debug().Str("action", string(a.Kind)).Str("guild", a.GuildID).Msg("duplicate action dropped")
		return Result{}, ErrDuplicateAction
	}
	if operatorOnly[a.Kind] && !a.Actor.Operator {
		return Result{}, ErrUnauthorized
	}

	if a.Kind == KindEnqueue {
		return r.enqueue(a)
	}

	s, ok := r.reg.Lookup(a.GuildID)
	if !ok {
		return Result{}, ErrNoSession
	}

	var notice player.Notice
	var err error

	switch a.Kind {
	case KindPause:
		err = s.Pause()
		notice = player.NewNotice("player.paused")
	case KindResume:
		err = s.Resume()
		notice = player.NewNotice("player.resumed")
	case KindSkip:
		count := a.Count
		if count == 0 {
			count = 1
		}
		err = s.Skip(count)
		notice = player.NewNotice("player.skipped", "count", count)
	case KindPrevious:
		err = s.Skip(-1)
		notice = player.NewNotice("player.previous")
	case KindStop:
		err = s.Stop()
		notice = player.NewNotice("player.stopped")
	case KindVolume:
		err = s.SetVolume(a.Volume)
		notice = player.NewNotice("player.volume_set", "volume", a.Volume)
	case KindLoop:
		err = s.SetLoop(a.Loop)
		notice = player.NewNotice("player.loop_set", "mode", a.Loop.String())
	case KindShuffle:
		var on bool
		on, err = s.ToggleShuffle()
		if on {
			notice = player.NewNotice("player.shuffle_on")
		} else {
			notice = player.NewNotice("player.shuffle_off")
		}
	case KindRemove:
		var removed player.Track
		removed, err = s.RemoveTrack(a.Index)
		notice = player.NewNotice("player.track_removed", "title", removed.Title)
	case KindMove:
		err = s.MoveTrack(a.From, a.To)
		notice = player.NewNotice("player.track_moved", "from", a.From, "to", a.To)
	default:
		return Result{}, ErrUnknownAction
	}

	if err != nil {
		return Result{}, err
	}
	return r.result(a.GuildID, notice), nil
}

func (r *Router) enqueue(a Action) (Result, error) {
	if a.Track == nil {
		return Result{}, ErrBadPayload
	}
	s := r.reg.GetOrCreate(a.GuildID)
	pos, err := s.Enqueue(*a.Track)
	if err != nil {
		return Result{}, err
	}
	notice := player.NewNotice("player.track_queued", "title", a.Track.Title, "position", pos+1)
	return r.result(a.GuildID, notice), nil
}

func (r *Router) result(guildID string, notice player.Notice) Result {
	res := Result{Notice: notice}
	if s, ok := r.reg.Lookup(guildID); ok {
		if snap, err := s.Snapshot(); err == nil {
			res.Snapshot = snap
		}
	}
	return res
}

// seenCache remembers the most recent action IDs.
type seenCache struct {
	mu   sync.Mutex
	ids  map[uuid.UUID]struct{}
	ring []uuid.UUID
	next int
}

func newSeenCache(size int) *seenCache {
	return &seenCache{
		ids:  make(map[uuid.UUID]struct{}, size),
		ring: make([]uuid.UUID, size),
	}
}

// add returns false when the ID was already seen.
func (c *seenCache) add(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; ok {
		return false
	}
	if old := c.ring[c.next]; old != uuid.Nil {
		delete(c.ids, old)
	}
	c.ring[c.next] = id
	c.next = (c.next + 1) % len(c.ring)
	c.ids[id] = struct{}{}
	return true
}
