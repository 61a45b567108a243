package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry owns every live session, keyed by guild. Creation is exclusive:
// two concurrent creators for the same guild always observe one instance.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	factory     func(guildID string) *Session
	idleTimeout time.Duration
	onEvict     func(guildID string)
	log         zerolog.Logger
}

// NewRegistry creates a registry. factory builds a session for a guild on
// first use; onEvict runs exactly once per removal, after the session has
// stopped (presence surface teardown hooks in there).
func NewRegistry(factory func(guildID string) *Session, idleTimeout time.Duration, onEvict func(guildID string), log zerolog.Logger) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		factory:     factory,
		idleTimeout: idleTimeout,
		onEvict:     onEvict,
		log:         log.With().Str("component", "registry").Logger(),
	}
}

// GetOrCreate returns the guild's session, creating it on first use. A
// stopped session still present in the map is replaced.
func (r *Registry) GetOrCreate(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok && !s.Stopped() {
		return s
	}
	s := r.factory(guildID)
	r.sessions[guildID] = s
	r.log.Info().Str("guild", guildID).Msg("session created")
	return s
}

// Lookup returns the live session for a guild, if any.
func (r *Registry) Lookup(guildID string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	r.mu.Unlock()
	if !ok || s.Stopped() {
		return nil, false
	}
	return s, true
}

// Remove stops and evicts the guild's session. Safe to call for guilds
// without one.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	delete(r.sessions, guildID)
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := s.Stop(); err != nil && !errors.Is(err, ErrSessionClosed) {
		r.log.Warn().Err(err).Str("guild", guildID).Msg("stopping session on removal")
	}
	if r.onEvict != nil {
		r.onEvict(guildID)
	}
	r.log.Info().Str("guild", guildID).Msg("session removed")
}

// Dispatch routes one node event. Connection-level events (empty guild)
// fan out to every session; everything else goes to its guild's session
// and is dropped when none exists.
func (r *Registry) Dispatch(ev NodeEvent) {
	if ev.GuildID == "" {
		for _, s := range r.all() {
			s.ApplyEvent(ev)
		}
		return
	}
	if s, ok := r.Lookup(ev.GuildID); ok {
		s.ApplyEvent(ev)
		return
	}
	r.log.Debug().Str("guild", ev.GuildID).Stringer("type", ev.Type).Msg("event for unknown session dropped")
}

// Sweep periodically evicts sessions idle past the configured timeout.
// Blocks until ctx is done.
func (r *Registry) Sweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

func (r *Registry) sweepOnce() {
	for _, s := range r.all() {
		snap, err := s.Snapshot()
		if err != nil {
			// Already stopped elsewhere; finish the eviction.
			r.Remove(s.GuildID())
			continue
		}
		switch snap.State {
		case StateIdle, StateEnded:
			if time.Since(snap.LastActive) > r.idleTimeout {
				r.log.Info().Str("guild", s.GuildID()).Stringer("state", snap.State).Msg("evicting idle session")
				r.Remove(s.GuildID())
			}
		}
	}
}

// Shutdown stops every session.
func (r *Registry) Shutdown() {
	for _, s := range r.all() {
		r.Remove(s.GuildID())
	}
}

func (r *Registry) all() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
