// Package presence keeps the single persistent status display of each
// guild in sync with its playback session. Updates are throttled to a
// minimum interval and coalesced: bursts of rapid state changes collapse
// into one trailing render that always reflects the final state.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"groovekeeper/internal/player"
)

const renderTimeout = 10 * time.Second

// View is the rendered content of the status display. Its hash decides
// whether an edit is worth issuing at all.
type View struct {
	State      player.State
	TrackTitle string
	TrackURI   string
	Artist     string
	Requester  string
	Artwork    string
	DurationMS int64
	PositionMS int64
	Volume     int
	Loop       player.LoopMode
	Shuffle    bool
	QueueLen   int
}

// ViewOf projects a session snapshot onto the display surface.
func ViewOf(snap player.Snapshot) View {
	v := View{
		State:      snap.State,
		PositionMS: snap.PositionMS,
		Volume:     snap.Volume,
		Loop:       snap.Loop,
		Shuffle:    snap.Shuffle,
		QueueLen:   snap.QueueLen,
	}
	if snap.Track != nil {
		v.TrackTitle = snap.Track.Title
		v.TrackURI = snap.Track.URI
		v.Artist = snap.Track.Author
		v.Requester = snap.Track.Requester
		v.Artwork = snap.Track.Artwork
		v.DurationMS = snap.Track.Duration.Milliseconds()
	}
	return v
}

// Surface is the external message-like object the publisher writes to.
// Render must be idempotent under retry; Clear removes the display.
type Surface interface {
	Render(ctx context.Context, guildID string, v View) error
	Clear(ctx context.Context, guildID string) error
}

// space is the publisher's per-guild state machine: idle, render in
// flight, or trailing render scheduled.
type space struct {
	limiter     *rate.Limiter
	lastHash    uint64
	hasHash     bool
	pending     *View
	pendingHash uint64
	timer       *time.Timer
	rendering   bool
	closed      bool
}

// Publisher subscribes to session state changes and re-renders each
// guild's status display. At most one render is in flight per guild.
type Publisher struct {
	surface     Surface
	minInterval time.Duration
	log         zerolog.Logger

	mu     sync.Mutex
	spaces map[string]*space
}

// NewPublisher creates a publisher that renders at most once per
// minInterval per guild.
func NewPublisher(surface Surface, minInterval time.Duration, log zerolog.Logger) *Publisher {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &Publisher{
		surface:     surface,
		minInterval: minInterval,
		log:         log.With().Str("component", "presence").Logger(),
		spaces:      make(map[string]*space),
	}
}

// Notify ingests one session state change. It never blocks: the render
// itself runs on the guild's own render lane.
func (p *Publisher) Notify(snap player.Snapshot) {
	v := ViewOf(snap)
	hash, err := hashstructure.Hash(v, hashstructure.FormatV2, nil)
	if err != nil {
		// Hashing a plain struct cannot realistically fail; render anyway.
		p.log.Warn().Err(err).Msg("view hash failed")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.spaces[snap.GuildID]
	if !ok {
		st = &space{limiter: rate.NewLimiter(rate.Every(p.minInterval), 1)}
		p.spaces[snap.GuildID] = st
	}
	if st.closed {
		return
	}
	if err == nil && st.hasHash && st.lastHash == hash && st.pending == nil {
		return // identical to what is already on screen
	}

	st.pending = &v
	st.pendingHash = hash

	if st.rendering || st.timer != nil {
		return // in-flight or scheduled pass picks up the latest view
	}
	if st.limiter.Allow() {
		st.rendering = true
		go p.render(snap.GuildID, st)
	} else {
		p.schedule(snap.GuildID, st)
	}
}

// Close tears down a guild's display exactly once, cancelling any pending
// trailing render first.
func (p *Publisher) Close(guildID string) {
	p.mu.Lock()
	st, ok := p.spaces[guildID]
	if !ok || st.closed {
		p.mu.Unlock()
		return
	}
	st.closed = true
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.pending = nil
	delete(p.spaces, guildID)
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	if err := p.surface.Clear(ctx, guildID); err != nil {
		p.log.Warn().Err(err).Str("guild", guildID).Msg("clearing status display failed")
	}
}

// schedule arms the trailing render for when the interval elapses.
// Caller holds p.mu.
func (p *Publisher) schedule(guildID string, st *space) {
	if st.timer != nil {
		return
	}
	delay := st.limiter.Reserve().Delay()
	st.timer = time.AfterFunc(delay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		st.timer = nil
		if st.closed || st.pending == nil || st.rendering {
			return
		}
		st.rendering = true
		go p.render(guildID, st)
	})
}

// render drains the pending view. The caller has already taken a limiter
// token for the first pass.
func (p *Publisher) render(guildID string, st *space) {
	for {
		p.mu.Lock()
		if st.closed || st.pending == nil {
			st.rendering = false
			p.mu.Unlock()
			return
		}
		v := *st.pending
		hash := st.pendingHash
		st.pending = nil
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
		err := p.surface.Render(ctx, guildID, v)
		cancel()

		p.mu.Lock()
		if err != nil {
			p.log.Warn().Err(err).Str("guild", guildID).Msg("render failed")
		} else {
			st.lastHash = hash
			st.hasHash = true
		}
		if st.closed || st.pending == nil {
			st.rendering = false
			p.mu.Unlock()
			return
		}
		if !st.limiter.Allow() {
			st.rendering = false
			p.schedule(guildID, st)
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}
