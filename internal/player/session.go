package player

import (
	"time"

	"github.com/rs/zerolog"
)

// State is the playback state of a session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateEnded
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Snapshot is a consistent read of session state, taken inside the
// session's serialized loop.
type Snapshot struct {
	GuildID    string
	State      State
	Track      *Track
	PositionMS int64
	Volume     int
	Loop       LoopMode
	Shuffle    bool
	QueueLen   int
	LastActive time.Time
}

// Scrobbler receives fire-and-forget playback notifications. Implementations
// must not block; failures are their own problem.
type Scrobbler interface {
	TrackStarted(guildID string, t Track)
	TrackFinished(guildID string, t Track, startedAt time.Time)
}

// SessionConfig wires a new session.
type SessionConfig struct {
	GuildID     string
	Node        Node
	Volume      int // initial volume, usually the stored guild preference
	RetryBudget int // reconnect re-issues before giving up on a track

	// OnChange is invoked after every observable state change with a fresh
	// snapshot. It runs inside the session loop and must not block.
	OnChange func(Snapshot)
	// OnNotice receives user-facing notices (recoverable failures etc.).
	OnNotice func(Notice)
	// OnVolumeChange is called on its own goroutine when the volume is set,
	// so the preference can be persisted best-effort.
	OnVolumeChange func(guildID string, volume int)

	Scrobbler Scrobbler // optional
	Logger    zerolog.Logger
}

// Session is the playback state machine of one guild. All mutating
// operations and all node events funnel through a single goroutine, so
// transitions are observed in a strict total order and user actions never
// race node events. Exported methods block until the loop has applied them.
type Session struct {
	guildID     string
	node        Node
	log         zerolog.Logger
	retryBudget int

	mailbox chan func()
	done    chan struct{}

	// Everything below is owned by the run loop.
	queue          *Queue
	state          State
	volume         int
	positionMS     int64
	positionAt     time.Time
	nodeUp         bool
	retriesLeft    int
	generation     uint64
	lastActive     time.Time
	trackStartedAt time.Time

	onChange  func(Snapshot)
	onNotice  func(Notice)
	onVolume  func(string, int)
	scrobbler Scrobbler
}

// NewSession creates a session and starts its loop.
func NewSession(cfg SessionConfig) *Session {
	vol := cfg.Volume
	if vol < 0 || vol > MaxVolume {
		vol = DefaultVolume
	}
	budget := cfg.RetryBudget
	if budget <= 0 {
		budget = 1
	}

	s := &Session{
		guildID:     cfg.GuildID,
		node:        cfg.Node,
		log:         cfg.Logger.With().Str("component", "session").Str("guild", cfg.GuildID).Logger(),
		retryBudget: budget,
		mailbox:     make(chan func()),
		done:        make(chan struct{}),
		queue:       NewQueue(),
		state:       StateIdle,
		volume:      vol,
		nodeUp:      true,
		retriesLeft: budget,
		lastActive:  time.Now(),
		onChange:    cfg.OnChange,
		onNotice:    cfg.OnNotice,
		onVolume:    cfg.OnVolumeChange,
		scrobbler:   cfg.Scrobbler,
	}
	go s.run()
	return s
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.mailbox:
			fn()
		case <-s.done:
			return
		}
	}
}

// call runs fn inside the session loop and waits for its result.
func (s *Session) call(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.mailbox <- func() { reply <- fn() }:
		return <-reply
	case <-s.done:
		return ErrSessionClosed
	}
}

// GuildID returns the session key.
func (s *Session) GuildID() string { return s.guildID }

// Stopped reports whether the session has reached its terminal state.
func (s *Session) Stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Enqueue appends a track. If nothing is playing the track starts
// immediately. Enqueue cannot fail while the session is alive: when the
// node is unreachable the track stays queued and dispatch is deferred to
// the reconnect path.
func (s *Session) Enqueue(t Track) (pos int, err error) {
	err = s.call(func() error {
		s.touch()
		pos = s.queue.Append(t)
		if s.state == StateIdle || s.state == StateEnded {
			if next, ok := s.queue.Next(); ok {
				s.startTrack(next, 0)
			}
		}
		s.emitChange()
		return nil
	})
	return pos, err
}

// Skip advances n tracks (negative n replays history).
func (s *Session) Skip(n int) error {
	return s.call(func() error {
		s.touch()
		t, err := s.queue.Skip(n)
		if err != nil {
			return err
		}
		s.startTrack(t, 0)
		s.emitChange()
		return nil
	})
}

// Pause suspends playback, keeping the position.
func (s *Session) Pause() error {
	return s.call(func() error {
		s.touch()
		if s.state != StatePlaying {
			return ErrNoTrackPlaying
		}
		s.freezePosition()
		s.state = StatePaused
		s.node.SetPaused(s.guildID, true, s.generation)
		s.emitChange()
		return nil
	})
}

// Resume continues a paused session.
func (s *Session) Resume() error {
	return s.call(func() error {
		s.touch()
		if s.state != StatePaused {
			return ErrNoTrackPlaying
		}
		s.state = StatePlaying
		s.positionAt = time.Now()
		s.node.SetPaused(s.guildID, false, s.generation)
		s.emitChange()
		return nil
	})
}

// Stop clears the queue and terminates the session. All later operations
// return ErrSessionClosed.
func (s *Session) Stop() error {
	return s.call(func() error {
		s.generation++
		s.queue.Clear()
		s.state = StateStopped
		s.positionMS = 0
		s.node.StopPlayback(s.guildID, s.generation)
		s.emitChange()
		close(s.done)
		return nil
	})
}

// Volume bounds.
const (
	MaxVolume     = 150
	DefaultVolume = 100
)

// SetVolume applies an exact volume in [0, MaxVolume].
func (s *Session) SetVolume(v int) error {
	return s.call(func() error {
		if v < 0 || v > MaxVolume {
			return ErrVolumeOutOfRange
		}
		s.touch()
		s.volume = v
		s.node.SetVolume(s.guildID, v, s.generation)
		if s.onVolume != nil {
			go s.onVolume(s.guildID, v)
		}
		s.emitChange()
		return nil
	})
}

// SetLoop changes the loop mode; it takes effect on the next track end.
func (s *Session) SetLoop(mode LoopMode) error {
	return s.call(func() error {
		s.touch()
		s.queue.SetLoop(mode)
		s.emitChange()
		return nil
	})
}

// ToggleShuffle flips shuffle and reports the new flag.
func (s *Session) ToggleShuffle() (on bool, err error) {
	err = s.call(func() error {
		s.touch()
		on = s.queue.ToggleShuffle()
		s.emitChange()
		return nil
	})
	return on, err
}

// RemoveTrack deletes the queue entry at index i.
func (s *Session) RemoveTrack(i int) (t Track, err error) {
	err = s.call(func() error {
		s.touch()
		var rerr error
		t, rerr = s.queue.RemoveAt(i)
		if rerr != nil {
			return rerr
		}
		s.emitChange()
		return nil
	})
	return t, err
}

// MoveTrack relocates a queue entry.
func (s *Session) MoveTrack(from, to int) error {
	return s.call(func() error {
		s.touch()
		if err := s.queue.Move(from, to); err != nil {
			return err
		}
		s.emitChange()
		return nil
	})
}

// Snapshot returns a consistent view of the session.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.call(func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// TrackList returns the queue contents in insertion order together with
// the index of the current track (-1 when nothing has played yet).
func (s *Session) TrackList() ([]Track, int, error) {
	var out []Track
	current := -1
	err := s.call(func() error {
		out = s.queue.Tracks()
		current = s.queue.CurrentIndex()
		return nil
	})
	return out, current, err
}

// ApplyEvent feeds one node event into the session loop. Events with a
// generation older than the session's current generation are discarded:
// they answer a command that a later stop or skip has superseded.
func (s *Session) ApplyEvent(ev NodeEvent) {
	_ = s.call(func() error {
		s.handleEvent(ev)
		return nil
	})
}

func (s *Session) handleEvent(ev NodeEvent) {
	switch ev.Type {
	case NodeDisconnected:
		s.nodeUp = false
		if s.state == StatePlaying || s.state == StateLoading {
			s.freezePosition()
			s.state = StatePaused
			s.log.Warn().Int64("position_ms", s.positionMS).Msg("node lost, playback frozen")
			s.emitChange()
		}
		return

	case NodeReconnected:
		s.nodeUp = true
		// After an outage the node-side player is gone, so any session
		// that still wants its current track needs a fresh play command.
		// That covers the frozen Playing case, a track enqueued while the
		// node was down (sitting in Loading), a pause that outlived the
		// player, and a resume issued during the outage.
		if s.state != StateLoading && s.state != StatePaused && s.state != StatePlaying {
			return
		}
		current, ok := s.queue.Current()
		if !ok {
			return
		}
		if s.retriesLeft <= 0 {
			s.state = StateEnded
			s.touch()
			s.log.Error().Str("track", current.ID).Msg("retry budget exhausted, giving up on track")
			s.notice(NewNotice("player.playback_failed", "title", current.Title))
			s.emitChange()
			return
		}
		s.retriesLeft--
		s.log.Info().Str("track", current.ID).Int64("position_ms", s.positionMS).Msg("node back, re-issuing current track")
		s.startTrack(current, s.positionMS)
		s.emitChange()
		return
	}

	if ev.Generation < s.generation {
		s.log.Debug().
			Uint64("event_gen", ev.Generation).
			Uint64("session_gen", s.generation).
			Stringer("type", ev.Type).
			Msg("discarding stale node event")
		return
	}

	switch ev.Type {
	case NodeTrackStarted:
		s.state = StatePlaying
		s.positionMS = ev.PositionMS
		s.positionAt = time.Now()
		s.trackStartedAt = time.Now()
		s.retriesLeft = s.retryBudget
		s.touch()
		if t, ok := s.queue.Current(); ok && s.scrobbler != nil {
			go s.scrobbler.TrackStarted(s.guildID, t)
		}
		s.emitChange()

	case NodeTrackEnded:
		if ev.Reason == EndReplaced || ev.Reason == EndStopped {
			return // consequence of a command this session already applied
		}
		if ev.Reason == EndFinished && s.scrobbler != nil {
			if t, ok := s.queue.Current(); ok {
				go s.scrobbler.TrackFinished(s.guildID, t, s.trackStartedAt)
			}
		}
		if next, ok := s.queue.Next(); ok {
			s.startTrack(next, 0)
		} else {
			s.state = StateEnded
			s.positionMS = 0
			s.touch()
		}
		s.emitChange()

	case NodePositionUpdate:
		if s.state == StatePlaying {
			s.positionMS = ev.PositionMS
			s.positionAt = time.Now()
			s.emitChange()
		}
	}
}

// startTrack optimistically transitions to Loading and issues the play
// command. A new generation makes every event still in flight for the
// previous command stale. While the node is down the send is skipped;
// the session sits in Loading and NodeReconnected issues it. The retry
// budget is deliberately not touched here: only a confirmed track start
// replenishes it, so a flapping node cannot re-issue forever.
func (s *Session) startTrack(t Track, fromMS int64) {
	s.generation++
	s.state = StateLoading
	s.positionMS = fromMS
	s.positionAt = time.Now()
	if s.nodeUp {
		s.node.PlayTrack(s.guildID, t, fromMS, s.generation)
	}
}

func (s *Session) freezePosition() {
	if s.state == StatePlaying {
		s.positionMS += time.Since(s.positionAt).Milliseconds()
	}
	s.positionAt = time.Now()
}

func (s *Session) position() int64 {
	if s.state == StatePlaying {
		return s.positionMS + time.Since(s.positionAt).Milliseconds()
	}
	return s.positionMS
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		GuildID:    s.guildID,
		State:      s.state,
		PositionMS: s.position(),
		Volume:     s.volume,
		Loop:       s.queue.Loop(),
		Shuffle:    s.queue.Shuffle(),
		QueueLen:   s.queue.Remaining(),
		LastActive: s.lastActive,
	}
	if t, ok := s.queue.Current(); ok {
		snap.Track = &t
	}
	return snap
}

func (s *Session) emitChange() {
	if s.onChange != nil {
		s.onChange(s.snapshot())
	}
}

func (s *Session) notice(n Notice) {
	if s.onNotice != nil {
		s.onNotice(n)
	}
}
