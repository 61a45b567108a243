package router

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groovekeeper/internal/player"
)

type nopNode struct{}

func (nopNode) PlayTrack(string, player.Track, int64, uint64) {}
func (nopNode) SetPaused(string, bool, uint64)                {}
func (nopNode) SetVolume(string, int, uint64)                 {}
func (nopNode) StopPlayback(string, uint64)                   {}

func newTestRouter(t *testing.T) (*Router, *player.Registry) {
	t.Helper()
	reg := player.NewRegistry(func(guildID string) *player.Session {
		return player.NewSession(player.SessionConfig{
			GuildID:     guildID,
			Node:        nopNode{},
			Volume:      100,
			RetryBudget: 1,
			Logger:      zerolog.Nop(),
		})
	}, time.Minute, nil, zerolog.Nop())
	t.Cleanup(reg.Shutdown)
	return New(reg, zerolog.Nop()), reg
}

func track(id string) *player.Track {
	return &player.Track{ID: id, Title: id}
}

func listener() Actor { return Actor{ID: "u1"} }
func operator() Actor { return Actor{ID: "dj", Operator: true} }

func TestRouterEnqueueCreatesSession(t *testing.T) {
	r, reg := newTestRouter(t)

	res, err := r.Dispatch(Action{
		ID: uuid.New(), GuildID: "g1", Kind: KindEnqueue,
		Actor: listener(), Track: track("a"),
	})
	if err != nil {
		t.Fatalf("Dispatch(enqueue): %v", err)
	}
	if res.Notice.Key != "player.track_queued" {
		t.Fatalf("notice = %q, want player.track_queued", res.Notice.Key)
	}
	if res.Notice.Params["position"] != 1 {
		t.Fatalf("position param = %v, want 1", res.Notice.Params["position"])
	}
	if _, ok := reg.Lookup("g1"); !ok {
		t.Fatal("enqueue did not create a session")
	}
}

func TestRouterEnqueueWithoutTrack(t *testing.T) {
	r, _ := newTestRouter(t)

	_, err := r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindEnqueue, Actor: listener()})
	if !errors.Is(err, ErrBadPayload) {
		t.Fatalf("err = %v, want ErrBadPayload", err)
	}
}

func TestRouterNoSession(t *testing.T) {
	r, _ := newTestRouter(t)

	_, err := r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindSkip, Actor: listener()})
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestRouterOperatorOnlyActions(t *testing.T) {
	r, _ := newTestRouter(t)

	r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindEnqueue, Actor: listener(), Track: track("a")})

	for _, kind := range []Kind{KindStop, KindRemove, KindMove} {
		_, err := r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: kind, Actor: listener()})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s by listener err = %v, want ErrUnauthorized", kind, err)
		}
	}

	res, err := r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindStop, Actor: operator()})
	if err != nil {
		t.Fatalf("stop by operator: %v", err)
	}
	if res.Notice.Key != "player.stopped" {
		t.Fatalf("notice = %q, want player.stopped", res.Notice.Key)
	}
}

func TestRouterListenerActionsAllowed(t *testing.T) {
	r, _ := newTestRouter(t)

	r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindEnqueue, Actor: listener(), Track: track("a")})
	r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindEnqueue, Actor: listener(), Track: track("b")})

	res, err := r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindVolume, Volume: 50, Actor: listener()})
	if err != nil {
		t.Fatalf("volume by listener: %v", err)
	}
	if res.Snapshot.Volume != 50 {
		t.Fatalf("snapshot volume = %d, want 50", res.Snapshot.Volume)
	}

	if _, err := r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindShuffle, Actor: listener()}); err != nil {
		t.Fatalf("shuffle by listener: %v", err)
	}
}

func TestRouterVolumeErrorPropagates(t *testing.T) {
	r, _ := newTestRouter(t)

	r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindEnqueue, Actor: listener(), Track: track("a")})

	_, err := r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindVolume, Volume: 200, Actor: listener()})
	if !errors.Is(err, player.ErrVolumeOutOfRange) {
		t.Fatalf("err = %v, want ErrVolumeOutOfRange", err)
	}
}

func TestRouterDuplicateActionDropped(t *testing.T) {
	r, _ := newTestRouter(t)

	id := uuid.New()
	first := Action{ID: id, GuildID: "g1", Kind: KindEnqueue, Actor: listener(), Track: track("a")}
	if _, err := r.Dispatch(first); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if _, err := r.Dispatch(first); !errors.Is(err, ErrDuplicateAction) {
		t.Fatalf("second dispatch err = %v, want ErrDuplicateAction", err)
	}

	// A fresh ID for the same payload goes through.
	fresh := first
	fresh.ID = uuid.New()
	if _, err := r.Dispatch(fresh); err != nil {
		t.Fatalf("fresh dispatch: %v", err)
	}
}

func TestRouterNilIDSkipsDedup(t *testing.T) {
	r, _ := newTestRouter(t)

	a := Action{GuildID: "g1", Kind: KindEnqueue, Actor: listener(), Track: track("a")}
	if _, err := r.Dispatch(a); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if _, err := r.Dispatch(a); err != nil {
		t.Fatalf("second dispatch with nil ID: %v", err)
	}
}

func TestRouterUnknownKind(t *testing.T) {
	r, _ := newTestRouter(t)

	r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindEnqueue, Actor: listener(), Track: track("a")})

	_, err := r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: Kind("teleport"), Actor: listener()})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
}

func TestRouterSkipDefaultsToOne(t *testing.T) {
	r, _ := newTestRouter(t)

	r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindEnqueue, Actor: listener(), Track: track("a")})
	r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindEnqueue, Actor: listener(), Track: track("b")})

	res, err := r.Dispatch(Action{ID: uuid.New(), GuildID: "g1", Kind: KindSkip, Actor: listener()})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if res.Notice.Params["count"] != 1 {
		t.Fatalf("count param = %v, want 1", res.Notice.Params["count"])
	}
	if res.Snapshot.Track == nil || res.Snapshot.Track.ID != "b" {
		t.Fatalf("snapshot track = %v, want b", res.Snapshot.Track)
	}
}

func TestSeenCacheEvictsOldEntries(t *testing.T) {
	c := newSeenCache(4)

	ids := make([]uuid.UUID, 6)
	for i := range ids {
		ids[i] = uuid.New()
		if !c.add(ids[i]) {
			t.Fatalf("fresh ID %d reported as duplicate", i)
		}
	}
	// The two oldest fell out of the ring and are forgotten.
	if !c.add(ids[0]) {
		t.Fatal("evicted ID still reported as duplicate")
	}
	if c.add(ids[5]) {
		t.Fatal("recent ID not reported as duplicate")
	}
}
