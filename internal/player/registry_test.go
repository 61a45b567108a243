package player

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRegistry(node *fakeNode, idleTimeout time.Duration, onEvict func(string)) *Registry {
	factory := func(guildID string) *Session {
		return NewSession(SessionConfig{
			GuildID:     guildID,
			Node:        node,
			Volume:      100,
			RetryBudget: 1,
			Logger:      zerolog.Nop(),
		})
	}
	return NewRegistry(factory, idleTimeout, onEvict, zerolog.Nop())
}

func TestRegistryExclusiveCreation(t *testing.T) {
	reg := newTestRegistry(&fakeNode{}, time.Minute, nil)
	defer reg.Shutdown()

	a := reg.GetOrCreate("g1")
	b := reg.GetOrCreate("g1")
	if a != b {
		t.Fatal("GetOrCreate returned two sessions for one guild")
	}
	if c := reg.GetOrCreate("g2"); c == a {
		t.Fatal("distinct guilds share a session")
	}
}

func TestRegistryConcurrentCreators(t *testing.T) {
	reg := newTestRegistry(&fakeNode{}, time.Minute, nil)
	defer reg.Shutdown()

	const n = 32
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = reg.GetOrCreate("g1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if sessions[i] != sessions[0] {
			t.Fatal("concurrent creators observed different sessions")
		}
	}
}

func TestRegistryLookupSkipsStopped(t *testing.T) {
	reg := newTestRegistry(&fakeNode{}, time.Minute, nil)
	defer reg.Shutdown()

	s := reg.GetOrCreate("g1")
	if _, ok := reg.Lookup("g1"); !ok {
		t.Fatal("Lookup missed a live session")
	}

	_ = s.Stop()
	if _, ok := reg.Lookup("g1"); ok {
		t.Fatal("Lookup returned a stopped session")
	}

	// A stopped session still in the map is replaced on the next create.
	if replacement := reg.GetOrCreate("g1"); replacement == s {
		t.Fatal("GetOrCreate returned the stopped session")
	}
}

func TestRegistryRemoveEvictsOnce(t *testing.T) {
	var mu sync.Mutex
	evicted := map[string]int{}
	reg := newTestRegistry(&fakeNode{}, time.Minute, func(guildID string) {
		mu.Lock()
		evicted[guildID]++
		mu.Unlock()
	})

	reg.GetOrCreate("g1")
	reg.Remove("g1")
	reg.Remove("g1") // second removal is a no-op

	mu.Lock()
	defer mu.Unlock()
	if evicted["g1"] != 1 {
		t.Fatalf("onEvict ran %d times, want 1", evicted["g1"])
	}
}

func TestRegistryDispatchBroadcast(t *testing.T) {
	node := &fakeNode{}
	reg := newTestRegistry(node, time.Minute, nil)
	defer reg.Shutdown()

	s1 := reg.GetOrCreate("g1")
	s2 := reg.GetOrCreate("g2")
	s1.Enqueue(tr("a"))
	s2.Enqueue(tr("b"))
	started(s1, 1, "a")
	s2.ApplyEvent(NodeEvent{Type: NodeTrackStarted, GuildID: "g2", Generation: 1, TrackID: "b"})

	// Empty guild means a connection-level event for everyone.
	reg.Dispatch(NodeEvent{Type: NodeDisconnected})

	for _, s := range []*Session{s1, s2} {
		snap, err := s.Snapshot()
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.State != StatePaused {
			t.Fatalf("session %s state = %v after broadcast disconnect, want paused", s.GuildID(), snap.State)
		}
	}
}

func TestRegistrySweepEvictsIdle(t *testing.T) {
	var mu sync.Mutex
	var evicted []string
	reg := newTestRegistry(&fakeNode{}, 10*time.Millisecond, func(guildID string) {
		mu.Lock()
		evicted = append(evicted, guildID)
		mu.Unlock()
	})

	reg.GetOrCreate("g1") // stays Idle, never plays
	time.Sleep(30 * time.Millisecond)
	reg.sweepOnce()

	mu.Lock()
	defer mu.Unlock()
	if len(evicted) != 1 || evicted[0] != "g1" {
		t.Fatalf("evicted = %v, want [g1]", evicted)
	}
	if _, ok := reg.Lookup("g1"); ok {
		t.Fatal("swept session still resolvable")
	}
}

func TestRegistrySweepKeepsActive(t *testing.T) {
	node := &fakeNode{}
	reg := newTestRegistry(node, 10*time.Millisecond, nil)
	defer reg.Shutdown()

	s := reg.GetOrCreate("g1")
	s.Enqueue(tr("a"))
	started(s, 1, "a")

	time.Sleep(30 * time.Millisecond)
	reg.sweepOnce()

	if _, ok := reg.Lookup("g1"); !ok {
		t.Fatal("sweep evicted a playing session")
	}
}
