package player

import (
	"math/rand"
	"slices"
	"sort"
	"time"
)

// LoopMode controls what happens when a track ends.
type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopTrack
	LoopQueue
)

func (m LoopMode) String() string {
	switch m {
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	}
	return "off"
}

// Queue is the ordered track list of one session. It keeps insertion order
// intact at all times; shuffle only derives a playback permutation of the
// not-yet-played indices, so toggling shuffle off restores the original
// ordering. The queue is not safe for concurrent use — it is owned by a
// Session and mutated only inside its serialized loop.
//
// Every index in [0, len(tracks)) is exactly one of: the cursor, a member
// of upcoming, or a member of played.
type Queue struct {
	tracks   []Track
	cursor   int   // -1 when no current track
	upcoming []int // play order of not-yet-played indices
	played   []int // indices already played, in play order
	loop     LoopMode
	shuffle  bool
	rng      *rand.Rand
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		cursor: -1,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Append adds a track to the end of the queue and returns its position.
// With shuffle on, the new track lands at a random point of the unplayed
// suffix instead of the end.
func (q *Queue) Append(t Track) int {
	idx := len(q.tracks)
	q.tracks = append(q.tracks, t)

	if q.shuffle && len(q.upcoming) > 0 {
		at := q.rng.Intn(len(q.upcoming) + 1)
		q.upcoming = slices.Insert(q.upcoming, at, idx)
	} else {
		q.upcoming = append(q.upcoming, idx)
	}
	return idx
}

// Next advances the cursor after a track ends, applying loop and shuffle
// policy. The second return is false when the queue is exhausted.
func (q *Queue) Next() (Track, bool) {
	if q.loop == LoopTrack && q.cursor >= 0 {
		return q.tracks[q.cursor], true
	}

	if q.cursor >= 0 {
		q.played = append(q.played, q.cursor)
		q.cursor = -1
	}

	if len(q.upcoming) == 0 {
		if q.loop != LoopQueue || len(q.tracks) == 0 {
			return Track{}, false
		}
		q.rewind()
	}

	q.cursor = q.upcoming[0]
	q.upcoming = q.upcoming[1:]
	return q.tracks[q.cursor], true
}

// Skip moves the cursor n steps through the play order. Negative n walks
// back through history. It fails with ErrInvalidTarget when the target
// falls outside the queue and loop mode cannot wrap it; on failure the
// queue is left untouched. With loop=track the current index replays.
func (q *Queue) Skip(n int) (Track, error) {
	if len(q.tracks) == 0 {
		return Track{}, ErrInvalidTarget
	}
	if q.loop == LoopTrack && q.cursor >= 0 {
		return q.tracks[q.cursor], nil
	}
	if n == 0 {
		if q.cursor < 0 {
			return Track{}, ErrInvalidTarget
		}
		return q.tracks[q.cursor], nil
	}

	// Walk on copies so a failed skip has no effect.
	cursor := q.cursor
	played := slices.Clone(q.played)
	upcoming := slices.Clone(q.upcoming)

	for step := 0; step < n; step++ {
		if cursor >= 0 {
			played = append(played, cursor)
		}
		if len(upcoming) == 0 {
			if q.loop != LoopQueue {
				return Track{}, ErrInvalidTarget
			}
			upcoming = q.freshOrder()
			played = nil
		}
		cursor = upcoming[0]
		upcoming = upcoming[1:]
	}
	for step := 0; step < -n; step++ {
		if len(played) == 0 {
			return Track{}, ErrInvalidTarget
		}
		if cursor >= 0 {
			upcoming = slices.Insert(upcoming, 0, cursor)
		}
		cursor = played[len(played)-1]
		played = played[:len(played)-1]
	}

	q.cursor = cursor
	q.played = played
	q.upcoming = upcoming
	return q.tracks[cursor], nil
}

// RemoveAt deletes the track at index i (insertion order). The currently
// playing index cannot be removed.
func (q *Queue) RemoveAt(i int) (Track, error) {
	if i < 0 || i >= len(q.tracks) {
		return Track{}, ErrIndexOutOfRange
	}
	if i == q.cursor {
		return Track{}, ErrTrackInUse
	}

	removed := q.tracks[i]
	q.tracks = slices.Delete(q.tracks, i, i+1)

	drop := func(order []int) []int {
		out := order[:0]
		for _, idx := range order {
			if idx == i {
				continue
			}
			if idx > i {
				idx--
			}
			out = append(out, idx)
		}
		return out
	}
	q.upcoming = drop(q.upcoming)
	q.played = drop(q.played)
	if q.cursor > i {
		q.cursor--
	}
	return removed, nil
}

// Move relocates the track at index from to index to, preserving relative
// order of everything else. Cursor and play order follow the moved indices.
func (q *Queue) Move(from, to int) error {
	if from < 0 || from >= len(q.tracks) || to < 0 || to >= len(q.tracks) {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}

	t := q.tracks[from]
	q.tracks = slices.Delete(q.tracks, from, from+1)
	q.tracks = slices.Insert(q.tracks, to, t)

	remap := func(idx int) int {
		switch {
		case idx == from:
			return to
		case from < to && idx > from && idx <= to:
			return idx - 1
		case to < from && idx >= to && idx < from:
			return idx + 1
		}
		return idx
	}
	for i := range q.upcoming {
		q.upcoming[i] = remap(q.upcoming[i])
	}
	for i := range q.played {
		q.played[i] = remap(q.played[i])
	}
	if q.cursor >= 0 {
		q.cursor = remap(q.cursor)
	}
	// Without shuffle the pending play order is the insertion order, so it
	// has to follow the move. A shuffled permutation stays as it is.
	if !q.shuffle {
		sort.Ints(q.upcoming)
	}
	return nil
}

// SetLoop changes the loop mode. Takes effect on the next track end.
func (q *Queue) SetLoop(mode LoopMode) {
	q.loop = mode
}

// ToggleShuffle flips the shuffle flag and recomputes the order of the
// unplayed suffix. History keeps its play order either way.
func (q *Queue) ToggleShuffle() bool {
	q.shuffle = !q.shuffle
	if q.shuffle {
		q.rng.Shuffle(len(q.upcoming), func(i, j int) {
			q.upcoming[i], q.upcoming[j] = q.upcoming[j], q.upcoming[i]
		})
	} else {
		sort.Ints(q.upcoming)
	}
	return q.shuffle
}

// Clear drops all tracks and resets the cursor.
func (q *Queue) Clear() {
	q.tracks = nil
	q.upcoming = nil
	q.played = nil
	q.cursor = -1
}

// Current returns the track under the cursor.
func (q *Queue) Current() (Track, bool) {
	if q.cursor < 0 {
		return Track{}, false
	}
	return q.tracks[q.cursor], true
}

// Len returns the total number of tracks held, played or not.
func (q *Queue) Len() int { return len(q.tracks) }

// Remaining returns how many tracks are still waiting to play.
func (q *Queue) Remaining() int { return len(q.upcoming) }

// Tracks returns a copy of the queue in insertion order.
func (q *Queue) Tracks() []Track { return slices.Clone(q.tracks) }

// CurrentIndex returns the cursor, -1 when nothing is current.
func (q *Queue) CurrentIndex() int { return q.cursor }

// Loop returns the active loop mode.
func (q *Queue) Loop() LoopMode { return q.loop }

// Shuffle reports whether shuffle is on.
func (q *Queue) Shuffle() bool { return q.shuffle }

// rewind rebuilds the upcoming order from the full queue for loop=queue
// wrap-around.
func (q *Queue) rewind() {
	q.upcoming = q.freshOrder()
	q.played = nil
}

func (q *Queue) freshOrder() []int {
	order := make([]int, len(q.tracks))
	for i := range order {
		order[i] = i
	}
	if q.shuffle {
		q.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}
