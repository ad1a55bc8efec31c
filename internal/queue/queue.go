// Package queue implements the durable, ordered playlist: a position ->
// (file_path, metadata) mapping with atomic save, grounded on the
// tmp-then-rename write pattern internal/fftcache uses for its own
// on-disk entries.
package queue

import (
	"encoding/json"
	"math/rand"
	"os"
	"sync"

	"github.com/richinsley/audiostagepipe/internal/perr"
	"github.com/richinsley/audiostagepipe/internal/wire"
)

// Mode selects how Advance picks the next entry.
type Mode string

const (
	Sequential Mode = "sequential"
	Random     Mode = "random"
	LoopSingle Mode = "loop_single"
	LoopAll    Mode = "loop_all"
)

// Entry is one playlist position.
type Entry struct {
	FilePath string      `json:"file_path"`
	Position int         `json:"position"`
	Metadata wire.Header `json:"metadata"`
}

// state is the on-disk/in-memory representation, version-tagged so a
// future format change can migrate old files.
type state struct {
	Version      int     `json:"version"`
	CurrentIndex int     `json:"current_index"`
	Mode         Mode    `json:"playback_mode"`
	Entries      []Entry `json:"entries"`
}

const currentVersion = 1

// Queue is a durable ordered playlist. Every mutation is persisted under a
// single writer's exclusive lock (mu) and triggers an atomic save.
type Queue struct {
	mu   sync.Mutex
	path string
	st   state
	rng  *rand.Rand
}

// Open loads path if it exists, or starts an empty queue that will be
// created there on first mutation.
func Open(path string) (*Queue, error) {
	q := &Queue{path: path, st: state{Version: currentVersion, Mode: Sequential}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return q, nil
	}
	if err != nil {
		return nil, perr.Wrap("queue", perr.FileReadError, "failed to read queue file", err)
	}
	if err := json.Unmarshal(data, &q.st); err != nil {
		return nil, perr.Wrap("queue", perr.CorruptedFile, "queue file is not valid JSON", err)
	}
	return q, nil
}

// Add appends filePath (with metadata, gathered by the caller) at the end
// of the queue.
func (q *Queue) Add(filePath string, metadata wire.Header) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.st.Entries = append(q.st.Entries, Entry{
		FilePath: filePath,
		Position: len(q.st.Entries),
		Metadata: metadata,
	})
	return q.save()
}

// Remove deletes the entry at index, renumbering positions to stay
// contiguous, and clamping current_index into range.
func (q *Queue) Remove(index int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.st.Entries) {
		return perr.New("queue", perr.InvalidArgument, "index out of range")
	}
	q.st.Entries = append(q.st.Entries[:index], q.st.Entries[index+1:]...)
	q.renumber()
	if q.st.CurrentIndex >= len(q.st.Entries) {
		q.st.CurrentIndex = 0
	}
	return q.save()
}

// Clear empties the queue entirely.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.st.Entries = nil
	q.st.CurrentIndex = 0
	return q.save()
}

// GetCurrent returns the entry at current_index, or false if the queue is
// empty.
func (q *Queue) GetCurrent() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.st.Entries) == 0 {
		return Entry{}, false
	}
	return q.st.Entries[q.st.CurrentIndex], true
}

// Advance moves current_index forward per the active mode, persisting the
// change. Sequential returns EndOfQueue once past the last entry, leaving
// current_index unchanged.
func (q *Queue) Advance() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.st.Entries)
	if n == 0 {
		return perr.New("queue", perr.QueueEmpty, "queue has no entries")
	}

	switch q.st.Mode {
	case Sequential:
		if q.st.CurrentIndex+1 >= n {
			return perr.New("queue", perr.EndOfQueue, "already at the last entry")
		}
		q.st.CurrentIndex++
	case LoopAll:
		q.st.CurrentIndex = (q.st.CurrentIndex + 1) % n
	case LoopSingle:
		// current_index unchanged.
	case Random:
		if n >= 2 {
			q.st.CurrentIndex = q.pickRandomExcluding(q.st.CurrentIndex, n)
		}
	default:
		return perr.New("queue", perr.InvalidArgument, "unknown playback mode")
	}
	return q.save()
}

// Retreat moves current_index backward by one, clamped at 0; it does not
// honor Random (retreat is always sequential by spec, mirroring typical
// "previous track" semantics).
func (q *Queue) Retreat() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.st.Entries) == 0 {
		return perr.New("queue", perr.QueueEmpty, "queue has no entries")
	}
	if q.st.CurrentIndex > 0 {
		q.st.CurrentIndex--
	}
	return q.save()
}

// Jump sets current_index directly.
func (q *Queue) Jump(index int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.st.Entries) {
		return perr.New("queue", perr.InvalidArgument, "index out of range")
	}
	q.st.CurrentIndex = index
	return q.save()
}

// SetMode changes the advancement mode.
func (q *Queue) SetMode(mode Mode) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.st.Mode = mode
	return q.save()
}

// Shuffle randomizes every entry's order except the currently playing one,
// which is moved to position 0.
func (q *Queue) Shuffle() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.st.Entries)
	if n <= 1 {
		return q.save()
	}

	current := q.st.Entries[q.st.CurrentIndex]
	rest := make([]Entry, 0, n-1)
	for i, e := range q.st.Entries {
		if i != q.st.CurrentIndex {
			rest = append(rest, e)
		}
	}
	q.shuffleEntries(rest)

	q.st.Entries = append([]Entry{current}, rest...)
	q.renumber()
	q.st.CurrentIndex = 0
	return q.save()
}

// Entries returns a copy of the current ordered entry list.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.st.Entries))
	copy(out, q.st.Entries)
	return out
}

// CurrentIndex returns the current playback position.
func (q *Queue) CurrentIndex() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.st.CurrentIndex
}

// Mode returns the active playback mode.
func (q *Queue) Mode() Mode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.st.Mode
}

func (q *Queue) renumber() {
	for i := range q.st.Entries {
		q.st.Entries[i].Position = i
	}
}

func (q *Queue) pickRandomExcluding(current, n int) int {
	if q.rng == nil {
		q.rng = rand.New(rand.NewSource(int64(n) + int64(current) + 1))
	}
	for {
		i := q.rng.Intn(n)
		if i != current {
			return i
		}
	}
}

func (q *Queue) shuffleEntries(entries []Entry) {
	if q.rng == nil {
		q.rng = rand.New(rand.NewSource(int64(len(entries)) + 1))
	}
	q.rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
}

// save atomically persists the queue: write queue.json.tmp, then rename.
// Must be called with mu held.
func (q *Queue) save() error {
	data, err := json.MarshalIndent(q.st, "", "  ")
	if err != nil {
		return perr.Wrap("queue", perr.InvalidOperation, "failed to marshal queue", err)
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return perr.Wrap("queue", perr.FileWriteError, "failed to write queue tmp file", err)
	}
	if err := os.Rename(tmp, q.path); err != nil {
		return perr.Wrap("queue", perr.FileWriteError, "failed to rename queue tmp file into place", err)
	}
	return nil
}
