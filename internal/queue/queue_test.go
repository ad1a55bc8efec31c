package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/richinsley/audiostagepipe/internal/perr"
	"github.com/richinsley/audiostagepipe/internal/wire"
)

func newTestQueue(t *testing.T, n int) *Queue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.json")
	q, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < n; i++ {
		if err := q.Add(filepath.Join("track", string(rune('a'+i))), wire.Header{SampleRate: 44100, Channels: 2}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return q
}

func TestAddPersistsContiguousPositions(t *testing.T) {
	q := newTestQueue(t, 3)
	entries := q.Entries()
	for i, e := range entries {
		if e.Position != i {
			t.Fatalf("entries[%d].Position = %d, want %d", i, e.Position, i)
		}
	}
}

func TestSequentialAdvanceReturnsEndOfQueue(t *testing.T) {
	q := newTestQueue(t, 2)
	q.SetMode(Sequential)
	if err := q.Advance(); err != nil {
		t.Fatalf("first Advance: %v", err)
	}
	if q.CurrentIndex() != 1 {
		t.Fatalf("CurrentIndex = %d, want 1", q.CurrentIndex())
	}
	err := q.Advance()
	if perr.KindOf(err) != perr.EndOfQueue {
		t.Fatalf("second Advance = %v, want EndOfQueue", err)
	}
	if q.CurrentIndex() != 1 {
		t.Fatalf("CurrentIndex after EndOfQueue = %d, want unchanged 1", q.CurrentIndex())
	}
}

func TestLoopAllWrapsAround(t *testing.T) {
	q := newTestQueue(t, 2)
	q.SetMode(LoopAll)
	q.Advance()
	if q.CurrentIndex() != 1 {
		t.Fatalf("CurrentIndex = %d, want 1", q.CurrentIndex())
	}
	q.Advance()
	if q.CurrentIndex() != 0 {
		t.Fatalf("CurrentIndex after wrap = %d, want 0", q.CurrentIndex())
	}
}

func TestLoopSingleStaysPut(t *testing.T) {
	q := newTestQueue(t, 3)
	q.SetMode(LoopSingle)
	q.Jump(1)
	if err := q.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if q.CurrentIndex() != 1 {
		t.Fatalf("CurrentIndex = %d, want unchanged 1", q.CurrentIndex())
	}
}

func TestRandomNeverPicksCurrent(t *testing.T) {
	q := newTestQueue(t, 5)
	q.SetMode(Random)
	q.Jump(2)
	for i := 0; i < 20; i++ {
		if err := q.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if q.CurrentIndex() == 2 {
			t.Fatal("Random Advance picked the current index")
		}
		q.Jump(2)
	}
}

func TestRemoveRenumbersAndClampsCurrentIndex(t *testing.T) {
	q := newTestQueue(t, 3)
	q.Jump(2)
	if err := q.Remove(2); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if q.CurrentIndex() != 0 {
		t.Fatalf("CurrentIndex after removing it = %d, want clamped to 0", q.CurrentIndex())
	}
	entries := q.Entries()
	for i, e := range entries {
		if e.Position != i {
			t.Fatalf("entries[%d].Position = %d, want %d after Remove", i, e.Position, i)
		}
	}
}

func TestShufflePreservesCurrentAtZero(t *testing.T) {
	q := newTestQueue(t, 6)
	q.Jump(3)
	current, _ := q.GetCurrent()

	if err := q.Shuffle(); err != nil {
		t.Fatalf("Shuffle: %v", err)
	}
	if q.CurrentIndex() != 0 {
		t.Fatalf("CurrentIndex after Shuffle = %d, want 0", q.CurrentIndex())
	}
	newCurrent, _ := q.GetCurrent()
	if newCurrent.FilePath != current.FilePath {
		t.Fatalf("entry at position 0 after Shuffle = %q, want the previously-current entry %q", newCurrent.FilePath, current.FilePath)
	}
}

func TestSavePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	q, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := q.Add("song.flac", wire.Header{SampleRate: 44100, Channels: 2}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("queue file was not created: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	entries := reopened.Entries()
	if len(entries) != 1 || entries[0].FilePath != "song.flac" {
		t.Fatalf("reopened entries = %+v, want one entry for song.flac", entries)
	}
}

func TestClearEmptiesQueue(t *testing.T) {
	q := newTestQueue(t, 3)
	if err := q.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(q.Entries()) != 0 {
		t.Fatalf("Entries() after Clear = %v, want empty", q.Entries())
	}
	if q.CurrentIndex() != 0 {
		t.Fatalf("CurrentIndex after Clear = %d, want 0", q.CurrentIndex())
	}
}
