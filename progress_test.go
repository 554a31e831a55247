package main

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFs counts completed record writes
type countingFs struct {
	afero.Fs
	renames int32
}

func (c *countingFs) Rename(oldname, newname string) error {
	atomic.AddInt32(&c.renames, 1)
	return c.Fs.Rename(oldname, newname)
}

func (c *countingFs) writes() int {
	return int(atomic.LoadInt32(&c.renames))
}

func newTestStore(t *testing.T) (*ProgressStore, *countingFs, *fakeClock) {
	t.Helper()
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/books", 0755))
	fs := &countingFs{Fs: mem}
	clock := &fakeClock{}
	return NewProgressStore(fs, clock, 200*time.Millisecond), fs, clock
}

func TestProgressStoreRoundTrip(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, ok := store.Load("/books/a.cbz")
	assert.False(t, ok, "no record yet")

	require.NoError(t, store.SaveNow("/books/a.cbz", 17))
	cursor, ok := store.Load("/books/a.cbz")
	assert.True(t, ok)
	assert.Equal(t, 17, cursor)

	_, ok = store.Load("/books/b.cbz")
	assert.False(t, ok, "keys are independent")
}

func TestProgressStoreMalformedRecords(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		ok      bool
	}{
		{"plain", "12", 12, true},
		{"surrounding whitespace", " 7\n", 7, true},
		{"zero", "0", 0, true},
		{"garbage", "page twelve", 0, false},
		{"negative", "-3", 0, false},
		{"empty", "", 0, false},
		{"float", "1.5", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, fs, _ := newTestStore(t)
			require.NoError(t, afero.WriteFile(fs, progressPath("/books/a.cbz"), []byte(tt.content), 0644))

			cursor, ok := store.Load("/books/a.cbz")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, cursor)
		})
	}
}

func TestProgressStoreDebounce(t *testing.T) {
	store, fs, clock := newTestStore(t)

	for i := 1; i <= 5; i++ {
		store.ScheduleSave("/books/a.cbz", i)
		clock.Advance(50 * time.Millisecond)
	}
	assert.Equal(t, 0, fs.writes(), "nothing is written inside the window")
	assert.True(t, store.hasPending())
	assert.Equal(t, 1, clock.Active(), "at most one write is pending")

	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, 1, fs.writes(), "a burst collapses into one write")
	assert.False(t, store.hasPending())

	cursor, ok := store.Load("/books/a.cbz")
	require.True(t, ok)
	assert.Equal(t, 5, cursor, "the last scheduled value wins")

	clock.Advance(time.Second)
	assert.Equal(t, 1, fs.writes())
}

func TestProgressStoreFlush(t *testing.T) {
	store, fs, clock := newTestStore(t)

	store.ScheduleSave("/books/a.cbz", 4)
	store.Flush()
	assert.Equal(t, 1, fs.writes())
	assert.False(t, store.hasPending())

	cursor, ok := store.Load("/books/a.cbz")
	require.True(t, ok)
	assert.Equal(t, 4, cursor)

	// the stopped timer must not write again
	clock.Advance(time.Second)
	assert.Equal(t, 1, fs.writes())

	// nothing pending: nothing written
	store.Flush()
	assert.Equal(t, 1, fs.writes())
}

func TestProgressStoreFlushKeepsScheduledKey(t *testing.T) {
	store, _, clock := newTestStore(t)

	store.ScheduleSave("/books/a.cbz", 9)
	store.Flush()
	store.ScheduleSave("/books/b.cbz", 2)
	clock.Advance(time.Second)

	a, ok := store.Load("/books/a.cbz")
	require.True(t, ok)
	assert.Equal(t, 9, a)
	b, ok := store.Load("/books/b.cbz")
	require.True(t, ok)
	assert.Equal(t, 2, b)
}

func TestProgressStoreCancelAndSaveNow(t *testing.T) {
	store, fs, clock := newTestStore(t)

	store.ScheduleSave("/books/a.cbz", 3)
	store.Cancel()
	clock.Advance(time.Second)
	assert.Equal(t, 0, fs.writes())
	_, ok := store.Load("/books/a.cbz")
	assert.False(t, ok)

	store.ScheduleSave("/books/a.cbz", 3)
	require.NoError(t, store.SaveNow("/books/a.cbz", 8))
	clock.Advance(time.Second)
	assert.Equal(t, 1, fs.writes(), "SaveNow replaces the pending write")

	cursor, _ := store.Load("/books/a.cbz")
	assert.Equal(t, 8, cursor)
}

// gateFs holds the first file open until release is closed
type gateFs struct {
	afero.Fs
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gateFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Fs.OpenFile(name, flag, perm)
}

func TestProgressStoreDebouncedWriteDoesNotOverwriteNewer(t *testing.T) {
	tests := []struct {
		name  string
		newer func(s *ProgressStore)
		want  int
	}{
		{"SaveNow", func(s *ProgressStore) { s.SaveNow("/books/a.cbz", 6) }, 6},
		{"Flush", func(s *ProgressStore) {
			s.ScheduleSave("/books/a.cbz", 7)
			s.Flush()
		}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := afero.NewMemMapFs()
			require.NoError(t, mem.MkdirAll("/books", 0755))
			fs := &gateFs{Fs: mem, entered: make(chan struct{}), release: make(chan struct{})}
			clock := &fakeClock{}
			store := NewProgressStore(fs, clock, 200*time.Millisecond)

			store.ScheduleSave("/books/a.cbz", 5)
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				clock.Advance(time.Second)
			}()
			<-fs.entered

			go func() {
				defer wg.Done()
				tt.newer(store)
			}()
			time.Sleep(20 * time.Millisecond)
			close(fs.release)
			wg.Wait()

			cursor, ok := store.Load("/books/a.cbz")
			require.True(t, ok)
			assert.Equal(t, tt.want, cursor, "the later write lands last")
			assert.False(t, store.hasPending())
		})
	}
}

func TestProgressStoreWarnsOnce(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/books", 0755))
	clock := &fakeClock{}
	store := NewProgressStore(afero.NewReadOnlyFs(mem), clock, 100*time.Millisecond)

	var calls []error
	store.OnWriteFailure = func(err error) { calls = append(calls, err) }

	err := store.SaveNow("/books/a.cbz", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProgressWrite))

	store.ScheduleSave("/books/a.cbz", 2)
	clock.Advance(time.Second)
	store.ScheduleSave("/books/a.cbz", 3)
	store.Flush()

	require.Len(t, calls, 1, "the user is told about the first failure only")
	assert.ErrorIs(t, calls[0], ErrProgressWrite)

	_, ok := store.Load("/books/a.cbz")
	assert.False(t, ok)
}

func TestProgressStoreLeavesNoTempFiles(t *testing.T) {
	store, fs, _ := newTestStore(t)
	require.NoError(t, store.SaveNow("/books/a.cbz", 1))
	require.NoError(t, store.SaveNow("/books/a.cbz", 2))

	names, err := afero.Glob(fs, "/books/*")
	require.NoError(t, err)
	assert.Equal(t, []string{"/books/a.cbz.progress"}, names)
}

func TestProgressKey(t *testing.T) {
	key := ProgressKey("book.cbz")
	assert.True(t, filepath.IsAbs(key))
	assert.Equal(t, "book.cbz", filepath.Base(key))

	assert.Equal(t, ProgressKey("dir/../book.cbz"), key)
	assert.NotEqual(t, ProgressKey("other/book.cbz"), key, "same name at another path is another book")
	assert.Equal(t, key+".progress", progressPath(key))
}
