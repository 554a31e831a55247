package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	defaultSaveDelay = 200 * time.Millisecond
	progressSuffix   = ".progress"
)

// ProgressKey derives the persistence key of an archive from its path.
// Two archives at different paths never share a key, even if identical.
func ProgressKey(archivePath string) string {
	if abs, err := filepath.Abs(archivePath); err == nil {
		return abs
	}
	return filepath.Clean(archivePath)
}

// progressPath is the sidecar file holding the record for key
func progressPath(key string) string {
	return key + progressSuffix
}

type pendingSave struct {
	timer  Timer
	key    string
	cursor int
}

// ProgressStore persists reading positions as bare decimal integers next to
// each archive. Saves are best-effort: failures are reported once and
// otherwise swallowed.
type ProgressStore struct {
	fs    afero.Fs
	clock Clock
	delay time.Duration

	mu      sync.Mutex
	pending *pendingSave
	warned  bool

	// writeMu orders record writes; a debounced write that already left
	// the queue finishes before SaveNow or Flush writes a newer value.
	writeMu sync.Mutex

	// OnWriteFailure is called for the first failed write only
	OnWriteFailure func(err error)
}

// NewProgressStore creates a store on fs using clock for debouncing
func NewProgressStore(fs afero.Fs, clock Clock, delay time.Duration) *ProgressStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if clock == nil {
		clock = realClock{}
	}
	if delay <= 0 {
		delay = defaultSaveDelay
	}
	return &ProgressStore{fs: fs, clock: clock, delay: delay}
}

// Load returns the saved cursor for key. Missing, unreadable or malformed
// records all read as absent.
func (s *ProgressStore) Load(key string) (int, bool) {
	data, err := afero.ReadFile(s.fs, progressPath(key))
	if err != nil {
		debugLog("No progress for %s: %v", key, err)
		return 0, false
	}
	cursor, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || cursor < 0 {
		logger.WithField("archive", key).Debugf("Ignoring malformed progress record %q", data)
		return 0, false
	}
	return cursor, true
}

// ScheduleSave writes cursor for key after the debounce window. A call
// within the window replaces the pending write; at most one is pending.
func (s *ProgressStore) ScheduleSave(key string, cursor int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending.timer.Stop()
	}
	p := &pendingSave{key: key, cursor: cursor}
	p.timer = s.clock.AfterFunc(s.delay, func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		s.mu.Lock()
		if s.pending != p {
			s.mu.Unlock()
			return
		}
		s.pending = nil
		s.mu.Unlock()
		s.write(p.key, p.cursor)
	})
	s.pending = p
}

// SaveNow cancels any pending write and writes cursor immediately
func (s *ProgressStore) SaveNow(key string, cursor int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.Cancel()
	return s.write(key, cursor)
}

// Flush performs the pending write, if any, right away under the key it
// was scheduled for.
func (s *ProgressStore) Flush() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()

	if p == nil {
		return
	}
	// the timer callback sees pending != p and backs off
	p.timer.Stop()
	s.write(p.key, p.cursor)
}

// Cancel drops the pending write without performing it
func (s *ProgressStore) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.timer.Stop()
		s.pending = nil
	}
}

// hasPending reports whether a debounced write is waiting
func (s *ProgressStore) hasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *ProgressStore) write(key string, cursor int) error {
	if err := s.writeFile(progressPath(key), cursor); err != nil {
		err = fmt.Errorf("%w: %v", ErrProgressWrite, err)
		s.reportFailure(key, err)
		return err
	}
	debugLog("Saved progress %d for %s", cursor, key)
	return nil
}

// writeFile replaces the record through a temp file so a reader never sees
// a partial value.
func (s *ProgressStore) writeFile(target string, cursor int) error {
	dir := filepath.Dir(target)
	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(strconv.Itoa(cursor)); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	if err := s.fs.Rename(tmpName, target); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	return nil
}

func (s *ProgressStore) reportFailure(key string, err error) {
	s.mu.Lock()
	first := !s.warned
	s.warned = true
	notify := s.OnWriteFailure
	s.mu.Unlock()

	if !first {
		debugLog("Progress write failed again for %s: %v", key, err)
		return
	}
	logger.WithFields(logrus.Fields{"archive": key}).Warnf("Failed to save reading progress: %v", err)
	if notify != nil {
		notify(err)
	}
}
