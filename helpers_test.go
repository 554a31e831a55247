package main

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// Image fixtures

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(w, h, color.RGBA{40, 80, 120, 255})))
	return buf.Bytes()
}

func jpegBytes(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solidImage(w, h, color.RGBA{200, 100, 50, 255}), nil))
	return buf.Bytes()
}

// Archive fixtures

type archiveFile struct {
	Name string
	Data []byte
}

func writeZip(t testing.TB, path string, files []archiveFile) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate})
		require.NoError(t, err)
		_, err = w.Write(f.Data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func tarBytes(t testing.TB, files []archiveFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     f.Name,
			Mode:     0644,
			Size:     int64(len(f.Data)),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatPAX,
		}))
		_, err := tw.Write(f.Data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

// writeTar writes a tar archive, optionally wrapped in "lz4", "zstd" or "xz"
func writeTar(t testing.TB, path string, files []archiveFile, wrap string) string {
	t.Helper()
	raw := tarBytes(t, files)

	var buf bytes.Buffer
	var w io.WriteCloser
	switch wrap {
	case "":
		buf.Write(raw)
	case "lz4":
		w = lz4.NewWriter(&buf)
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case "xz":
		xw, err := xz.NewWriter(&buf)
		require.NoError(t, err)
		w = xw
	default:
		t.Fatalf("unknown wrapper %q", wrap)
	}
	if w != nil {
		_, err := w.Write(raw)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

// pageFiles returns n PNG pages named page01.png... with widths varying so
// pages are distinguishable by size.
func pageFiles(t testing.TB, n int) []archiveFile {
	t.Helper()
	files := make([]archiveFile, n)
	for i := range files {
		files[i] = archiveFile{
			Name: fmt.Sprintf("page%02d.png", i+1),
			Data: pngBytes(t, 20+i, 30),
		}
	}
	return files
}

func tempArchive(t testing.TB, name string, files []archiveFile) string {
	t.Helper()
	return writeZip(t, filepath.Join(t.TempDir(), name), files)
}

// Fake clock

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock fires timers only when the test advances it. Callbacks run on
// the calling goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due, rest []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case t.at <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Active returns the number of timers that are neither stopped nor fired
func (c *fakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// In-memory page source

type memSource struct {
	entries []PageEntry
	data    [][]byte
	reads   []int32
}

func newMemSource(files []archiveFile) *memSource {
	s := &memSource{
		entries: make([]PageEntry, len(files)),
		data:    make([][]byte, len(files)),
		reads:   make([]int32, len(files)),
	}
	for i, f := range files {
		s.entries[i] = PageEntry{Index: i, Name: f.Name, RawName: f.Name, Size: int64(len(f.Data)), CompressedSize: -1}
		s.data[i] = f.Data
	}
	return s
}

func (s *memSource) Len() int {
	return len(s.entries)
}

func (s *memSource) Entry(i int) PageEntry {
	return s.entries[i]
}

func (s *memSource) ReadPage(i int) ([]byte, error) {
	atomic.AddInt32(&s.reads[i], 1)
	if s.data[i] == nil {
		return nil, fmt.Errorf("entry %s is damaged", s.entries[i].Name)
	}
	return s.data[i], nil
}

func (s *memSource) WalkPages(fn func(index int, data []byte) error) error {
	for i := range s.entries {
		if err := fn(i, s.data[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *memSource) readCount(i int) int {
	return int(atomic.LoadInt32(&s.reads[i]))
}
