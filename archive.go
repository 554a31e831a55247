package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
)

// PageEntry is one image entry of an archive, in page order
type PageEntry struct {
	Index          int
	Name           string // display name, used for ordering
	RawName        string // name as stored in the container
	Size           int64
	CompressedSize int64 // -1 when unknown
}

// PageList is the ordered, immutable page sequence of one loaded archive
type PageList struct {
	path      string
	format    containerFormat
	entries   []PageEntry
	fileBytes int64
}

// ArchiveOptions controls how an archive is turned into a page list
type ArchiveOptions struct {
	SortMethod int
	Exclude    []glob.Glob
}

// Summary describes a loaded archive for status display
type Summary struct {
	Path            string
	Format          string
	PageCount       int
	RawBytes        int64
	CompressedBytes int64
}

func isSupportedExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}

// compileExcludePatterns compiles glob patterns matched against entry names,
// with '/' as the path separator.
func compileExcludePatterns(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func isExcluded(name string, exclude []glob.Glob) bool {
	for _, g := range exclude {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// OpenArchive indexes the image entries of the archive at path. Only entry
// metadata is read; page bytes are read on demand by ReadPage.
func OpenArchive(path string, opts ArchiveOptions) (*PageList, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrInvalidContainer, err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: is a directory", ErrInvalidContainer)}
	}

	format, err := sniffFormat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrInvalidContainer, err)}
	}
	if format == formatUnknown {
		return nil, &LoadError{Path: path, Err: ErrInvalidContainer}
	}

	entries, err := listEntries(path, format)
	if err != nil {
		logger.WithFields(logrus.Fields{"archive": path, "format": format}).Warnf("Failed to read archive: %v", err)
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrInvalidContainer, err)}
	}

	var pages []PageEntry
	for _, e := range entries {
		if !isSupportedExt(e.Name) || isExcluded(e.Name, opts.Exclude) {
			continue
		}
		pages = append(pages, PageEntry{
			Name:           e.Name,
			RawName:        e.RawName,
			Size:           e.Size,
			CompressedSize: e.CompressedSize,
		})
	}
	if len(pages) == 0 {
		return nil, &LoadError{Path: path, Err: ErrEmptyArchive}
	}

	pages = GetSortStrategy(opts.SortMethod).Sort(pages)
	for i := range pages {
		pages[i].Index = i
	}

	debugLog("Indexed %s (%s): %d pages, %d entries, sort=%s",
		path, format, len(pages), len(entries), getSortMethodName(opts.SortMethod))

	return &PageList{
		path:      path,
		format:    format,
		entries:   pages,
		fileBytes: info.Size(),
	}, nil
}

func (l *PageList) Path() string {
	return l.path
}

func (l *PageList) Len() int {
	return len(l.entries)
}

// Entry returns the page at index i
func (l *PageList) Entry(i int) PageEntry {
	return l.entries[i]
}

// names returns the display names in page order
func (l *PageList) names() []string {
	names := make([]string, len(l.entries))
	for i, e := range l.entries {
		names[i] = e.Name
	}
	return names
}

// ReadPage reopens the container and returns the raw bytes of page i
func (l *PageList) ReadPage(i int) ([]byte, error) {
	if i < 0 || i >= len(l.entries) {
		return nil, fmt.Errorf("page %d out of range [0, %d)", i, len(l.entries))
	}
	return readEntry(l.path, l.format, l.entries[i].RawName)
}

// WalkPages reads every page in one pass over the container and calls fn
// with the page index and its bytes (nil when the entry could not be read).
func (l *PageList) WalkPages(fn func(index int, data []byte) error) error {
	byName := make(map[string][]int, len(l.entries))
	want := make(map[string]struct{}, len(l.entries))
	for _, e := range l.entries {
		byName[e.RawName] = append(byName[e.RawName], e.Index)
		want[e.RawName] = struct{}{}
	}

	seen := make(map[string]bool, len(l.entries))
	return walkEntries(l.path, l.format, want, func(rawName string, data []byte) error {
		// duplicate names resolve to the first stored entry, as ReadPage does
		if seen[rawName] {
			return nil
		}
		seen[rawName] = true
		for _, idx := range byName[rawName] {
			if err := fn(idx, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Summary reports page count and byte totals
func (l *PageList) Summary() Summary {
	s := Summary{
		Path:      l.path,
		Format:    l.format.String(),
		PageCount: len(l.entries),
	}
	packedKnown := true
	for _, e := range l.entries {
		s.RawBytes += e.Size
		if e.CompressedSize < 0 {
			packedKnown = false
		} else {
			s.CompressedBytes += e.CompressedSize
		}
	}
	if !packedKnown {
		s.CompressedBytes = l.fileBytes
	}
	return s
}
