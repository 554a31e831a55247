package main

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/zstd"
	"github.com/nwaples/rardecode"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/japanese"
)

// containerFormat identifies how an archive file is laid out on disk
type containerFormat int

const (
	formatUnknown containerFormat = iota
	formatZip
	formatRar
	format7z
	formatTar
	formatTarLz4
	formatTarZstd
	formatTarXz
)

func (f containerFormat) String() string {
	switch f {
	case formatZip:
		return "zip"
	case formatRar:
		return "rar"
	case format7z:
		return "7z"
	case formatTar:
		return "tar"
	case formatTarLz4:
		return "tar.lz4"
	case formatTarZstd:
		return "tar.zst"
	case formatTarXz:
		return "tar.xz"
	default:
		return "unknown"
	}
}

// sequential reports whether entries can only be reached by reading the
// container from the start.
func (f containerFormat) sequential() bool {
	return f != formatZip && f != format7z
}

var (
	magicZip      = []byte("PK\x03\x04")
	magicZipEmpty = []byte("PK\x05\x06")
	magicZipSpan  = []byte("PK\x07\x08")
	magicRar      = []byte("Rar!\x1a\x07")
	magic7z       = []byte("7z\xbc\xaf\x27\x1c")
	magicXz       = []byte("\xfd7zXZ\x00")
	magicZstd     = []byte("\x28\xb5\x2f\xfd")
	magicLz4      = []byte("\x04\x22\x4d\x18")
	magicTar      = []byte("ustar")
)

const sniffSize = 512

// detectFormat classifies a container by its leading bytes. Compressed
// streams are assumed to wrap a tar archive.
func detectFormat(header []byte) containerFormat {
	switch {
	case bytes.HasPrefix(header, magicZip),
		bytes.HasPrefix(header, magicZipEmpty),
		bytes.HasPrefix(header, magicZipSpan):
		return formatZip
	case bytes.HasPrefix(header, magicRar):
		return formatRar
	case bytes.HasPrefix(header, magic7z):
		return format7z
	case bytes.HasPrefix(header, magicXz):
		return formatTarXz
	case bytes.HasPrefix(header, magicZstd):
		return formatTarZstd
	case bytes.HasPrefix(header, magicLz4):
		return formatTarLz4
	case len(header) >= 262 && bytes.Equal(header[257:262], magicTar):
		return formatTar
	default:
		return formatUnknown
	}
}

func sniffFormat(path string) (containerFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return formatUnknown, err
	}
	defer f.Close()

	header := make([]byte, sniffSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return formatUnknown, err
	}
	return detectFormat(header[:n]), nil
}

// archiveEntry describes one regular file inside a container
type archiveEntry struct {
	RawName        string // name as stored, used for lookup
	Name           string // display name, UTF-8
	Size           int64
	CompressedSize int64 // -1 when the format does not record it
}

// decodeEntryName turns legacy Shift_JIS zip names into UTF-8. Names that
// are already valid UTF-8 are returned as is.
func decodeEntryName(name string, nonUTF8 bool) string {
	if !nonUTF8 || utf8.ValidString(name) {
		return name
	}
	decoded, err := japanese.ShiftJIS.NewDecoder().String(name)
	if err != nil {
		return name
	}
	return decoded
}

func openZip(archivePath string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	r.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	r.RegisterDecompressor(zstd.ZipMethodPKWare, zstd.ZipDecompressor())
	return r, nil
}

// Entry listing

func listEntries(archivePath string, format containerFormat) ([]archiveEntry, error) {
	switch format {
	case formatZip:
		return listZipEntries(archivePath)
	case formatRar:
		return listRarEntries(archivePath)
	case format7z:
		return list7zEntries(archivePath)
	case formatTar, formatTarLz4, formatTarZstd, formatTarXz:
		return listTarEntries(archivePath, format)
	default:
		return nil, fmt.Errorf("unsupported container format")
	}
}

func listZipEntries(archivePath string) ([]archiveEntry, error) {
	r, err := openZip(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []archiveEntry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, archiveEntry{
			RawName:        f.Name,
			Name:           decodeEntryName(f.Name, f.NonUTF8),
			Size:           int64(f.UncompressedSize64),
			CompressedSize: int64(f.CompressedSize64),
		})
	}
	return entries, nil
}

func listRarEntries(archivePath string) ([]archiveEntry, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := rardecode.NewReader(f, "")
	if err != nil {
		return nil, err
	}

	var entries []archiveEntry
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.IsDir {
			continue
		}
		entries = append(entries, archiveEntry{
			RawName:        header.Name,
			Name:           header.Name,
			Size:           header.UnPackedSize,
			CompressedSize: header.PackedSize,
		})
	}
	return entries, nil
}

func list7zEntries(archivePath string) ([]archiveEntry, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []archiveEntry
	for _, f := range r.File {
		info := f.FileInfo()
		if info.IsDir() {
			continue
		}
		entries = append(entries, archiveEntry{
			RawName:        f.Name,
			Name:           f.Name,
			Size:           info.Size(),
			CompressedSize: -1,
		})
	}
	return entries, nil
}

// tarStream couples a tar reader with everything that must be closed after it
type tarStream struct {
	*tar.Reader
	closers []func() error
}

func (s *tarStream) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openTarStream(archivePath string, format containerFormat) (*tarStream, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	stream := &tarStream{closers: []func() error{f.Close}}

	var src io.Reader = f
	switch format {
	case formatTarLz4:
		src = lz4.NewReader(f)
	case formatTarZstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		stream.closers = append(stream.closers, func() error { dec.Close(); return nil })
		src = dec
	case formatTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		src = xr
	}
	stream.Reader = tar.NewReader(src)
	return stream, nil
}

func listTarEntries(archivePath string, format containerFormat) ([]archiveEntry, error) {
	stream, err := openTarStream(archivePath, format)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var entries []archiveEntry
	for {
		header, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !header.FileInfo().Mode().IsRegular() {
			continue
		}
		entries = append(entries, archiveEntry{
			RawName:        header.Name,
			Name:           header.Name,
			Size:           header.Size,
			CompressedSize: -1,
		})
	}
	return entries, nil
}

// Entry reading. Every call reopens the container.

func readEntry(archivePath string, format containerFormat, rawName string) ([]byte, error) {
	switch format {
	case formatZip:
		return readZipEntry(archivePath, rawName)
	case format7z:
		return read7zEntry(archivePath, rawName)
	default:
		var data []byte
		err := walkEntries(archivePath, format, map[string]struct{}{rawName: {}}, func(_ string, b []byte) error {
			data = b
			return errStopWalk
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			return nil, err
		}
		if data == nil {
			return nil, fmt.Errorf("entry %s not found in %s", rawName, archivePath)
		}
		return data, nil
	}
}

func readZipEntry(archivePath, rawName string) ([]byte, error) {
	r, err := openZip(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name == rawName {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %s not found in %s", rawName, archivePath)
}

func read7zEntry(archivePath, rawName string) ([]byte, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name == rawName {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %s not found in %s", rawName, archivePath)
}

// errStopWalk ends a walk early without reporting a failure
var errStopWalk = errors.New("stop walk")

// walkEntries reads every wanted entry once, in storage order, and hands its
// bytes to fn. For random-access formats a failed entry is passed to fn as
// nil data; for sequential formats the stream cannot continue, so the walk
// fails.
func walkEntries(archivePath string, format containerFormat, want map[string]struct{}, fn func(rawName string, data []byte) error) error {
	switch format {
	case formatZip:
		r, err := openZip(archivePath)
		if err != nil {
			return err
		}
		defer r.Close()
		for _, f := range r.File {
			if _, ok := want[f.Name]; !ok {
				continue
			}
			data, err := readZipFile(f)
			if err != nil {
				data = nil
				debugLog("walk: reading %s: %v", f.Name, err)
			}
			if err := fn(f.Name, data); err != nil {
				return err
			}
		}
		return nil
	case format7z:
		r, err := sevenzip.OpenReader(archivePath)
		if err != nil {
			return err
		}
		defer r.Close()
		for _, f := range r.File {
			if _, ok := want[f.Name]; !ok {
				continue
			}
			data, err := read7zFile(f)
			if err != nil {
				data = nil
				debugLog("walk: reading %s: %v", f.Name, err)
			}
			if err := fn(f.Name, data); err != nil {
				return err
			}
		}
		return nil
	case formatRar:
		f, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		r, err := rardecode.NewReader(f, "")
		if err != nil {
			return err
		}
		for {
			header, err := r.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if _, ok := want[header.Name]; !ok || header.IsDir {
				continue
			}
			data, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			if err := fn(header.Name, data); err != nil {
				return err
			}
		}
	case formatTar, formatTarLz4, formatTarZstd, formatTarXz:
		stream, err := openTarStream(archivePath, format)
		if err != nil {
			return err
		}
		defer stream.Close()
		for {
			header, err := stream.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if _, ok := want[header.Name]; !ok {
				continue
			}
			data, err := io.ReadAll(stream)
			if err != nil {
				return err
			}
			if err := fn(header.Name, data); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported container format")
	}
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func read7zFile(f *sevenzip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
