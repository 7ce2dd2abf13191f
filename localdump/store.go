package localdump

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

const (
	dirPerms  = 0o750
	filePerms = 0o644

	partialSuffix = ".part"
)

// Store owns the local mirror rooted at an absolute base directory.  Files are only ever
// created, never modified, and a file is either absent or complete at its final path.
type Store struct {
	fs   afero.Fs
	base string

	// serialises the stat-then-rename publish on filesystems without hard links
	publishMu sync.Mutex
}

type WriteResult struct {
	Path     RelativePath
	Bytes    int64
	Checksum string // hex BLAKE3 of the written bytes
}

// NewStore returns a Store on the OS filesystem.  base must be an existing directory.
func NewStore(base string) (*Store, error) {
	return NewStoreWithFs(afero.NewOsFs(), base)
}

func NewStoreWithFs(afs afero.Fs, base string) (*Store, error) {
	if !filepath.IsAbs(base) {
		return nil, fmt.Errorf("localdump: base directory must be absolute: '%s'", base)
	}

	stat, err := afs.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("localdump: cannot stat '%s': %w", base, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("localdump: base directory not a directory: '%s'", base)
	}

	return &Store{fs: afs, base: filepath.Clean(base)}, nil
}

func (s *Store) Base() string {
	return s.base
}

func (s *Store) Fs() afero.Fs {
	return s.fs
}

func (s *Store) Abs(rel RelativePath) string {
	return filepath.Join(s.base, rel.Local())
}

// Exists reports whether anything sits at rel.  Contents and timestamps are never looked at.
func (s *Store) Exists(rel RelativePath) (bool, error) {
	_, err := s.fs.Stat(s.Abs(rel))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("localdump: %w: couldn't stat %s: %w", ErrIOFailure, rel, err)
}

// Write streams r into a new file at rel.  The bytes go to a temporary sibling first and are only
// linked into place once complete, so a concurrent Exists never sees a partial file.  If anything
// already exists at rel, before or at the moment of publishing, the result is ErrWriteConflict and
// the existing file is left alone.
//
// expectedSize is checked when it's not negative.  Errors reading r are returned as they are;
// local problems wrap ErrIOFailure.
func (s *Store) Write(ctx context.Context, rel RelativePath, r io.Reader, expectedSize int64) (WriteResult, error) {
	abs := s.Abs(rel)
	directory := filepath.Dir(abs)

	if err := s.fs.MkdirAll(directory, dirPerms); err != nil {
		return WriteResult{}, fmt.Errorf("localdump: %w: couldn't create directory %s: %w", ErrIOFailure, directory, err)
	}

	if exists, err := s.Exists(rel); err != nil {
		return WriteResult{}, err
	} else if exists {
		return WriteResult{}, fmt.Errorf("localdump: %w: %s", ErrWriteConflict, rel)
	}

	tmp, err := afero.TempFile(s.fs, directory, "."+filepath.Base(abs)+".*"+partialSuffix)
	if err != nil {
		return WriteResult{}, fmt.Errorf("localdump: %w: couldn't create temporary file in %s: %w", ErrIOFailure, directory, err)
	}
	tmpPath := tmp.Name()

	var published bool
	defer func() {
		if !published {
			s.fs.Remove(tmpPath) //nolint:errcheck
		}
	}()

	srcHasher := blake3.New()
	dstHasher := blake3.New()

	src := &contextReader{
		ctx:    ctx,
		reader: io.TeeReader(r, srcHasher),
	}

	written, err := io.Copy(io.MultiWriter(tmp, dstHasher), src)
	if err != nil {
		tmp.Close()
		if src.err != nil {
			return WriteResult{}, fmt.Errorf("localdump: couldn't read contents for %s: %w", rel, src.err)
		}
		return WriteResult{}, fmt.Errorf("localdump: %w: couldn't write %s: %w", ErrIOFailure, tmpPath, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return WriteResult{}, fmt.Errorf("localdump: %w: couldn't sync %s: %w", ErrIOFailure, tmpPath, err)
	}

	if err := tmp.Close(); err != nil {
		return WriteResult{}, fmt.Errorf("localdump: %w: couldn't close %s: %w", ErrIOFailure, tmpPath, err)
	}

	if expectedSize >= 0 && written != expectedSize {
		return WriteResult{}, fmt.Errorf("localdump: %w: got %d bytes for %s, expected %d", ErrSizeMismatch, written, rel, expectedSize)
	}

	srcChecksum := hex.EncodeToString(srcHasher.Sum(nil))
	dstChecksum := hex.EncodeToString(dstHasher.Sum(nil))

	if srcChecksum != dstChecksum {
		return WriteResult{}, fmt.Errorf("localdump: %w: %w: %s (src) != %s (dst)", ErrIOFailure, ErrChecksumMismatch, srcChecksum, dstChecksum)
	}

	if err := s.fs.Chmod(tmpPath, filePerms); err != nil {
		return WriteResult{}, fmt.Errorf("localdump: %w: couldn't chmod %s: %w", ErrIOFailure, tmpPath, err)
	}

	if err := s.publish(tmpPath, abs); err != nil {
		return WriteResult{}, fmt.Errorf("localdump: couldn't publish %s: %w", rel, err)
	}
	published = true

	return WriteResult{
		Path:     rel,
		Bytes:    written,
		Checksum: dstChecksum,
	}, nil
}

// publish moves a finished temporary file to its final name without ever replacing an existing
// file.  On the OS filesystem a hard link does that atomically across processes; link(2) fails
// with EEXIST if we lost.  Elsewhere (in-memory filesystems, or volumes without hard links) we fall
// back to a locked stat-then-rename.
func (s *Store) publish(tmpPath, finalPath string) error {
	if _, ok := s.fs.(*afero.OsFs); ok {
		err := os.Link(tmpPath, finalPath)
		if err == nil {
			// the file is in place; a leftover temporary name is harmless
			s.fs.Remove(tmpPath) //nolint:errcheck
			return nil
		}
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("localdump: %w: %s", ErrWriteConflict, finalPath)
		}
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if _, err := s.fs.Stat(finalPath); err == nil {
		return fmt.Errorf("localdump: %w: %s", ErrWriteConflict, finalPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("localdump: %w: couldn't stat %s: %w", ErrIOFailure, finalPath, err)
	}

	if err := s.fs.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("localdump: %w: couldn't rename %s: %w", ErrIOFailure, tmpPath, err)
	}

	return nil
}

//nolint:containedctx
type contextReader struct {
	ctx    context.Context
	reader io.Reader

	// first error coming from the source rather than from us
	err error
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		cr.err = err
		return 0, err
	}

	n, err := cr.reader.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		cr.err = err
	}
	return n, err
}
