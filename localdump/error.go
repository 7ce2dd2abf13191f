package localdump

import "errors"

var (
	ErrEmptyCourseName = errors.New("course name has no usable characters")
	ErrEmptyFileName   = errors.New("file has no display name")
	ErrUnsafePath      = errors.New("path escapes its course directory")
	ErrReservedName    = errors.New("course directory name is reserved")

	// ErrWriteConflict means something already sits at the path we were about to write.  The
	// mapping should make this impossible, so it points at colliding remote data or a bug.
	ErrWriteConflict = errors.New("refusing to overwrite existing file")

	ErrIOFailure        = errors.New("local filesystem failure")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrSizeMismatch     = errors.New("size mismatch")

	ErrUnsafeArchiveEntry = errors.New("archive entry escapes extraction directory")
)
