package localdump

import (
	"errors"
	"sort"

	"github.com/toothbrush/canvas-dump/canvas"
	"golang.org/x/exp/maps"
)

// FileState tracks one file through a sync:
//
//	Discovered -> (Skipped | Downloading -> Written -> PostProcessed) | Failed
type FileState int8

const (
	Discovered FileState = iota
	Skipped
	Downloading
	Written
	PostProcessed
	Failed
)

func (s FileState) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Skipped:
		return "skipped"
	case Downloading:
		return "downloading"
	case Written:
		return "written"
	case PostProcessed:
		return "post-processed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type SkipReason string

const (
	SkipExists SkipReason = "exists"
	SkipNoURL  SkipReason = "no-url"
)

type FailureKind string

const (
	KindRemoteUnavailable FailureKind = "remote-unavailable"
	KindListing           FailureKind = "listing"
	KindFetch             FailureKind = "fetch"
	KindWriteConflict     FailureKind = "write-conflict"
	KindIO                FailureKind = "io"
	KindPath              FailureKind = "path"
)

// FileOutcome is where a file ended up.  Err is set iff State is Failed.  A post-processing
// failure doesn't fail the file: its bytes are safely on disk.
type FileOutcome struct {
	CourseID int64
	FileID   int64
	Path     RelativePath

	State      FileState
	SkipReason SkipReason

	Bytes    int64
	Checksum string

	Kind           FailureKind
	Err            error
	PostProcessErr error
}

// ListingFailure records a course or folder we couldn't look into.  FolderID is zero when the
// course's folder listing itself failed.
type ListingFailure struct {
	FolderID int64
	Folder   string
	Kind     FailureKind
	Err      error
}

type CourseReport struct {
	Course canvas.Course
	Dir    string

	Outcomes        []FileOutcome
	ListingFailures []ListingFailure
}

func (r CourseReport) count(state FileState) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

func (r CourseReport) Written() int { return r.count(PostProcessed) }
func (r CourseReport) Skipped() int { return r.count(Skipped) }
func (r CourseReport) Failed() int  { return r.count(Failed) }

func (r CourseReport) Bytes() int64 {
	var n int64
	for _, o := range r.Outcomes {
		n += o.Bytes
	}
	return n
}

func (r CourseReport) PostProcessFailures() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.PostProcessErr != nil {
			n++
		}
	}
	return n
}

// Summary is the aggregate of a whole run, one report per course in the order they were listed.
type Summary struct {
	Courses []CourseReport
}

func (s Summary) sum(f func(CourseReport) int) int {
	n := 0
	for _, c := range s.Courses {
		n += f(c)
	}
	return n
}

func (s Summary) Written() int             { return s.sum(CourseReport.Written) }
func (s Summary) Skipped() int             { return s.sum(CourseReport.Skipped) }
func (s Summary) Failed() int              { return s.sum(CourseReport.Failed) }
func (s Summary) PostProcessFailures() int { return s.sum(CourseReport.PostProcessFailures) }

func (s Summary) ListingFailures() int {
	return s.sum(func(c CourseReport) int { return len(c.ListingFailures) })
}

func (s Summary) Bytes() int64 {
	var n int64
	for _, c := range s.Courses {
		n += c.Bytes()
	}
	return n
}

// HasFailures is true if any file or listing failed.  Post-processing problems don't count.
func (s Summary) HasFailures() bool {
	return s.Failed() > 0 || s.ListingFailures() > 0
}

// KindCount is one line of FailuresByKind.
type KindCount struct {
	Kind  FailureKind
	Count int
}

// FailuresByKind counts file and listing failures per kind, sorted by kind.
func (s Summary) FailuresByKind() []KindCount {
	counts := map[FailureKind]int{}
	for _, c := range s.Courses {
		for _, o := range c.Outcomes {
			if o.State == Failed {
				counts[o.Kind]++
			}
		}
		for _, l := range c.ListingFailures {
			counts[l.Kind]++
		}
	}

	kinds := maps.Keys(counts)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	result := make([]KindCount, 0, len(kinds))
	for _, k := range kinds {
		result = append(result, KindCount{Kind: k, Count: counts[k]})
	}
	return result
}

// writeFailureKind tells local trouble apart from a download that broke mid-stream.
func writeFailureKind(err error) FailureKind {
	switch {
	case errors.Is(err, ErrWriteConflict):
		return KindWriteConflict
	case errors.Is(err, ErrIOFailure):
		return KindIO
	default:
		return KindFetch
	}
}

// listingFailureKind keeps remote-unavailable for requests that never completed.  Anything else
// (an error status, a body we couldn't parse) is a listing failure.
func listingFailureKind(err error) FailureKind {
	if errors.Is(err, canvas.ErrRemoteUnavailable) {
		return KindRemoteUnavailable
	}
	return KindListing
}
