package localdump

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/toothbrush/canvas-dump/canvas"
	"golang.org/x/sync/errgroup"
)

// Source is the remote side of a sync.  *canvas.API satisfies it.
type Source interface {
	ListCourses(ctx context.Context) ([]canvas.Course, error)
	ListFolders(ctx context.Context, courseID int64) ([]canvas.Folder, error)
	ListFiles(ctx context.Context, folderID int64) ([]canvas.File, error)
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, int64, error)
}

// FileProcessor runs on every freshly written file.  *PostProcessor satisfies it.
type FileProcessor interface {
	Process(ctx context.Context, rel RelativePath) error
}

// CoursesDownloader mirrors every course from Source into Store.  Files that already exist
// locally are never fetched again, and nothing local is ever modified or deleted.
type CoursesDownloader struct {
	Source        Source
	Store         *Store
	PostProcessor FileProcessor

	// Concurrency bounds how many courses sync at once.  Zero means one task per course.
	Concurrency int

	Logger   *slog.Logger
	Progress Progress

	downloaded atomic.Int64
}

// Downloaded is the number of files written so far, across all runs of this downloader.
func (d *CoursesDownloader) Downloaded() int64 {
	return d.downloaded.Load()
}

func (d *CoursesDownloader) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *CoursesDownloader) progress() Progress {
	if d.Progress == nil {
		return nopProgress{}
	}
	return d.Progress
}

// Run lists the courses and syncs them all.  Failing to list courses is the only error; anything
// that goes wrong further down ends up in the Summary.
func (d *CoursesDownloader) Run(ctx context.Context) (Summary, error) {
	d.logger().Info("Getting available courses.")
	courses, err := d.Source.ListCourses(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("localdump: couldn't list courses: %w", err)
	}
	d.logger().Info("Found courses.", "count", len(courses))

	return d.DownloadCourses(ctx, courses), nil
}

// DownloadCourses syncs each course in its own task and waits for all of them.  A failing course
// never stops its siblings.
func (d *CoursesDownloader) DownloadCourses(ctx context.Context, courses []canvas.Course) Summary {
	reports := make([]CourseReport, len(courses))
	progress := d.progress()

	var grp errgroup.Group
	if d.Concurrency > 0 {
		grp.SetLimit(d.Concurrency)
	}
	for i, course := range courses {
		grp.Go(func() error {
			reports[i] = d.downloadCourse(ctx, course, progress.Course(course.Name))
			return nil
		})
	}
	// tasks always return nil.
	_ = grp.Wait()
	progress.Wait()

	return Summary{Courses: reports}
}

func (d *CoursesDownloader) downloadCourse(ctx context.Context, course canvas.Course, tracker CourseProgress) CourseReport {
	defer tracker.Finish()

	logger := d.logger().With("course", course.Name)
	report := CourseReport{Course: course}

	dir, err := CourseDirName(course.Name)
	if err != nil {
		logger.Warn("Skipping course.", "err", err)
		report.ListingFailures = append(report.ListingFailures, ListingFailure{Kind: KindPath, Err: err})
		return report
	}
	report.Dir = dir

	logger.Info("Getting available folders.")
	folders, err := d.Source.ListFolders(ctx, course.ID)
	if err != nil {
		logger.Warn("Couldn't list folders.", "err", err)
		report.ListingFailures = append(report.ListingFailures, ListingFailure{
			Kind: listingFailureKind(err),
			Err:  err,
		})
		return report
	}

	for _, folder := range folders {
		logger.Debug("Getting available files.", "folder", folder.FullName)
		files, err := d.Source.ListFiles(ctx, folder.ID)
		if err != nil {
			logger.Warn("Couldn't list files.", "folder", folder.FullName, "err", err)
			report.ListingFailures = append(report.ListingFailures, ListingFailure{
				FolderID: folder.ID,
				Folder:   folder.FullName,
				Kind:     listingFailureKind(err),
				Err:      err,
			})
			continue
		}

		tracker.Discovered(len(files))
		for _, file := range files {
			outcome := d.downloadFile(ctx, logger, course, folder, file)
			report.Outcomes = append(report.Outcomes, outcome)
			tracker.Done(outcome)
		}
	}

	logger.Info("Course done.",
		"written", report.Written(),
		"skipped", report.Skipped(),
		"failed", report.Failed())
	return report
}

func (d *CoursesDownloader) downloadFile(ctx context.Context, logger *slog.Logger, course canvas.Course, folder canvas.Folder, file canvas.File) FileOutcome {
	outcome := FileOutcome{
		CourseID: course.ID,
		FileID:   file.ID,
		State:    Discovered,
	}
	fail := func(kind FailureKind, err error) FileOutcome {
		logger.Warn("Download failed.", "file", file.DisplayName, "kind", kind, "err", err)
		outcome.State = Failed
		outcome.Kind = kind
		outcome.Err = err
		return outcome
	}

	// nothing to fetch, so nothing about the file can fail.
	if file.URL == "" {
		if rel, err := MapPath(course, folder, file); err == nil {
			outcome.Path = rel
		}
		logger.Debug("No URL for file, maybe locked.", "file", file.DisplayName)
		outcome.State = Skipped
		outcome.SkipReason = SkipNoURL
		return outcome
	}

	rel, err := MapPath(course, folder, file)
	if err != nil {
		return fail(KindPath, err)
	}
	outcome.Path = rel

	exists, err := d.Store.Exists(rel)
	if err != nil {
		return fail(KindIO, err)
	}
	if exists {
		logger.Debug("Already have file.", "path", rel)
		outcome.State = Skipped
		outcome.SkipReason = SkipExists
		return outcome
	}
	outcome.State = Downloading
	logger.Info("Downloading.", "path", rel)
	body, size, err := d.Source.Fetch(ctx, file.URL)
	if err != nil {
		return fail(KindFetch, err)
	}
	result, err := d.Store.Write(ctx, rel, body, size)
	closeErr := body.Close()
	if err != nil {
		return fail(writeFailureKind(err), err)
	}
	if closeErr != nil {
		logger.Debug("Couldn't close response body.", "path", rel, "err", closeErr)
	}

	outcome.State = Written
	outcome.Bytes = result.Bytes
	outcome.Checksum = result.Checksum
	d.downloaded.Add(1)
	logger.Info("Saved.", "path", rel, "size", humanize.IBytes(uint64(result.Bytes)))

	if d.PostProcessor != nil {
		if err := d.PostProcessor.Process(ctx, rel); err != nil {
			logger.Warn("Post-processing failed.", "path", rel, "err", err)
			outcome.PostProcessErr = err
		}
	}
	outcome.State = PostProcessed
	return outcome
}
