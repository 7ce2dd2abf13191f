/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/toothbrush/canvas-dump/internal/metrics"
	"github.com/toothbrush/canvas-dump/internal/termfmt"
	"github.com/toothbrush/canvas-dump/localdump"
)

var downloadUsage = strings.TrimSpace(`
Walk every course you're enrolled in and download each file that isn't in base-directory yet.
Files are laid out as <course code>/<folder path>/<file name>.  Existing files are never touched,
so rerunning only fetches what's new.
`)

var errDownloadFailures = errors.New("some files or listings failed, see above")

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Mirror course files into base-directory",
	Long:  downloadUsage,
	Args:  cobra.ExactArgs(0),
	RunE:  downloadRun,
}

var (
	Concurrency int
	ExtractZips bool
	ConvertHTML bool
	Progress    bool
	MetricsFile string
)

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().IntVar(&Concurrency, "concurrency", 0, "how many courses to sync at once (0: all of them)")
	downloadCmd.Flags().BoolVar(&ExtractZips, "extract-zips", true, "unpack downloaded .zip files next to the archive")
	downloadCmd.Flags().BoolVar(&ConvertHTML, "convert-html", true, "write a Markdown copy of downloaded .html files")
	downloadCmd.Flags().BoolVar(&Progress, "progress", true, "show a progress bar per course")
	downloadCmd.Flags().StringVar(&MetricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
}

// resolveBaseDirectory expands ~ and makes the path absolute.  The store checks it exists.
func resolveBaseDirectory(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("no base directory set.  Use --base-directory or set base-directory in your config file")
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("unable to expand homedir: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("couldn't make %s absolute: %w", expanded, err)
	}
	return abs, nil
}

func downloadRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	base, err := resolveBaseDirectory(BaseDirectory)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	store, err := localdump.NewStore(base)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	api, stop, err := newCanvasAPI()
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() {
		if err := stop(); err != nil {
			logger.Warn("Couldn't save VCR cassette.", "err", err)
		}
	}()

	downloader := &localdump.CoursesDownloader{
		Source: api,
		Store:  store,
		PostProcessor: localdump.NewPostProcessor(store, localdump.PostProcessOptions{
			ExtractZips: ExtractZips,
			ConvertHTML: ConvertHTML,
			LinkBase:    api.BaseURI(),
			Logger:      logger,
		}),
		Concurrency: Concurrency,
		Logger:      logger,
	}
	if Progress && !Debug {
		downloader.Progress = localdump.NewBarProgress(cmd.OutOrStdout())
	}

	logger.Info("Syncing courses.", "canvas", CanvasURL, "into", base)
	summary, err := downloader.Run(ctx)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	printSummary(cmd.OutOrStdout(), summary)

	if MetricsFile != "" {
		recorder := metrics.New()
		recorder.Observe(summary, time.Now())
		if err := recorder.WriteTextfile(MetricsFile); err != nil {
			return fmt.Errorf("download: %w", err)
		}
	}

	if summary.HasFailures() {
		return errDownloadFailures
	}
	return nil
}

func printSummary(w io.Writer, summary localdump.Summary) {
	fmt.Fprintf(w, "\n%s\n", termfmt.Bold().V("Summary"))
	for _, course := range summary.Courses {
		fmt.Fprintf(w, "  %-12s written %d, skipped %d, failed %d (%s)\n",
			course.Dir,
			termfmt.Fg(termfmt.Green).V(course.Written()),
			course.Skipped(),
			failureStyle(course.Failed()+len(course.ListingFailures)),
			humanize.IBytes(uint64(course.Bytes())),
		)
		for _, o := range course.Outcomes {
			if o.State == localdump.Failed {
				fmt.Fprintf(w, "    %s %s: %v\n", termfmt.Fg(termfmt.Red).V("✗"), o.Path, o.Err)
			} else if o.PostProcessErr != nil {
				fmt.Fprintf(w, "    %s %s: %v\n", termfmt.Fg(termfmt.Yellow).V("!"), o.Path, o.PostProcessErr)
			}
		}
		for _, l := range course.ListingFailures {
			what := l.Folder
			if what == "" {
				what = "(folders)"
			}
			fmt.Fprintf(w, "    %s listing %s: %v\n", termfmt.Fg(termfmt.Red).V("✗"), what, l.Err)
		}
	}

	fmt.Fprintf(w, "\nTotal: %d written (%s), %d skipped, %d failed",
		summary.Written(),
		humanize.IBytes(uint64(summary.Bytes())),
		summary.Skipped(),
		failureStyle(summary.Failed()+summary.ListingFailures()),
	)
	if n := summary.PostProcessFailures(); n > 0 {
		fmt.Fprintf(w, ", %d post-processing problems", termfmt.Fg(termfmt.Yellow).V(n))
	}
	fmt.Fprintln(w)

	for _, kc := range summary.FailuresByKind() {
		fmt.Fprintf(w, "  %-20s %d\n", kc.Kind, kc.Count)
	}
}

func failureStyle(n int) termfmt.Style {
	if n == 0 {
		return termfmt.Fg(termfmt.DefaultColor).V(n)
	}
	return termfmt.Bold().Fg(termfmt.Red).V(n)
}
