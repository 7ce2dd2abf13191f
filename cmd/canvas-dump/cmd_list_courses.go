/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toothbrush/canvas-dump/canvas"
	"github.com/toothbrush/canvas-dump/internal/termfmt"
	"github.com/toothbrush/canvas-dump/localdump"
)

var listCoursesUsage = strings.TrimSpace(`
If you want to find out which courses would be downloaded, and into which directory, use this
command.
`)

var listCoursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Print list of courses",
	Long:  listCoursesUsage,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, stop, err := newCanvasAPI()
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		defer stop() //nolint:errcheck

		courses, err := api.ListCourses(cmd.Context())
		if err != nil {
			return fmt.Errorf("list: couldn't list Canvas courses: %w", err)
		}

		printCourses(cmd.OutOrStdout(), courses)
		return nil
	},
}

func init() {
	listCmd.AddCommand(listCoursesCmd)
}

func printCourses(w io.Writer, courses []canvas.Course) {
	sorted := make([]canvas.Course, len(courses))
	copy(sorted, courses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	fmt.Fprintf(w, "courses:\n")
	for _, c := range sorted {
		dir, err := localdump.CourseDirName(c.Name)
		if err != nil {
			dir = "(skipped)"
		}
		fmt.Fprintf(w, "  - %s: %s\n", termfmt.Bold().V(dir), c.Name)
	}
}
