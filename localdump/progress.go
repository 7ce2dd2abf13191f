package localdump

import (
	"fmt"
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress receives per-course updates from the downloader.  Implementations must be safe for
// concurrent use, one CourseProgress per course task.
type Progress interface {
	Course(name string) CourseProgress
	Wait()
}

type CourseProgress interface {
	// Discovered grows the course's total by n files.
	Discovered(n int)
	Done(outcome FileOutcome)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Course(string) CourseProgress { return nopCourseProgress{} }
func (nopProgress) Wait()                        {}

type nopCourseProgress struct{}

func (nopCourseProgress) Discovered(int)   {}
func (nopCourseProgress) Done(FileOutcome) {}
func (nopCourseProgress) Finish()          {}

// BarProgress draws one mpb bar per course.  The total isn't known up front, so it grows as
// folders are listed.
type BarProgress struct {
	p *mpb.Progress
}

func NewBarProgress(w io.Writer) *BarProgress {
	return &BarProgress{p: mpb.New(mpb.WithWidth(64), mpb.WithOutput(w))}
}

func (b *BarProgress) Course(name string) CourseProgress {
	bar := b.p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("%s:", name),
				decor.WC{C: decor.DindentRight | decor.DextraSpace}),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d/%d) "),
			decor.OnComplete(decor.Spinner([]string{" /", " -", " \\", " |"}), " done"),
		),
	)
	return &barCourseProgress{bar: bar}
}

// Wait blocks until every course bar has been finished and flushed.
func (b *BarProgress) Wait() {
	b.p.Wait()
}

type barCourseProgress struct {
	mu    sync.Mutex
	bar   *mpb.Bar
	total int64
}

func (c *barCourseProgress) Discovered(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += int64(n)
	c.bar.SetTotal(c.total, false)
}

func (c *barCourseProgress) Done(FileOutcome) {
	c.bar.Increment()
}

func (c *barCourseProgress) Finish() {
	// negative total means "whatever the current count is".
	c.bar.SetTotal(-1, true)
}
