package localdump

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/toothbrush/canvas-dump/canvas"
)

// RelativePath is a slash-separated path relative to the dump location (e.g., ~/canvas).
type RelativePath string

// Local returns the path with the OS separator.
func (p RelativePath) Local() string {
	return filepath.FromSlash(string(p))
}

// MarkdownDir is the top-level tree holding Markdown renditions of HTML files.  No course may map
// onto it, so a rendition never lands on a path a remote file could claim.
const MarkdownDir = ".markdown"

// CourseDirName turns a course name into its top-level directory: separators become spaces, and
// the first word wins.  "MA1101R/MA1101 Linear Algebra" -> "MA1101R".
func CourseDirName(name string) (string, error) {
	cleaned := strings.NewReplacer("/", " ", `\`, " ").Replace(name)

	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return "", fmt.Errorf("localdump: %w: %q", ErrEmptyCourseName, name)
	}
	if fields[0] == MarkdownDir {
		return "", fmt.Errorf("localdump: %w: %q", ErrReservedName, name)
	}

	return fields[0], nil
}

// FolderSubpath drops the root folder ("course files") from a folder's full name.
func FolderSubpath(fullName string) string {
	segments := strings.Split(fullName, "/")
	return strings.Join(segments[1:], "/")
}

// MapPath computes where a file lives on disk.  It's a pure function of the names involved, so a
// rerun against the same remote always lands on the same paths.
func MapPath(course canvas.Course, folder canvas.Folder, file canvas.File) (RelativePath, error) {
	courseDir, err := CourseDirName(course.Name)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(file.DisplayName) == "" {
		return "", fmt.Errorf("localdump: %w: file %d", ErrEmptyFileName, file.ID)
	}

	// path.Join also takes care of the "CS101//syllabus.pdf" case, when a file sits in the root
	// folder.
	rel := path.Join(courseDir, FolderSubpath(folder.FullName), file.DisplayName)

	if !filepath.IsLocal(filepath.FromSlash(rel)) || !strings.HasPrefix(rel, courseDir+"/") {
		return "", fmt.Errorf("localdump: %w: %q", ErrUnsafePath, rel)
	}

	return RelativePath(rel), nil
}
