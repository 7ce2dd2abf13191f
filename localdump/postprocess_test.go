package localdump

import (
	"archive/zip"
	"bytes"
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name, body string
}

func makeZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFixture(t *testing.T, store *Store, rel RelativePath, contents []byte) {
	t.Helper()

	_, err := store.Write(context.Background(), rel, bytes.NewReader(contents), int64(len(contents)))
	require.NoError(t, err)
}

func newTestPostProcessor(store *Store) *PostProcessor {
	return NewPostProcessor(store, PostProcessOptions{
		ExtractZips: true,
		ConvertHTML: true,
		LinkBase:    &url.URL{Scheme: "https", Host: "canvas.example.edu"},
	})
}

func TestPostProcessor_ExtractZip_Success_Case(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	rel := RelativePath("CS101/Labs/lab1.zip")
	writeFixture(t, store, rel, makeZip(t,
		zipEntry{"README.txt", "read me"},
		zipEntry{"src/", ""},
		zipEntry{"src/main.c", "int main() {}"},
	))

	pp := newTestPostProcessor(store)
	require.NoError(t, pp.Process(context.Background(), rel))

	assert.Equal(t, "read me", readFile(t, store, "CS101/Labs/lab1/README.txt"))
	assert.Equal(t, "int main() {}", readFile(t, store, "CS101/Labs/lab1/src/main.c"))

	// the archive itself stays put
	exists, err := store.Exists(rel)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostProcessor_ExtractZip_Idempotent(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	rel := RelativePath("CS101/lab1.zip")
	writeFixture(t, store, rel, makeZip(t, zipEntry{"README.txt", "read me"}))

	pp := newTestPostProcessor(store)
	require.NoError(t, pp.Process(context.Background(), rel))

	// local edits to extracted files survive another pass
	extracted := store.Abs("CS101/lab1/README.txt")
	require.NoError(t, afero.WriteFile(store.Fs(), extracted, []byte("my notes"), 0o644))

	require.NoError(t, pp.Process(context.Background(), rel))
	assert.Equal(t, "my notes", readFile(t, store, "CS101/lab1/README.txt"))
}

func TestPostProcessor_ExtractZip_Failure_FileInTheWay(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	writeFixture(t, store, "CS101/lab", []byte("a remote file called lab"))
	rel := RelativePath("CS101/lab.zip")
	writeFixture(t, store, rel, makeZip(t, zipEntry{"README.txt", "read me"}))

	pp := newTestPostProcessor(store)
	err := pp.Process(context.Background(), rel)
	require.ErrorIs(t, err, ErrWriteConflict)

	assert.Equal(t, "a remote file called lab", readFile(t, store, "CS101/lab"))
}

func TestPostProcessor_ExtractZip_Concurrent(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	rel := RelativePath("CS101/lab1.zip")
	writeFixture(t, store, rel, makeZip(t, zipEntry{"a.txt", "a"}, zipEntry{"b.txt", "b"}))

	pp := newTestPostProcessor(store)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = pp.Process(context.Background(), rel)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, "a", readFile(t, store, "CS101/lab1/a.txt"))
	assert.Equal(t, "b", readFile(t, store, "CS101/lab1/b.txt"))
}

func TestPostProcessor_ExtractZip_Failure_ZipSlip(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	rel := RelativePath("CS101/evil.zip")
	writeFixture(t, store, rel, makeZip(t,
		zipEntry{"fine.txt", "fine"},
		zipEntry{"../escaped.txt", "gotcha"},
	))

	pp := newTestPostProcessor(store)
	err := pp.Process(context.Background(), rel)
	require.ErrorIs(t, err, ErrUnsafeArchiveEntry)

	for _, p := range []RelativePath{"CS101/escaped.txt", "CS101/evil"} {
		exists, err := store.Exists(p)
		require.NoError(t, err)
		assert.False(t, exists, p)
	}

	exists, err := store.Exists(rel)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostProcessor_ExtractZip_Failure_Corrupt(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	rel := RelativePath("CS101/broken.zip")
	writeFixture(t, store, rel, []byte("this is not a zip file"))

	pp := newTestPostProcessor(store)
	require.Error(t, pp.Process(context.Background(), rel))

	// a later run may try again
	exists, err := store.Exists("CS101/broken")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPostProcessor_ExtractZip_Disabled(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	rel := RelativePath("CS101/lab1.zip")
	writeFixture(t, store, rel, makeZip(t, zipEntry{"a.txt", "a"}))

	pp := NewPostProcessor(store, PostProcessOptions{})
	require.NoError(t, pp.Process(context.Background(), rel))

	exists, err := store.Exists("CS101/lab1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPostProcessor_Slides_NoOp(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	for _, rel := range []RelativePath{"CS101/lecture.pptx", "CS101/old.PPT"} {
		writeFixture(t, store, rel, []byte("slides"))
	}

	pp := newTestPostProcessor(store)
	require.NoError(t, pp.Process(context.Background(), "CS101/lecture.pptx"))
	require.NoError(t, pp.Process(context.Background(), "CS101/old.PPT"))

	assert.Equal(t, []string{"lecture.pptx", "old.PPT"}, dirEntries(t, store, "CS101/x"))
}

func TestPostProcessor_UnknownExtension(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	writeFixture(t, store, "CS101/notes.pdf", []byte("pdf"))
	writeFixture(t, store, "CS101/Makefile", []byte("all:"))

	pp := newTestPostProcessor(store)
	require.NoError(t, pp.Process(context.Background(), "CS101/notes.pdf"))
	require.NoError(t, pp.Process(context.Background(), "CS101/Makefile"))

	assert.Equal(t, []string{"Makefile", "notes.pdf"}, dirEntries(t, store, "CS101/x"))
}

func TestPostProcessor_ConvertHTML_Success_Case(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	rel := RelativePath("CS101/Pages/welcome.html")
	writeFixture(t, store, rel, []byte(`<html><body>
<h1>Welcome</h1>
<p>See the <a href="/courses/1/files">course files</a>.</p>
</body></html>`))

	pp := newTestPostProcessor(store)
	require.NoError(t, pp.Process(context.Background(), rel))

	markdown := readFile(t, store, ".markdown/CS101/Pages/welcome.html.md")
	assert.True(t, strings.HasPrefix(markdown, "---\ntitle: Welcome\nsource: welcome.html\n---\n"), markdown)
	assert.Contains(t, markdown, "# Welcome")
	assert.Contains(t, markdown, "[course files](https://canvas.example.edu/courses/1/files)")
}

func TestPostProcessor_ConvertHTML_KeepsExistingRendition(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	writeFixture(t, store, "CS101/page.htm", []byte("<p>remote</p>"))
	writeFixture(t, store, ".markdown/CS101/page.htm.md", []byte("converted last time"))

	pp := newTestPostProcessor(store)
	require.NoError(t, pp.Process(context.Background(), "CS101/page.htm"))

	assert.Equal(t, "converted last time", readFile(t, store, ".markdown/CS101/page.htm.md"))
}

func TestPostProcessor_ConvertHTML_LeavesCourseTreeAlone(t *testing.T) {
	t.Parallel()

	store := newMemStore(t)
	writeFixture(t, store, "CS101/page.html", []byte("<p>one</p>"))
	writeFixture(t, store, "CS101/page.htm", []byte("<p>two</p>"))

	pp := newTestPostProcessor(store)
	require.NoError(t, pp.Process(context.Background(), "CS101/page.html"))
	require.NoError(t, pp.Process(context.Background(), "CS101/page.htm"))

	assert.Equal(t, []string{"page.htm", "page.html"}, dirEntries(t, store, "CS101/x"))
	assert.Equal(t, []string{"page.htm.md", "page.html.md"}, dirEntries(t, store, ".markdown/CS101/x"))
}

func TestMarkdownPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RelativePath(".markdown/CS101/Pages/welcome.html.md"), MarkdownPath("CS101/Pages/welcome.html"))
	assert.Equal(t, RelativePath(".markdown/CS101/notes.htm.md"), MarkdownPath("CS101/notes.htm"))
}

func TestHTMLTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Week 1", htmlTitle("<html><head><title> Week 1 </title></head><body><h1>Other</h1></body></html>"))
	assert.Equal(t, "Heading", htmlTitle("<h1>Heading</h1><h1>Second</h1>"))
	assert.Equal(t, "", htmlTitle("<p>no title here</p>"))
}
