package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime/debug"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toothbrush/canvas-dump/canvas"
	"github.com/toothbrush/canvas-dump/internal/termfmt"
	"github.com/toothbrush/canvas-dump/localdump"
	"gopkg.in/yaml.v2"
)

type testFlags struct {
	progress    bool
	concurrency int
	baseDir     string
	tokenCmd    []string
}

func newTestCommand(f *testFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().BoolVar(&f.progress, "progress", true, "")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "")
	cmd.Flags().StringVar(&f.baseDir, "base-directory", "", "")
	cmd.Flags().StringSliceVar(&f.tokenCmd, "api-token-cmd", []string{}, "")
	return cmd
}

func TestBindFlags_FromYAML(t *testing.T) {
	t.Parallel()

	var parsed YamlConfig
	require.NoError(t, yaml.UnmarshalStrict([]byte(`
progress: false
concurrency: 4
base-directory: ~/canvas
api-token-cmd: [pass, show, canvas]
extract-zips: false
`), &parsed))

	var f testFlags
	cmd := newTestCommand(&f)
	require.NoError(t, bindFlags(cmd, parsed))

	assert.False(t, f.progress)
	assert.Equal(t, 4, f.concurrency)
	assert.Equal(t, "~/canvas", f.baseDir)
	assert.Equal(t, []string{"pass", "show", "canvas"}, f.tokenCmd)
}

func TestBindFlags_ExplicitFlagWins(t *testing.T) {
	t.Parallel()

	four := 4
	parsed := YamlConfig{Concurrency: &four, BaseDirectory: "/from/yaml"}

	var f testFlags
	cmd := newTestCommand(&f)
	require.NoError(t, cmd.Flags().Set("concurrency", "2"))
	require.NoError(t, bindFlags(cmd, parsed))

	assert.Equal(t, 2, f.concurrency)
	assert.Equal(t, "/from/yaml", f.baseDir)
	assert.True(t, f.progress, "unset keys keep the flag default")
}

func TestBindFlags_ZeroIsNotUnset(t *testing.T) {
	t.Parallel()

	var parsed YamlConfig
	require.NoError(t, yaml.UnmarshalStrict([]byte("concurrency: 0\n"), &parsed))

	var f testFlags
	cmd := newTestCommand(&f)
	require.NoError(t, cmd.Flags().Set("concurrency", "3"))
	// explicitly set, so YAML doesn't apply.
	require.NoError(t, bindFlags(cmd, parsed))
	assert.Equal(t, 3, f.concurrency)

	require.NotNil(t, parsed.Concurrency)
	assert.Equal(t, 0, *parsed.Concurrency)
}

func TestYamlConfig_UnknownKey(t *testing.T) {
	t.Parallel()

	var parsed YamlConfig
	err := yaml.UnmarshalStrict([]byte("base-dir: /oops\n"), &parsed)
	require.Error(t, err)
}

func TestResolveToken_Order(t *testing.T) {
	t.Parallel()

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(tokenEnvVar+"=from-file\n"), 0o600))

	noEnv := func(string) string { return "" }
	withEnv := func(key string) string {
		if key == tokenEnvVar {
			return "from-env"
		}
		return ""
	}

	token, err := resolveToken(tokenSources{Token: "explicit", Getenv: withEnv, EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "explicit", token)

	token, err = resolveToken(tokenSources{Getenv: withEnv, EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)

	token, err = resolveToken(tokenSources{Getenv: noEnv, EnvFile: envFile, Cmd: []string{"echo", "from-cmd"}})
	require.NoError(t, err)
	assert.Equal(t, "from-file", token)

	token, err = resolveToken(tokenSources{Getenv: noEnv, Cmd: []string{"echo", "from-cmd"}})
	require.NoError(t, err)
	assert.Equal(t, "from-cmd", token)
}

func TestResolveToken_Missing(t *testing.T) {
	t.Parallel()

	_, err := resolveToken(tokenSources{Getenv: func(string) string { return "" }})
	assert.ErrorIs(t, err, errNoToken)

	_, err = resolveToken(tokenSources{
		Getenv:  func(string) string { return "" },
		EnvFile: filepath.Join(t.TempDir(), "nope.env"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "couldn't read env file")
}

func TestResolveBaseDirectory(t *testing.T) {
	t.Parallel()

	_, err := resolveBaseDirectory("")
	require.Error(t, err)

	dir, err := resolveBaseDirectory("relative/dir")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))
	assert.Equal(t, "dir", filepath.Base(dir))
}

func TestPrintSummary(t *testing.T) {
	termfmt.SetEnabled(false)
	defer termfmt.SetEnabled(true)

	summary := localdump.Summary{Courses: []localdump.CourseReport{{
		Course: canvas.Course{ID: 1, Name: "CS101 Intro"},
		Dir:    "CS101",
		Outcomes: []localdump.FileOutcome{
			{Path: "CS101/a.pdf", State: localdump.PostProcessed, Bytes: 2048},
			{Path: "CS101/b.pdf", State: localdump.Skipped, SkipReason: localdump.SkipExists},
			{Path: "CS101/c.pdf", State: localdump.Failed, Kind: localdump.KindFetch, Err: errors.New("boom")},
		},
	}}}

	var out bytes.Buffer
	printSummary(&out, summary)

	assert.Contains(t, out.String(), "CS101        written 1, skipped 1, failed 1 (2.0 KiB)")
	assert.Contains(t, out.String(), "✗ CS101/c.pdf: boom")
	assert.Contains(t, out.String(), "Total: 1 written (2.0 KiB), 1 skipped, 1 failed")
	assert.Contains(t, out.String(), "fetch")
}

func TestPrintCourses(t *testing.T) {
	termfmt.SetEnabled(false)
	defer termfmt.SetEnabled(true)

	var out bytes.Buffer
	printCourses(&out, []canvas.Course{
		{ID: 2, Name: "MA1521 Calculus"},
		{ID: 1, Name: "CS1010/X Programming"},
	})

	assert.Equal(t, "courses:\n  - CS1010: CS1010/X Programming\n  - MA1521: MA1521 Calculus\n", out.String())
}

func TestDescribeBuild(t *testing.T) {
	t.Parallel()

	tagged := &debug.BuildInfo{Main: debug.Module{Version: "v0.3.1"}}
	assert.Equal(t, "v0.3.1", describeBuild(tagged))

	local := &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "3f2a9c1e0b7d5a4e8f6c2b1a0d9e8f7a6b5c4d3e"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	assert.Equal(t, "devel 3f2a9c1e0b7d+dirty", describeBuild(local))

	assert.Equal(t, "devel", describeBuild(&debug.BuildInfo{}))
}
