package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("content"), 0o600))
	return p
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plan.pdf")
	writeFile(t, dir, "elevation.PNG")
	writeFile(t, dir, "notes.txt")
	writeFile(t, dir, ".hidden.pdf")

	sub := filepath.Join(dir, "floor2")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "floor2.jpg")

	paths, stats, err := ScanDirectory(dir, nil, true)
	require.NoError(t, err)
	assert.Len(t, paths, 3)
	assert.Equal(t, uint32(3), stats.Matched)
	for _, p := range paths {
		assert.NotContains(t, filepath.Base(p), "hidden")
		assert.NotEqual(t, ".txt", filepath.Ext(p))
	}
}

func TestScanDirectory_ExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plan.pdf")
	writeFile(t, dir, "photo.jpg")

	paths, _, err := ScanDirectory(dir, []string{".PDF"}, false)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "plan.pdf", filepath.Base(paths[0]))
}

func TestScanDirectory_EmptyRoot(t *testing.T) {
	_, _, err := ScanDirectory("  ", nil, false)
	assert.Error(t, err)
}

func TestStart_InitialScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plan.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	evCh, _, err := Start(ctx, Config{Roots: []string{dir}, InitialScan: true}, logger)
	require.NoError(t, err)

	select {
	case p := <-evCh:
		assert.Equal(t, "plan.pdf", filepath.Base(p))
	case <-time.After(2 * time.Second):
		t.Fatal("expected initial scan to emit the existing file")
	}
}

func TestStart_EmitsNewFiles(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	evCh, _, err := Start(ctx, Config{Roots: []string{dir}}, logger)
	require.NoError(t, err)

	writeFile(t, dir, "new-plan.pdf")
	writeFile(t, dir, "ignored.txt")

	select {
	case p := <-evCh:
		assert.Equal(t, "new-plan.pdf", filepath.Base(p))
	case <-time.After(3 * time.Second):
		t.Fatal("expected a watch event for the new document")
	}
}

func TestStart_DebouncedBurst(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	evCh, _, err := Start(ctx, Config{Roots: []string{dir}, Debounce: time.Millisecond}, logger)
	require.NoError(t, err)

	// a burst of creates while the debounce timer keeps firing; the race
	// detector flags any unsynchronized access to the pending set
	for i := 0; i < 500; i++ {
		writeFile(t, dir, "burst-"+strconv.Itoa(i)+".pdf")
	}

	seen := map[string]struct{}{}
	deadline := time.After(5 * time.Second)
	for len(seen) < 100 {
		select {
		case p := <-evCh:
			seen[filepath.Base(p)] = struct{}{}
		case <-deadline:
			t.Fatalf("only %d of the burst files were emitted", len(seen))
		}
	}
}

func TestStart_NoRoots(t *testing.T) {
	_, _, err := Start(context.Background(), Config{}, nil)
	assert.Error(t, err)
}
