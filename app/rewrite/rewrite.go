package rewrite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidSpan = errors.New("rewrite: invalid span")
	ErrRewrite     = errors.New("rewrite: write failed")
)

// Replacement swaps snapshot[Start:End] for Text.
type Replacement struct {
	Start int
	End   int
	Text  string
}

// Apply rewrites snapshot in one pass. Replacements must be in ascending
// order, inside the snapshot and must not overlap; offsets always refer to
// the original snapshot.
func Apply(snapshot string, replacements []Replacement) (string, error) {
	if len(replacements) == 0 {
		return snapshot, nil
	}

	grow := len(snapshot)
	cursor := 0
	for i, r := range replacements {
		if r.Start < cursor || r.End < r.Start || r.End > len(snapshot) {
			return "", fmt.Errorf("%w: #%d [%d,%d) after offset %d in %d bytes",
				ErrInvalidSpan, i, r.Start, r.End, cursor, len(snapshot))
		}
		grow += len(r.Text) - (r.End - r.Start)
		cursor = r.End
	}

	var sb strings.Builder
	sb.Grow(grow)
	cursor = 0
	for _, r := range replacements {
		sb.WriteString(snapshot[cursor:r.Start])
		sb.WriteString(r.Text)
		cursor = r.End
	}
	sb.WriteString(snapshot[cursor:])
	return sb.String(), nil
}

// WriteFile replaces path with content atomically: the data goes to a hidden
// temp file in the same directory which is then renamed over path. The
// original file mode is kept.
func WriteFile(path string, content []byte) (err error) {
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRewrite, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrRewrite, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrRewrite, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrRewrite, err)
	}
	if err = os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("%w: %w", ErrRewrite, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %w", ErrRewrite, err)
	}
	syncDir(dir)
	return nil
}

// syncDir best-effort fsyncs the parent directory so the rename persists.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	f.Sync()
}
