package watcher

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// DefaultIgnore is appended to every configured ignore list.
var DefaultIgnore = []string{`/(^|[\/\\])\../`, "node_modules", "*.swp"}

// Ignore decides which paths never enter the pipeline. Entries written as
// /expr/ are regular expressions, everything else is a doublestar glob.
type Ignore struct {
	globs   []string
	regexps []*regexp.Regexp
}

func NewIgnore(patterns []string) (*Ignore, error) {
	ig := &Ignore{}
	for _, p := range append(append([]string{}, patterns...), DefaultIgnore...) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) > 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
			re, err := regexp.Compile(p[1 : len(p)-1])
			if err != nil {
				return nil, fmt.Errorf("ignore pattern %s: %w", p, err)
			}
			ig.regexps = append(ig.regexps, re)
			continue
		}
		ig.globs = append(ig.globs, p)
	}
	return ig, nil
}

// Match reports whether rel, a path relative to the watched root, is ignored.
// Globs are tried against the whole path, its base name and each segment.
func (ig *Ignore) Match(rel string) bool {
	if ig == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return false
	}
	for _, re := range ig.regexps {
		if re.MatchString(rel) {
			return true
		}
	}

	segments := strings.Split(rel, "/")
	for _, g := range ig.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, path.Base(rel)); ok {
			return true
		}
		for _, seg := range segments[:len(segments)-1] {
			if ok, _ := doublestar.Match(g, seg); ok {
				return true
			}
		}
	}
	return false
}
