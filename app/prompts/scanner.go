package prompts

import (
	"errors"
	"iter"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

type Kind string

const (
	KindSingleLine Kind = "single-line"
	KindMultiLine  Kind = "multi-line"
)

var ErrScan = errors.New("scan: file is not valid UTF-8 text")

var (
	multiLinePrompt  = regexp.MustCompile(`(?s)/\*>\s*(.*?)\s*</\*/`)
	singleLinePrompt = regexp.MustCompile(`//>[ \t]*(.*?)[ \t]*</`)
)

// Marker is an embedded instruction located in a file snapshot.
// Start and End are byte offsets of the whole token, delimiters included.
type Marker struct {
	Kind    Kind   `json:"kind"`
	Content string `json:"content"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// Scan yields the multi-line markers of content followed by its single-line
// markers. Matching happens while the sequence is ranged over.
func Scan(content string) iter.Seq[Marker] {
	return func(yield func(Marker) bool) {
		if !scanPattern(content, multiLinePrompt, KindMultiLine, yield) {
			return
		}
		scanPattern(content, singleLinePrompt, KindSingleLine, yield)
	}
}

func scanPattern(content string, re *regexp.Regexp, kind Kind, yield func(Marker) bool) bool {
	offset := 0
	for offset < len(content) {
		loc := re.FindStringSubmatchIndex(content[offset:])
		if loc == nil {
			return true
		}
		m := Marker{
			Kind:    kind,
			Content: strings.TrimSpace(content[offset+loc[2] : offset+loc[3]]),
			Start:   offset + loc[0],
			End:     offset + loc[1],
		}
		if !yield(m) {
			return false
		}
		offset = m.End
	}
	return true
}

// Parse scans a raw snapshot and returns its markers in ascending,
// non-overlapping order.
func Parse(content []byte) ([]Marker, error) {
	if !utf8.Valid(content) {
		return nil, ErrScan
	}
	var markers []Marker
	for m := range Scan(string(content)) {
		markers = append(markers, m)
	}
	return Normalize(markers), nil
}

// Normalize orders markers by Start and drops any marker that overlaps one
// kept before it. On equal Start the earlier marker in the input wins.
func Normalize(markers []Marker) []Marker {
	if len(markers) == 0 {
		return nil
	}
	sorted := make([]Marker, len(markers))
	copy(sorted, markers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	out := sorted[:0]
	cursor := 0
	for _, m := range sorted {
		if m.Start < cursor {
			continue
		}
		out = append(out, m)
		cursor = m.End
	}
	return out
}
