package clients

import (
	"context"
	"fmt"
	"strings"
)

// Interface receives a summary after every pipeline run that dispatched at
// least one marker.
type Interface interface {
	Notify(ctx context.Context, report Report) error
}

type Report struct {
	RunID   string
	Path    string
	Backend string
	Applied int
	Failed  int
	Errors  []string
}

func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d applied, %d failed (%s, run %s)", r.Path, r.Applied, r.Failed, r.Backend, r.RunID)
	for _, e := range r.Errors {
		sb.WriteString("\n- ")
		sb.WriteString(e)
	}
	return sb.String()
}
