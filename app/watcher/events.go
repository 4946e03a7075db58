package watcher

type Op int

const (
	OpAdded Op = iota + 1
	OpChanged
	OpRemoved
)

func (o Op) String() string {
	switch o {
	case OpAdded:
		return "added"
	case OpChanged:
		return "changed"
	case OpRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one filesystem notification. Only OpChanged reaches the pipeline.
type Event struct {
	Path string
	Op   Op
}
