package backends

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

type Kind string

const (
	KindOpenAI      Kind = "openai"
	KindHuggingFace Kind = "huggingface"
	KindLocal       Kind = "local"
	KindGemini      Kind = "gemini"
)

var (
	ErrUnsupportedBackend = errors.New("unsupported backend")
	ErrBackendTransport   = errors.New("backend transport error")
	ErrBackendResponse    = errors.New("backend response error")
)

// Descriptor selects a backend and how to reach it. It is owned by the
// configuration and never modified here.
type Descriptor struct {
	Kind         Kind
	Model        string
	Endpoint     string
	APIKey       string
	Organization string
	Timeout      time.Duration
}

func (d Descriptor) String() string {
	if d.Model == "" {
		return string(d.Kind)
	}
	return string(d.Kind) + "/" + d.Model
}

// Backend turns an instruction into generated text.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

func Kinds() []Kind {
	return []Kind{KindOpenAI, KindHuggingFace, KindLocal, KindGemini}
}

// New builds the backend for d.Kind. No request is sent.
func New(ctx context.Context, d Descriptor) (Backend, error) {
	switch d.Kind {
	case KindOpenAI:
		return NewOpenAI(d), nil
	case KindHuggingFace:
		return NewHuggingFace(d), nil
	case KindLocal:
		return NewLocal(d), nil
	case KindGemini:
		return NewGemini(ctx, d)
	default:
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnsupportedBackend, d.Kind, Kinds())
	}
}

// Dispatcher resolves instructions against the backend a descriptor names.
// Backends are built once per descriptor and reused.
type Dispatcher struct {
	wrap     func(Backend) Backend
	mu       sync.Mutex
	backends map[Descriptor]Backend
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{backends: make(map[Descriptor]Backend)}
}

// NewRetryingDispatcher wraps every backend it builds with WithRetry.
func NewRetryingDispatcher(attempts int, base time.Duration, logger *log.Logger) *Dispatcher {
	d := NewDispatcher()
	if attempts > 1 {
		d.wrap = func(b Backend) Backend { return WithRetry(b, attempts, base, logger) }
	}
	return d
}

func (d *Dispatcher) Generate(ctx context.Context, text string, desc Descriptor) (string, error) {
	b, err := d.backend(ctx, desc)
	if err != nil {
		return "", err
	}
	return b.Generate(ctx, text)
}

func (d *Dispatcher) backend(ctx context.Context, desc Descriptor) (Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if b, ok := d.backends[desc]; ok {
		return b, nil
	}
	b, err := New(ctx, desc)
	if err != nil {
		return nil, err
	}
	if d.wrap != nil {
		b = d.wrap(b)
	}
	d.backends[desc] = b
	return b, nil
}
