package watcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"GoInlineAI/app/backends"
	"GoInlineAI/app/clients"
	"GoInlineAI/app/prompts"
	"GoInlineAI/app/rewrite"
	"GoInlineAI/app/storage"
)

const (
	DefaultConcurrency = 4
	defaultHashCache   = 1024
)

// Generator resolves one instruction. *backends.Dispatcher satisfies it.
type Generator interface {
	Generate(ctx context.Context, text string, desc backends.Descriptor) (string, error)
}

type Options struct {
	Root           string
	Descriptor     backends.Descriptor
	Ignore         *Ignore
	Concurrency    int
	InsertNewlines bool
	HashCacheSize  int
	Logger         *log.Logger
}

// Result summarizes one pipeline run over a path.
type Result struct {
	RunID   string
	Path    string
	Markers int
	Applied int
	Failed  int
	Written bool
	Errors  []string
}

type Controller struct {
	opts     Options
	gen      Generator
	journal  storage.Interface
	notifier clients.Interface
	log      *log.Logger

	// last content written per path, used to recognise our own writes
	written *lru.Cache[string, [32]byte]

	mu     sync.Mutex
	queues map[string]*pathQueue
	wg     sync.WaitGroup
}

type pathQueue struct {
	pending bool
}

func NewController(opts Options, gen Generator, journal storage.Interface, notifier clients.Interface) (*Controller, error) {
	if gen == nil {
		return nil, errors.New("watcher: generator is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.HashCacheSize <= 0 {
		opts.HashCacheSize = defaultHashCache
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if journal == nil {
		journal = storage.Discard{}
	}
	written, err := lru.New[string, [32]byte](opts.HashCacheSize)
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	return &Controller{
		opts:     opts,
		gen:      gen,
		journal:  journal,
		notifier: notifier,
		log:      opts.Logger,
		written:  written,
		queues:   make(map[string]*pathQueue),
	}, nil
}

// Ignored reports whether path is filtered out by the ignore matcher.
func (c *Controller) Ignored(path string) bool {
	rel := path
	if c.opts.Root != "" {
		if r, err := filepath.Rel(c.opts.Root, path); err == nil {
			rel = r
		}
	}
	return c.opts.Ignore.Match(rel)
}

// Submit queues a pipeline run for ev.Path. Runs for one path never overlap:
// changes arriving mid-run collapse into a single follow-up run.
func (c *Controller) Submit(ctx context.Context, ev Event) bool {
	if ev.Op != OpChanged {
		return false
	}
	if c.Ignored(ev.Path) {
		return false
	}
	path := filepath.Clean(ev.Path)

	c.mu.Lock()
	if q, ok := c.queues[path]; ok {
		q.pending = true
		c.mu.Unlock()
		return true
	}
	c.queues[path] = &pathQueue{}
	c.wg.Add(1)
	c.mu.Unlock()

	go c.drain(ctx, path)
	return true
}

func (c *Controller) drain(ctx context.Context, path string) {
	defer c.wg.Done()
	for {
		if ctx.Err() == nil {
			if _, err := c.Process(ctx, path); err != nil {
				c.log.Printf("❌ %s: %v\n", path, err)
			}
		}

		c.mu.Lock()
		q := c.queues[path]
		if !q.pending || ctx.Err() != nil {
			delete(c.queues, path)
			c.mu.Unlock()
			return
		}
		q.pending = false
		c.mu.Unlock()
	}
}

// Run feeds events into Submit until ctx is done or events is closed, then
// waits for queued runs to finish.
func (c *Controller) Run(ctx context.Context, events <-chan Event) {
	defer c.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.Submit(ctx, ev)
		}
	}
}

func (c *Controller) Wait() {
	c.wg.Wait()
}

type outcome struct {
	text string
	err  error
}

// Process runs the pipeline once for path: read, scan, dispatch every marker,
// splice the successful results and write the file back atomically.
func (c *Controller) Process(ctx context.Context, path string) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Path: path}

	info, err := os.Stat(path)
	if err != nil {
		return res, fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return res, nil
	}

	snapshot, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read: %w", err)
	}
	sum := blake3.Sum256(snapshot)
	if last, ok := c.written.Get(path); ok && last == sum {
		return res, nil
	}

	markers, err := prompts.Parse(snapshot)
	if err != nil {
		return res, err
	}
	res.Markers = len(markers)
	if len(markers) == 0 {
		return res, nil
	}
	c.log.Printf("🔍 %s: %d marker(s) found\n", path, len(markers))

	outcomes := c.dispatch(ctx, markers)
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	var reps []rewrite.Replacement
	records := make([]storage.Record, 0, len(markers))
	for i, m := range markers {
		rec := storage.Record{
			RunID:   res.RunID,
			Path:    path,
			Kind:    string(m.Kind),
			Start:   m.Start,
			End:     m.End,
			Prompt:  m.Content,
			Backend: c.opts.Descriptor.String(),
		}
		if o := outcomes[i]; o.err != nil {
			res.Failed++
			msg := fmt.Sprintf("marker %d [%d,%d): %v", i+1, m.Start, m.End, o.err)
			res.Errors = append(res.Errors, msg)
			c.log.Printf("⚠️ %s: %s\n", path, msg)
			rec.Status, rec.Output = storage.StatusFailed, o.err.Error()
		} else {
			text := o.text
			if c.opts.InsertNewlines {
				text = "\n" + text + "\n"
			}
			reps = append(reps, rewrite.Replacement{Start: m.Start, End: m.End, Text: text})
			rec.Status, rec.Output = storage.StatusApplied, o.text
		}
		records = append(records, rec)
	}

	if len(reps) > 0 {
		written, err := c.write(path, snapshot, reps)
		if err != nil {
			return res, err
		}
		if !written {
			return res, nil
		}
		res.Written = true
		res.Applied = len(reps)
		c.log.Printf("✅ %s: %d marker(s) applied, %d failed\n", path, res.Applied, res.Failed)
	}

	if res.Written || res.Failed > 0 {
		c.record(ctx, res, records)
	}
	return res, nil
}

func (c *Controller) dispatch(ctx context.Context, markers []prompts.Marker) []outcome {
	outcomes := make([]outcome, len(markers))
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	for i, m := range markers {
		g.Go(func() error {
			text, err := c.gen.Generate(ctx, m.Content, c.opts.Descriptor)
			outcomes[i] = outcome{text: text, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// write splices reps into snapshot and replaces the file, unless the file no
// longer matches the snapshot. In that case nothing is written and the newer
// change, already queued behind this run, redoes the work.
func (c *Controller) write(path string, snapshot []byte, reps []rewrite.Replacement) (bool, error) {
	out, err := rewrite.Apply(string(snapshot), reps)
	if err != nil {
		return false, err
	}

	current, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("%w: re-read: %w", rewrite.ErrRewrite, err)
	}
	if !bytes.Equal(current, snapshot) {
		c.log.Printf("⏭️ %s changed while generating, discarding run\n", path)
		return false, nil
	}

	if err := rewrite.WriteFile(path, []byte(out)); err != nil {
		return false, err
	}
	c.written.Add(path, blake3.Sum256([]byte(out)))
	return true, nil
}

func (c *Controller) record(ctx context.Context, res *Result, records []storage.Record) {
	now := time.Now()
	for _, rec := range records {
		rec.CreatedAt = now
		if err := c.journal.SaveRecord(ctx, rec); err != nil {
			c.log.Printf("⚠️ Error saving record for %s: %v\n", res.Path, err)
		}
	}
	if c.notifier == nil {
		return
	}
	report := clients.Report{
		RunID:   res.RunID,
		Path:    res.Path,
		Backend: c.opts.Descriptor.String(),
		Applied: res.Applied,
		Failed:  res.Failed,
		Errors:  res.Errors,
	}
	if err := c.notifier.Notify(ctx, report); err != nil {
		c.log.Printf("⚠️ Error notifying run %s: %v\n", res.RunID, err)
	}
}
