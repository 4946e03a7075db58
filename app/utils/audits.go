package utils

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const (
	colorReset = "\033[0m"
	ColorRed   = "\033[31m"
	ColorCyan  = "\033[36m"
)

// AuditLogger is a log.Logger that tees every line to the console, an
// optional log file and a fixed-size ring buffer of recent lines.
type AuditLogger struct {
	*log.Logger
	file    *os.File
	mu      sync.RWMutex
	buf     []string
	cap     int
	start   int
	size    int
	lineBuf bytes.Buffer
}

type colorWriter struct {
	w     io.Writer
	color string
}

// NewAuditLogger writes to out and, when logDir is set, appends to
// logDir/<name>.log.
func NewAuditLogger(out io.Writer, logDir, name, color string, capacity int) (*AuditLogger, error) {
	if capacity <= 0 {
		capacity = 1
	}
	audit := &AuditLogger{
		buf: make([]string, capacity),
		cap: capacity,
	}

	writers := []io.Writer{colorWriter{w: out, color: color}}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(filepath.Join(logDir, fmt.Sprintf("%s.log", name)),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		audit.file = file
		writers = append(writers, file)
	}
	writers = append(writers, audit)

	audit.Logger = log.New(io.MultiWriter(writers...), fmt.Sprintf("[%s] ", name), log.LstdFlags)
	return audit, nil
}

func (a *AuditLogger) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func (cw colorWriter) Write(p []byte) (int, error) {
	if cw.color == "" {
		return cw.w.Write(p)
	}
	colored := append([]byte(cw.color), p...)
	colored = append(colored, []byte(colorReset)...)
	if _, err := cw.w.Write(colored); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (a *AuditLogger) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, _ := a.lineBuf.Write(p)
	for {
		b := a.lineBuf.Bytes()
		idx := bytes.IndexByte(b, '\n')
		if idx < 0 {
			break
		}
		line := string(b[:idx])
		a.lineBuf.Next(idx + 1)
		a.push(line)
	}
	return n, nil
}

func (a *AuditLogger) push(s string) {
	if a.size < a.cap {
		pos := (a.start + a.size) % a.cap
		a.buf[pos] = s
		a.size++
		return
	}
	a.buf[a.start] = s
	a.start = (a.start + 1) % a.cap
}

func (a *AuditLogger) GetLastLogs(n int) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if n > a.size {
		n = a.size
	}
	out := make([]string, 0, n)
	for i := a.size - n; i < a.size; i++ {
		pos := (a.start + i) % a.cap
		out = append(out, a.buf[pos])
	}
	return out
}

func (a *AuditLogger) ClearBuffer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.start = 0
	a.size = 0
	a.buf = make([]string, a.cap)
	a.lineBuf.Reset()
}
