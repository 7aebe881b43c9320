package domain

import (
	"falken/pkg/diag"
	"strings"
	"sync"
	"testing"
)

type logEntry struct {
	level diag.Level
	msg   string
}

type logCapture struct {
	mu      sync.Mutex
	entries []logEntry
}

func (c *logCapture) record(level diag.Level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, logEntry{level: level, msg: msg})
}

func (c *logCapture) at(level diag.Level) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.entries {
		if e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}

func (c *logCapture) last() logEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return logEntry{}
	}
	return c.entries[len(c.entries)-1]
}

func (c *logCapture) contains(substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if strings.Contains(e.msg, substr) {
			return true
		}
	}
	return false
}

// newTestLogger returns a silent logger that records entries and never exits.
func newTestLogger(t *testing.T) (*diag.Logger, *logCapture) {
	t.Helper()
	capture := &logCapture{}
	log := diag.Discard(diag.WithAbortOnFatal(false))
	log.AddListener(capture.record)
	return log, capture
}

func mustAdd(t *testing.T, c *Container, spec FieldSpec) *Attribute {
	t.Helper()
	a, err := c.Add(spec)
	if err != nil {
		t.Fatalf("add %s: %v", spec.Name, err)
	}
	return a
}
