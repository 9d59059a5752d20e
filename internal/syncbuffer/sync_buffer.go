// Package syncbuffer is a log sink that tests can read while spans are still being written.
package syncbuffer

import (
	"bytes"
	"strings"
	"sync"
)

type SyncBuffer struct {
	mu  sync.RWMutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.buf.String()
}

// Lines returns the complete lines written so far.
func (b *SyncBuffer) Lines() []string {
	s := b.String()
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	} else {
		return nil
	}
	return strings.Split(s, "\n")
}

// Matching returns the complete lines containing substr.
func (b *SyncBuffer) Matching(substr string) []string {
	var lines []string
	for _, l := range b.Lines() {
		if strings.Contains(l, substr) {
			lines = append(lines, l)
		}
	}
	return lines
}
