package session

import "sync"

// outputBuffer accumulates raw process output since the last clear. It is
// cleared exactly once per outbound command, before the write, so each wait
// cycle observes only that command's output.
type outputBuffer struct {
	mu   sync.RWMutex
	data []byte
}

func newOutputBuffer() *outputBuffer {
	return &outputBuffer{}
}

func (b *outputBuffer) Write(p []byte) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
}

func (b *outputBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

func (b *outputBuffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.data)
}

func (b *outputBuffer) Clear() {
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
}

// Tail returns up to n trailing bytes as a string.
func (b *outputBuffer) Tail(n int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n >= len(b.data) {
		return string(b.data)
	}
	return string(b.data[len(b.data)-n:])
}

// Slice returns the chunk at [offset, offset+limit) plus the total length.
// Out-of-range offsets yield an empty chunk.
func (b *outputBuffer) Slice(offset, limit int) (string, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := len(b.data)
	if offset < 0 || offset >= total {
		return "", total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return string(b.data[offset:end]), total
}
