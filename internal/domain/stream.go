package domain

import (
	"fmt"
	"strings"
)

// ChunkMode says how a stream chunk relates to the text received so far.
type ChunkMode int

const (
	// DeltaChunks carry only the new text; each is appended.
	DeltaChunks ChunkMode = iota
	// SnapshotChunks carry the whole running text; each must extend the last.
	SnapshotChunks
)

// StreamBuffer accumulates the chunks of one streamed reply in arrival order.
// The buffer only grows. It is not safe for concurrent writers; a message has
// exactly one.
type StreamBuffer struct {
	mode ChunkMode
	next int
	text strings.Builder
}

func NewStreamBuffer(mode ChunkMode) *StreamBuffer {
	return &StreamBuffer{mode: mode}
}

// Apply adds chunk number seq (0-based) and returns the running text.
// A chunk that is not the next in sequence, or a snapshot that would shrink
// or rewrite the buffer, is rejected with ErrOutOfOrder.
func (b *StreamBuffer) Apply(seq int, chunk string) (string, error) {
	if seq != b.next {
		return b.text.String(), fmt.Errorf("%w: got chunk %d, want %d", ErrOutOfOrder, seq, b.next)
	}

	switch b.mode {
	case SnapshotChunks:
		cur := b.text.String()
		if !strings.HasPrefix(chunk, cur) {
			return cur, fmt.Errorf("%w: snapshot %d does not extend the buffer", ErrOutOfOrder, seq)
		}
		b.text.WriteString(chunk[len(cur):])
	default:
		b.text.WriteString(chunk)
	}

	b.next++
	return b.text.String(), nil
}

// Len is the number of chunks applied.
func (b *StreamBuffer) Len() int { return b.next }

func (b *StreamBuffer) String() string { return b.text.String() }
