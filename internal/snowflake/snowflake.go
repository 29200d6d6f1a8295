package snowflake

import (
	"fmt"
	"sync"
	"time"
)

// Custom epoch: January 1, 2024 00:00:00 UTC.
const epoch int64 = 1704067200000

// Bit layout: 41 bits timestamp, 10 bits node, 12 bits sequence.
const (
	nodeBits     = 10
	sequenceBits = 12

	maxNode     = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits
)

// Generator produces unique, time-ordered int64 IDs for new rows.
type Generator struct {
	mu       sync.Mutex
	node     int64
	sequence int64
	lastTime int64
}

// NewGenerator creates a generator for the given node ID, which must be in
// the range [0, 1023].
func NewGenerator(node int64) (*Generator, error) {
	if node < 0 || node > maxNode {
		return nil, fmt.Errorf("snowflake: node must be between 0 and %d", maxNode)
	}
	return &Generator{node: node}, nil
}

// Generate returns the next unique ID.
func (g *Generator) Generate() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli() - epoch

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// Sequence exhausted; spin until the next millisecond.
			for now <= g.lastTime {
				now = time.Now().UnixMilli() - epoch
			}
		}
	} else {
		g.sequence = 0
	}

	g.lastTime = now

	return (now << timestampShift) | (g.node << nodeShift) | g.sequence
}

// Timestamp returns the wall-clock time embedded in an ID.
func Timestamp(id int64) time.Time {
	return time.UnixMilli((id >> timestampShift) + epoch)
}
