package session

import "sync/atomic"

// Sequencer hands out correlation ids for one connection. The zero value
// starts at 1; 0 is reserved for untagged frames.
type Sequencer struct {
	last atomic.Uint64
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}
