package bot

import (
	"errors"
	"io"
	"log"
	"net"
	"sync/atomic"

	"flag-arena/internal/game"
	"flag-arena/internal/protocol"
)

// StreamState keeps the most recent snapshot decoded from a server stream
type StreamState struct {
	latest   atomic.Pointer[game.GameState]
	received atomic.Uint64
	done     chan struct{}
}

// NewStreamState starts decoding snapshots from r until it fails or closes
func NewStreamState(r io.Reader, codec protocol.Codec) *StreamState {
	s := &StreamState{done: make(chan struct{})}
	go s.run(codec.NewStateReader(r))
	return s
}

func (s *StreamState) run(reader protocol.StateReader) {
	defer close(s.done)
	for {
		state, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("⚠️ Snapshot stream ended: %v", err)
			}
			return
		}
		s.latest.Store(state)
		s.received.Add(1)
	}
}

// Snapshot returns the latest decoded state, or nil before the first one
func (s *StreamState) Snapshot() *game.GameState {
	return s.latest.Load()
}

// Received returns how many snapshots have been decoded
func (s *StreamState) Received() uint64 {
	return s.received.Load()
}

// Done is closed when the stream ends
func (s *StreamState) Done() <-chan struct{} {
	return s.done
}
