package game

import "sync/atomic"

// SnapshotStore publishes the latest per-tick clone for lock-free readers
// (HTTP API, spectator hub, in-process bots).
//
// Published states are immutable: the engine never touches a clone after
// Publish, and readers must not modify what Latest returns.
type SnapshotStore struct {
	latest   atomic.Pointer[GameState]
	sequence atomic.Uint64
}

// Publish makes state the latest snapshot and returns its sequence number
func (s *SnapshotStore) Publish(state *GameState) uint64 {
	s.latest.Store(state)
	return s.sequence.Add(1)
}

// Latest returns the most recent snapshot, or nil before the first Publish
func (s *SnapshotStore) Latest() *GameState {
	return s.latest.Load()
}

// Sequence returns how many snapshots have been published
func (s *SnapshotStore) Sequence() uint64 {
	return s.sequence.Load()
}
