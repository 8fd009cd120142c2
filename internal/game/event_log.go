package game

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"flag-arena/internal/ratelimit"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	EventBufferSize      = 1024                   // Ring buffer size
	MaxEventsPerSec      = 2000                   // Global rate limit
	MaxEventsPerPlayer   = 50                     // Per-player rate limit per second
	BatchFlushSize       = 64                     // Events per batch write
	BatchFlushInterval   = 100 * time.Millisecond // How often to flush
	PlayerLimiterCleanup = 5 * time.Minute        // Cleanup interval for player limiters
)

// EventLog is a bounded, rate-limited JSONL event sink.
// Emit never blocks the tick: when the ring is full the oldest event is dropped.
type EventLog struct {
	matchID string

	mu     sync.Mutex
	buffer [EventBufferSize]Event
	head   uint64 // next write position
	tail   uint64 // next read position
	seq    uint64

	globalLimiter  *rate.Limiter
	playerLimiters *ratelimit.Keyed[uint32]

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	out    io.Writer
	closer io.Closer
	enc    *json.Encoder

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
}

// NewEventLog creates an event log stamped with a fresh match id
func NewEventLog() *EventLog {
	return &EventLog{
		matchID:       uuid.NewString(),
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		playerLimiters: ratelimit.New[uint32](ratelimit.Config{
			PerSecond:       MaxEventsPerPlayer,
			Burst:           MaxEventsPerPlayer / 5,
			CleanupInterval: PlayerLimiterCleanup,
		}),
		stopChan: make(chan struct{}),
	}
}

// MatchID identifies this server run in every logged event
func (el *EventLog) MatchID() string {
	return el.matchID
}

// Start opens filePath for append and begins the async writer.
// An empty path keeps the ring buffer and stats running without any output.
func (el *EventLog) Start(filePath string) error {
	if filePath == "" {
		return el.StartWriter(nil)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	el.closer = file
	return el.StartWriter(file)
}

// StartWriter begins the async writer against w (nil discards output)
func (el *EventLog) StartWriter(w io.Writer) error {
	if !el.running.CompareAndSwap(false, true) {
		return nil
	}
	if w != nil {
		el.out = w
		el.enc = json.NewEncoder(w)
	}

	el.writerWg.Add(1)
	go el.writerLoop()
	return nil
}

// Stop flushes pending events and closes the output
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()
		el.playerLimiters.Stop()

		if el.closer != nil {
			el.closer.Close()
		}
	})
}

// Emit adds an event with rate limiting.
// Returns false if the event was rate limited or the log is not running.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}
	if event.PlayerID != 0 && !el.playerLimiters.Allow(event.PlayerID) {
		el.droppedCount.Add(1)
		return false
	}

	event.MatchID = el.matchID

	el.mu.Lock()
	el.seq++
	event.Sequence = el.seq
	if el.head-el.tail >= EventBufferSize {
		// Full: overwrite the oldest
		el.tail++
		el.droppedCount.Add(1)
	}
	el.buffer[el.head%EventBufferSize] = event
	el.head++
	el.mu.Unlock()

	el.totalCount.Add(1)
	return true
}

// EmitSimple is a convenience method to emit an event with automatic creation
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, playerID uint32, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, tickNum, playerID, payload))
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	for el.tail < el.head && len(batch) < BatchFlushSize {
		batch = append(batch, el.buffer[el.tail%EventBufferSize])
		el.tail++
	}
	return batch
}

func (el *EventLog) flushBatch(batch []Event) {
	if el.enc == nil {
		return
	}
	for _, event := range batch {
		if err := el.enc.Encode(event); err != nil {
			el.droppedCount.Add(1)
		}
	}
}

// GetStats returns event log counters
func (el *EventLog) GetStats() map[string]interface{} {
	el.mu.Lock()
	pending := el.head - el.tail
	el.mu.Unlock()

	return map[string]interface{}{
		"match_id": el.matchID,
		"total":    el.totalCount.Load(),
		"dropped":  el.droppedCount.Load(),
		"pending":  pending,
		"running":  el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return el.droppedCount.Load()
}

// GetTotalCount returns the total number of events accepted
func (el *EventLog) GetTotalCount() uint64 {
	return el.totalCount.Load()
}
