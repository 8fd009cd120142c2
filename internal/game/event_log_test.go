package game

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"
)

// syncBuffer is a goroutine-safe bytes.Buffer for capturing writer output
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestEventLogWritesJSONL verifies events are flushed as JSON lines on Stop
func TestEventLogWritesJSONL(t *testing.T) {
	out := &syncBuffer{}
	el := NewEventLog()
	if err := el.StartWriter(out); err != nil {
		t.Fatalf("StartWriter failed: %v", err)
	}

	el.EmitSimple(EventTypePlayerJoin, 1, 7, PlayerJoinPayload{SpawnX: SpawnX, SpawnY: SpawnY})
	el.EmitSimple(EventTypeHit, 2, 8, HitPayload{ShooterID: 8, VictimID: 7})
	el.Stop()

	scanner := bufio.NewScanner(bytes.NewBufferString(out.String()))
	var lines []map[string]interface{}
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("Invalid JSON line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, m)
	}

	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0]["type"] != "player_join" {
		t.Errorf("Expected player_join, got %v", lines[0]["type"])
	}
	if lines[1]["type"] != "hit" {
		t.Errorf("Expected hit, got %v", lines[1]["type"])
	}
	if lines[0]["match_id"] != el.MatchID() {
		t.Errorf("Expected match id %s, got %v", el.MatchID(), lines[0]["match_id"])
	}
}

// TestEventLogNotRunning verifies Emit refuses events before Start
func TestEventLogNotRunning(t *testing.T) {
	el := NewEventLog()
	if el.EmitSimple(EventTypeScore, 1, 1, nil) {
		t.Error("Emit should fail before Start")
	}
}

// TestEventLogPerPlayerLimit verifies a single player cannot flood the log
func TestEventLogPerPlayerLimit(t *testing.T) {
	el := NewEventLog()
	el.StartWriter(nil)
	defer el.Stop()

	accepted := 0
	for i := 0; i < 100; i++ {
		if el.EmitSimple(EventTypeHit, 1, 42, nil) {
			accepted++
		}
	}
	if accepted >= 100 {
		t.Errorf("Expected per-player limiting, accepted all %d", accepted)
	}
	if el.GetDroppedCount() == 0 {
		t.Error("Expected dropped events to be counted")
	}
}

// TestEventTypeString verifies names for all event types
func TestEventTypeString(t *testing.T) {
	tests := map[EventType]string{
		EventTypePlayerJoin:   "player_join",
		EventTypePlayerLeave:  "player_leave",
		EventTypeFlagCapture:  "flag_capture",
		EventTypeFlagDrop:     "flag_drop",
		EventTypeScore:        "score",
		EventTypeHit:          "hit",
		EventTypeBoxDestroyed: "box_destroyed",
		EventTypeUnknown:      "unknown",
	}
	for et, want := range tests {
		if et.String() != want {
			t.Errorf("Expected %s, got %s", want, et.String())
		}
	}
}
