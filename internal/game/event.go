package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypePlayerJoin
	EventTypePlayerLeave
	EventTypeFlagCapture
	EventTypeFlagDrop
	EventTypeScore
	EventTypeHit
	EventTypeBoxDestroyed
)

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypePlayerJoin:
		return "player_join"
	case EventTypePlayerLeave:
		return "player_leave"
	case EventTypeFlagCapture:
		return "flag_capture"
	case EventTypeFlagDrop:
		return "flag_drop"
	case EventTypeScore:
		return "score"
	case EventTypeHit:
		return "hit"
	case EventTypeBoxDestroyed:
		return "box_destroyed"
	default:
		return "unknown"
	}
}

// MarshalJSON writes the type by name so the log stays readable
func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Event is one line of the JSONL event log
type Event struct {
	MatchID   string          `json:"match_id"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	TickNum   uint64          `json:"tick"`
	PlayerID  uint32          `json:"player_id,omitempty"` // Source player, also the rate-limit key
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// PlayerJoinPayload contains player join details
type PlayerJoinPayload struct {
	SpawnX float32 `json:"spawn_x"`
	SpawnY float32 `json:"spawn_y"`
}

// PlayerLeavePayload records the final score of a departing player
type PlayerLeavePayload struct {
	Score   int32 `json:"score"`
	HadFlag bool  `json:"had_flag"`
}

// FlagPayload records where the flag changed hands
type FlagPayload struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// ScorePayload records a flag-holding score tick
type ScorePayload struct {
	Score int32 `json:"score"`
}

// HitPayload contains one bullet-on-player hit
type HitPayload struct {
	ShooterID uint32  `json:"shooter_id"`
	VictimID  uint32  `json:"victim_id"`
	RespawnX  float32 `json:"respawn_x"`
	RespawnY  float32 `json:"respawn_y"`
}

// BoxPayload records a destroyed box and its replacement
type BoxPayload struct {
	Index int     `json:"index"`
	OldX  float32 `json:"old_x"`
	OldY  float32 `json:"old_y"`
	NewX  float32 `json:"new_x"`
	NewY  float32 `json:"new_y"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, playerID uint32, payload interface{}) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		PlayerID:  playerID,
		Payload:   EncodePayload(payload),
	}
}
