// Package protocol implements the arena wire format: a big-endian u32
// handshake followed by tagged JSON commands (client to server) and whole
// GameState documents (server to client).
//
// Two framings are available. Framed puts an 8-byte header in front of every
// message. Delimited is the legacy TAG||JSON||":D/" text framing spoken by
// older clients.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"flag-arena/internal/game"
)

// Tag is the message discriminant, decoded before the payload
type Tag byte

const (
	TagUnknown Tag = iota
	TagPlayer
	TagBullet
	TagState
)

// String returns the tag's wire name
func (t Tag) String() string {
	switch t {
	case TagPlayer:
		return "PLAYER"
	case TagBullet:
		return "BULLET"
	case TagState:
		return "STATE"
	default:
		return "UNKNOWN"
	}
}

// ParseTag maps a wire name back to its Tag
func ParseTag(name string) Tag {
	switch name {
	case "PLAYER":
		return TagPlayer
	case "BULLET":
		return TagBullet
	case "STATE":
		return TagState
	default:
		return TagUnknown
	}
}

const (
	// MaxMessageSize caps a single command or snapshot body
	MaxMessageSize = 1024 * 1024

	// HandshakeSize is the width of the player id sent on connect
	HandshakeSize = 4
)

// ErrMalformed marks a single bad fragment. The stream is still usable and
// the caller should log it and keep reading.
var ErrMalformed = errors.New("malformed message")

// Command is one decoded client command. Exactly one of Player or Bullet is
// set, matching Tag.
type Command struct {
	Tag    Tag
	Player *game.Player
	Bullet *game.Bullet
}

// PlayerCommand wraps a position update
func PlayerCommand(p game.Player) Command {
	return Command{Tag: TagPlayer, Player: &p}
}

// BulletCommand wraps a fired bullet
func BulletCommand(b game.Bullet) Command {
	return Command{Tag: TagBullet, Bullet: &b}
}

// payload returns the value to serialize for c
func (c Command) payload() (interface{}, error) {
	switch c.Tag {
	case TagPlayer:
		if c.Player == nil {
			return nil, fmt.Errorf("player command without payload")
		}
		return c.Player, nil
	case TagBullet:
		if c.Bullet == nil {
			return nil, fmt.Errorf("bullet command without payload")
		}
		return c.Bullet, nil
	default:
		return nil, fmt.Errorf("cannot encode tag %s as a command", c.Tag)
	}
}

// decodeCommand decodes body according to an already-read tag
func decodeCommand(tag Tag, body []byte) (Command, error) {
	switch tag {
	case TagPlayer:
		var p game.Player
		if err := json.Unmarshal(body, &p); err != nil {
			return Command{}, fmt.Errorf("%w: player: %v", ErrMalformed, err)
		}
		return Command{Tag: TagPlayer, Player: &p}, nil
	case TagBullet:
		var b game.Bullet
		if err := json.Unmarshal(body, &b); err != nil {
			return Command{}, fmt.Errorf("%w: bullet: %v", ErrMalformed, err)
		}
		return Command{Tag: TagBullet, Bullet: &b}, nil
	default:
		return Command{}, fmt.Errorf("%w: unexpected tag %d", ErrMalformed, byte(tag))
	}
}

// CommandReader yields client commands from a stream. An error wrapping
// ErrMalformed is recoverable; any other error ends the stream.
type CommandReader interface {
	Next() (Command, error)
}

// StateReader yields server snapshots from a stream
type StateReader interface {
	Next() (*game.GameState, error)
}

// Codec is a complete framing for both directions
type Codec interface {
	Name() string
	EncodeCommand(cmd Command) ([]byte, error)
	EncodeState(state *game.GameState) ([]byte, error)
	NewCommandReader(r io.Reader) CommandReader
	NewStateReader(r io.Reader) StateReader
}

// ForName returns the codec for a config value ("framed" or "delimited")
func ForName(name string) (Codec, error) {
	switch name {
	case "", "framed":
		return Framed{}, nil
	case "delimited":
		return Delimited{}, nil
	default:
		return nil, fmt.Errorf("unknown wire format %q", name)
	}
}

// WriteHandshake sends the assigned player id
func WriteHandshake(w io.Writer, id uint32) error {
	var buf [HandshakeSize]byte
	binary.BigEndian.PutUint32(buf[:], id)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}
	return nil
}

// ReadHandshake receives the assigned player id
func ReadHandshake(r io.Reader) (uint32, error) {
	var buf [HandshakeSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read handshake: %w", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}
