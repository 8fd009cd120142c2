package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"flag-arena/internal/game"
)

// Frame header layout (little endian):
//
//	[0:2] magic 0x4641 ("FA")
//	[2]   tag
//	[3]   reserved, zero
//	[4:8] body length
const (
	FrameMagic uint16 = 0x4641
	HeaderSize        = 8
)

// Header is the fixed frame prefix
type Header struct {
	Magic    uint16
	Tag      Tag
	Reserved byte
	Length   uint32
}

// AppendFrame appends a framed message to dst
func AppendFrame(dst []byte, tag Tag, body []byte) ([]byte, error) {
	if len(body) > MaxMessageSize {
		return dst, fmt.Errorf("message too large: %d > %d", len(body), MaxMessageSize)
	}
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], FrameMagic)
	hdr[2] = byte(tag)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(body)))
	dst = append(dst, hdr[:]...)
	return append(dst, body...), nil
}

// ReadFrame reads one frame. Bad magic and oversize lengths are fatal because
// the stream can no longer be trusted to be aligned.
func ReadFrame(r io.Reader) (Tag, []byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return TagUnknown, nil, fmt.Errorf("read header: %w", err)
	}

	h := Header{
		Magic:    binary.LittleEndian.Uint16(hdr[0:2]),
		Tag:      Tag(hdr[2]),
		Reserved: hdr[3],
		Length:   binary.LittleEndian.Uint32(hdr[4:8]),
	}
	if h.Magic != FrameMagic {
		return TagUnknown, nil, fmt.Errorf("bad frame magic 0x%04x", h.Magic)
	}
	if h.Length > MaxMessageSize {
		return TagUnknown, nil, fmt.Errorf("message too large: %d > %d", h.Length, MaxMessageSize)
	}

	body := make([]byte, h.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return TagUnknown, nil, fmt.Errorf("read body: %w", err)
	}
	return h.Tag, body, nil
}

// Framed is the length-prefixed codec
type Framed struct{}

// Name returns "framed"
func (Framed) Name() string { return "framed" }

// EncodeCommand frames a client command
func (Framed) EncodeCommand(cmd Command) ([]byte, error) {
	payload, err := cmd.payload()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Tag, err)
	}
	return AppendFrame(make([]byte, 0, HeaderSize+len(body)), cmd.Tag, body)
}

// EncodeState frames a snapshot
func (Framed) EncodeState(state *game.GameState) ([]byte, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return AppendFrame(make([]byte, 0, HeaderSize+len(body)), TagState, body)
}

// NewCommandReader wraps r
func (Framed) NewCommandReader(r io.Reader) CommandReader {
	return &framedCommandReader{r: bufio.NewReader(r)}
}

// NewStateReader wraps r
func (Framed) NewStateReader(r io.Reader) StateReader {
	return &framedStateReader{r: bufio.NewReader(r)}
}

type framedCommandReader struct {
	r *bufio.Reader
}

func (fr *framedCommandReader) Next() (Command, error) {
	tag, body, err := ReadFrame(fr.r)
	if err != nil {
		return Command{}, err
	}
	return decodeCommand(tag, body)
}

type framedStateReader struct {
	r *bufio.Reader
}

func (fr *framedStateReader) Next() (*game.GameState, error) {
	for {
		tag, body, err := ReadFrame(fr.r)
		if err != nil {
			return nil, err
		}
		if tag != TagState {
			continue
		}
		var state game.GameState
		if err := json.Unmarshal(body, &state); err != nil {
			return nil, fmt.Errorf("%w: state: %v", ErrMalformed, err)
		}
		return &state, nil
	}
}
