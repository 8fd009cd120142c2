package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"flag-arena/internal/game"
)

// Separator ends every delimited client command
var Separator = []byte(":D/")

// Delimited is the legacy text framing: TAG || JSON || ":D/" from clients,
// bare concatenated JSON snapshots from the server.
//
// Framing assumes the separator never occurs inside a JSON payload. That holds
// for the numeric-only Player and Bullet documents.
type Delimited struct{}

// Name returns "delimited"
func (Delimited) Name() string { return "delimited" }

// Encode serializes payload under tag with the trailing separator
func (Delimited) Encode(tag Tag, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	name := tag.String()
	out := make([]byte, 0, len(name)+len(body)+len(Separator))
	out = append(out, name...)
	out = append(out, body...)
	return append(out, Separator...), nil
}

// EncodeCommand serializes a client command
func (d Delimited) EncodeCommand(cmd Command) ([]byte, error) {
	payload, err := cmd.payload()
	if err != nil {
		return nil, err
	}
	return d.Encode(cmd.Tag, payload)
}

// EncodeState serializes a snapshot as bare JSON
func (Delimited) EncodeState(state *game.GameState) ([]byte, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return body, nil
}

// NewCommandReader wraps r. Partial trailing data is kept across reads.
func (Delimited) NewCommandReader(r io.Reader) CommandReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxMessageSize)
	scanner.Split(splitSeparator)
	return &delimitedCommandReader{scanner: scanner}
}

// NewStateReader wraps r
func (Delimited) NewStateReader(r io.Reader) StateReader {
	return &delimitedStateReader{dec: json.NewDecoder(r)}
}

// splitSeparator is a bufio.SplitFunc yielding the bytes between separators.
// Whatever remains at EOF is returned as a final fragment.
func splitSeparator(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.Index(data, Separator); i >= 0 {
		return i + len(Separator), data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// DecodeFragment decodes one separator-free fragment
func DecodeFragment(fragment []byte) (Command, error) {
	if !utf8.Valid(fragment) {
		return Command{}, fmt.Errorf("%w: invalid utf-8", ErrMalformed)
	}
	for _, tag := range []Tag{TagPlayer, TagBullet} {
		name := tag.String()
		if bytes.HasPrefix(fragment, []byte(name)) {
			return decodeCommand(tag, fragment[len(name):])
		}
	}
	preview := fragment
	if len(preview) > 16 {
		preview = preview[:16]
	}
	return Command{}, fmt.Errorf("%w: unknown command %q", ErrMalformed, preview)
}

type delimitedCommandReader struct {
	scanner *bufio.Scanner
}

func (dr *delimitedCommandReader) Next() (Command, error) {
	for dr.scanner.Scan() {
		fragment := bytes.TrimSpace(dr.scanner.Bytes())
		if len(fragment) == 0 {
			continue
		}
		return DecodeFragment(fragment)
	}
	if err := dr.scanner.Err(); err != nil {
		return Command{}, fmt.Errorf("read command: %w", err)
	}
	return Command{}, io.EOF
}

type delimitedStateReader struct {
	dec *json.Decoder
}

func (dr *delimitedStateReader) Next() (*game.GameState, error) {
	var state game.GameState
	if err := dr.dec.Decode(&state); err != nil {
		return nil, err
	}
	return &state, nil
}
