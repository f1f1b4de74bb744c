// Package messages defines the JSON envelopes exchanged with clients.
package messages

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message types shared by both directions of the channel.
const (
	TypeInitGame   = "init_game"
	TypeMove       = "move"
	TypeUpdateTime = "update_time"
	TypeGameOver   = "game_over"
)

// ErrMalformed is returned when an inbound payload cannot be used.
var ErrMalformed = errors.New("malformed message")

// InboundMessage is the generic wrapper for messages coming from the client.
// The "type" field tells us the action; "payload" is the data we parse further.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// InitGameRequest asks to be matched with the next waiting player
type InitGameRequest struct {
	TimeControl int `json:"timeControl"`
}

// MovePayload wraps a move. Move is kept raw so it can be relayed verbatim.
type MovePayload struct {
	Move json.RawMessage `json:"move"`
}

// Move is the decoded form of a move body
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// ParseInitGame decodes an init_game request payload.
func ParseInitGame(raw json.RawMessage) (InitGameRequest, error) {
	var req InitGameRequest
	if len(raw) == 0 {
		return req, fmt.Errorf("init_game: empty payload: %w", ErrMalformed)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("init_game: %w: %v", ErrMalformed, err)
	}
	return req, nil
}

// ParseMovePayload decodes the outer move payload and returns the raw move body.
func ParseMovePayload(raw json.RawMessage) (json.RawMessage, error) {
	var payload MovePayload
	if len(raw) == 0 {
		return nil, fmt.Errorf("move: empty payload: %w", ErrMalformed)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("move: %w: %v", ErrMalformed, err)
	}
	if len(payload.Move) == 0 || string(payload.Move) == "null" {
		return nil, fmt.Errorf("move: missing move: %w", ErrMalformed)
	}
	return payload.Move, nil
}

// DecodeMove parses a raw move body. Squares are required, promotion is optional.
func DecodeMove(raw json.RawMessage) (Move, error) {
	var m Move
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("move body: %w: %v", ErrMalformed, err)
	}

	m.From = strings.ToLower(strings.TrimSpace(m.From))
	m.To = strings.ToLower(strings.TrimSpace(m.To))
	m.Promotion = strings.ToLower(strings.TrimSpace(m.Promotion))

	if !isSquare(m.From) || !isSquare(m.To) {
		return m, fmt.Errorf("move body: bad square %q-%q: %w", m.From, m.To, ErrMalformed)
	}
	if m.Promotion != "" && (len(m.Promotion) != 1 || !strings.Contains("qrbn", m.Promotion)) {
		return m, fmt.Errorf("move body: bad promotion %q: %w", m.Promotion, ErrMalformed)
	}

	return m, nil
}

// UCI renders the move in long algebraic (UCI) notation, e.g. "e7e8q".
func (m Move) UCI() string {
	return m.From + m.To + m.Promotion
}

func isSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}
