package messages

import "encoding/json"

// Winner labels carried by game_over
const (
	WinnerWhite = "Player 1"
	WinnerBlack = "Player 2"
	WinnerDraw  = "Draw"
)

// OutboundMessage is how we wrap responses before sending
// them to the client
type OutboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// InitGamePayload tells a participant its color and the agreed allotment
type InitGamePayload struct {
	Color       string `json:"color"`
	TimeControl int    `json:"timeControl"`
}

// UpdateTimePayload carries both remaining times in seconds
type UpdateTimePayload struct {
	W int `json:"w"`
	B int `json:"b"`
}

type GameOverPayload struct {
	Winner string `json:"winner"`
	Reason string `json:"reason,omitempty"`
}

// InitGame builds the server->client init_game notification.
func InitGame(color string, timeControl int) OutboundMessage {
	return OutboundMessage{
		Type:    TypeInitGame,
		Payload: InitGamePayload{Color: color, TimeControl: timeControl},
	}
}

// MoveRelay echoes an accepted move body back to both players.
func MoveRelay(raw json.RawMessage) OutboundMessage {
	return OutboundMessage{
		Type:    TypeMove,
		Payload: MovePayload{Move: raw},
	}
}

func UpdateTime(white, black int) OutboundMessage {
	return OutboundMessage{
		Type:    TypeUpdateTime,
		Payload: UpdateTimePayload{W: white, B: black},
	}
}

func GameOver(winner, reason string) OutboundMessage {
	return OutboundMessage{
		Type:    TypeGameOver,
		Payload: GameOverPayload{Winner: winner, Reason: reason},
	}
}
