package game

import (
	"github.com/google/uuid"

	"github.com/tecu23/arena-server/pkg/messages"
)

// Participant is one side of the message channel. Send must not block: the
// session calls it while holding its lock.
type Participant interface {
	ID() uuid.UUID
	Send(msg messages.OutboundMessage)
}
