// internal/events/events.go
//
// Outbound notifications emitted after session transitions.
// Defines:
//   - Event: the envelope sent to subscribers ({type, sessionId, data}).
//   - Publisher: the sink the registry publishes to.
//   - Constructors for session-update, game-over and error events.

package events

import (
	"github.com/robalobadob/arena/internal/game"
)

// Kind names an event on the wire.
type Kind string

const (
	KindSessionUpdate Kind = "session-update"
	KindGameOver      Kind = "game-over"
	KindError         Kind = "error"
)

// Event is one outbound message.
type Event struct {
	Type      Kind   `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data"`
}

// GameOver is the payload of a game-over event. Winner is null for draws,
// scripted-opponent wins and abandoned rooms with nobody left.
type GameOver struct {
	Winner  *game.AccountID `json:"winner"`
	Session game.Session    `json:"session"`
}

// ErrorBody is the payload of an error event.
type ErrorBody struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// Publisher receives events for fan-out. Publish must not block on slow
// subscribers.
type Publisher interface {
	Publish(e Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// SessionUpdate wraps a snapshot taken after a successful transition.
func SessionUpdate(s game.Session) Event {
	return Event{Type: KindSessionUpdate, SessionID: s.ID, Data: s}
}

// Finished wraps a snapshot that just became completed.
func Finished(s game.Session) Event {
	return Event{Type: KindGameOver, SessionID: s.ID, Data: GameOver{Winner: s.Winner, Session: s}}
}

// Error builds an error event for a single socket.
func Error(sessionID, code, msg string) Event {
	return Event{Type: KindError, SessionID: sessionID, Data: ErrorBody{Code: code, Message: msg}}
}
