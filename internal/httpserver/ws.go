// internal/httpserver/ws.go
//
// Websocket push path: GET /ws (auth required).
// Inbound frames are JSON actions:
//   - {"action":"join-game","sessionId":"..."}   watch a session you are seated in
//   - {"action":"join-game","roomCode":"..."}    take a seat by code, then watch it
//   - {"action":"player-ready","sessionId":"..."}
//   - {"action":"make-move","sessionId":"...","position":4}
//   - {"action":"leave","sessionId":"..."}
//
// Outbound frames are events.Event values. Successful actions are broadcast
// through the hub to every socket watching the session; failures go back to
// the sending socket only as an "error" event.
//
// A dropped connection is not a leave: the seat is kept until the client
// sends "leave" (over this path or REST).

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/arena/internal/board"
	"github.com/robalobadob/arena/internal/events"
	"github.com/robalobadob/arena/internal/game"
)

type wsAction struct {
	Action    string      `json:"action"`
	SessionID string      `json:"sessionId"`
	RoomCode  string      `json:"roomCode"`
	Position  *board.Move `json:"position"`
}

var errUnknownAction = errors.New("unknown action")

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == s.cfg.ClientOrigin
		},
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("account", string(me.ID)).Msg("websocket upgrade error")
		return
	}
	c := events.NewClient(conn, me.ID)
	go c.WritePump()
	defer func() {
		s.hub.UnsubscribeAll(c)
		c.Close()
	}()
	log.Info().Str("account", string(me.ID)).Msg("websocket connected")

	ctx := r.Context()
	for {
		msg, err := c.Read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("account", string(me.ID)).Msg("websocket closed unexpectedly")
			}
			return
		}
		// a frame that does not decode is answered, never fatal
		var a wsAction
		if err := json.Unmarshal(msg, &a); err != nil {
			c.Send(events.Error(a.SessionID, "bad_json", err.Error()))
			continue
		}
		s.dispatch(ctx, c, a)
	}
}

// dispatch runs one inbound action for c.
func (s *Server) dispatch(ctx context.Context, c *events.Client, a wsAction) {
	var (
		sess game.Session
		err  error
	)
	switch a.Action {
	case "join-game":
		sess, err = s.watch(ctx, c, a)
		if err == nil {
			c.Send(events.SessionUpdate(sess))
		}
	case "player-ready":
		s.follow(ctx, c, a.SessionID)
		_, err = s.reg.SetReady(ctx, a.SessionID, c.Account)
	case "make-move":
		if a.Position == nil {
			c.Send(events.Error(a.SessionID, "bad_json", "position is required"))
			return
		}
		s.follow(ctx, c, a.SessionID)
		_, err = s.reg.ApplyMove(ctx, a.SessionID, c.Account, *a.Position)
	case "leave":
		_, err = s.reg.Leave(ctx, a.SessionID, c.Account)
		s.hub.Unsubscribe(a.SessionID, c)
	default:
		err = errUnknownAction
	}
	if err != nil {
		_, name := classify(err)
		if errors.Is(err, errUnknownAction) {
			name = "unknown_action"
		}
		c.Send(events.Error(a.SessionID, name, err.Error()))
	}
}

// follow subscribes c to id when its account is seated there, so the
// broadcast of its own action reaches it.
func (s *Server) follow(ctx context.Context, c *events.Client, id string) {
	sess, err := s.reg.Get(ctx, id)
	if err != nil {
		return
	}
	if _, ok := sess.SlotOf(game.Human(c.Account)); ok {
		s.hub.Subscribe(id, c)
	}
}

// watch subscribes c to the session named by a and returns a fresh snapshot.
func (s *Server) watch(ctx context.Context, c *events.Client, a wsAction) (game.Session, error) {
	id := a.SessionID
	if a.RoomCode != "" {
		sess, err := s.reg.JoinRoom(ctx, a.RoomCode, c.Account)
		if err != nil {
			return game.Session{}, err
		}
		id = sess.ID
	} else {
		sess, err := s.reg.Get(ctx, id)
		if err != nil {
			return game.Session{}, err
		}
		if _, ok := sess.SlotOf(game.Human(c.Account)); !ok {
			return game.Session{}, game.ErrNotAParticipant
		}
	}
	s.hub.Subscribe(id, c)
	// re-read after subscribing so no update between join and subscribe is lost
	return s.reg.Get(ctx, id)
}
