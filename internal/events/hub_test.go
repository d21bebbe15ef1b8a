package events

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/arena/internal/game"
)

type inbox struct {
	mu   sync.Mutex
	msgs [][]byte
	full bool
}

func (i *inbox) Deliver(msg []byte) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.full {
		return false
	}
	i.msgs = append(i.msgs, msg)
	return true
}

func (i *inbox) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.msgs)
}

func TestHubRoutesBySession(t *testing.T) {
	h := NewHub()
	a, b := &inbox{}, &inbox{}
	h.Subscribe("s1", a)
	h.Subscribe("s2", b)

	h.Publish(SessionUpdate(game.Session{ID: "s1", Version: 3}))
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 0, b.count())

	var got struct {
		Type      Kind         `json:"type"`
		SessionID string       `json:"sessionId"`
		Data      game.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(a.msgs[0], &got))
	assert.Equal(t, KindSessionUpdate, got.Type)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, 3, got.Data.Version)
}

func TestHubDropsSlowSubscribers(t *testing.T) {
	h := NewHub()
	slow := &inbox{full: true}
	h.Subscribe("s1", slow)
	require.Equal(t, 1, h.Subscribers("s1"))

	h.Publish(SessionUpdate(game.Session{ID: "s1"}))
	assert.Equal(t, 0, h.Subscribers("s1"))
}

func TestUnsubscribe(t *testing.T) {
	h := NewHub()
	a := &inbox{}
	h.Subscribe("s1", a)
	h.Subscribe("s2", a)
	h.Subscribe("s3", a)

	h.Unsubscribe("s1", a)
	assert.Equal(t, 0, h.Subscribers("s1"))
	assert.Equal(t, 1, h.Subscribers("s2"))

	h.UnsubscribeAll(a)
	assert.Equal(t, 0, h.Subscribers("s2"))
	assert.Equal(t, 0, h.Subscribers("s3"))
}

func TestGameOverPayload(t *testing.T) {
	w := game.AccountID("A")
	raw, err := json.Marshal(Finished(game.Session{ID: "s1", Winner: &w, Status: game.StatusCompleted}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"game-over"`)
	assert.Contains(t, string(raw), `"winner":"A"`)

	raw, err = json.Marshal(Finished(game.Session{ID: "s2", Status: game.StatusCompleted}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"winner":null`)
}
