package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubAddAndRemove(t *testing.T) {
	hub := NewHub()
	a := newClient(nil, ConnInfo{RoomID: "r1", ConnID: "a"})
	b := newClient(nil, ConnInfo{RoomID: "r1", ConnID: "b"})
	c := newClient(nil, ConnInfo{RoomID: "r2", ConnID: "c"})

	hub.Add(a)
	hub.Add(b)
	hub.Add(c)
	assert.Equal(t, 2, hub.Count("r1"))
	assert.Equal(t, 3, hub.Total())

	hub.Remove(a)
	hub.Remove(b)
	hub.Remove(b)
	assert.Equal(t, 0, hub.Count("r1"))
	assert.Len(t, hub.rooms, 1)

	hub.CloseAll("shutdown")
	hub.Remove(c)
	assert.Equal(t, 0, hub.Total())
}
