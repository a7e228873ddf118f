package sensor

import (
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishToRegisteredObservers(t *testing.T) {
	var h Hub[int]
	var a, b atomic.Int64

	idA, idB := uuid.New(), uuid.New()
	h.Subscribe(idA, func(v int) { a.Add(int64(v)) })
	h.Subscribe(idB, func(v int) { b.Add(int64(v)) })
	require.Equal(t, 2, h.Len())

	h.Publish(3)
	h.Unsubscribe(idB)
	h.Publish(4)

	assert.EqualValues(t, 7, a.Load())
	assert.EqualValues(t, 3, b.Load())
}

func TestHub_ObserverMayUnsubscribeItself(t *testing.T) {
	var h Hub[string]
	id := uuid.New()
	calls := 0

	h.Subscribe(id, func(string) {
		calls++
		h.Unsubscribe(id)
	})

	h.Publish("a")
	h.Publish("b")

	assert.Equal(t, 1, calls)
	assert.Zero(t, h.Len())
}

func TestHub_Clear(t *testing.T) {
	var h Hub[int]
	h.Subscribe(uuid.New(), func(int) { t.Fatal("observer called after clear") })
	h.Subscribe(uuid.New(), func(int) { t.Fatal("observer called after clear") })

	h.Clear()
	h.Publish(1)

	assert.Zero(t, h.Len())
}
