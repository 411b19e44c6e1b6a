package retry

import (
	"testing"
	"time"

	"github.com/marcelsud/webhook-pipeline/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrdering(t *testing.T) {
	now := time.Now()

	t.Run("priority order", func(t *testing.T) {
		q := newQueue()
		q.push(&Item{EventID: "a", Priority: event.Low, NextAttempt: now})
		q.push(&Item{EventID: "b", Priority: event.Critical, NextAttempt: now})
		q.push(&Item{EventID: "c", Priority: event.Normal, NextAttempt: now})
		q.push(&Item{EventID: "d", Priority: event.High, NextAttempt: now})

		ready := q.popReady(now, 0)
		require.Len(t, ready, 4)

		got := []string{ready[0].EventID, ready[1].EventID, ready[2].EventID, ready[3].EventID}
		assert.Equal(t, []string{"b", "d", "c", "a"}, got)
	})

	t.Run("same priority orders by next attempt", func(t *testing.T) {
		q := newQueue()
		q.push(&Item{EventID: "later", Priority: event.Normal, NextAttempt: now.Add(-time.Second)})
		q.push(&Item{EventID: "earlier", Priority: event.Normal, NextAttempt: now.Add(-time.Minute)})

		ready := q.popReady(now, 0)
		require.Len(t, ready, 2)
		assert.Equal(t, "earlier", ready[0].EventID)
		assert.Equal(t, "later", ready[1].EventID)
	})

	t.Run("items not yet eligible stay queued", func(t *testing.T) {
		q := newQueue()
		q.push(&Item{EventID: "ready", Priority: event.Normal, NextAttempt: now.Add(-time.Second)})
		q.push(&Item{EventID: "future", Priority: event.Critical, NextAttempt: now.Add(time.Hour)})

		ready := q.popReady(now, 0)
		require.Len(t, ready, 1)
		assert.Equal(t, "ready", ready[0].EventID)
		assert.Equal(t, 1, q.Len())
	})

	t.Run("batch size bounds the pop", func(t *testing.T) {
		q := newQueue()
		for _, id := range []string{"a", "b", "c"} {
			q.push(&Item{EventID: id, Priority: event.Normal, NextAttempt: now.Add(-time.Second)})
		}

		ready := q.popReady(now, 2)
		assert.Len(t, ready, 2)
		assert.Equal(t, 1, q.Len())
	})
}
