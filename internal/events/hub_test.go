package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe(8, EventLinkDown)

	h.EmitLinkHealth("wan_primary", "eth0", false, 100, 0)

	select {
	case e := <-ch:
		assert.Equal(t, EventLinkDown, e.Type)
		assert.False(t, e.Timestamp.IsZero())
		data, ok := e.Data.(LinkHealthData)
		require.True(t, ok)
		assert.Equal(t, "wan_primary", data.Route)
		assert.Equal(t, "eth0", data.Interface)
		assert.Equal(t, 100.0, data.LossPercent)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestHubTypeFiltering(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe(8, EventRouteAdded)

	h.EmitLinkHealth("wan", "eth0", true, 0, 12)
	h.EmitRouteChange(EventRouteAdded, "wan", "0.0.0.0/0", "192.168.1.1", "eth0", 100, nil)

	e := <-ch
	assert.Equal(t, EventRouteAdded, e.Type)
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %s", e.Type)
	default:
	}
}

func TestHubGlobalSubscriberSeesEverything(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe(8)

	h.EmitLinkHealth("wan", "eth0", true, 0, 12)
	h.EmitRouteChange(EventRouteRemoved, "wan", "0.0.0.0/0", "", "eth0", 100, nil)

	assert.Equal(t, EventLinkUp, (<-ch).Type)
	assert.Equal(t, EventRouteRemoved, (<-ch).Type)
}

func TestHubOrderingPreserved(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe(16, EventRouteAdded, EventRouteRemoved)

	h.EmitRouteChange(EventRouteRemoved, "old", "0.0.0.0/0", "", "eth0", 100, nil)
	h.EmitRouteChange(EventRouteAdded, "new", "0.0.0.0/0", "", "wwan0", 200, nil)

	assert.Equal(t, EventRouteRemoved, (<-ch).Type)
	assert.Equal(t, EventRouteAdded, (<-ch).Type)
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	h := NewHub()
	h.Subscribe(1, EventProbeResult)

	h.EmitProbeResult("wan", "9.9.9.9", 0, 12, nil)
	h.EmitProbeResult("wan", "9.9.9.9", 0, 13, nil) // buffer full, dropped

	published, dropped := h.Stats()
	assert.Equal(t, uint64(2), published)
	assert.Equal(t, uint64(1), dropped)
}

func TestHubConcurrentPublishers(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe(1024)

	const publishers = 8
	const perPublisher = 100

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(route string) {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				h.EmitLinkHealth(route, "eth0", true, 0, 12)
			}
		}("wan" + string(rune('0'+i)))
	}
	wg.Wait()

	published, dropped := h.Stats()
	assert.Equal(t, uint64(publishers*perPublisher), published)
	assert.Equal(t, uint64(0), dropped)

	for i := 0; i < publishers*perPublisher; i++ {
		<-ch
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe(1, EventLinkUp)
	h.Unsubscribe(ch)

	h.EmitLinkHealth("wan", "eth0", true, 0, 12)
	select {
	case <-ch:
		t.Fatal("unsubscribed channel received an event")
	default:
	}
}
