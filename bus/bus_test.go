package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	b := New()

	var got []any
	b.Subscribe("heartbeat", func(data any) { got = append(got, data) })
	b.Subscribe("heartbeat", func(data any) { got = append(got, data) })
	b.Subscribe("other", func(any) { t.Fatal("wrong topic delivered") })

	b.Publish("heartbeat", 42)

	require.Len(t, got, 2)
	assert.Equal(t, 42, got[0])
	assert.Equal(t, 42, got[1])
}

func TestPublish_NoSubscribersIsANoOp(t *testing.T) {
	b := New()
	b.Publish("nobody/home", "data")
}

func TestPublish_SurvivesPanickingHandler(t *testing.T) {
	b := New()

	var delivered bool
	b.Subscribe("t", func(any) { panic("bad handler") })
	b.Subscribe("t", func(any) { delivered = true })

	b.Publish("t", nil)

	assert.True(t, delivered, "handlers after the panicking one must still run")
}

func TestBus_ConcurrentSubscribePublish(t *testing.T) {
	b := New()

	var mu sync.Mutex
	count := 0
	b.Subscribe("t", func(any) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.Publish("t", nil)
		}()
		go func() {
			defer wg.Done()
			b.Subscribe("later", func(any) {})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}
