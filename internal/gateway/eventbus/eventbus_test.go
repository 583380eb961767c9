package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	ch, unsub := bus.Subscribe("session.s1.webhook", 4)
	defer unsub()

	bus.Publish("session.s1.webhook", "hello", 50*time.Millisecond)

	select {
	case ev := <-ch:
		assert.Equal(t, "session.s1.webhook", ev.Topic)
		assert.Equal(t, "hello", ev.Data)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWildcardMatching(t *testing.T) {
	assert.True(t, matchTopic("*", "session.s1.webhook"))
	assert.True(t, matchTopic("session.s1.*", "session.s1.webhook"))
	assert.True(t, matchTopic("session.*.webhook", "session.s1.webhook"))
	assert.False(t, matchTopic("session.s1.*", "session.s2.webhook"))
	assert.False(t, matchTopic("session.s1.*", "session.s1.webhook.extra"))
	assert.False(t, matchTopic("", "session.s1.webhook"))
	assert.False(t, matchTopic("session.s1.*", ""))
}

func TestWildcardSubscriber(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	ch, unsub := bus.Subscribe("session.*.webhook", 4)
	defer unsub()

	bus.Publish("session.s1.webhook", 1, 50*time.Millisecond)
	bus.Publish("session.s2.webhook", 2, 50*time.Millisecond)
	bus.Publish("session.s1.other", 3, 50*time.Millisecond)

	var got []any
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got = append(got, ev.Data)
		case <-timeout:
			t.Fatal("events not delivered")
		}
	}
	assert.ElementsMatch(t, []any{1, 2}, got)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	ch, unsub := bus.Subscribe("topic", 1)
	defer unsub()

	// fill the buffer; the second publish must drop after the timeout
	// instead of blocking the publisher
	bus.Publish("topic", 1, 10*time.Millisecond)
	done := make(chan struct{})
	go func() {
		bus.Publish("topic", 2, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	ev := <-ch
	assert.Equal(t, 1, ev.Data)
}

func TestCloseAllForPattern(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	ch1, _ := bus.Subscribe("session.s1.webhook", 1)
	ch2, _ := bus.Subscribe("session.s1.state", 1)
	ch3, _ := bus.Subscribe("session.s2.webhook", 1)

	bus.CloseAllForPattern("session.s1.*")

	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)

	bus.Publish("session.s2.webhook", "still alive", 50*time.Millisecond)
	ev, ok := <-ch3
	require.True(t, ok)
	assert.Equal(t, "still alive", ev.Data)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	ch, unsub := bus.Subscribe("topic", 1)
	unsub()
	_, ok := <-ch
	assert.False(t, ok)

	// publishing after unsubscribe must not panic
	bus.Publish("topic", "late", 10*time.Millisecond)
}

func TestShutdown(t *testing.T) {
	bus := New()
	ch, _ := bus.Subscribe("topic", 1)
	bus.Shutdown()
	_, ok := <-ch
	assert.False(t, ok)
}
