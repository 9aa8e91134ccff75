package modification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConduitFIFO(t *testing.T) {
	c := newConduit()
	for i := range 5 {
		require.True(t, c.push(LogLine{Message: string(rune('a' + i))}))
	}
	assert.Equal(t, 5, c.len())
	c.close()

	var got string
	for {
		e, ok := c.next()
		if !ok {
			break
		}
		got += e.(LogLine).Message
	}
	assert.Equal(t, "abcde", got)
}

func TestConduitPushAfterClose(t *testing.T) {
	c := newConduit()
	c.close()
	c.close()

	assert.False(t, c.push(Complete{Success: true}))
	_, ok := c.next()
	assert.False(t, ok)
}

func TestConduitNextBlocksUntilPush(t *testing.T) {
	c := newConduit()
	got := make(chan Event, 1)
	go func() {
		e, _ := c.next()
		got <- e
	}()

	select {
	case <-got:
		t.Fatal("next returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	c.push(Complete{Success: true})
	select {
	case e := <-got:
		assert.Equal(t, Complete{Success: true}, e)
	case <-time.After(time.Second):
		t.Fatal("next did not wake up")
	}
}

func TestConduitNextWakesOnClose(t *testing.T) {
	c := newConduit()
	done := make(chan bool, 1)
	go func() {
		_, ok := c.next()
		done <- ok
	}()

	c.close()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("next did not wake up on close")
	}
}

func TestConduitProducerNeverBlocks(t *testing.T) {
	c := newConduit()
	done := make(chan struct{})
	go func() {
		for range 10_000 {
			c.push(LogLine{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("push blocked without a consumer")
	}
	assert.Equal(t, 10_000, c.len())
}
