package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicPublishSnapshot(t *testing.T) {
	topic := NewTopic[int]()
	_, _, ok := topic.Snapshot()
	require.False(t, ok, "expected no value before first publish")

	topic.Publish(42)
	v, gen, ok := topic.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, uint64(1), gen)
}

func TestSubscriptionChangeDetection(t *testing.T) {
	topic := NewTopic[string]()
	topic.Publish("a")

	sub := topic.Subscribe()
	_, changed, _, ok := sub.Poll()
	require.True(t, ok)
	assert.False(t, changed, "subscribe should not see the pre-existing value as a change")

	topic.Publish("b")
	v, changed, missed, ok := sub.Poll()
	require.True(t, ok)
	assert.True(t, changed)
	assert.Equal(t, "b", v)
	assert.Equal(t, uint64(0), missed)

	// Two publishes between polls should report one missed generation.
	topic.Publish("c")
	topic.Publish("d")
	v, changed, missed, ok = sub.Poll()
	require.True(t, ok)
	assert.True(t, changed)
	assert.Equal(t, "d", v)
	assert.Equal(t, uint64(1), missed)
}
