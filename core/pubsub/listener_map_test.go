package pubsub_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anton-trapeznikov/ion-mq/core/pubsub"
)

func TestListenerMap_AddRemove(t *testing.T) {
	t.Parallel()

	m := pubsub.ListenerMap{}

	assert.True(t, m.Add("chat", "alice"))
	assert.True(t, m.Add("chat", "bob"))
	assert.False(t, m.Add("chat", "alice"), "client appears at most once per channel")

	subs, ok := m.Subscribers("chat")
	require.True(t, ok)
	assert.Equal(t, []string{"alice", "bob"}, subs)

	assert.True(t, m.Remove("chat", "alice"))
	assert.False(t, m.Remove("chat", "alice"))
	assert.False(t, m.Remove("news", "alice"))
	assert.False(t, m.Has("chat", "alice"))
	assert.True(t, m.Has("chat", "bob"))
}

func TestListenerMap_Prune(t *testing.T) {
	t.Parallel()

	m := pubsub.ListenerMap{}
	m.Add("chat", "alice")
	m.Add("news", "bob")
	m.Remove("news", "bob")

	_, ok := m.Subscribers("news")
	require.True(t, ok, "empty channel stays until pruned")

	assert.Equal(t, 1, m.Prune())
	_, ok = m.Subscribers("news")
	assert.False(t, ok)
	assert.Equal(t, []string{"chat"}, m.Channels())
}

func TestListenerMap_Clone(t *testing.T) {
	t.Parallel()

	m := pubsub.ListenerMap{}
	m.Add("chat", "alice")

	c := m.Clone()
	c.Add("chat", "bob")
	c.Add("news", "carol")

	assert.Equal(t, pubsub.ListenerMap{"chat": {"alice"}}, m)
	assert.Len(t, c, 2)
}

// Replaying any action sequence must equal a plain set fold with empty
// channels removed.
func TestListenerMap_FoldProperty(t *testing.T) {
	t.Parallel()

	channels := []string{"a", "b", "c"}
	clients := []string{"x", "y", "z", "w"}
	rng := rand.New(rand.NewPCG(1, 2))

	for round := 0; round < 200; round++ {
		m := pubsub.ListenerMap{}
		expected := map[string]map[string]bool{}

		for i := 0; i < rng.IntN(40); i++ {
			ch := channels[rng.IntN(len(channels))]
			cl := clients[rng.IntN(len(clients))]
			if rng.IntN(2) == 0 {
				m.Add(ch, cl)
				if expected[ch] == nil {
					expected[ch] = map[string]bool{}
				}
				expected[ch][cl] = true
			} else {
				m.Remove(ch, cl)
				delete(expected[ch], cl)
			}
		}
		m.Prune()

		for ch, set := range expected {
			if len(set) == 0 {
				delete(expected, ch)
			}
		}

		require.Len(t, m, len(expected))
		for ch, set := range expected {
			subs, ok := m.Subscribers(ch)
			require.True(t, ok)
			got := slices.Clone(subs)
			slices.Sort(got)
			want := make([]string, 0, len(set))
			for cl := range set {
				want = append(want, cl)
			}
			slices.Sort(want)
			assert.Equal(t, want, got)
		}
	}
}
