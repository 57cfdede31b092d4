package pubsub_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/anton-trapeznikov/ion-mq/core/pubsub"
)

var keys = pubsub.NewKeys(pubsub.DefaultKeyPrefix)

func pushAction(t *testing.T, s pubsub.Store, client, channel string, kind pubsub.ActionKind) {
	t.Helper()
	data, err := pubsub.EncodeAction(pubsub.Action{Client: client, Channel: channel, Kind: kind})
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), keys.Actions(), data))
}

func pushMessage(t *testing.T, s pubsub.Store, client, channel, message string) {
	t.Helper()
	data, err := pubsub.EncodeMessage(pubsub.PublishedMessage{Client: client, Channel: channel, Message: message})
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), keys.Outbox(), data))
}

func readInbox(t *testing.T, s pubsub.Store, channel, client string) []pubsub.PublishedMessage {
	t.Helper()
	raw, err := s.ReadRange(context.Background(), keys.Inbox(channel, client), 0, -1)
	require.NoError(t, err)
	out := make([]pubsub.PublishedMessage, 0, len(raw))
	for _, item := range raw {
		m, err := pubsub.DecodeMessage(item)
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func storedListenerMap(t *testing.T, s pubsub.Store) pubsub.ListenerMap {
	t.Helper()
	data, err := s.GetBlob(context.Background(), keys.Listeners())
	require.NoError(t, err)
	m, err := pubsub.DecodeListenerMap(data)
	require.NoError(t, err)
	return m
}

func newBroker(t *testing.T, s pubsub.Store, opts ...pubsub.BrokerOption) *pubsub.Broker {
	t.Helper()
	b, err := pubsub.NewBroker(s, opts...)
	require.NoError(t, err)
	return b
}

func tick(t *testing.T, b *pubsub.Broker) pubsub.TickResult {
	t.Helper()
	res, err := b.Tick(context.Background())
	require.NoError(t, err)
	return res
}

func TestNewBroker(t *testing.T) {
	t.Parallel()

	_, err := pubsub.NewBroker(nil)
	assert.ErrorIs(t, err, pubsub.ErrStoreNil)

	b, err := pubsub.NewBroker(pubsub.NewMemoryStorage(), pubsub.WithBrokerKeyPrefix("tenant-a"))
	require.NoError(t, err)
	assert.Equal(t, "tenant-a:actions", b.Keys().Actions())
}

func TestBroker_Tick(t *testing.T) {
	t.Parallel()

	t.Run("subscribe is persisted", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)

		pushAction(t, s, "alice", "chat", pubsub.ActionSubscribe)
		pushAction(t, s, "alice", "chat", pubsub.ActionSubscribe)
		res := tick(t, b)

		assert.Equal(t, 2, res.Actions)
		assert.Equal(t, pubsub.ListenerMap{"chat": {"alice"}}, b.ListenerMap())
		assert.Equal(t, pubsub.ListenerMap{"chat": {"alice"}}, storedListenerMap(t, s))
		assert.Equal(t, 0, s.Len(keys.Actions()))
		assert.Equal(t, int64(1), b.Stats().ActionsApplied)
	})

	t.Run("publisher does not receive its own message", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)

		pushAction(t, s, "alice", "chat", pubsub.ActionSubscribe)
		pushAction(t, s, "bob", "chat", pubsub.ActionSubscribe)
		pushMessage(t, s, "alice", "chat", "hi")
		res := tick(t, b)

		assert.Equal(t, 1, res.Deliveries)
		assert.Empty(t, readInbox(t, s, "chat", "alice"))
		assert.Equal(t, []pubsub.PublishedMessage{{Client: "alice", Channel: "chat", Message: "hi"}},
			readInbox(t, s, "chat", "bob"))
		assert.Equal(t, 0, s.Len(keys.Outbox()))
	})

	t.Run("messages keep publish order", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)

		pushAction(t, s, "bob", "chat", pubsub.ActionSubscribe)
		tick(t, b)

		for _, m := range []string{"one", "two", "three"} {
			pushMessage(t, s, "alice", "chat", m)
		}
		tick(t, b)

		got := readInbox(t, s, "chat", "bob")
		require.Len(t, got, 3)
		assert.Equal(t, "one", got[0].Message)
		assert.Equal(t, "two", got[1].Message)
		assert.Equal(t, "three", got[2].Message)
	})

	t.Run("subscribe and publish in the same tick delivers", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)

		pushMessage(t, s, "alice", "chat", "early")
		pushAction(t, s, "bob", "chat", pubsub.ActionSubscribe)
		tick(t, b)

		assert.Len(t, readInbox(t, s, "chat", "bob"), 1)
	})

	t.Run("unsubscribe and publish in the same tick does not deliver", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)

		pushAction(t, s, "alice", "chat", pubsub.ActionSubscribe)
		pushAction(t, s, "bob", "chat", pubsub.ActionSubscribe)
		tick(t, b)

		pushMessage(t, s, "carol", "chat", "late")
		pushAction(t, s, "bob", "chat", pubsub.ActionUnsubscribe)
		tick(t, b)

		assert.Len(t, readInbox(t, s, "chat", "alice"), 1)
		assert.False(t, s.Exists(keys.Inbox("chat", "bob")))
	})

	t.Run("unsubscribe deletes pending inbox", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)

		pushAction(t, s, "bob", "chat", pubsub.ActionSubscribe)
		pushAction(t, s, "bob", "news", pubsub.ActionSubscribe)
		pushMessage(t, s, "alice", "chat", "a")
		pushMessage(t, s, "alice", "news", "b")
		tick(t, b)
		require.Equal(t, 1, s.Len(keys.Inbox("chat", "bob")))

		pushAction(t, s, "bob", "chat", pubsub.ActionUnsubscribe)
		tick(t, b)

		assert.False(t, s.Exists(keys.Inbox("chat", "bob")))
		assert.Equal(t, 1, s.Len(keys.Inbox("news", "bob")), "other channels are untouched")
		assert.Equal(t, pubsub.ListenerMap{"news": {"bob"}}, storedListenerMap(t, s))
	})

	t.Run("unsubscribe of an absent client leaves its inbox", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)

		require.NoError(t, s.Append(context.Background(), keys.Inbox("chat", "ghost"), []byte("x")))
		pushAction(t, s, "ghost", "chat", pubsub.ActionUnsubscribe)
		tick(t, b)

		assert.True(t, s.Exists(keys.Inbox("chat", "ghost")))
		assert.Equal(t, int64(0), b.Stats().ActionsApplied)
	})

	t.Run("last unsubscribe removes the channel", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)

		pushAction(t, s, "alice", "chat", pubsub.ActionSubscribe)
		pushAction(t, s, "alice", "chat", pubsub.ActionUnsubscribe)
		tick(t, b)

		assert.Empty(t, b.ListenerMap())
		data, err := s.GetBlob(context.Background(), keys.Listeners())
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(data))
	})

	t.Run("publish to unknown channel is dropped", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)

		pushMessage(t, s, "alice", "void", "anyone?")
		res := tick(t, b)

		assert.Equal(t, 1, res.Dropped)
		assert.Equal(t, 0, res.Deliveries)
		assert.Equal(t, 0, s.Len(keys.Outbox()))
		assert.Equal(t, int64(1), b.Stats().MessagesDropped)
	})

	t.Run("malformed records are skipped", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)
		ctx := context.Background()

		require.NoError(t, s.Append(ctx, keys.Actions(), []byte(`{"client":"x"}`)))
		pushAction(t, s, "bob", "chat", pubsub.ActionSubscribe)
		require.NoError(t, s.Append(ctx, keys.Outbox(), []byte(`not json`)))
		pushMessage(t, s, "alice", "chat", "hi")

		res := tick(t, b)
		assert.Equal(t, 2, res.Malformed)
		assert.Equal(t, 1, res.Deliveries)
		assert.Equal(t, int64(2), b.Stats().MalformedRecords)
		assert.Equal(t, 0, s.Len(keys.Actions()))
		assert.Equal(t, 0, s.Len(keys.Outbox()))
	})
}

func TestBroker_StrictMode(t *testing.T) {
	t.Parallel()

	t.Run("unknown channel fails the tick", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s, pubsub.WithStrictMode(true))

		pushMessage(t, s, "alice", "void", "anyone?")
		_, err := b.Tick(context.Background())
		assert.ErrorIs(t, err, pubsub.ErrUnknownChannel)
	})

	t.Run("malformed action fails before the map changes", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s, pubsub.WithStrictMode(true))

		pushAction(t, s, "bob", "chat", pubsub.ActionSubscribe)
		require.NoError(t, s.Append(context.Background(), keys.Actions(), []byte(`{"client":"x","channel":"c","action":"noop"}`)))

		_, err := b.Tick(context.Background())
		assert.ErrorIs(t, err, pubsub.ErrMalformedRecord)
		assert.Empty(t, b.ListenerMap())
		assert.False(t, s.Exists(keys.Listeners()))
	})
}

func TestBroker_ReloadPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("reloads every tick by default", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)
		tick(t, b)

		require.NoError(t, s.SetBlob(ctx, keys.Listeners(), []byte(`{"chat":["bob"]}`)))
		pushMessage(t, s, "alice", "chat", "hi")
		tick(t, b)

		assert.Len(t, readInbox(t, s, "chat", "bob"), 1)
	})

	t.Run("reload on actions only keeps the cached map", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s, pubsub.WithReloadOnActionsOnly())
		tick(t, b)

		require.NoError(t, s.SetBlob(ctx, keys.Listeners(), []byte(`{"chat":["bob"]}`)))
		pushMessage(t, s, "alice", "chat", "hi")
		res := tick(t, b)
		assert.Equal(t, 1, res.Dropped)

		pushAction(t, s, "carol", "news", pubsub.ActionSubscribe)
		pushMessage(t, s, "alice", "chat", "again")
		tick(t, b)

		assert.Len(t, readInbox(t, s, "chat", "bob"), 1)
		assert.Equal(t, pubsub.ListenerMap{"chat": {"bob"}, "news": {"carol"}}, b.ListenerMap())
	})
}

func TestBroker_InboxKeysAreDistinct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	colliding := []byte(`{"client":"b:c","channel":"a","action":"subscribe"}`)

	t.Run("separator in client id is rejected", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s)

		require.NoError(t, s.Append(ctx, keys.Actions(), colliding))
		pushAction(t, s, "c", "a:b", pubsub.ActionSubscribe)
		res := tick(t, b)
		assert.Equal(t, 1, res.Malformed)
		assert.Equal(t, pubsub.ListenerMap{"a:b": {"c"}}, b.ListenerMap())

		pushMessage(t, s, "p", "a:b", "secret for a:b")
		tick(t, b)

		got := readInbox(t, s, "a:b", "c")
		require.Len(t, got, 1)
		assert.Equal(t, "a:b", got[0].Channel)

		_, err := pubsub.NewClient(s, pubsub.WithClientID("b:c"))
		assert.ErrorIs(t, err, pubsub.ErrInvalidClientID)
	})

	t.Run("strict mode fails the tick", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s, pubsub.WithStrictMode(true))

		require.NoError(t, s.Append(ctx, keys.Actions(), colliding))
		_, err := b.Tick(ctx)
		assert.ErrorIs(t, err, pubsub.ErrInvalidClientID)
		assert.Empty(t, b.ListenerMap())
	})

	t.Run("stored map with such an id is ignored", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		require.NoError(t, s.SetBlob(ctx, keys.Listeners(), []byte(`{"a":["b:c","d"]}`)))

		b := newBroker(t, s)
		pushMessage(t, s, "p", "a", "hi")
		res := tick(t, b)

		assert.Equal(t, 1, res.Deliveries)
		assert.False(t, s.Exists(keys.Inbox("a", "b:c")))
		assert.Len(t, readInbox(t, s, "a", "d"), 1)
	})
}

func TestBroker_StoreFailure(t *testing.T) {
	t.Parallel()

	t.Run("listener map load", func(t *testing.T) {
		t.Parallel()
		store := new(MockStore)
		store.Test(t)
		store.On("GetBlob", mock.Anything, keys.Listeners()).Return(nil, errors.New("connection refused"))

		b := newBroker(t, store)
		_, err := b.Tick(context.Background())
		assert.ErrorIs(t, err, pubsub.ErrStoreUnavailable)
		store.AssertExpectations(t)
	})

	t.Run("inbox append", func(t *testing.T) {
		t.Parallel()
		subscribe, err := pubsub.EncodeAction(pubsub.Action{Client: "bob", Channel: "chat", Kind: pubsub.ActionSubscribe})
		require.NoError(t, err)
		msg, err := pubsub.EncodeMessage(pubsub.PublishedMessage{Client: "alice", Channel: "chat", Message: "hi"})
		require.NoError(t, err)

		store := new(MockStore)
		store.Test(t)
		store.On("GetBlob", mock.Anything, keys.Listeners()).Return(nil, nil)
		store.On("ReadRange", mock.Anything, keys.Actions(), int64(0), int64(-1)).Return([][]byte{subscribe}, nil)
		store.On("Trim", mock.Anything, keys.Actions(), int64(1)).Return(nil)
		store.On("SetBlob", mock.Anything, keys.Listeners(), mock.Anything).Return(nil)
		store.On("ReadRange", mock.Anything, keys.Outbox(), int64(0), int64(-1)).Return([][]byte{msg}, nil)
		store.On("Trim", mock.Anything, keys.Outbox(), int64(1)).Return(nil)
		store.On("Append", mock.Anything, keys.Inbox("chat", "bob"), msg).Return(errors.New("timeout"))

		b := newBroker(t, store)
		_, err = b.Tick(context.Background())
		assert.ErrorIs(t, err, pubsub.ErrStoreUnavailable)
		store.AssertExpectations(t)
	})

	t.Run("idle tick writes nothing", func(t *testing.T) {
		t.Parallel()
		store := new(MockStore)
		store.Test(t)
		store.On("GetBlob", mock.Anything, keys.Listeners()).Return(nil, nil)
		store.On("ReadRange", mock.Anything, mock.Anything, int64(0), int64(-1)).Return([][]byte{}, nil)

		b := newBroker(t, store)
		tick(t, b)

		store.AssertNotCalled(t, "SetBlob", mock.Anything, mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "Trim", mock.Anything, mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBroker_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start and stop", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s, pubsub.WithTickInterval(5*time.Millisecond))

		assert.ErrorIs(t, b.Stop(), pubsub.ErrBrokerNotStarted)
		assert.ErrorIs(t, b.Healthcheck(context.Background()), pubsub.ErrBrokerNotRunning)

		errCh := make(chan error, 1)
		go func() { errCh <- b.Start(context.Background()) }()

		require.Eventually(t, func() bool { return b.Stats().IsRunning }, time.Second, time.Millisecond)
		assert.ErrorIs(t, b.Start(context.Background()), pubsub.ErrBrokerAlreadyStarted)
		assert.NoError(t, b.Healthcheck(context.Background()))

		pushAction(t, s, "bob", "chat", pubsub.ActionSubscribe)
		pushMessage(t, s, "alice", "chat", "hi")
		require.Eventually(t, func() bool {
			return s.Len(keys.Inbox("chat", "bob")) == 1
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, b.Stop())
		assert.ErrorIs(t, <-errCh, context.Canceled)
		assert.False(t, b.Stats().IsRunning)
		assert.Positive(t, b.Stats().Ticks)
	})

	t.Run("run returns nil on cancellation", func(t *testing.T) {
		t.Parallel()
		b := newBroker(t, pubsub.NewMemoryStorage(), pubsub.WithTickInterval(5*time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		g, gctx := errgroup.WithContext(ctx)
		g.Go(b.Run(gctx))

		require.Eventually(t, func() bool { return b.Stats().Ticks > 0 }, time.Second, time.Millisecond)
		cancel()
		assert.NoError(t, g.Wait())
	})

	t.Run("failed tick ends the loop", func(t *testing.T) {
		t.Parallel()
		s := pubsub.NewMemoryStorage()
		b := newBroker(t, s, pubsub.WithStrictMode(true), pubsub.WithTickInterval(5*time.Millisecond))

		pushMessage(t, s, "alice", "void", "hi")
		err := b.Run(context.Background())()
		assert.ErrorIs(t, err, pubsub.ErrUnknownChannel)
		assert.False(t, b.Stats().IsRunning)
	})
}

func TestBroker_Healthcheck_StoreDown(t *testing.T) {
	t.Parallel()

	store := new(MockStore)
	store.On("GetBlob", mock.Anything, keys.Listeners()).Return(nil, nil).Once()
	store.On("GetBlob", mock.Anything, keys.Listeners()).Return(nil, errors.New("down"))
	store.On("ReadRange", mock.Anything, mock.Anything, int64(0), int64(-1)).Return([][]byte{}, nil)

	b := newBroker(t, store, pubsub.WithReloadOnActionsOnly(), pubsub.WithTickInterval(time.Hour))

	errCh := make(chan error, 1)
	go func() { errCh <- b.Start(context.Background()) }()

	require.Eventually(t, func() bool { return b.Stats().Ticks > 0 }, time.Second, time.Millisecond)

	err := b.Healthcheck(context.Background())
	assert.ErrorIs(t, err, pubsub.ErrHealthcheckFailed)
	assert.ErrorIs(t, err, pubsub.ErrStoreUnavailable)

	require.NoError(t, b.Stop())
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestBroker_Pacing(t *testing.T) {
	t.Parallel()

	t.Run("slow tick is followed immediately", func(t *testing.T) {
		t.Parallel()
		const (
			interval = 60 * time.Millisecond
			tickCost = 100 * time.Millisecond
		)

		var (
			mu    sync.Mutex
			loads []time.Time
		)
		loadTimes := func() []time.Time {
			mu.Lock()
			defer mu.Unlock()
			return slices.Clone(loads)
		}

		store := new(MockStore)
		store.On("GetBlob", mock.Anything, keys.Listeners()).
			After(tickCost).
			Run(func(mock.Arguments) {
				mu.Lock()
				loads = append(loads, time.Now())
				mu.Unlock()
			}).
			Return(nil, nil)
		store.On("ReadRange", mock.Anything, mock.Anything, int64(0), int64(-1)).Return([][]byte{}, nil)

		b := newBroker(t, store, pubsub.WithTickInterval(interval))
		errCh := make(chan error, 1)
		go func() { errCh <- b.Start(context.Background()) }()

		require.Eventually(t, func() bool { return len(loadTimes()) >= 5 }, 5*time.Second, 5*time.Millisecond)
		require.NoError(t, b.Stop())
		assert.ErrorIs(t, <-errCh, context.Canceled)

		// Every tick reloads the map, so consecutive loads are one tick apart.
		got := loadTimes()
		for i := 1; i < len(got); i++ {
			gap := got[i].Sub(got[i-1])
			assert.GreaterOrEqual(t, gap, tickCost)
			assert.Less(t, gap, tickCost+interval/2, "no pause after an overrun, gap %d", i)
		}
	})

	t.Run("fast tick waits out the interval", func(t *testing.T) {
		t.Parallel()
		const interval = 300 * time.Millisecond

		b := newBroker(t, pubsub.NewMemoryStorage(), pubsub.WithTickInterval(interval))
		errCh := make(chan error, 1)
		go func() { errCh <- b.Start(context.Background()) }()

		require.Eventually(t, func() bool { return b.Stats().Ticks == 1 }, time.Second, time.Millisecond)
		first := time.Now()

		time.Sleep(interval / 3)
		assert.Equal(t, int64(1), b.Stats().Ticks, "no second tick inside the interval")

		require.Eventually(t, func() bool { return b.Stats().Ticks >= 2 }, 2*time.Second, time.Millisecond)
		assert.GreaterOrEqual(t, time.Since(first), interval*2/3)
		assert.Less(t, b.Stats().Ticks, int64(4), "no catch-up burst")

		require.NoError(t, b.Stop())
		assert.ErrorIs(t, <-errCh, context.Canceled)
	})
}
