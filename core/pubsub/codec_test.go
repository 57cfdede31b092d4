package pubsub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anton-trapeznikov/ion-mq/core/pubsub"
)

func TestDecodeAction(t *testing.T) {
	t.Parallel()

	t.Run("valid subscribe", func(t *testing.T) {
		t.Parallel()
		a, err := pubsub.DecodeAction([]byte(`{"client":"alice","channel":"chat","action":"subscribe"}`))
		require.NoError(t, err)
		assert.Equal(t, pubsub.Action{Client: "alice", Channel: "chat", Kind: pubsub.ActionSubscribe}, a)
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		t.Parallel()
		a, err := pubsub.DecodeAction([]byte(`{"client":"a","channel":"c","action":"unsubscribe","extra":1}`))
		require.NoError(t, err)
		assert.Equal(t, pubsub.ActionUnsubscribe, a.Kind)
	})

	malformed := map[string]string{
		"not json":        `subscribe alice chat`,
		"array":           `["alice","chat","subscribe"]`,
		"missing action":  `{"client":"alice","channel":"chat"}`,
		"missing client":  `{"channel":"chat","action":"subscribe"}`,
		"empty channel":   `{"client":"alice","channel":"","action":"subscribe"}`,
		"unknown kind":    `{"client":"alice","channel":"chat","action":"publish"}`,
		"mistyped client": `{"client":42,"channel":"chat","action":"subscribe"}`,
		"empty client":    `{"client":"","channel":"chat","action":"subscribe"}`,
		"client with sep": `{"client":"b:c","channel":"a","action":"subscribe"}`,
	}
	for name, input := range malformed {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := pubsub.DecodeAction([]byte(input))
			assert.ErrorIs(t, err, pubsub.ErrMalformedRecord)
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	t.Parallel()

	t.Run("empty payload is allowed", func(t *testing.T) {
		t.Parallel()
		m, err := pubsub.DecodeMessage([]byte(`{"client":"alice","channel":"chat","message":""}`))
		require.NoError(t, err)
		assert.Equal(t, pubsub.PublishedMessage{Client: "alice", Channel: "chat"}, m)
	})

	malformed := map[string]string{
		"truncated":        `{"client":"alice","channel":"chat","message":"hi"`,
		"missing message":  `{"client":"alice","channel":"chat"}`,
		"null message":     `{"client":"alice","channel":"chat","message":null}`,
		"object message":   `{"client":"alice","channel":"chat","message":{"text":"hi"}}`,
		"empty channel":    `{"client":"alice","channel":"","message":"hi"}`,
		"missing channel":  `{"client":"alice","message":"hi"}`,
		"top-level string": `"hi"`,
	}
	for name, input := range malformed {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := pubsub.DecodeMessage([]byte(input))
			assert.ErrorIs(t, err, pubsub.ErrMalformedRecord)
		})
	}
}

func TestEncodeAction(t *testing.T) {
	t.Parallel()

	data, err := pubsub.EncodeAction(pubsub.Action{Client: "alice", Channel: "chat", Kind: pubsub.ActionSubscribe})
	require.NoError(t, err)
	assert.JSONEq(t, `{"client":"alice","channel":"chat","action":"subscribe"}`, string(data))

	_, err = pubsub.EncodeAction(pubsub.Action{Client: "alice", Kind: pubsub.ActionSubscribe})
	assert.ErrorIs(t, err, pubsub.ErrEmptyChannel)

	_, err = pubsub.EncodeAction(pubsub.Action{Client: "alice", Channel: "chat", Kind: "join"})
	assert.ErrorIs(t, err, pubsub.ErrMalformedRecord)

	_, err = pubsub.EncodeAction(pubsub.Action{Client: "b:c", Channel: "a", Kind: pubsub.ActionSubscribe})
	assert.ErrorIs(t, err, pubsub.ErrInvalidClientID)
}

func TestListenerMapBlob(t *testing.T) {
	t.Parallel()

	t.Run("absent blob is an empty map", func(t *testing.T) {
		t.Parallel()
		m, err := pubsub.DecodeListenerMap(nil)
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	t.Run("duplicates collapse and empty channels drop", func(t *testing.T) {
		t.Parallel()
		m, err := pubsub.DecodeListenerMap([]byte(`{"chat":["alice","bob","alice"],"news":[]}`))
		require.NoError(t, err)
		assert.Equal(t, pubsub.ListenerMap{"chat": {"alice", "bob"}}, m)
	})

	t.Run("wire format is channel to array of ids", func(t *testing.T) {
		t.Parallel()
		data, err := pubsub.EncodeListenerMap(pubsub.ListenerMap{"chat": {"alice"}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"chat":["alice"]}`, string(data))

		data, err = pubsub.EncodeListenerMap(nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(data))
	})

	t.Run("structurally invalid", func(t *testing.T) {
		t.Parallel()
		for _, input := range []string{`[]`, `{"chat":"alice"}`, `{"chat":[1,2]}`, `nope`} {
			_, err := pubsub.DecodeListenerMap([]byte(input))
			assert.ErrorIs(t, err, pubsub.ErrMalformedRecord, input)
		}
	})
}
