package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lineage/internal/platform/kafka/consumer"
	"lineage/pkg/platform/eventlog"
)

type fakeFeedStore struct {
	appended map[uuid.UUID]eventlog.Event
	err      error
}

func (f *fakeFeedStore) AppendWithID(_ context.Context, eventID uuid.UUID, event eventlog.Event) error {
	if f.err != nil {
		return f.err
	}
	if f.appended == nil {
		f.appended = make(map[uuid.UUID]eventlog.Event)
	}
	f.appended[eventID] = event
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestFeedHandler_MaterializesEvent(t *testing.T) {
	store := &fakeFeedStore{}
	h := NewFeedHandler(store, testLogger())

	eventID := uuid.New()
	event := eventlog.Event{
		ID:     eventID,
		Action: eventlog.ActionAgentSpawned,
		Depth:  2,
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	msg := &consumer.Message{
		Topic: "lineage.agent.events",
		Key:   []byte(eventID.String()),
		Value: payload,
	}
	require.NoError(t, h.Handle(context.Background(), msg))

	stored, ok := store.appended[eventID]
	require.True(t, ok)
	assert.Equal(t, eventlog.ActionAgentSpawned, stored.Action)
	assert.Equal(t, uint8(2), stored.Depth)
}

func TestFeedHandler_SkipsMalformedMessages(t *testing.T) {
	store := &fakeFeedStore{}
	h := NewFeedHandler(store, testLogger())

	t.Run("bad key commits without storing", func(t *testing.T) {
		msg := &consumer.Message{Key: []byte("not-a-uuid"), Value: []byte("{}")}
		assert.NoError(t, h.Handle(context.Background(), msg))
		assert.Empty(t, store.appended)
	})

	t.Run("bad payload commits without storing", func(t *testing.T) {
		msg := &consumer.Message{Key: []byte(uuid.New().String()), Value: []byte("{broken")}
		assert.NoError(t, h.Handle(context.Background(), msg))
		assert.Empty(t, store.appended)
	})

	t.Run("missing action commits without storing", func(t *testing.T) {
		msg := &consumer.Message{Key: []byte(uuid.New().String()), Value: []byte("{}")}
		assert.NoError(t, h.Handle(context.Background(), msg))
		assert.Empty(t, store.appended)
	})
}

func TestFeedHandler_StoreFailureForcesRedelivery(t *testing.T) {
	store := &fakeFeedStore{err: errors.New("connection reset")}
	h := NewFeedHandler(store, testLogger())

	eventID := uuid.New()
	payload, err := json.Marshal(eventlog.Event{ID: eventID, Action: eventlog.ActionEarningRecorded})
	require.NoError(t, err)

	msg := &consumer.Message{Key: []byte(eventID.String()), Value: payload}
	assert.Error(t, h.Handle(context.Background(), msg), "store failures must not be committed")
}

func TestRouter_DispatchesByTopic(t *testing.T) {
	store := &fakeFeedStore{}
	h := NewFeedHandler(store, testLogger())
	router := NewRouter(testLogger(), nil)
	router.Register("lineage.agent.events", h)

	eventID := uuid.New()
	payload, err := json.Marshal(eventlog.Event{ID: eventID, Action: eventlog.ActionAgentRegistered})
	require.NoError(t, err)

	known := &consumer.Message{Topic: "lineage.agent.events", Key: []byte(eventID.String()), Value: payload}
	require.NoError(t, router.Handle(context.Background(), known))
	assert.Len(t, store.appended, 1)

	unknown := &consumer.Message{Topic: "other.topic", Key: []byte("k")}
	assert.NoError(t, router.Handle(context.Background(), unknown), "unknown topics commit and skip")
}
