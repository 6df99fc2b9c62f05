package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/transpool/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishMatch(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducer(w)
	created := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)

	err := p.PublishMatch(context.Background(), models.MatchDTO{
		ID:        4,
		Request:   models.RequestDTO{ID: 1, RiderID: "rita"},
		Drivers:   []string{"dave"},
		CreatedAt: created,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "rita", string(w.msgs[0].Key))

	var ev MatchEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, 4, ev.Match.ID)
	assert.True(t, created.Equal(ev.OccurredAt))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishMatchPropagatesWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewProducer(&fakeWriter{err: boom})
	err := p.PublishMatch(context.Background(), models.MatchDTO{ID: 1})
	assert.ErrorIs(t, err, boom)
}
