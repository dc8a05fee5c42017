package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n1core/domain/insight"
	"n1core/internal"
	"n1core/ports"
)

type recordingWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishKeysByAthlete(t *testing.T) {
	w := &recordingWriter{}
	p := &Publisher{writer: w, topic: "n1.insights", logger: internal.Discard}

	envs := []ports.InsightEnvelope{
		{Insight: &insight.Record{ID: "i-1", AthleteID: "ath-1", RuleID: "load_spike", Mode: insight.ModeSuggest}, Narration: "load is up"},
		{Insight: nil},
		{Insight: &insight.Record{ID: "i-2", AthleteID: "ath-1", RuleID: "readiness_context", Mode: insight.ModeInform}},
	}
	require.NoError(t, p.Publish(context.Background(), envs))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "ath-1", string(w.msgs[0].Key))
	assert.Equal(t, kafkago.Header{Key: "envelope_version", Value: []byte("1")}, w.msgs[0].Headers[0])
	assert.Equal(t, "suggest", string(w.msgs[0].Headers[2].Value))

	var decoded ports.InsightEnvelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "load is up", decoded.Narration)
	assert.Equal(t, "i-1", decoded.Insight.ID.String())
}

func TestPublishNothing(t *testing.T) {
	w := &recordingWriter{err: errors.New("unreachable")}
	p := &Publisher{writer: w, topic: "n1.insights", logger: internal.Discard}
	assert.NoError(t, p.Publish(context.Background(), nil))
}

func TestPublishWriterError(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := &Publisher{writer: w, topic: "n1.insights", logger: internal.Discard}
	err := p.Publish(context.Background(), []ports.InsightEnvelope{{Insight: &insight.Record{ID: "i-1", AthleteID: "a"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}
