package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTelemetry(t *testing.T) (*TelemetryConfig, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	tc := newTestTelemetry(t)
	tc.Tracer = provider.Tracer("test")
	return tc, recorder
}

func TestTracedQueriesRecordsSpans(t *testing.T) {
	tc, recorder := newRecordingTelemetry(t)
	mock := NewMockQueries()
	topic := mock.seedTopic("Gardening")
	q := NewTracedQueries(mock, tc)

	post, err := q.CreateSponsoredPost(context.Background(), CreateSponsoredPostParams{
		TopicID: topic.ID,
		Title:   "Seed catalog",
		Body:    "Spring sale",
		Price:   88,
	})
	require.NoError(t, err)

	got, err := q.GetSponsoredPost(context.Background(), GetSponsoredPostParams{TopicID: topic.ID, ID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, post, got)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "CreateSponsoredPost(query)", spans[0].Name())
	assert.Equal(t, "GetSponsoredPost(query)", spans[1].Name())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}

func TestTracedQueriesNotFoundIsNotAnError(t *testing.T) {
	tc, recorder := newRecordingTelemetry(t)
	q := NewTracedQueries(NewMockQueries(), tc)

	_, err := q.GetTopic(context.Background(), 42)

	require.Error(t, err)
	assert.True(t, isNotFound(err))
	assert.Contains(t, err.Error(), "query GetTopic")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTracedQueriesFailure(t *testing.T) {
	tc, recorder := newRecordingTelemetry(t)
	mock := NewMockQueries()
	mock.ListTopicsFunc = func(ctx context.Context) ([]ListTopicsRow, error) {
		return nil, errMockDatabase
	}
	q := NewTracedQueries(mock, tc)

	_, err := q.ListTopics(context.Background())

	assert.ErrorIs(t, err, errMockDatabase)
	assert.Equal(t, 500, statusForError(err))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
