package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TracedQueries decorates a Querier with one span and one duration sample
// per query.
type TracedQueries struct {
	wrapped   Querier
	telemetry *TelemetryConfig
}

var _ Querier = (*TracedQueries)(nil)

// NewTracedQueries creates a new TracedQueries that decorates an existing Querier
func NewTracedQueries(wrapped Querier, telemetry *TelemetryConfig) *TracedQueries {
	return &TracedQueries{
		wrapped:   wrapped,
		telemetry: telemetry,
	}
}

// recordMetrics records query duration to both the OTEL histogram and the
// Prometheus histogram.
func (t *TracedQueries) recordMetrics(ctx context.Context, queryName string, duration float64) {
	if t.telemetry.Metrics.DBQueryDuration != nil {
		t.telemetry.Metrics.DBQueryDuration.Record(ctx, duration,
			metric.WithAttributes(
				attribute.String("query", queryName),
			),
		)
	}

	queryDuration.WithLabelValues(queryName).Observe(duration)
}

func traceQuery[T any](ctx context.Context, t *TracedQueries, name string, fn func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span := t.telemetry.Tracer.Start(ctx, name+"(query)",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)
	duration := time.Since(start).Seconds()

	span.SetAttributes(attribute.Float64("request.duration", duration))
	t.recordMetrics(ctx, name, duration)

	if err != nil {
		span.RecordError(err)
		if isNotFound(err) {
			// A missing row is an expected outcome, not a failed query.
			span.SetStatus(codes.Unset, "")
		} else {
			span.SetStatus(codes.Error, err.Error())
		}
		return result, fmt.Errorf("query %s: %w", name, err)
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (t *TracedQueries) CountSponsoredPosts(ctx context.Context) (int64, error) {
	return traceQuery(ctx, t, "CountSponsoredPosts", func(ctx context.Context) (int64, error) {
		return t.wrapped.CountSponsoredPosts(ctx)
	})
}

func (t *TracedQueries) CreatePost(ctx context.Context, arg CreatePostParams) (Post, error) {
	return traceQuery(ctx, t, "CreatePost", func(ctx context.Context) (Post, error) {
		return t.wrapped.CreatePost(ctx, arg)
	}, attribute.Int64("topic.id", arg.TopicID))
}

func (t *TracedQueries) CreateSponsoredPost(ctx context.Context, arg CreateSponsoredPostParams) (SponsoredPost, error) {
	return traceQuery(ctx, t, "CreateSponsoredPost", func(ctx context.Context) (SponsoredPost, error) {
		return t.wrapped.CreateSponsoredPost(ctx, arg)
	}, attribute.Int64("topic.id", arg.TopicID), attribute.Int64("sponsored_post.price", arg.Price))
}

func (t *TracedQueries) CreateTopic(ctx context.Context, arg CreateTopicParams) (Topic, error) {
	return traceQuery(ctx, t, "CreateTopic", func(ctx context.Context) (Topic, error) {
		return t.wrapped.CreateTopic(ctx, arg)
	})
}

func (t *TracedQueries) DeleteSponsoredPost(ctx context.Context, arg DeleteSponsoredPostParams) (int64, error) {
	return traceQuery(ctx, t, "DeleteSponsoredPost", func(ctx context.Context) (int64, error) {
		return t.wrapped.DeleteSponsoredPost(ctx, arg)
	}, attribute.Int64("topic.id", arg.TopicID), attribute.Int64("sponsored_post.id", arg.ID))
}

func (t *TracedQueries) DeleteTopic(ctx context.Context, id int64) (int64, error) {
	return traceQuery(ctx, t, "DeleteTopic", func(ctx context.Context) (int64, error) {
		return t.wrapped.DeleteTopic(ctx, id)
	}, attribute.Int64("topic.id", id))
}

func (t *TracedQueries) GetSponsoredPost(ctx context.Context, arg GetSponsoredPostParams) (SponsoredPost, error) {
	return traceQuery(ctx, t, "GetSponsoredPost", func(ctx context.Context) (SponsoredPost, error) {
		return t.wrapped.GetSponsoredPost(ctx, arg)
	}, attribute.Int64("topic.id", arg.TopicID), attribute.Int64("sponsored_post.id", arg.ID))
}

func (t *TracedQueries) GetTopic(ctx context.Context, id int64) (Topic, error) {
	return traceQuery(ctx, t, "GetTopic", func(ctx context.Context) (Topic, error) {
		return t.wrapped.GetTopic(ctx, id)
	}, attribute.Int64("topic.id", id))
}

func (t *TracedQueries) ListTopicPosts(ctx context.Context, topicID int64) ([]Post, error) {
	return traceQuery(ctx, t, "ListTopicPosts", func(ctx context.Context) ([]Post, error) {
		return t.wrapped.ListTopicPosts(ctx, topicID)
	}, attribute.Int64("topic.id", topicID))
}

func (t *TracedQueries) ListTopicSponsoredPosts(ctx context.Context, topicID int64) ([]SponsoredPost, error) {
	return traceQuery(ctx, t, "ListTopicSponsoredPosts", func(ctx context.Context) ([]SponsoredPost, error) {
		return t.wrapped.ListTopicSponsoredPosts(ctx, topicID)
	}, attribute.Int64("topic.id", topicID))
}

func (t *TracedQueries) ListTopics(ctx context.Context) ([]ListTopicsRow, error) {
	return traceQuery(ctx, t, "ListTopics", func(ctx context.Context) ([]ListTopicsRow, error) {
		return t.wrapped.ListTopics(ctx)
	})
}

func (t *TracedQueries) UpdateSponsoredPost(ctx context.Context, arg UpdateSponsoredPostParams) (SponsoredPost, error) {
	return traceQuery(ctx, t, "UpdateSponsoredPost", func(ctx context.Context) (SponsoredPost, error) {
		return t.wrapped.UpdateSponsoredPost(ctx, arg)
	}, attribute.Int64("topic.id", arg.TopicID), attribute.Int64("sponsored_post.id", arg.ID))
}
