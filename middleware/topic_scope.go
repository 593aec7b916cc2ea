package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrTopicNotFound is reported to the error callback when the topic_id
// path value cannot name a topic.
var ErrTopicNotFound = errors.New("topic not found")

// TopicScopeMiddleware resolves the {topic_id} path value with load and
// stores the result in the request context. Nested resources only run when
// their parent topic exists; any failure goes to onError.
func TopicScopeMiddleware[T any](
	load func(ctx context.Context, id int64) (T, error),
	onError func(w http.ResponseWriter, r *http.Request, err error),
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.PathValue("topic_id")
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				onError(w, r, fmt.Errorf("%w: invalid id %q", ErrTopicNotFound, raw))
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("topic.id", id))

			topic, err := load(r.Context(), id)
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyTopic, topic)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ScopedTopic returns the topic stored by TopicScopeMiddleware.
func ScopedTopic[T any](ctx context.Context) (T, bool) {
	topic, ok := ctx.Value(contextKeyTopic).(T)
	return topic, ok
}
