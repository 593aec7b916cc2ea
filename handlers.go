package main

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/imeyer/tsponsor/middleware"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// SponsoredPostView is a sponsored post prepared for a template.
type SponsoredPostView struct {
	ID        int64
	TopicID   int64
	Title     string
	Body      string
	BodyHTML  template.HTML
	Price     int64
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

func newSponsoredPostView(p SponsoredPost) SponsoredPostView {
	return SponsoredPostView{
		ID:      p.ID,
		TopicID: p.TopicID,
		Title:   parseHTMLStrict(p.Title),
		Body:    p.Body,
		// nosemgrep
		BodyHTML:  template.HTML(renderBody(p.Body)),
		Price:     p.Price,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type PostView struct {
	ID        int64
	Title     string
	BodyHTML  template.HTML
	CreatedAt pgtype.Timestamptz
}

func newPostView(p Post) PostView {
	return PostView{
		ID:    p.ID,
		Title: parseHTMLStrict(p.Title),
		// nosemgrep
		BodyHTML:  template.HTML(renderBody(p.Body)),
		CreatedAt: p.CreatedAt,
	}
}

// formValues holds submitted form fields so a rejected form can be shown
// again as typed.
type formValues map[string]string

func (s *SponsorService) pageData(r *http.Request, title, view string) map[string]interface{} {
	return map[string]interface{}{
		"Title":     title,
		"View":      view,
		"CSRFToken": GetCSRFToken(r),
		"Version":   s.version,
		"GitSha":    s.gitSha,
	}
}

// renderTemplate executes into a buffer first so a template failure can
// still be answered with a clean 500.
func (s *SponsorService) renderTemplate(w http.ResponseWriter, r *http.Request, status int, tmpl string, data map[string]interface{}) {
	var buf bytes.Buffer
	if err := s.tmpls.ExecuteTemplate(&buf, tmpl, data); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render template",
			slog.String("template", tmpl),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// handleError answers with the status the error classifies as. Only
// unclassified failures are logged at error level and mark the span.
func (s *SponsorService) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	s.recordError(r.Context(), status, err)

	data := s.pageData(r, http.StatusText(status), "error")
	data["Status"] = status
	s.renderTemplate(w, r, status, "error.html", data)
}

func (s *SponsorService) recordError(ctx context.Context, status int, err error) {
	logger := middleware.GetLogger(ctx)

	if status >= http.StatusInternalServerError {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "request failed", slog.String("error", err.Error()))
		return
	}

	logger.DebugContext(ctx, "request rejected",
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
}

// currentTopic returns the topic the request is scoped to.
func (s *SponsorService) currentTopic(r *http.Request) (Topic, error) {
	if topic, ok := middleware.ScopedTopic[Topic](r.Context()); ok {
		return topic, nil
	}

	id, err := pathID(r, "topic_id")
	if err != nil {
		return Topic{}, err
	}
	return s.queries.GetTopic(r.Context(), id)
}

// loadTopic is the loader used by the topic scope middleware.
func (s *SponsorService) loadTopic(ctx context.Context, id int64) (Topic, error) {
	return s.queries.GetTopic(ctx, id)
}

func (s *SponsorService) recordMutation(ctx context.Context, action string, topicID, id int64) {
	if s.telemetry.Metrics.SponsoredPostMutations != nil {
		s.telemetry.Metrics.SponsoredPostMutations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", action),
		))
	}

	middleware.GetLogger(ctx).InfoContext(ctx, "sponsored post changed",
		slog.String("action", action),
		slog.Int64("topic_id", topicID),
		slog.Int64("sponsored_post_id", id),
	)
}

// HealthCheck reports whether the database answers.
func (s *SponsorService) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.dbconn.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "health check failed", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
