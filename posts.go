package main

import (
	"fmt"
	"net/http"
)

// CreatePost adds an ordinary post to the topic.
func (s *SponsorService) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "CreatePost")
	defer span.End()
	r = r.WithContext(ctx)

	topic, err := s.currentTopic(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.renderStatus(w, r, http.StatusBadRequest)
		return
	}

	form := formValues{
		"title": SanitizeInput(r.PostForm.Get("title")),
		"body":  SanitizeInput(r.PostForm.Get("body")),
	}

	if verrs := ValidatePostForm(form["title"], form["body"]); len(verrs) > 0 {
		s.recordError(ctx, http.StatusUnprocessableEntity, verrs)
		s.renderTopic(w, r, http.StatusUnprocessableEntity, topic, form, verrs)
		return
	}

	if _, err := s.queries.CreatePost(ctx, CreatePostParams{
		TopicID: topic.ID,
		Title:   form["title"],
		Body:    form["body"],
	}); err != nil {
		s.handleError(w, r, fmt.Errorf("create post: %w", err))
		return
	}

	http.Redirect(w, r, topicPath(topic.ID), http.StatusSeeOther)
}
