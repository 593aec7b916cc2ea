package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func sponsoredPostPath(topicID, id int64) string {
	return fmt.Sprintf("/topics/%d/sponsored_posts/%d", topicID, id)
}

func topicPath(topicID int64) string {
	return fmt.Sprintf("/topics/%d", topicID)
}

// findSponsoredPost loads the {id} record within the scoped topic. A record
// of another topic is not found.
func (s *SponsorService) findSponsoredPost(r *http.Request) (Topic, SponsoredPost, error) {
	topic, err := s.currentTopic(r)
	if err != nil {
		return Topic{}, SponsoredPost{}, err
	}

	id, err := pathID(r, "id")
	if err != nil {
		return topic, SponsoredPost{}, err
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("sponsored_post.id", id))

	post, err := s.queries.GetSponsoredPost(r.Context(), GetSponsoredPostParams{TopicID: topic.ID, ID: id})
	if err != nil {
		return topic, SponsoredPost{}, fmt.Errorf("sponsored post %d in topic %d: %w", id, topic.ID, err)
	}

	return topic, post, nil
}

// ShowSponsoredPost renders a single sponsored post.
func (s *SponsorService) ShowSponsoredPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "ShowSponsoredPost")
	defer span.End()
	r = r.WithContext(ctx)

	topic, post, err := s.findSponsoredPost(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	view := newSponsoredPostView(post)
	data := s.pageData(r, view.Title, "show")
	data["Topic"] = topic
	data["SponsoredPost"] = view
	s.renderTemplate(w, r, http.StatusOK, "sponsored_post_show.html", data)
}

// NewSponsoredPost renders an empty form bound to the topic.
func (s *SponsorService) NewSponsoredPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "NewSponsoredPost")
	defer span.End()
	r = r.WithContext(ctx)

	topic, err := s.currentTopic(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.renderSponsoredPostForm(w, r, http.StatusOK, "new", topic, SponsoredPost{TopicID: topic.ID}, formValues{}, nil)
}

// CreateSponsoredPost validates the form and stores a new record under the
// topic. Invalid input is shown again with status 422.
func (s *SponsorService) CreateSponsoredPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "CreateSponsoredPost")
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
		"price": strings.TrimSpace(r.PostForm.Get("price")),
	}

	price, verrs := ValidateSponsoredPostForm(form["title"], form["body"], form["price"])
	if len(verrs) > 0 {
		s.recordError(ctx, http.StatusUnprocessableEntity, verrs)
		s.renderSponsoredPostForm(w, r, http.StatusUnprocessableEntity, "new", topic, SponsoredPost{TopicID: topic.ID}, form, verrs)
		return
	}

	post, err := s.queries.CreateSponsoredPost(ctx, CreateSponsoredPostParams{
		TopicID: topic.ID,
		Title:   form["title"],
		Body:    form["body"],
		Price:   price,
	})
	if err != nil {
		s.handleError(w, r, fmt.Errorf("create sponsored post: %w", err))
		return
	}

	s.recordMutation(ctx, "create", topic.ID, post.ID)
	http.Redirect(w, r, sponsoredPostPath(topic.ID, post.ID), http.StatusSeeOther)
}

// EditSponsoredPost renders the edit form filled with the stored record.
func (s *SponsorService) EditSponsoredPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "EditSponsoredPost")
	defer span.End()
	r = r.WithContext(ctx)

	topic, post, err := s.findSponsoredPost(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	form := formValues{
		"title": post.Title,
		"body":  post.Body,
		"price": strconv.FormatInt(post.Price, 10),
	}
	s.renderSponsoredPostForm(w, r, http.StatusOK, "edit", topic, post, form, nil)
}

// UpdateSponsoredPost changes title and body. Fields missing from the form
// are left alone, and price is never written.
func (s *SponsorService) UpdateSponsoredPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "UpdateSponsoredPost")
	defer span.End()
	r = r.WithContext(ctx)

	topic, post, err := s.findSponsoredPost(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.renderStatus(w, r, http.StatusBadRequest)
		return
	}

	var title, body *string
	form := formValues{"title": post.Title, "body": post.Body, "price": strconv.FormatInt(post.Price, 10)}
	if r.PostForm.Has("title") {
		v := SanitizeInput(r.PostForm.Get("title"))
		title = &v
		form["title"] = v
	}
	if r.PostForm.Has("body") {
		v := SanitizeInput(r.PostForm.Get("body"))
		body = &v
		form["body"] = v
	}

	if verrs := ValidateSponsoredPostUpdate(title, body); len(verrs) > 0 {
		s.recordError(ctx, http.StatusUnprocessableEntity, verrs)
		s.renderSponsoredPostForm(w, r, http.StatusUnprocessableEntity, "edit", topic, post, form, verrs)
		return
	}

	updated, err := s.queries.UpdateSponsoredPost(ctx, UpdateSponsoredPostParams{
		TopicID: topic.ID,
		ID:      post.ID,
		Title:   optionalText(title),
		Body:    optionalText(body),
	})
	if err != nil {
		s.handleError(w, r, fmt.Errorf("update sponsored post %d: %w", post.ID, err))
		return
	}

	s.recordMutation(ctx, "update", topic.ID, updated.ID)
	http.Redirect(w, r, sponsoredPostPath(topic.ID, updated.ID), http.StatusSeeOther)
}

// DestroySponsoredPost deletes the record and returns to its topic.
func (s *SponsorService) DestroySponsoredPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "DestroySponsoredPost")
	defer span.End()
	r = r.WithContext(ctx)

	topic, err := s.currentTopic(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	id, err := s.destroySponsoredPost(r, topic)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.recordMutation(ctx, "destroy", topic.ID, id)
	http.Redirect(w, r, topicPath(topic.ID), http.StatusSeeOther)
}

func (s *SponsorService) destroySponsoredPost(r *http.Request, topic Topic) (int64, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return 0, err
	}

	n, err := s.queries.DeleteSponsoredPost(r.Context(), DeleteSponsoredPostParams{TopicID: topic.ID, ID: id})
	if err != nil {
		return 0, fmt.Errorf("delete sponsored post %d: %w", id, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("sponsored post %d in topic %d: %w", id, topic.ID, ErrNotFound)
	}
	return id, nil
}

func (s *SponsorService) renderSponsoredPostForm(w http.ResponseWriter, r *http.Request, status int, view string, topic Topic, post SponsoredPost, form formValues, verrs ValidationErrors) {
	title := "New sponsored post"
	tmpl := "sponsored_post_new.html"
	if view == "edit" {
		title = "Edit sponsored post"
		tmpl = "sponsored_post_edit.html"
	}

	data := s.pageData(r, title, view)
	data["Topic"] = topic
	data["SponsoredPost"] = post
	data["Form"] = form
	data["Errors"] = verrs.ByField()
	s.renderTemplate(w, r, status, tmpl, data)
}

func (s *SponsorService) renderStatus(w http.ResponseWriter, r *http.Request, status int) {
	data := s.pageData(r, http.StatusText(status), "error")
	data["Status"] = status
	s.renderTemplate(w, r, status, "error.html", data)
}

func optionalText(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}
