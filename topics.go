package main

import (
	"fmt"
	"net/http"
)

// ListTopics renders every topic with its sponsored post count.
func (s *SponsorService) ListTopics(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "ListTopics")
	defer span.End()
	r = r.WithContext(ctx)

	topics, err := s.queries.ListTopics(ctx)
	if err != nil {
		s.handleError(w, r, fmt.Errorf("list topics: %w", err))
		return
	}

	data := s.pageData(r, "Topics", "topics")
	data["Topics"] = topics
	s.renderTemplate(w, r, http.StatusOK, "topics.html", data)
}

func (s *SponsorService) NewTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "NewTopic")
	defer span.End()
	r = r.WithContext(ctx)

	s.renderTopicForm(w, r, http.StatusOK, formValues{}, nil)
}

func (s *SponsorService) CreateTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "CreateTopic")
	defer span.End()
	r = r.WithContext(ctx)

	if err := r.ParseForm(); err != nil {
		s.renderStatus(w, r, http.StatusBadRequest)
		return
	}

	form := formValues{
		"name":        SanitizeInput(r.PostForm.Get("name")),
		"description": SanitizeInput(r.PostForm.Get("description")),
	}

	if verrs := ValidateTopicForm(form["name"], form["description"]); len(verrs) > 0 {
		s.recordError(ctx, http.StatusUnprocessableEntity, verrs)
		s.renderTopicForm(w, r, http.StatusUnprocessableEntity, form, verrs)
		return
	}

	topic, err := s.queries.CreateTopic(ctx, CreateTopicParams{
		Name:        form["name"],
		Description: form["description"],
	})
	if err != nil {
		s.handleError(w, r, fmt.Errorf("create topic: %w", err))
		return
	}

	http.Redirect(w, r, topicPath(topic.ID), http.StatusSeeOther)
}

// ShowTopic renders a topic with its sponsored posts and posts.
func (s *SponsorService) ShowTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "ShowTopic")
	defer span.End()
	r = r.WithContext(ctx)

	topic, err := s.currentTopic(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.renderTopic(w, r, http.StatusOK, topic, formValues{}, nil)
}

// DestroyTopic deletes the topic together with everything it owns.
func (s *SponsorService) DestroyTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "DestroyTopic")
	defer span.End()
	r = r.WithContext(ctx)

	topic, err := s.currentTopic(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	n, err := s.queries.DeleteTopic(ctx, topic.ID)
	if err != nil {
		s.handleError(w, r, fmt.Errorf("delete topic %d: %w", topic.ID, err))
		return
	}
	if n == 0 {
		s.handleError(w, r, fmt.Errorf("topic %d: %w", topic.ID, ErrNotFound))
		return
	}

	http.Redirect(w, r, "/topics", http.StatusSeeOther)
}

func (s *SponsorService) renderTopicForm(w http.ResponseWriter, r *http.Request, status int, form formValues, verrs ValidationErrors) {
	data := s.pageData(r, "New topic", "topic_new")
	data["Form"] = form
	data["Errors"] = verrs.ByField()
	s.renderTemplate(w, r, status, "topic_new.html", data)
}

// renderTopic renders the topic page. postForm and verrs carry a rejected
// post submission.
func (s *SponsorService) renderTopic(w http.ResponseWriter, r *http.Request, status int, topic Topic, postForm formValues, verrs ValidationErrors) {
	ctx := r.Context()

	sponsored, err := s.queries.ListTopicSponsoredPosts(ctx, topic.ID)
	if err != nil {
		s.handleError(w, r, fmt.Errorf("list sponsored posts: %w", err))
		return
	}

	posts, err := s.queries.ListTopicPosts(ctx, topic.ID)
	if err != nil {
		s.handleError(w, r, fmt.Errorf("list posts: %w", err))
		return
	}

	sponsoredViews := make([]SponsoredPostView, len(sponsored))
	for i, p := range sponsored {
		sponsoredViews[i] = newSponsoredPostView(p)
	}

	postViews := make([]PostView, len(posts))
	for i, p := range posts {
		postViews[i] = newPostView(p)
	}

	data := s.pageData(r, topic.Name, "topic")
	data["Topic"] = topic
	data["SponsoredPosts"] = sponsoredViews
	data["Posts"] = postViews
	data["Form"] = postForm
	data["Errors"] = verrs.ByField()
	s.renderTemplate(w, r, status, "topic.html", data)
}
