package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// sponsoredPostRequest is the JSON body for create and update. Price is
// kept raw so a non-integer number is a validation error while a value of
// any other JSON type is malformed input.
type sponsoredPostRequest struct {
	Title *string         `json:"title"`
	Body  *string         `json:"body"`
	Price json.RawMessage `json:"price"`
}

var errPriceNotNumber = errors.New("price must be a JSON number")

// priceLiteral returns the price as written, or "" when it is absent or null.
func (req sponsoredPostRequest) priceLiteral() (string, error) {
	raw := bytes.TrimSpace(req.Price)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return "", errPriceNotNumber
	}
	return string(raw), nil
}

type apiError struct {
	Error  string           `json:"error"`
	Fields ValidationErrors `json:"fields,omitempty"`
}

func apiSponsoredPostPath(topicID, id int64) string {
	return fmt.Sprintf("/api/v1/topics/%d/sponsored_posts/%d", topicID, id)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeAPIError answers with the status the error classifies as.
func (s *SponsorService) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	s.recordError(r.Context(), status, err)

	body := apiError{Error: strings.ToLower(http.StatusText(status))}

	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		body.Error = "validation failed"
		body.Fields = verrs
	}

	writeJSON(w, status, body)
}

func decodeSponsoredPostRequest(r *http.Request) (sponsoredPostRequest, error) {
	var req sponsoredPostRequest

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		return req, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return req, errors.New("request body must contain a single JSON object")
	}
	return req, nil
}

func (s *SponsorService) writeMalformed(w http.ResponseWriter, r *http.Request, err error) {
	s.recordError(r.Context(), http.StatusBadRequest, err)
	writeJSON(w, http.StatusBadRequest, apiError{Error: "malformed JSON: " + err.Error()})
}

func sanitized(v *string) *string {
	if v == nil {
		return nil
	}
	out := SanitizeInput(*v)
	return &out
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// APIListSponsoredPosts returns every sponsored post of the topic.
func (s *SponsorService) APIListSponsoredPosts(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "APIListSponsoredPosts")
	defer span.End()
	r = r.WithContext(ctx)

	topic, err := s.currentTopic(r)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	posts, err := s.queries.ListTopicSponsoredPosts(ctx, topic.ID)
	if err != nil {
		s.writeAPIError(w, r, fmt.Errorf("list sponsored posts: %w", err))
		return
	}
	if posts == nil {
		posts = []SponsoredPost{}
	}

	writeJSON(w, http.StatusOK, posts)
}

func (s *SponsorService) APIShowSponsoredPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "APIShowSponsoredPost")
	defer span.End()
	r = r.WithContext(ctx)

	_, post, err := s.findSponsoredPost(r)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// APICreateSponsoredPost stores a record and answers 201 with its location.
func (s *SponsorService) APICreateSponsoredPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "APICreateSponsoredPost")
	defer span.End()
	r = r.WithContext(ctx)

	topic, err := s.currentTopic(r)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	req, err := decodeSponsoredPostRequest(r)
	if err != nil {
		s.writeMalformed(w, r, err)
		return
	}

	rawPrice, err := req.priceLiteral()
	if err != nil {
		s.writeMalformed(w, r, err)
		return
	}

	title, body := deref(sanitized(req.Title)), deref(sanitized(req.Body))

	price, verrs := ValidateSponsoredPostForm(title, body, rawPrice)
	if len(verrs) > 0 {
		s.writeAPIError(w, r, verrs)
		return
	}

	post, err := s.queries.CreateSponsoredPost(ctx, CreateSponsoredPostParams{
		TopicID: topic.ID,
		Title:   title,
		Body:    body,
		Price:   price,
	})
	if err != nil {
		s.writeAPIError(w, r, fmt.Errorf("create sponsored post: %w", err))
		return
	}

	s.recordMutation(ctx, "create", topic.ID, post.ID)
	w.Header().Set("Location", apiSponsoredPostPath(topic.ID, post.ID))
	writeJSON(w, http.StatusCreated, post)
}

// APIUpdateSponsoredPost serves both PUT and PATCH. Only title and body
// are applied; a price in the body is ignored.
func (s *SponsorService) APIUpdateSponsoredPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "APIUpdateSponsoredPost")
	defer span.End()
	r = r.WithContext(ctx)

	topic, post, err := s.findSponsoredPost(r)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	req, err := decodeSponsoredPostRequest(r)
	if err != nil {
		s.writeMalformed(w, r, err)
		return
	}

	title, body := sanitized(req.Title), sanitized(req.Body)
	if verrs := ValidateSponsoredPostUpdate(title, body); len(verrs) > 0 {
		s.writeAPIError(w, r, verrs)
		return
	}

	updated, err := s.queries.UpdateSponsoredPost(ctx, UpdateSponsoredPostParams{
		TopicID: topic.ID,
		ID:      post.ID,
		Title:   optionalText(title),
		Body:    optionalText(body),
	})
	if err != nil {
		s.writeAPIError(w, r, fmt.Errorf("update sponsored post %d: %w", post.ID, err))
		return
	}

	s.recordMutation(ctx, "update", topic.ID, updated.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (s *SponsorService) APIDestroySponsoredPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "APIDestroySponsoredPost")
	defer span.End()
	r = r.WithContext(ctx)

	topic, err := s.currentTopic(r)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	id, err := s.destroySponsoredPost(r, topic)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	s.recordMutation(ctx, "destroy", topic.ID, id)
	w.WriteHeader(http.StatusNoContent)
}
