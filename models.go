package main

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Post struct {
	ID        int64              `json:"id"`
	TopicID   int64              `json:"topic_id"`
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type SponsoredPost struct {
	ID        int64              `json:"id"`
	TopicID   int64              `json:"topic_id"`
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	Price     int64              `json:"price"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type Topic struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
}
