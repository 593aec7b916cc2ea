package main

import (
	"context"
)

const createPost = `-- name: CreatePost :one
INSERT INTO posts (topic_id, title, body)
VALUES ($1, $2, $3)
RETURNING id, topic_id, title, body, created_at, updated_at
`

type CreatePostParams struct {
	TopicID int64  `json:"topic_id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) (Post, error) {
	row := q.db.QueryRow(ctx, createPost, arg.TopicID, arg.Title, arg.Body)
	var i Post
	err := row.Scan(
		&i.ID,
		&i.TopicID,
		&i.Title,
		&i.Body,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTopicPosts = `-- name: ListTopicPosts :many
SELECT id, topic_id, title, body, created_at, updated_at
FROM posts
WHERE topic_id = $1
ORDER BY id
`

func (q *Queries) ListTopicPosts(ctx context.Context, topicID int64) ([]Post, error) {
	rows, err := q.db.Query(ctx, listTopicPosts, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Post
	for rows.Next() {
		var i Post
		if err := rows.Scan(
			&i.ID,
			&i.TopicID,
			&i.Title,
			&i.Body,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
