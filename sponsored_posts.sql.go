package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const countSponsoredPosts = `-- name: CountSponsoredPosts :one
SELECT count(*) FROM sponsored_posts
`

func (q *Queries) CountSponsoredPosts(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countSponsoredPosts)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createSponsoredPost = `-- name: CreateSponsoredPost :one
INSERT INTO sponsored_posts (topic_id, title, body, price)
VALUES ($1, $2, $3, $4)
RETURNING id, topic_id, title, body, price, created_at, updated_at
`

type CreateSponsoredPostParams struct {
	TopicID int64  `json:"topic_id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Price   int64  `json:"price"`
}

func (q *Queries) CreateSponsoredPost(ctx context.Context, arg CreateSponsoredPostParams) (SponsoredPost, error) {
	row := q.db.QueryRow(ctx, createSponsoredPost,
		arg.TopicID,
		arg.Title,
		arg.Body,
		arg.Price,
	)
	var i SponsoredPost
	err := row.Scan(
		&i.ID,
		&i.TopicID,
		&i.Title,
		&i.Body,
		&i.Price,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteSponsoredPost = `-- name: DeleteSponsoredPost :execrows
DELETE FROM sponsored_posts
WHERE topic_id = $1 AND id = $2
`

type DeleteSponsoredPostParams struct {
	TopicID int64 `json:"topic_id"`
	ID      int64 `json:"id"`
}

func (q *Queries) DeleteSponsoredPost(ctx context.Context, arg DeleteSponsoredPostParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteSponsoredPost, arg.TopicID, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getSponsoredPost = `-- name: GetSponsoredPost :one
SELECT id, topic_id, title, body, price, created_at, updated_at
FROM sponsored_posts
WHERE topic_id = $1 AND id = $2
`

type GetSponsoredPostParams struct {
	TopicID int64 `json:"topic_id"`
	ID      int64 `json:"id"`
}

func (q *Queries) GetSponsoredPost(ctx context.Context, arg GetSponsoredPostParams) (SponsoredPost, error) {
	row := q.db.QueryRow(ctx, getSponsoredPost, arg.TopicID, arg.ID)
	var i SponsoredPost
	err := row.Scan(
		&i.ID,
		&i.TopicID,
		&i.Title,
		&i.Body,
		&i.Price,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTopicSponsoredPosts = `-- name: ListTopicSponsoredPosts :many
SELECT id, topic_id, title, body, price, created_at, updated_at
FROM sponsored_posts
WHERE topic_id = $1
ORDER BY id
`

func (q *Queries) ListTopicSponsoredPosts(ctx context.Context, topicID int64) ([]SponsoredPost, error) {
	rows, err := q.db.Query(ctx, listTopicSponsoredPosts, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SponsoredPost
	for rows.Next() {
		var i SponsoredPost
		if err := rows.Scan(
			&i.ID,
			&i.TopicID,
			&i.Title,
			&i.Body,
			&i.Price,
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

const updateSponsoredPost = `-- name: UpdateSponsoredPost :one
UPDATE sponsored_posts
SET
    title = COALESCE($3, title),
    body = COALESCE($4, body),
    updated_at = now()
WHERE topic_id = $1 AND id = $2
RETURNING id, topic_id, title, body, price, created_at, updated_at
`

// UpdateSponsoredPostParams carries optional title and body. Price is
// never written after creation.
type UpdateSponsoredPostParams struct {
	TopicID int64       `json:"topic_id"`
	ID      int64       `json:"id"`
	Title   pgtype.Text `json:"title"`
	Body    pgtype.Text `json:"body"`
}

func (q *Queries) UpdateSponsoredPost(ctx context.Context, arg UpdateSponsoredPostParams) (SponsoredPost, error) {
	row := q.db.QueryRow(ctx, updateSponsoredPost,
		arg.TopicID,
		arg.ID,
		arg.Title,
		arg.Body,
	)
	var i SponsoredPost
	err := row.Scan(
		&i.ID,
		&i.TopicID,
		&i.Title,
		&i.Body,
		&i.Price,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
