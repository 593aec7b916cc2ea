package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createTopic = `-- name: CreateTopic :one
INSERT INTO topics (name, description)
VALUES ($1, $2)
RETURNING id, name, description, created_at, updated_at
`

type CreateTopicParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (q *Queries) CreateTopic(ctx context.Context, arg CreateTopicParams) (Topic, error) {
	row := q.db.QueryRow(ctx, createTopic, arg.Name, arg.Description)
	var i Topic
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteTopic = `-- name: DeleteTopic :execrows
DELETE FROM topics
WHERE id = $1
`

func (q *Queries) DeleteTopic(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteTopic, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getTopic = `-- name: GetTopic :one
SELECT id, name, description, created_at, updated_at
FROM topics
WHERE id = $1
`

func (q *Queries) GetTopic(ctx context.Context, id int64) (Topic, error) {
	row := q.db.QueryRow(ctx, getTopic, id)
	var i Topic
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTopics = `-- name: ListTopics :many
SELECT
    t.id,
    t.name,
    t.description,
    t.created_at,
    count(sp.id) AS sponsored_post_count
FROM topics t
LEFT JOIN sponsored_posts sp ON sp.topic_id = t.id
GROUP BY t.id
ORDER BY t.id
`

type ListTopicsRow struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	CreatedAt          pgtype.Timestamptz `json:"created_at"`
	SponsoredPostCount int64              `json:"sponsored_post_count"`
}

func (q *Queries) ListTopics(ctx context.Context) ([]ListTopicsRow, error) {
	rows, err := q.db.Query(ctx, listTopics)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListTopicsRow
	for rows.Next() {
		var i ListTopicsRow
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Description,
			&i.CreatedAt,
			&i.SponsoredPostCount,
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
