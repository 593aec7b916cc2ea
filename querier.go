package main

import (
	"context"
)

type Querier interface {
	CountSponsoredPosts(ctx context.Context) (int64, error)
	CreatePost(ctx context.Context, arg CreatePostParams) (Post, error)
	CreateSponsoredPost(ctx context.Context, arg CreateSponsoredPostParams) (SponsoredPost, error)
	CreateTopic(ctx context.Context, arg CreateTopicParams) (Topic, error)
	DeleteSponsoredPost(ctx context.Context, arg DeleteSponsoredPostParams) (int64, error)
	DeleteTopic(ctx context.Context, id int64) (int64, error)
	GetSponsoredPost(ctx context.Context, arg GetSponsoredPostParams) (SponsoredPost, error)
	GetTopic(ctx context.Context, id int64) (Topic, error)
	ListTopicPosts(ctx context.Context, topicID int64) ([]Post, error)
	ListTopicSponsoredPosts(ctx context.Context, topicID int64) ([]SponsoredPost, error)
	ListTopics(ctx context.Context) ([]ListTopicsRow, error)
	UpdateSponsoredPost(ctx context.Context, arg UpdateSponsoredPostParams) (SponsoredPost, error)
}

var _ Querier = (*Queries)(nil)
