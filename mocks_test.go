package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"tailscale.com/ipn/ipnstate"
)

// MockQueries is an in-memory Querier. It scopes records by topic and
// cascades topic deletes the way the schema does. The Func fields override
// single methods for error injection.
type MockQueries struct {
	mu        sync.Mutex
	nextID    int64
	topics    map[int64]Topic
	sponsored map[int64]SponsoredPost
	posts     map[int64]Post

	GetTopicFunc                func(ctx context.Context, id int64) (Topic, error)
	ListTopicsFunc              func(ctx context.Context) ([]ListTopicsRow, error)
	CreateSponsoredPostFunc     func(ctx context.Context, arg CreateSponsoredPostParams) (SponsoredPost, error)
	UpdateSponsoredPostFunc     func(ctx context.Context, arg UpdateSponsoredPostParams) (SponsoredPost, error)
	DeleteSponsoredPostFunc     func(ctx context.Context, arg DeleteSponsoredPostParams) (int64, error)
	ListTopicSponsoredPostsFunc func(ctx context.Context, topicID int64) ([]SponsoredPost, error)
}

var _ Querier = (*MockQueries)(nil)

func NewMockQueries() *MockQueries {
	return &MockQueries{
		topics:    make(map[int64]Topic),
		sponsored: make(map[int64]SponsoredPost),
		posts:     make(map[int64]Post),
	}
}

func (m *MockQueries) id() int64 {
	m.nextID++
	return m.nextID
}

func mockTimestamp() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now(), Valid: true}
}

// foreignKeyViolation is what Postgres reports for an insert against a
// missing topic.
func foreignKeyViolation() error {
	return &pgconn.PgError{Code: pgForeignKeyViolation, Message: "violates foreign key constraint"}
}

// seedTopic stores a topic directly and returns it.
func (m *MockQueries) seedTopic(name string) Topic {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Topic{ID: m.id(), Name: name, CreatedAt: mockTimestamp(), UpdatedAt: mockTimestamp()}
	m.topics[t.ID] = t
	return t
}

// seedSponsoredPost stores a sponsored post directly and returns it.
func (m *MockQueries) seedSponsoredPost(topicID int64, title, body string, price int64) SponsoredPost {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := SponsoredPost{ID: m.id(), TopicID: topicID, Title: title, Body: body, Price: price, CreatedAt: mockTimestamp(), UpdatedAt: mockTimestamp()}
	m.sponsored[p.ID] = p
	return p
}

// sponsoredPost returns the stored record regardless of topic.
func (m *MockQueries) sponsoredPost(id int64) (SponsoredPost, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.sponsored[id]
	return p, ok
}

func (m *MockQueries) CountSponsoredPosts(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.sponsored)), nil
}

func (m *MockQueries) CreatePost(ctx context.Context, arg CreatePostParams) (Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.topics[arg.TopicID]; !ok {
		return Post{}, foreignKeyViolation()
	}

	p := Post{ID: m.id(), TopicID: arg.TopicID, Title: arg.Title, Body: arg.Body, CreatedAt: mockTimestamp(), UpdatedAt: mockTimestamp()}
	m.posts[p.ID] = p
	return p, nil
}

func (m *MockQueries) CreateSponsoredPost(ctx context.Context, arg CreateSponsoredPostParams) (SponsoredPost, error) {
	if m.CreateSponsoredPostFunc != nil {
		return m.CreateSponsoredPostFunc(ctx, arg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.topics[arg.TopicID]; !ok {
		return SponsoredPost{}, foreignKeyViolation()
	}

	p := SponsoredPost{
		ID:        m.id(),
		TopicID:   arg.TopicID,
		Title:     arg.Title,
		Body:      arg.Body,
		Price:     arg.Price,
		CreatedAt: mockTimestamp(),
		UpdatedAt: mockTimestamp(),
	}
	m.sponsored[p.ID] = p
	return p, nil
}

func (m *MockQueries) CreateTopic(ctx context.Context, arg CreateTopicParams) (Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Topic{ID: m.id(), Name: arg.Name, Description: arg.Description, CreatedAt: mockTimestamp(), UpdatedAt: mockTimestamp()}
	m.topics[t.ID] = t
	return t, nil
}

func (m *MockQueries) DeleteSponsoredPost(ctx context.Context, arg DeleteSponsoredPostParams) (int64, error) {
	if m.DeleteSponsoredPostFunc != nil {
		return m.DeleteSponsoredPostFunc(ctx, arg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.sponsored[arg.ID]
	if !ok || p.TopicID != arg.TopicID {
		return 0, nil
	}
	delete(m.sponsored, arg.ID)
	return 1, nil
}

func (m *MockQueries) DeleteTopic(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.topics[id]; !ok {
		return 0, nil
	}
	delete(m.topics, id)

	for pid, p := range m.sponsored {
		if p.TopicID == id {
			delete(m.sponsored, pid)
		}
	}
	for pid, p := range m.posts {
		if p.TopicID == id {
			delete(m.posts, pid)
		}
	}
	return 1, nil
}

func (m *MockQueries) GetSponsoredPost(ctx context.Context, arg GetSponsoredPostParams) (SponsoredPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.sponsored[arg.ID]
	if !ok || p.TopicID != arg.TopicID {
		return SponsoredPost{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *MockQueries) GetTopic(ctx context.Context, id int64) (Topic, error) {
	if m.GetTopicFunc != nil {
		return m.GetTopicFunc(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.topics[id]
	if !ok {
		return Topic{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *MockQueries) ListTopicPosts(ctx context.Context, topicID int64) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Post
	for _, p := range m.posts {
		if p.TopicID == topicID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockQueries) ListTopicSponsoredPosts(ctx context.Context, topicID int64) ([]SponsoredPost, error) {
	if m.ListTopicSponsoredPostsFunc != nil {
		return m.ListTopicSponsoredPostsFunc(ctx, topicID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []SponsoredPost
	for _, p := range m.sponsored {
		if p.TopicID == topicID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockQueries) ListTopics(ctx context.Context) ([]ListTopicsRow, error) {
	if m.ListTopicsFunc != nil {
		return m.ListTopicsFunc(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ListTopicsRow, 0, len(m.topics))
	for _, t := range m.topics {
		row := ListTopicsRow{ID: t.ID, Name: t.Name, Description: t.Description, CreatedAt: t.CreatedAt}
		for _, p := range m.sponsored {
			if p.TopicID == t.ID {
				row.SponsoredPostCount++
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockQueries) UpdateSponsoredPost(ctx context.Context, arg UpdateSponsoredPostParams) (SponsoredPost, error) {
	if m.UpdateSponsoredPostFunc != nil {
		return m.UpdateSponsoredPostFunc(ctx, arg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.sponsored[arg.ID]
	if !ok || p.TopicID != arg.TopicID {
		return SponsoredPost{}, pgx.ErrNoRows
	}
	if arg.Title.Valid {
		p.Title = arg.Title.String
	}
	if arg.Body.Valid {
		p.Body = arg.Body.String
	}
	p.UpdatedAt = mockTimestamp()
	m.sponsored[p.ID] = p
	return p, nil
}

type MockPinger struct {
	err error
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.err
}

type MockTailscaleClient struct {
	StatusFunc        func(ctx context.Context) (*ipnstate.Status, error)
	ExpandSNINameFunc func(ctx context.Context, hostname string) (string, bool)
	calls             int
	mu                sync.Mutex
}

func (m *MockTailscaleClient) ExpandSNIName(ctx context.Context, hostname string) (string, bool) {
	if m.ExpandSNINameFunc != nil {
		return m.ExpandSNINameFunc(ctx, hostname)
	}
	return "", false
}

func (m *MockTailscaleClient) Status(ctx context.Context) (*ipnstate.Status, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return &ipnstate.Status{BackendState: "Running"}, nil
}

func (m *MockTailscaleClient) StatusWithoutPeers(ctx context.Context) (*ipnstate.Status, error) {
	return &ipnstate.Status{
		CertDomains: []string{"sponsor.example.ts.net"},
	}, nil
}

func (m *MockTailscaleClient) statusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var errMockDatabase = errors.New("database unavailable")
