package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/log"
	"govrag/src/infrastructure/metrics"
)

// Retriever runs a search for the generator
type Retriever interface {
	Retrieve(ctx context.Context, req knowledgebase.SearchRequest) ([]knowledgebase.SearchResult, error)
}

// Generator answers user messages within chat sessions
type Generator struct {
	retriever Retriever
	sessions  knowledgebase.SessionStore
	composer  Composer
	cfg       Config
	snowflake *snowflake.Node
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Generator)

// WithClock replaces the time source used for activity and expiry
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

func NewGenerator(retriever Retriever, sessions knowledgebase.SessionStore, composer Composer, cfg Config, opts ...Option) (*Generator, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}

	g := &Generator{
		retriever: retriever,
		sessions:  sessions,
		composer:  composer,
		cfg:       cfg.withDefaults(),
		snowflake: node,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Answer resolves the session, retrieves supporting documents, composes a
// reply and records both turns. A missing, unknown or expired session id
// starts a new session. Retrieval failures are returned, generation failures
// are not.
func (g *Generator) Answer(ctx context.Context, sessionID, message string) (*knowledgebase.ChatResponse, error) {
	start := time.Now()

	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", knowledgebase.ErrInvalidRequest)
	}

	sess, err := g.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.AtCapacity(g.cfg.MaxMessages) {
		log.Info("session at capacity", "sessionId", sess.SessionID, "messages", len(sess.Messages))
		g.metrics.CountAnswer("limit")
		return &knowledgebase.ChatResponse{
			SessionID:        sess.SessionID,
			Content:          LimitReachedMessage,
			Sources:          []knowledgebase.DocumentSource{},
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	prior := append([]knowledgebase.ChatMessage(nil), sess.Messages...)
	sess.Append(knowledgebase.ChatMessage{
		MessageID: g.snowflake.Generate().String(),
		Role:      knowledgebase.RoleUser,
		Content:   message,
		Timestamp: g.now().UTC(),
	})

	results, err := g.retriever.Retrieve(ctx, knowledgebase.SearchRequest{
		Query: message,
		Mode:  knowledgebase.SearchModeSemantic,
		Top:   g.cfg.RetrievalTop,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve documents: %w", err)
	}

	sources := g.sources(results)
	comp := g.composer.Compose(ctx, prior, message, results)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess.Append(knowledgebase.ChatMessage{
		MessageID: g.snowflake.Generate().String(),
		Role:      knowledgebase.RoleAssistant,
		Content:   comp.Content,
		Timestamp: g.now().UTC(),
		Sources:   sources,
	})
	if err := g.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	g.metrics.CountAnswer(string(comp.Path))
	confidence := comp.Confidence
	resp := &knowledgebase.ChatResponse{
		SessionID:        sess.SessionID,
		Content:          comp.Content,
		Sources:          sources,
		Confidence:       &confidence,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	log.Debug("answered message",
		"sessionId", sess.SessionID,
		"path", comp.Path,
		"sources", len(sources),
		"elapsedMs", resp.ProcessingTimeMs)
	return resp, nil
}

func (g *Generator) resolve(ctx context.Context, sessionID string) (*knowledgebase.ChatSession, error) {
	if sessionID != "" {
		sess, err := g.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		if sess != nil && !sess.IsExpired(g.now(), g.cfg.Expiry) {
			return sess, nil
		}
		if sess != nil {
			log.Info("session expired, starting a new one", "sessionId", sessionID)
			if _, err := g.sessions.Delete(ctx, sessionID); err != nil {
				log.Error(err, "failed to delete expired session", "sessionId", sessionID)
			}
		}
	}

	// Held in memory until the answer is saved, so a failed request leaves nothing behind
	return knowledgebase.NewChatSession(uuid.NewString(), g.now().UTC()), nil
}

func (g *Generator) sources(results []knowledgebase.SearchResult) []knowledgebase.DocumentSource {
	sources := make([]knowledgebase.DocumentSource, 0, len(results))
	for _, r := range results {
		sources = append(sources, knowledgebase.DocumentSource{
			DocumentID: r.Document.ID,
			Title:      r.Document.Title,
			URL:        r.Document.URL,
			Relevance:  clamp(r.Score*g.cfg.RelevanceScale, 0, 1),
		})
	}
	return sources
}

// CreateSession starts an empty session
func (g *Generator) CreateSession(ctx context.Context) (*knowledgebase.ChatSession, error) {
	sess, err := g.sessions.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// GetSession returns a live session, or nil when the id is unknown or expired
func (g *Generator) GetSession(ctx context.Context, sessionID string) (*knowledgebase.ChatSession, error) {
	sess, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil || sess.IsExpired(g.now(), g.cfg.Expiry) {
		return nil, nil
	}
	return sess, nil
}

// DeleteSession reports whether the session existed
func (g *Generator) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	ok, err := g.sessions.Delete(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return ok, nil
}
