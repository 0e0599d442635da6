package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"govrag/src/core/knowledgebase"
)

const (
	sessionPrefix = "session:" // Chat session key prefix
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a SessionStore backed by redis. Every write refreshes
// the key TTL, so redis evicts sessions once they have been idle for ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration) knowledgebase.SessionStore {
	return &redisStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Connect opens a redis client and verifies it answers PING
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func sessionKey(id string) string {
	return sessionPrefix + id
}

func (s *redisStore) Create(ctx context.Context) (*knowledgebase.ChatSession, error) {
	sess := knowledgebase.NewChatSession(uuid.NewString(), s.now().UTC())
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *redisStore) Get(ctx context.Context, sessionID string) (*knowledgebase.ChatSession, error) {
	val, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return decodeSession(val)
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return n > 0, nil
}

func (s *redisStore) Save(ctx context.Context, sess *knowledgebase.ChatSession) error {
	data, err := encodeSession(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKey(sess.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func encodeSession(sess *knowledgebase.ChatSession) ([]byte, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

func decodeSession(val string) (*knowledgebase.ChatSession, error) {
	var sess knowledgebase.ChatSession
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.Messages == nil {
		sess.Messages = []knowledgebase.ChatMessage{}
	}
	return &sess, nil
}
