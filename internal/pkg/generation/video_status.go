package generation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/cache"
)

const (
	videoStatusKeyPrefix = "video:status:"
	videoStatusTTL       = 48 * time.Hour
)

var ErrVideoStatusNotFound = errors.New("video status not found")

// VideoStatus is the last known state of a video request as served to its owner.
type VideoStatus struct {
	RequestID     string      `json:"requestId"`
	UserID        uint        `json:"userId"`
	Status        string      `json:"status"`
	QueuePosition *int        `json:"queuePosition,omitempty"`
	Message       string      `json:"message,omitempty"`
	Video         *VideoAsset `json:"video,omitempty"`
	GenerationID  uint        `json:"generationId,omitempty"`
	Polls         int         `json:"polls"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Terminal reports whether no further polls will happen.
func (s *VideoStatus) Terminal() bool {
	return s.Status == VideoStatusCompleted || s.Status == VideoStatusFailed
}

// VideoStatusStore keeps video statuses between polls.
type VideoStatusStore interface {
	Put(ctx context.Context, st *VideoStatus) error
	Get(ctx context.Context, requestID string) (*VideoStatus, error)
}

// RedisVideoStatusStore stores statuses under video:status:<request id>.
type RedisVideoStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisVideoStatusStore(client *redis.Client) *RedisVideoStatusStore {
	return &RedisVideoStatusStore{client: client, ttl: videoStatusTTL}
}

func VideoStatusKey(requestID string) string {
	return videoStatusKeyPrefix + requestID
}

func (s *RedisVideoStatusStore) Put(ctx context.Context, st *VideoStatus) error {
	return cache.SetJSON(ctx, s.client, VideoStatusKey(st.RequestID), st, s.ttl)
}

func (s *RedisVideoStatusStore) Get(ctx context.Context, requestID string) (*VideoStatus, error) {
	var st VideoStatus
	if err := cache.GetJSON(ctx, s.client, VideoStatusKey(requestID), &st); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrVideoStatusNotFound
		}
		return nil, err
	}
	return &st, nil
}
