package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one message that exhausted its handler retries.
type Entry struct {
	At         time.Time       `json:"at"`
	Queue      string          `json:"queue"`
	Exchange   string          `json:"exchange"`
	RoutingKey string          `json:"routingKey"`
	Attempts   int             `json:"attempts"`
	Error      string          `json:"error"`
	Payload    json.RawMessage `json:"payload"`
}

// Store keeps dead-lettered messages in a Redis list, newest first.
type Store struct {
	client *redis.Client
	key    string
}

func NewStore(client *redis.Client, key string) *Store {
	if key == "" {
		key = "jobber:dead-letter"
	}
	return &Store{client: client, key: key}
}

// Connect dials addr and verifies the server answers.
func Connect(ctx context.Context, addr, key string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("dead-letter redis %s: %w", addr, err)
	}
	return NewStore(client, key), nil
}

func (s *Store) Push(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	// payload must stay valid JSON inside the entry
	if !json.Valid(e.Payload) {
		quoted, err := json.Marshal(string(e.Payload))
		if err != nil {
			return err
		}
		e.Payload = quoted
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal dead-letter entry: %w", err)
	}
	if err := s.client.LPush(ctx, s.key, b).Err(); err != nil {
		return fmt.Errorf("dead-letter push: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int64) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	raw, err := s.client.LRange(ctx, s.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("dead-letter list: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("dead-letter decode: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) Len(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.key).Result()
}

func (s *Store) Close() error {
	return s.client.Close()
}
