package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/dsamarin/gatepay/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session is the payment hint saved when a payment starts. It survives the
// round-trip to the gateway inside a browser cookie token; cancel resolves
// its pending transaction from it, and return may use it as a fallback when
// the callback payload carries no usable id or email. It is never the
// authoritative source of payment state; the database row is.
type Session struct {
	TransactionID int64  `json:"transactionId"`
	Email         string `json:"email"`
	UserID        int64  `json:"userId"`
	AmountCents   int64  `json:"amountCents"`
	Currency      string `json:"currency"`
	GatewayName   string `json:"gatewayName"`
}

// SessionStore persists payment sessions in Redis keyed by opaque tokens.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return fmt.Sprintf("psession:%s", token)
}

// Save stores the session and returns the freshly minted token.
func (s *SessionStore) Save(ctx context.Context, sess Session) (string, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	token := uuid.New().String()
	if err := s.client.Set(ctx, sessionKey(token), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Get loads the session for a token. A missing or expired token maps to
// ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domainErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session. Deleting an absent token is a no-op.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}
