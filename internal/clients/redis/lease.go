package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/storynest/storynest-backend/internal/logger"
)

// GenerationLease is the cross-process half of the duplicate-generation
// guard: a TTL'd SET NX key per student. The in-memory lock inside the
// orchestrator stays the same-process fast path.
type GenerationLease struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewGenerationLease(log *logger.Logger) (*GenerationLease, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &GenerationLease{
		log: log.With("service", "RedisGenerationLease"),
		rdb: rdb,
	}, nil
}

func leaseKey(studentID uuid.UUID) string {
	return "plangen:" + studentID.String()
}

// Acquire returns false when another process already holds the lease.
func (l *GenerationLease) Acquire(ctx context.Context, studentID uuid.UUID, ttl time.Duration) (bool, error) {
	if l == nil || l.rdb == nil {
		return false, fmt.Errorf("generation lease not initialized")
	}
	return l.rdb.SetNX(ctx, leaseKey(studentID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (l *GenerationLease) Release(ctx context.Context, studentID uuid.UUID) error {
	if l == nil || l.rdb == nil {
		return fmt.Errorf("generation lease not initialized")
	}
	return l.rdb.Del(ctx, leaseKey(studentID)).Err()
}

func (l *GenerationLease) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
