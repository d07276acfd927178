package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	log "github.com/sirupsen/logrus"
)

const DefaultSampleDepth = 10

// Sample is one accepted metadata change of a link.
type Sample struct {
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

// LinkSamples keeps the latest metadata changes of every link in a Redis
// list per link, trimmed to depth entries.
type LinkSamples struct {
	pool      *redis.Pool
	keyPrefix string
	depth     int
}

// NewRedisPool dials addr lazily; connections are checked when borrowed
// after a minute idle.
func NewRedisPool(addr string, maxIdle int) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr,
				redis.DialConnectTimeout(5*time.Second),
				redis.DialReadTimeout(5*time.Second),
				redis.DialWriteTimeout(5*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func NewLinkSamples(pool *redis.Pool, keyPrefix string, depth int) *LinkSamples {
	if depth <= 0 {
		depth = DefaultSampleDepth
	}
	return &LinkSamples{pool: pool, keyPrefix: keyPrefix, depth: depth}
}

func (s *LinkSamples) key(linkID string) string {
	return s.keyPrefix + linkID
}

func (s *LinkSamples) Push(linkID string, sample Sample) error {
	value, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encode sample of %s: %w", linkID, err)
	}

	conn := s.pool.Get()
	defer conn.Close()

	key := s.key(linkID)
	if _, err := conn.Do("RPUSH", key, value); err != nil {
		return fmt.Errorf("push sample of %s: %w", linkID, err)
	}
	if _, err := conn.Do("LTRIM", key, -s.depth, -1); err != nil {
		return fmt.Errorf("trim samples of %s: %w", linkID, err)
	}
	return nil
}

// Recent returns up to n samples of linkID, oldest first.
func (s *LinkSamples) Recent(linkID string, n int) ([]Sample, error) {
	if n <= 0 || n > s.depth {
		n = s.depth
	}
	conn := s.pool.Get()
	defer conn.Close()

	values, err := redis.Values(conn.Do("LRANGE", s.key(linkID), -n, -1))
	if err != nil {
		return nil, fmt.Errorf("read samples of %s: %w", linkID, err)
	}

	samples := make([]Sample, 0, len(values))
	for _, value := range values {
		raw, ok := value.([]byte)
		if !ok {
			continue
		}
		var sample Sample
		if err := json.Unmarshal(raw, &sample); err != nil {
			log.Errorf("Failed to parse sample of %s: %v", linkID, err)
			continue
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func (s *LinkSamples) Close() error {
	return s.pool.Close()
}
