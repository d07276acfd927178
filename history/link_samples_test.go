package history

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listStore answers the list commands LinkSamples issues.
type listStore struct {
	mu    sync.Mutex
	lists map[string][][]byte
	fail  error
}

type listConn struct {
	store *listStore
}

func (c *listConn) Close() error { return nil }
func (c *listConn) Err() error { return nil }
func (c *listConn) Send(string, ...interface{}) error { return errors.New("not supported") }
func (c *listConn) Flush() error { return nil }
func (c *listConn) Receive() (interface{}, error) { return nil, errors.New("not supported") }

func (c *listConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd == "" {
		return nil, nil
	}
	if s.fail != nil {
		return nil, s.fail
	}
	key := args[0].(string)
	list := s.lists[key]
	switch cmd {
	case "RPUSH":
		s.lists[key] = append(list, args[1].([]byte))
		return int64(len(s.lists[key])), nil
	case "LTRIM":
		from, to := span(len(list), args[1].(int), args[2].(int))
		s.lists[key] = append([][]byte(nil), list[from:to]...)
		return "OK", nil
	case "LRANGE":
		from, to := span(len(list), args[1].(int), args[2].(int))
		values := make([]interface{}, 0, to-from)
		for _, v := range list[from:to] {
			values = append(values, v)
		}
		return values, nil
	}
	return nil, fmt.Errorf("unexpected command %s", cmd)
}

func span(n, start, stop int) (int, int) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return 0, 0
	}
	return start, stop + 1
}

func newTestSamples(depth int) (*LinkSamples, *listStore) {
	store := &listStore{lists: make(map[string][][]byte)}
	pool := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return &listConn{store: store}, nil
		},
	}
	return NewLinkSamples(pool, "pathfinder:samples:", depth), store
}

func TestLinkSamplesKeepsLatest(t *testing.T) {
	samples, store := newTestSamples(3)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		require.NoError(t, samples.Push("L1", Sample{
			Metadata:  map[string]interface{}{"delay": float64(i)},
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, samples.Push("L2", Sample{Metadata: map[string]interface{}{"delay": 9.0}, Timestamp: base}))

	assert.Len(t, store.lists["pathfinder:samples:L1"], 3)

	recent, err := samples.Recent("L1", 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 3.0, recent[0].Metadata["delay"])
	assert.Equal(t, 5.0, recent[2].Metadata["delay"])
	assert.True(t, recent[2].Timestamp.Equal(base.Add(5*time.Second)))

	recent, err = samples.Recent("L1", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 5.0, recent[0].Metadata["delay"])

	recent, err = samples.Recent("L9", 2)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestLinkSamplesSkipsUnparsable(t *testing.T) {
	samples, store := newTestSamples(0)
	store.lists["pathfinder:samples:L1"] = [][]byte{[]byte("{"), []byte(`{"metadata":{"delay":2}}`)}

	recent, err := samples.Recent("L1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 2.0, recent[0].Metadata["delay"])
}

func TestLinkSamplesErrors(t *testing.T) {
	samples, store := newTestSamples(3)
	store.fail = errors.New("READONLY")

	err := samples.Push("L1", Sample{Metadata: map[string]interface{}{"delay": 1.0}})
	assert.ErrorContains(t, err, "READONLY")

	_, err = samples.Recent("L1", 1)
	assert.ErrorContains(t, err, "READONLY")
}
