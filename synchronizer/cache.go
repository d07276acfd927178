package synchronizer

import (
	"encoding/json"
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// queryCache keeps path responses per graph version and collapses concurrent
// identical searches.
type queryCache struct {
	entries *lru.Cache[string, PathResponse]
	group   singleflight.Group
}

func newQueryCache(size int) (*queryCache, error) {
	entries, err := lru.New[string, PathResponse](size)
	if err != nil {
		return nil, err
	}
	return &queryCache{entries: entries}, nil
}

// key joins the graph version with the query encoding. Map keys are encoded in
// sorted order, so equal queries give equal keys.
func cacheKey(version uint64, q PathQuery) (string, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}
	return strconv.FormatUint(version, 10) + "|" + string(data), nil
}

func (c *queryCache) do(key string, search func() (PathResponse, error)) (PathResponse, error) {
	if cached, ok := c.entries.Get(key); ok {
		pathQueryCacheHits.Inc()
		return cached.clone(), nil
	}

	resultI, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Double-check cache inside singleflight
		if cached, ok := c.entries.Get(key); ok {
			return cached, nil
		}
		pathQueryCacheMisses.Inc()
		resp, err := search()
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, resp)
		return resp, nil
	})
	if err != nil {
		return PathResponse{}, err
	}
	resp, ok := resultI.(PathResponse)
	if !ok {
		return PathResponse{}, fmt.Errorf("unexpected type from query cache: got %T", resultI)
	}
	return resp.clone(), nil
}

func (c *queryCache) Len() int {
	return c.entries.Len()
}
