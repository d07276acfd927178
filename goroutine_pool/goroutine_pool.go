package goroutine_pool

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"
)

const (
	// TopologyEventsPool applies full topology events.
	TopologyEventsPool = "topology_events"
	// LinkEventsPool applies link metadata events.
	LinkEventsPool = "link_events"
)

var (
	pools     = make(map[string]*ants.PoolWithFunc)
	poolsLock sync.RWMutex
)

// InitPool creates the named pool, replacing and releasing any pool already
// registered under that name.
func InitPool(poolType string, poolSize int, taskFunc func(interface{})) error {
	pool, err := ants.NewPoolWithFunc(poolSize, taskFunc, ants.WithPanicHandler(func(p interface{}) {
		log.Errorf("goroutine_pool %s: task panicked: %v", poolType, p)
	}))
	if err != nil {
		log.Errorf("NewPoolWithFunc failed, poolType=%s : err=%v", poolType, err)
		return fmt.Errorf("init pool %s: %w", poolType, err)
	}

	poolsLock.Lock()
	defer poolsLock.Unlock()

	if p, exists := pools[poolType]; exists {
		p.Release()
	}
	pools[poolType] = pool
	log.Infof("InitPool, poolType=%s, size=%d", poolType, poolSize)
	return nil
}

func GetPool(poolType string) *ants.PoolWithFunc {
	poolsLock.RLock()
	defer poolsLock.RUnlock()

	return pools[poolType]
}

// Invoke hands task to the named pool. It blocks while the pool is full.
func Invoke(poolType string, task interface{}) error {
	pool := GetPool(poolType)
	if pool == nil {
		return fmt.Errorf("pool %s is not initialised", poolType)
	}
	if err := pool.Invoke(task); err != nil {
		return fmt.Errorf("invoke pool %s: %w", poolType, err)
	}
	return nil
}

func ReleasePool(poolType string) {
	poolsLock.Lock()
	defer poolsLock.Unlock()

	if p, exists := pools[poolType]; exists {
		p.Release()
		delete(pools, poolType)
	}
}

func ReleaseAllPools() {
	poolsLock.Lock()
	defer poolsLock.Unlock()

	for k, p := range pools {
		p.Release()
		delete(pools, k)
	}
}
