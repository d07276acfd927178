package etcd

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"pathfinder/goroutine_pool"
	"pathfinder/synchronizer"
)

// EventWatcher loads the stored topology and link events from etcd, then
// watches both for changes and applies them through an EventHandler.
type EventWatcher struct {
	client    *clientv3.Client
	watcherID string
	config    EtcdConfig
	handler   EventHandler
	wg        sync.WaitGroup
}

type watchTask struct {
	key      string
	value    []byte
	revision int64
}

func NewEventWatcher(config EtcdConfig, handler EventHandler) (*EventWatcher, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return newEventWatcher(client, config, handler), nil
}

func newEventWatcher(client *clientv3.Client, config EtcdConfig, handler EventHandler) *EventWatcher {
	return &EventWatcher{
		client:    client,
		watcherID: "watcher-" + uuid.NewString(),
		config:    config,
		handler:   handler,
	}
}

func (w *EventWatcher) ID() string {
	return w.watcherID
}

// InitPools registers the dispatch pools. Topology rebuilds run one at a time,
// link events on up to linkWorkers goroutines.
func (w *EventWatcher) InitPools(linkWorkers int) error {
	if err := goroutine_pool.InitPool(goroutine_pool.TopologyEventsPool, 1, w.handle); err != nil {
		return err
	}
	return goroutine_pool.InitPool(goroutine_pool.LinkEventsPool, linkWorkers, w.handle)
}

func (w *EventWatcher) Close() {
	w.wg.Wait()
	goroutine_pool.ReleasePool(goroutine_pool.TopologyEventsPool)
	goroutine_pool.ReleasePool(goroutine_pool.LinkEventsPool)
	if w.client != nil {
		w.client.Close()
	}
}

// Start replays the stored events and then watches for new ones until ctx is
// done or a watch fails.
func (w *EventWatcher) Start(ctx context.Context) error {
	log.Infof("[%s] Watcher starting, topology key %s, link prefix %s", w.watcherID, w.config.TopologyKey, w.config.LinkPrefix)

	revision, err := w.load(ctx)
	if err != nil {
		return err
	}

	topologyChan := w.client.Watch(ctx, w.config.TopologyKey, clientv3.WithRev(revision+1))
	linkChan := w.client.Watch(ctx, w.config.LinkPrefix, clientv3.WithPrefix(), clientv3.WithRev(revision+1))

	for {
		select {
		case <-ctx.Done():
			log.Infof("[%s] Watcher shutting down", w.watcherID)
			return nil

		case resp, ok := <-topologyChan:
			if err := w.consume(resp, ok); err != nil {
				return w.stopped(ctx, err)
			}

		case resp, ok := <-linkChan:
			if err := w.consume(resp, ok); err != nil {
				return w.stopped(ctx, err)
			}
		}
	}
}

// stopped drops the error of a watch closed by ctx cancellation.
func (w *EventWatcher) stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		log.Infof("[%s] Watcher shutting down", w.watcherID)
		return nil
	}
	return err
}

func (w *EventWatcher) load(ctx context.Context) (int64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, w.config.RequestTimeout)
	defer cancel()

	topoResp, err := w.client.Get(reqCtx, w.config.TopologyKey)
	if err != nil {
		return 0, fmt.Errorf("failed to get topology: %w", err)
	}
	revision := topoResp.Header.Revision
	linkResp, err := w.client.Get(reqCtx, w.config.LinkPrefix, clientv3.WithPrefix(), clientv3.WithRev(revision))
	if err != nil {
		return 0, fmt.Errorf("failed to get link events: %w", err)
	}

	// the topology goes first so the link events have edges to update
	for _, kv := range topoResp.Kvs {
		w.handle(taskFromKV(kv))
	}
	for _, kv := range linkResp.Kvs {
		w.handle(taskFromKV(kv))
	}
	log.Infof("[%s] Loaded %d topology and %d link events at revision %d", w.watcherID, len(topoResp.Kvs), len(linkResp.Kvs), revision)
	return revision, nil
}

func (w *EventWatcher) consume(resp clientv3.WatchResponse, ok bool) error {
	if !ok {
		return fmt.Errorf("watch channel closed")
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	for _, event := range resp.Events {
		w.submit(event)
	}
	return nil
}

// submit hands a put event to the pool for its key. Without a pool the event
// is applied on the calling goroutine.
func (w *EventWatcher) submit(event *clientv3.Event) {
	if event.Type != clientv3.EventTypePut || event.Kv == nil {
		return
	}
	task := taskFromKV(event.Kv)

	poolType := goroutine_pool.LinkEventsPool
	if task.key == w.config.TopologyKey {
		poolType = goroutine_pool.TopologyEventsPool
	}

	w.wg.Add(1)
	err := goroutine_pool.Invoke(poolType, &pooledTask{task})
	if err != nil {
		w.wg.Done()
		log.Warnf("[%s] Dispatch of %s failed, applying inline: %v", w.watcherID, task.key, err)
		w.handle(task)
	}
}

func taskFromKV(kv *mvccpb.KeyValue) watchTask {
	return watchTask{key: string(kv.Key), value: kv.Value, revision: kv.ModRevision}
}

// handle is the pool function. Pooled tasks are counted in wg.
func (w *EventWatcher) handle(payload interface{}) {
	switch task := payload.(type) {
	case watchTask:
		w.apply(task)
	case *pooledTask:
		defer w.wg.Done()
		w.apply(task.watchTask)
	}
}

type pooledTask struct {
	watchTask
}

func (w *EventWatcher) apply(task watchTask) {
	switch {
	case task.key == w.config.TopologyKey:
		event, err := DecodeTopologyEvent(task.value)
		if err != nil {
			w.reportUndecodable(synchronizer.TopologyUpdatedError, task, err)
			return
		}
		outcome := w.handler.UpdateTopology(event)
		log.Debugf("[%s] Topology event at revision %d: %s", w.watcherID, task.revision, outcome)

	case strings.HasPrefix(task.key, w.config.LinkPrefix):
		event, err := DecodeLinkMetadataEvent(w.config.LinkPrefix, task.key, task.value)
		if err != nil {
			w.reportUndecodable(synchronizer.LinksMetadataChangedError, task, err)
			return
		}
		outcome := w.handler.UpdateLinksMetadataChanged(event)
		log.Debugf("[%s] Link event %s at revision %d: %s", w.watcherID, task.key, task.revision, outcome)

	default:
		log.Warnf("[%s] Ignoring event for unexpected key %s", w.watcherID, task.key)
	}
}

func (w *EventWatcher) reportUndecodable(name string, task watchTask, err error) {
	log.Errorf("[%s] Failed to decode %s at revision %d: %v", w.watcherID, task.key, task.revision, err)
	w.handler.Notify(synchronizer.Notification{
		Name: name,
		Content: map[string]interface{}{
			"key":      task.key,
			"revision": task.revision,
			"error":    err.Error(),
		},
	})
}
