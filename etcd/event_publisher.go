package etcd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"

	"pathfinder/topology"
)

// EventPublisher writes topology and link metadata events in the encoding
// EventWatcher reads.
type EventPublisher struct {
	client      *clientv3.Client
	publisherID string
	config      EtcdConfig
}

func NewEventPublisher(config EtcdConfig) (*EventPublisher, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return &EventPublisher{
		client:      client,
		publisherID: "publisher-" + uuid.NewString(),
		config:      config,
	}, nil
}

func (p *EventPublisher) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func (p *EventPublisher) PublishTopology(ctx context.Context, topo *topology.Topology, ts time.Time) error {
	data, err := EncodeTopologyEvent(topo, ts)
	if err != nil {
		return err
	}
	if err := p.put(ctx, p.config.TopologyKey, data); err != nil {
		return fmt.Errorf("failed to publish topology: %w", err)
	}

	log.Infof("[%s] Topology published: %d switches, %d links at %s", p.publisherID, len(topo.Switches), len(topo.Links), ts.Format(time.RFC3339Nano))
	return nil
}

// PublishLinkMetadata publishes a metadata change for link. metadata holds the
// changed keys; link.Metadata should already carry them.
func (p *EventPublisher) PublishLinkMetadata(ctx context.Context, link topology.Link, metadata map[string]interface{}, ts time.Time) error {
	data, err := EncodeLinkMetadataEvent(link, metadata, ts)
	if err != nil {
		return err
	}
	key := LinkKey(p.config.LinkPrefix, link.ID)
	if err := p.put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to publish link %s: %w", link.ID, err)
	}

	log.Infof("[%s] Link metadata published: %s %v", p.publisherID, link.ID, metadata)
	return nil
}

func (p *EventPublisher) put(ctx context.Context, key string, value []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	_, err := p.client.Put(reqCtx, key, string(value))
	return err
}
