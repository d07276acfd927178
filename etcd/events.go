package etcd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pathfinder/synchronizer"
	"pathfinder/topology"
)

const (
	DefaultTopologyKey = "/pathfinder/topology"
	DefaultLinkPrefix  = "/pathfinder/links/"
)

type EtcdConfig struct {
	Endpoints      []string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	// TopologyKey holds the latest full topology event.
	TopologyKey string
	// LinkPrefix is followed by a link id; each key holds that link's latest metadata event.
	LinkPrefix string
}

func DefaultEtcdConfig() EtcdConfig {
	return EtcdConfig{
		Endpoints:      []string{"localhost:2379"},
		DialTimeout:    5 * time.Second,
		RequestTimeout: 5 * time.Second,
		TopologyKey:    DefaultTopologyKey,
		LinkPrefix:     DefaultLinkPrefix,
	}
}

// EventHandler applies decoded events. *synchronizer.Synchronizer implements it.
type EventHandler interface {
	UpdateTopology(event topology.TopologyEvent) synchronizer.Outcome
	UpdateLinksMetadataChanged(event topology.LinkMetadataEvent) synchronizer.Outcome
	Notify(n synchronizer.Notification)
}

func LinkKey(prefix, linkID string) string {
	return prefix + linkID
}

func DecodeTopologyEvent(data []byte) (topology.TopologyEvent, error) {
	var event topology.TopologyEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return topology.TopologyEvent{}, fmt.Errorf("invalid topology event: %w", err)
	}
	return event, nil
}

// DecodeLinkMetadataEvent decodes a link metadata event stored under key. A
// link without an id takes the id from the key.
func DecodeLinkMetadataEvent(prefix, key string, data []byte) (topology.LinkMetadataEvent, error) {
	var event topology.LinkMetadataEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return topology.LinkMetadataEvent{}, fmt.Errorf("invalid link metadata event: %w", err)
	}
	if event.Link != nil && event.Link.ID == "" {
		event.Link.ID = strings.TrimPrefix(key, prefix)
	}
	return event, nil
}

func EncodeTopologyEvent(topo *topology.Topology, ts time.Time) ([]byte, error) {
	data, err := json.Marshal(topology.TopologyEvent{Topology: topo, Timestamp: ts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal topology event: %w", err)
	}
	return data, nil
}

func EncodeLinkMetadataEvent(link topology.Link, metadata map[string]interface{}, ts time.Time) ([]byte, error) {
	data, err := json.Marshal(topology.LinkMetadataEvent{Link: &link, Metadata: metadata, Timestamp: ts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal link metadata event: %w", err)
	}
	return data, nil
}
