package main

import (
	"context"
	"flag"
	"time"

	log "github.com/sirupsen/logrus"

	"pathfinder/config"
	"pathfinder/etcd"
	"pathfinder/storage"
)

func main() {
	configPath := flag.String("config", "pathfinder_config.toml", "Path to configuration file")
	topologyPath := flag.String("topology", "topology.json", "Path to topology description")
	withUpdates := flag.Bool("link-updates", true, "Publish the link_updates after the topology")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration failed, err:%v", err)
	}
	log.SetLevel(cfg.LogLevel())

	tf, hash, err := storage.LoadTopologyFile(*topologyPath)
	if err != nil {
		log.Fatalf("loading topology failed, err:%v", err)
	}
	topo, err := tf.Topology()
	if err != nil {
		log.Fatalf("invalid topology %s: %v", *topologyPath, err)
	}

	publisher, err := etcd.NewEventPublisher(etcd.EtcdConfig(cfg.Etcd))
	if err != nil {
		log.Fatalf("creating etcd publisher failed, err:%v", err)
	}
	defer publisher.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	if err := publisher.PublishTopology(ctx, topo, now); err != nil {
		log.Fatalf("publishing topology failed, err:%v", err)
	}
	log.Infof("published %s (md5 %s)", *topologyPath, hash)

	if !*withUpdates {
		return
	}
	for i, update := range tf.LinkUpdates {
		link := topo.Links[update.LinkID]
		merged := make(map[string]interface{}, len(link.Metadata)+len(update.Metadata))
		for k, v := range link.Metadata {
			merged[k] = v
		}
		for k, v := range update.Metadata {
			merged[k] = v
		}
		link.Metadata = merged
		// strictly after the topology and after each other
		ts := now.Add(time.Duration(i+1) * time.Millisecond)
		if err := publisher.PublishLinkMetadata(ctx, link, update.Metadata, ts); err != nil {
			log.Fatalf("publishing link %s failed, err:%v", update.LinkID, err)
		}
	}
}
