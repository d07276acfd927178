package storage

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"pathfinder/topology"
)

// TopologyFile is the hand-written topology description read by the
// publisher. Switch ports are numbered 1..Ports.
type TopologyFile struct {
	Switches    []SwitchSpec     `json:"switches"`
	Links       []LinkSpec       `json:"links"`
	LinkUpdates []LinkUpdateSpec `json:"link_updates,omitempty"`
}

type SwitchSpec struct {
	ID            string `json:"id"`
	Ports         int    `json:"ports"`
	Inactive      bool   `json:"inactive,omitempty"`
	DisabledPorts []int  `json:"disabled_ports,omitempty"`
}

type LinkSpec struct {
	ID        string                 `json:"id"`
	EndpointA string                 `json:"endpoint_a"`
	EndpointB string                 `json:"endpoint_b"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Disabled  bool                   `json:"disabled,omitempty"`
}

// LinkUpdateSpec is a metadata change published after the topology.
type LinkUpdateSpec struct {
	LinkID   string                 `json:"link_id"`
	Metadata map[string]interface{} `json:"metadata"`
}

// LoadTopologyFile reads path and returns the description with the md5 of
// the file content.
func LoadTopologyFile(path string) (*TopologyFile, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read topology file %s: %w", path, err)
	}
	var tf TopologyFile
	if err := json.Unmarshal(data, &tf); err != nil {
		log.Warningf("error unmarshalling topology file (%s): %v", path, err)
		return nil, "", fmt.Errorf("failed to decode topology file %s: %w", path, err)
	}
	sum := md5.Sum(data)
	log.Infof("successfully loaded. File: %v, switches: %d, links: %d", path, len(tf.Switches), len(tf.Links))
	return &tf, hex.EncodeToString(sum[:]), nil
}

func SaveTopologyFile(path string, tf *TopologyFile) error {
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal topology file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write topology file: %w", err)
	}
	return nil
}

// Topology builds the topology snapshot, reporting every inconsistency.
func (tf *TopologyFile) Topology() (*topology.Topology, error) {
	topo := topology.New()
	var err error

	for _, spec := range tf.Switches {
		if spec.ID == "" {
			err = multierr.Append(err, fmt.Errorf("switch with %d ports: missing id", spec.Ports))
			continue
		}
		if _, exists := topo.Switches[spec.ID]; exists {
			err = multierr.Append(err, fmt.Errorf("switch %s: declared twice", spec.ID))
			continue
		}
		sw := topo.AddSwitch(spec.ID, spec.Ports)
		sw.Active = !spec.Inactive
		for _, port := range spec.DisabledPorts {
			id := topology.InterfaceID(spec.ID, port)
			iface, ok := sw.Interfaces[id]
			if !ok {
				err = multierr.Append(err, fmt.Errorf("switch %s: disabled port %d does not exist", spec.ID, port))
				continue
			}
			iface.Enabled = false
			sw.Interfaces[id] = iface
		}
		topo.Switches[spec.ID] = sw
	}

	interfaces := make(map[string]bool)
	for _, sw := range topo.Switches {
		for id := range sw.Interfaces {
			interfaces[id] = true
		}
	}

	for _, spec := range tf.Links {
		if spec.ID == "" {
			err = multierr.Append(err, fmt.Errorf("link %s-%s: missing id", spec.EndpointA, spec.EndpointB))
			continue
		}
		if _, exists := topo.Links[spec.ID]; exists {
			err = multierr.Append(err, fmt.Errorf("link %s: declared twice", spec.ID))
			continue
		}
		for _, endpoint := range []string{spec.EndpointA, spec.EndpointB} {
			if !interfaces[endpoint] {
				err = multierr.Append(err, fmt.Errorf("link %s: unknown interface %q", spec.ID, endpoint))
			}
		}
		link := topo.AddLink(spec.ID, spec.EndpointA, spec.EndpointB, spec.Metadata)
		link.Enabled = !spec.Disabled
		topo.Links[spec.ID] = link
	}

	for _, update := range tf.LinkUpdates {
		if _, ok := topo.Links[update.LinkID]; !ok {
			err = multierr.Append(err, fmt.Errorf("link update: unknown link %q", update.LinkID))
		}
	}

	if err != nil {
		return nil, err
	}
	return topo, nil
}
