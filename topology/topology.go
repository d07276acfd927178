package topology

import (
	"fmt"
	"time"
)

// Interface is a switch port. Its ID is conventionally "<switch-id>:<port>".
type Interface struct {
	ID       string `json:"id"`
	SwitchID string `json:"switch_id"`
	Port     int    `json:"port"`
	Enabled  bool   `json:"enabled"`
	Active   bool   `json:"active"`
}

// Usable reports whether the interface takes part in the graph.
func (i Interface) Usable() bool {
	return i.Enabled && i.Active
}

type Switch struct {
	ID         string               `json:"id"`
	Active     bool                 `json:"active"`
	Interfaces map[string]Interface `json:"interfaces"`
}

// Link connects two interfaces and carries a metric-name -> scalar metadata mapping.
type Link struct {
	ID        string                 `json:"id"`
	EndpointA string                 `json:"endpoint_a"`
	EndpointB string                 `json:"endpoint_b"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Enabled   bool                   `json:"enabled"`
	Active    bool                   `json:"active"`
}

func (l Link) Usable() bool {
	return l.Enabled && l.Active
}

func (l Link) Endpoints() (string, string) {
	return l.EndpointA, l.EndpointB
}

// Topology is a point-in-time snapshot of switches and links.
type Topology struct {
	Switches map[string]Switch `json:"switches"`
	Links    map[string]Link   `json:"links"`
}

func New() *Topology {
	return &Topology{
		Switches: make(map[string]Switch),
		Links:    make(map[string]Link),
	}
}

// AddSwitch registers a switch with ports 1..ports, all enabled and active.
func (t *Topology) AddSwitch(id string, ports int) Switch {
	sw := Switch{
		ID:         id,
		Active:     true,
		Interfaces: make(map[string]Interface, ports),
	}
	for port := 1; port <= ports; port++ {
		ifaceID := InterfaceID(id, port)
		sw.Interfaces[ifaceID] = Interface{
			ID:       ifaceID,
			SwitchID: id,
			Port:     port,
			Enabled:  true,
			Active:   true,
		}
	}
	t.Switches[id] = sw
	return sw
}

// AddLink registers an enabled and active link between two interface ids.
func (t *Topology) AddLink(id, endpointA, endpointB string, metadata map[string]interface{}) Link {
	link := Link{
		ID:        id,
		EndpointA: endpointA,
		EndpointB: endpointB,
		Metadata:  metadata,
		Enabled:   true,
		Active:    true,
	}
	t.Links[id] = link
	return link
}

func (t *Topology) SwitchList() []Switch {
	switches := make([]Switch, 0, len(t.Switches))
	for _, sw := range t.Switches {
		switches = append(switches, sw)
	}
	return switches
}

func (t *Topology) LinkList() []Link {
	links := make([]Link, 0, len(t.Links))
	for _, link := range t.Links {
		links = append(links, link)
	}
	return links
}

func InterfaceID(switchID string, port int) string {
	return fmt.Sprintf("%s:%d", switchID, port)
}

// TopologyEvent carries a full topology replacement. A nil Topology is a no-op.
type TopologyEvent struct {
	Topology  *Topology `json:"topology,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LinkMetadataEvent reports that the metadata of one link changed. Link.Metadata
// holds the link's full current metadata, Metadata only the changed keys. An
// empty Metadata stays "{}" on the wire; only an absent or null one is nil.
type LinkMetadataEvent struct {
	Link      *Link                  `json:"link,omitempty"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}
