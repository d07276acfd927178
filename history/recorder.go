package history

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"pathfinder/synchronizer"
	"pathfinder/topology"
)

// Handler is the event side of *synchronizer.Synchronizer.
type Handler interface {
	UpdateTopology(event topology.TopologyEvent) synchronizer.Outcome
	UpdateLinksMetadataChanged(event topology.LinkMetadataEvent) synchronizer.Outcome
	Notify(n synchronizer.Notification)
}

type EventLog interface {
	Record(ctx context.Context, e Entry) error
}

type SampleStore interface {
	Push(linkID string, sample Sample) error
}

// Recorder applies events to the wrapped handler, then keeps their outcome
// in the event log and accepted link changes in the sample store. Either
// store may be nil. Storage failures are logged and never reach the caller.
type Recorder struct {
	next    Handler
	events  EventLog
	samples SampleStore
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(next Handler, events EventLog, samples SampleStore, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{
		next:    next,
		events:  events,
		samples: samples,
		timeout: timeout,
		now:     time.Now,
	}
}

func (r *Recorder) UpdateTopology(event topology.TopologyEvent) synchronizer.Outcome {
	outcome := r.next.UpdateTopology(event)
	r.record(Entry{Kind: KindTopology, Outcome: outcome.String(), EventTime: event.Timestamp})
	return outcome
}

func (r *Recorder) UpdateLinksMetadataChanged(event topology.LinkMetadataEvent) synchronizer.Outcome {
	outcome := r.next.UpdateLinksMetadataChanged(event)

	var linkID string
	if event.Link != nil {
		linkID = event.Link.ID
	}
	r.record(Entry{Kind: KindLink, Entity: linkID, Outcome: outcome.String(), EventTime: event.Timestamp})

	if r.samples != nil && outcome == synchronizer.OutcomeAccepted {
		sample := Sample{Metadata: event.Metadata, Timestamp: event.Timestamp}
		if err := r.samples.Push(linkID, sample); err != nil {
			log.Warnf("Recorder, keeping sample of link %s failed: %v", linkID, err)
		}
	}
	return outcome
}

func (r *Recorder) Notify(n synchronizer.Notification) {
	r.next.Notify(n)
}

func (r *Recorder) record(e Entry) {
	if r.events == nil {
		return
	}
	e.RecordedAt = r.now()
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.events.Record(ctx, e); err != nil {
		log.Warnf("Recorder, auditing %s event failed: %v", e.Kind, err)
	}
}
