package events

import (
	"context"
	"testing"
)

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	p.Publish(context.Background(), Event{EventType: EventJobStarted, JobID: "x"})

	p = NewPublisher(nil, "scraper.events")
	p.Publish(context.Background(), Event{EventType: EventJobFinished, JobID: "x"})
}
