package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/osfipm/graph"
)

// Stream is the subset of jetstream.JetStream used for graph ingestion.
type Stream interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

var _ Stream = jetstream.JetStream(nil)

// Ingester publishes mapped OSF entities to the graph ingest stream.
type Ingester struct {
	js      Stream
	subject string
	source  string
	logger  *slog.Logger
}

// NewIngester creates an ingester publishing to graph.GraphIngestSubject.
func NewIngester(js Stream, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{js: js, subject: graph.GraphIngestSubject, source: graph.DefaultSource, logger: logger}
}

// Ingest publishes each payload and waits for its stream acknowledgement.
// It stops at the first failure and reports how many were acknowledged.
func (i *Ingester) Ingest(ctx context.Context, payloads []*graph.EntityPayload) (int, error) {
	for n, p := range payloads {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		data, err := graph.Encode(p, i.source)
		if err != nil {
			return n, err
		}
		if _, err := i.js.Publish(ctx, i.subject, data); err != nil {
			return n, fmt.Errorf("publish entity %s: %w", p.EntityID(), err)
		}
	}
	i.logger.Debug("Ingested entities", "subject", i.subject, "count", len(payloads))
	return len(payloads), nil
}
