// Package publish announces created packages on NATS.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject package events are published on.
const DefaultSubject = "osfipm.package.created"

// Conn is the subset of *nats.Conn used by Publisher.
type Conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

var _ Conn = (*nats.Conn)(nil)

// Event describes a package that was written.
type Event struct {
	Registration       string    `json:"registration"`
	Title              string    `json:"title,omitempty"`
	Dir                string    `json:"dir"`
	Format             string    `json:"format"`
	Statements         int       `json:"statements"`
	Files              int       `json:"files"`
	Octets             int64     `json:"octets"`
	ExternalIdentifier string    `json:"external_identifier"`
	CreatedAt          time.Time `json:"created_at"`
}

// Publisher sends package events to a subject.
type Publisher struct {
	conn    Conn
	subject string
	logger  *slog.Logger
}

// NewPublisher creates a publisher. An empty subject means DefaultSubject.
func NewPublisher(conn Conn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, subject: subject, logger: logger}
}

// Subject returns the subject events go to.
func (p *Publisher) Subject() string {
	return p.subject
}

// Announce publishes the event and flushes so delivery to the server is
// confirmed before returning.
func (p *Publisher) Announce(ctx context.Context, ev Event) error {
	if ev.Registration == "" {
		return errors.New("event has no registration")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}
	p.logger.Info("Announced package",
		"subject", p.subject,
		"registration", ev.Registration,
		"files", ev.Files)
	return nil
}

// Connect dials NATS with reconnect settings suited to a short-lived CLI.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Connecting to NATS", "url", url)
	nc, err := nats.Connect(url,
		nats.Name("osfipm"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, wrapNATSError(err, url)
	}
	logger.Info("Connected to NATS", "url", nc.ConnectedUrl())
	return nc, nil
}

// wrapNATSError adds guidance for the usual "server not running" failures.
func wrapNATSError(err error, url string) error {
	msg := err.Error()
	if errors.Is(err, nats.ErrNoServers) ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.
Start a server or set OSFIPM_NATS_URL, or leave nats.url empty to skip announcements.`, err, url)
	}
	return fmt.Errorf("NATS connection failed: %w", err)
}
