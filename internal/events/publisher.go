package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/models"
)

const (
	subjectAnalysisPrefix   = "stocklens.analysis.completed"
	subjectCacheInvalidated = "stocklens.cache.invalidated"
)

// analysisSubject builds the per-ticker subject. Consumers subscribe to one
// symbol or to stocklens.analysis.completed.> for the full stream.
func analysisSubject(ticker string) string {
	return subjectAnalysisPrefix + "." + ticker
}

// Publisher emits analysis lifecycle events over NATS. A nil Publisher is
// valid and drops everything, so event wiring stays optional.
type Publisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// Connect dials the NATS server and returns a publisher.
func Connect(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("stocklens"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Publisher{conn: conn, logger: config.NewLogger("events")}, nil
}

// PublishAnalysisCompleted emits the finished record. Publish failures are
// logged, never propagated: events are best effort.
func (p *Publisher) PublishAnalysisCompleted(record *models.AnalysisRecord) {
	if p == nil || p.conn == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to marshal analysis event")
		return
	}
	if err := p.conn.Publish(analysisSubject(record.Ticker), payload); err != nil {
		p.logger.Warn().Err(err).Str("ticker", record.Ticker).Msg("Failed to publish analysis event")
		return
	}
	p.logger.Debug().Str("ticker", record.Ticker).Msg("Published analysis event")
}

// PublishCacheInvalidated emits a cache invalidation notice.
func (p *Publisher) PublishCacheInvalidated(ticker string) {
	if p == nil || p.conn == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"ticker": ticker})
	if err := p.conn.Publish(subjectCacheInvalidated, payload); err != nil {
		p.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to publish invalidation event")
	}
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
