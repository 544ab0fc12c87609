package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/metrics"
)

// NATSClient wraps the NATS connection used for outbound domain events.
// Publication is fire-and-forget; downstream consumers (notification
// workers, analytics) attach their own durability.
type NATSClient struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewNATSClient connects to the NATS server with unlimited reconnects
func NewNATSClient(url string, timeout time.Duration) (*NATSClient, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := logrus.WithField("component", "nats_client")

	conn, err := nats.Connect(url,
		nats.Timeout(timeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	return &NATSClient{conn: conn, logger: logger}, nil
}

// Publish marshals payload and publishes it on subject
func (c *NATSClient) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
