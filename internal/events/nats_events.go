// Package events publishes domain lifecycle events to NATS for consumers
// outside the dashboard (notification workers, reporting pipelines).
package events

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"customs-backend/internal/clients"
	"customs-backend/internal/models"
)

// Subjects follow customs.<entity>.<action>
const (
	subjectPackagePrefix  = "customs.package"
	subjectShipmentPrefix = "customs.shipment"
	subjectRetryOutcome   = "customs.retry.outcome"
)

// NATSPublisher implements services.EventPublisher on top of a NATS
// connection. Publish failures are logged and dropped: event delivery never
// fails a domain operation.
type NATSPublisher struct {
	client *clients.NATSClient
	logger *logrus.Entry
}

// NewNATSPublisher wraps an established NATS client
func NewNATSPublisher(client *clients.NATSClient) *NATSPublisher {
	return &NATSPublisher{
		client: client,
		logger: logrus.WithField("component", "nats_publisher"),
	}
}

type packageEvent struct {
	Action    string          `json:"action"`
	Package   *models.Package `json:"package"`
	Timestamp time.Time       `json:"timestamp"`
}

type shipmentEvent struct {
	Action    string           `json:"action"`
	Shipment  *models.Shipment `json:"shipment"`
	Timestamp time.Time        `json:"timestamp"`
}

type retryOutcomeEvent struct {
	FailureID   string             `json:"failure_id"`
	Endpoint    string             `json:"endpoint"`
	Success     bool               `json:"success"`
	RetryStatus models.RetryStatus `json:"retry_status"`
	RetryCount  int                `json:"retry_count"`
	Timestamp   time.Time          `json:"timestamp"`
}

func (p *NATSPublisher) PublishPackageStatus(pkg *models.Package, action string) {
	subject := fmt.Sprintf("%s.%s", subjectPackagePrefix, action)
	event := packageEvent{Action: action, Package: pkg, Timestamp: time.Now()}
	if err := p.client.Publish(subject, event); err != nil {
		p.logger.WithError(err).WithField("package_id", pkg.ID).Warn("failed to publish package event")
	}
}

func (p *NATSPublisher) PublishShipmentStatus(shipment *models.Shipment, action string) {
	subject := fmt.Sprintf("%s.%s", subjectShipmentPrefix, action)
	event := shipmentEvent{Action: action, Shipment: shipment, Timestamp: time.Now()}
	if err := p.client.Publish(subject, event); err != nil {
		p.logger.WithError(err).WithField("shipment_id", shipment.ID).Warn("failed to publish shipment event")
	}
}

func (p *NATSPublisher) PublishRetryOutcome(record *models.FailureRecord, success bool) {
	event := retryOutcomeEvent{
		FailureID:   record.ID,
		Endpoint:    record.Endpoint,
		Success:     success,
		RetryStatus: record.RetryStatus,
		RetryCount:  record.RetryCount,
		Timestamp:   time.Now(),
	}
	if err := p.client.Publish(subjectRetryOutcome, event); err != nil {
		p.logger.WithError(err).WithField("failure_id", record.ID).Warn("failed to publish retry outcome")
	}
}
