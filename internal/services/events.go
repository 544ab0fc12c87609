package services

import (
	"customs-backend/internal/models"
)

// EventPublisher receives lifecycle notifications after domain state
// changes. Publication is best-effort: implementations must not block the
// request path on delivery and must swallow their own errors.
type EventPublisher interface {
	PublishPackageStatus(pkg *models.Package, action string)
	PublishShipmentStatus(shipment *models.Shipment, action string)
	PublishRetryOutcome(record *models.FailureRecord, success bool)
}

// multiPublisher fans one notification out to several publishers
type multiPublisher []EventPublisher

// NewMultiPublisher combines publishers; nil entries are dropped
func NewMultiPublisher(publishers ...EventPublisher) EventPublisher {
	var active multiPublisher
	for _, p := range publishers {
		if p != nil {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return active
}

func (m multiPublisher) PublishPackageStatus(pkg *models.Package, action string) {
	for _, p := range m {
		p.PublishPackageStatus(pkg, action)
	}
}

func (m multiPublisher) PublishShipmentStatus(shipment *models.Shipment, action string) {
	for _, p := range m {
		p.PublishShipmentStatus(shipment, action)
	}
}

func (m multiPublisher) PublishRetryOutcome(record *models.FailureRecord, success bool) {
	for _, p := range m {
		p.PublishRetryOutcome(record, success)
	}
}
