package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"customs-backend/internal/clients"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

// TrackingService pulls tracking histories from the provider and caches
// them locally. Tracking is read-only against the provider, so a failed pull
// surfaces as an error without creating a failure record.
type TrackingService struct {
	packages repository.PackageRepository
	tracking repository.TrackingRepository
	client   ScreeningAPI
	logger   *logrus.Entry
}

// NewTrackingService creates a new TrackingService
func NewTrackingService(
	packages repository.PackageRepository,
	tracking repository.TrackingRepository,
	client ScreeningAPI,
) *TrackingService {
	return &TrackingService{
		packages: packages,
		tracking: tracking,
		client:   client,
		logger:   logrus.WithField("component", "tracking_service"),
	}
}

// RefreshPackage pulls the latest tracking history for a package, merges it
// into the local cache, and returns the full cached history oldest-first.
func (s *TrackingService) RefreshPackage(ctx context.Context, packageID string) ([]*models.TrackingEvent, error) {
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.ProviderID == nil || *pkg.ProviderID == "" {
		return nil, NewGuardError("package has not been screened by the provider")
	}

	env := clients.Environment(pkg.Environment)
	result, apiErr := s.client.GetTracking(ctx, env, *pkg.ProviderID)
	if apiErr != nil {
		return nil, &ProviderError{Message: apiErr.Summary()}
	}

	events := make([]models.TrackingEvent, 0, len(result.Events))
	for _, ev := range result.Events {
		event := models.TrackingEvent{
			EntityType: "package",
			EntityID:   pkg.ID,
			EventType:  ev.EventType,
			EventTime:  ev.EventTime,
		}
		if ev.Location != "" {
			loc := ev.Location
			event.Location = &loc
		}
		if ev.Description != "" {
			desc := ev.Description
			event.Description = &desc
		}
		if raw, err := models.ToJSONMap(ev); err == nil {
			event.Raw = raw
		}
		events = append(events, event)
	}

	inserted, err := s.tracking.UpsertEvents(ctx, events)
	if err != nil {
		return nil, err
	}
	if inserted > 0 {
		s.logger.WithFields(logrus.Fields{
			"package_id": pkg.ID,
			"new_events": inserted,
		}).Info("tracking events ingested")
	}

	return s.tracking.ListByEntity(ctx, "package", pkg.ID)
}

// History returns the cached tracking history without touching the provider
func (s *TrackingService) History(ctx context.Context, entityType, entityID string) ([]*models.TrackingEvent, error) {
	return s.tracking.ListByEntity(ctx, entityType, entityID)
}
