package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"customs-backend/internal/clients"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

// ==================== Provider fake ====================

type fakeScreeningAPI struct {
	screenFn    func(env clients.Environment, req *clients.ScreenPackageRequest) (*clients.ScreeningResult, *clients.APIError)
	payDutyFn   func(env clients.Environment, req *clients.PayDutyRequest) (*clients.DutyResult, *clients.APIError)
	auditFn     func(env clients.Environment, req *clients.SubmitAuditRequest) (*clients.AuditResult, *clients.APIError)
	registerFn  func(env clients.Environment, req *clients.RegisterShipmentRequest) (*clients.RegisterShipmentResult, *clients.APIError)
	verifyFn    func(env clients.Environment, providerShipmentID string) (*clients.VerifyShipmentResult, *clients.APIError)
	trackingFn  func(env clients.Environment, providerPackageID string) (*clients.TrackingResult, *clients.APIError)
	platformsFn func(env clients.Environment) ([]clients.Platform, *clients.APIError)
}

func notConfigured() *clients.APIError {
	return &clients.APIError{Code: "test_not_configured", Message: "fake not configured"}
}

func (f *fakeScreeningAPI) ScreenPackage(_ context.Context, env clients.Environment, req *clients.ScreenPackageRequest) (*clients.ScreeningResult, *clients.APIError) {
	if f.screenFn == nil {
		return nil, notConfigured()
	}
	return f.screenFn(env, req)
}

func (f *fakeScreeningAPI) PayDuty(_ context.Context, env clients.Environment, req *clients.PayDutyRequest) (*clients.DutyResult, *clients.APIError) {
	if f.payDutyFn == nil {
		return nil, notConfigured()
	}
	return f.payDutyFn(env, req)
}

func (f *fakeScreeningAPI) SubmitAudit(_ context.Context, env clients.Environment, req *clients.SubmitAuditRequest) (*clients.AuditResult, *clients.APIError) {
	if f.auditFn == nil {
		return nil, notConfigured()
	}
	return f.auditFn(env, req)
}

func (f *fakeScreeningAPI) RegisterShipment(_ context.Context, env clients.Environment, req *clients.RegisterShipmentRequest) (*clients.RegisterShipmentResult, *clients.APIError) {
	if f.registerFn == nil {
		return nil, notConfigured()
	}
	return f.registerFn(env, req)
}

func (f *fakeScreeningAPI) VerifyShipment(_ context.Context, env clients.Environment, providerShipmentID string) (*clients.VerifyShipmentResult, *clients.APIError) {
	if f.verifyFn == nil {
		return nil, notConfigured()
	}
	return f.verifyFn(env, providerShipmentID)
}

func (f *fakeScreeningAPI) GetTracking(_ context.Context, env clients.Environment, providerPackageID string) (*clients.TrackingResult, *clients.APIError) {
	if f.trackingFn == nil {
		return nil, notConfigured()
	}
	return f.trackingFn(env, providerPackageID)
}

func (f *fakeScreeningAPI) GetPlatforms(_ context.Context, env clients.Environment) ([]clients.Platform, *clients.APIError) {
	if f.platformsFn == nil {
		return nil, notConfigured()
	}
	return f.platformsFn(env)
}

// ==================== Repository fakes ====================

// errMockedStore is the injected store failure for error-path tests
var errMockedStore = errors.New("mocked store failure")

type fakeFailureRepo struct {
	mu        sync.Mutex
	records   map[string]*models.FailureRecord
	order     []string
	failClaim bool  // simulates losing the claim race
	updateErr error // injected Update failure
}

func newFakeFailureRepo() *fakeFailureRepo {
	return &fakeFailureRepo{records: make(map[string]*models.FailureRecord)}
}

func copyRecord(r *models.FailureRecord) *models.FailureRecord {
	c := *r
	return &c
}

func (f *fakeFailureRepo) Create(_ context.Context, record *models.FailureRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.ID] = copyRecord(record)
	f.order = append(f.order, record.ID)
	return nil
}

func (f *fakeFailureRepo) GetByID(_ context.Context, id string) (*models.FailureRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyRecord(record), nil
}

func (f *fakeFailureRepo) Update(_ context.Context, record *models.FailureRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.records[record.ID] = copyRecord(record)
	return nil
}

func (f *fakeFailureRepo) List(_ context.Context, filter repository.FailureFilter, limit, offset int) ([]*models.FailureRecord, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.FailureRecord
	for _, id := range f.order {
		r := f.records[id]
		if filter.RetryStatus != "" && r.RetryStatus != filter.RetryStatus {
			continue
		}
		if filter.Endpoint != "" && r.Endpoint != filter.Endpoint {
			continue
		}
		out = append(out, copyRecord(r))
	}
	return out, int64(len(out)), nil
}

func (f *fakeFailureRepo) ClaimForRetry(_ context.Context, id string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClaim {
		return false, nil
	}
	record, ok := f.records[id]
	if !ok {
		return false, nil
	}
	switch record.RetryStatus {
	case models.RetryStatusPending, models.RetryStatusManualRequired:
		record.RetryStatus = models.RetryStatusRetrying
		record.LastRetryAt = &now
		return true, nil
	}
	return false, nil
}

func (f *fakeFailureRepo) Release(_ context.Context, id string, status models.RetryStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[id]; ok && record.RetryStatus == models.RetryStatusRetrying {
		record.RetryStatus = status
	}
	return nil
}

func (f *fakeFailureRepo) eligible(r *models.FailureRecord) bool {
	if r.RetryStatus != models.RetryStatusPending && r.RetryStatus != models.RetryStatusManualRequired {
		return false
	}
	return r.RetryCount < r.MaxRetries
}

func (f *fakeFailureRepo) FindEligibleByIDs(_ context.Context, ids []string) ([]*models.FailureRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.FailureRecord
	for _, id := range ids {
		if record, ok := f.records[id]; ok && f.eligible(record) {
			out = append(out, copyRecord(record))
		}
	}
	return out, nil
}

func (f *fakeFailureRepo) FindEligibleByUpload(_ context.Context, uploadID string) ([]*models.FailureRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.FailureRecord
	for _, id := range f.order {
		record := f.records[id]
		if record.UploadID != nil && *record.UploadID == uploadID && f.eligible(record) {
			out = append(out, copyRecord(record))
		}
	}
	return out, nil
}

func (f *fakeFailureRepo) stored(id string) *models.FailureRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyRecord(f.records[id])
}

type fakePackageRepo struct {
	mu        sync.Mutex
	packages  map[string]*models.Package
	createErr error // injected Create failure
}

func newFakePackageRepo() *fakePackageRepo {
	return &fakePackageRepo{packages: make(map[string]*models.Package)}
}

func copyPackage(p *models.Package) *models.Package {
	c := *p
	return &c
}

func (f *fakePackageRepo) Create(_ context.Context, pkg *models.Package) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.packages[pkg.ID] = copyPackage(pkg)
	return nil
}

func (f *fakePackageRepo) GetByID(_ context.Context, id string) (*models.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pkg, ok := f.packages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyPackage(pkg), nil
}

func (f *fakePackageRepo) Update(_ context.Context, pkg *models.Package) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packages[pkg.ID] = copyPackage(pkg)
	return nil
}

func (f *fakePackageRepo) List(_ context.Context, filter repository.PackageFilter, limit, offset int) ([]*models.Package, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Package
	for _, pkg := range f.packages {
		if filter.Status != "" && pkg.Status != filter.Status {
			continue
		}
		out = append(out, copyPackage(pkg))
	}
	return out, int64(len(out)), nil
}

func (f *fakePackageRepo) ClaimForDuty(_ context.Context, id string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pkg, ok := f.packages[id]
	if !ok {
		return false, nil
	}
	if pkg.DDPN != nil || pkg.ProviderID == nil {
		return false, nil
	}
	switch pkg.Status {
	case models.PackageStatusAccepted, models.PackageStatusDutyPending:
		pkg.Status = models.PackageStatusDutyPending
		return true, nil
	}
	return false, nil
}

func (f *fakePackageRepo) ReleaseDutyClaim(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pkg, ok := f.packages[id]; ok && pkg.Status == models.PackageStatusDutyPending {
		pkg.Status = models.PackageStatusAccepted
	}
	return nil
}

func (f *fakePackageRepo) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pkg, ok := f.packages[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := fields["status"]; ok {
		pkg.Status = status.(models.PackageStatus)
	}
	return nil
}

func (f *fakePackageRepo) AssignToShipment(_ context.Context, _ *gorm.DB, shipmentID string, packageIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range packageIDs {
		if pkg, ok := f.packages[id]; ok {
			sid := shipmentID
			pkg.ShipmentID = &sid
			pkg.Status = models.PackageStatusRegistered
		}
	}
	return nil
}

func (f *fakePackageRepo) stored(id string) *models.Package {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyPackage(f.packages[id])
}

type fakeUploadRepo struct {
	mu      sync.Mutex
	uploads map[string]*models.Upload
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{uploads: make(map[string]*models.Upload)}
}

func (f *fakeUploadRepo) Create(_ context.Context, upload *models.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *upload
	f.uploads[upload.ID] = &c
	return nil
}

func (f *fakeUploadRepo) GetByID(_ context.Context, id string) (*models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	upload, ok := f.uploads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *upload
	return &c, nil
}

func (f *fakeUploadRepo) Update(_ context.Context, upload *models.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *upload
	f.uploads[upload.ID] = &c
	return nil
}

func (f *fakeUploadRepo) List(_ context.Context, userID string, limit, offset int) ([]*models.Upload, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Upload
	for _, upload := range f.uploads {
		c := *upload
		out = append(out, &c)
	}
	return out, int64(len(out)), nil
}

type fakeShipmentRepo struct {
	mu        sync.Mutex
	shipments map[string]*models.Shipment
}

func newFakeShipmentRepo() *fakeShipmentRepo {
	return &fakeShipmentRepo{shipments: make(map[string]*models.Shipment)}
}

func copyShipment(s *models.Shipment) *models.Shipment {
	c := *s
	c.Packages = append([]models.Package(nil), s.Packages...)
	return &c
}

func (f *fakeShipmentRepo) Create(_ context.Context, shipment *models.Shipment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shipments[shipment.ID] = copyShipment(shipment)
	return nil
}

func (f *fakeShipmentRepo) GetByID(_ context.Context, id string) (*models.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	shipment, ok := f.shipments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyShipment(shipment), nil
}

func (f *fakeShipmentRepo) GetWithPackages(ctx context.Context, id string) (*models.Shipment, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeShipmentRepo) Update(_ context.Context, shipment *models.Shipment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shipments[shipment.ID] = copyShipment(shipment)
	return nil
}

func (f *fakeShipmentRepo) List(_ context.Context, userID string, status models.ShipmentStatus, limit, offset int) ([]*models.Shipment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Shipment
	for _, shipment := range f.shipments {
		if status != "" && shipment.Status != status {
			continue
		}
		out = append(out, copyShipment(shipment))
	}
	return out, int64(len(out)), nil
}

func (f *fakeShipmentRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.shipments, id)
	return nil
}

// Transaction paths run against a real database; unit tests stop short of them.
func (f *fakeShipmentRepo) Transaction(_ context.Context, _ func(tx *gorm.DB) error) error {
	return errors.New("transactions are not supported by the in-memory fake")
}

func (f *fakeShipmentRepo) stored(id string) *models.Shipment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyShipment(f.shipments[id])
}

type fakeAuditLog struct {
	mu      sync.Mutex
	entries []*models.AuditLogEntry
}

func (f *fakeAuditLog) Append(_ context.Context, entry *models.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditLog) ListByEntity(_ context.Context, entityType, entityID string, limit, offset int) ([]*models.AuditLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AuditLogEntry
	for _, e := range f.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuditLog) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeTrackingRepo struct {
	mu     sync.Mutex
	events []*models.TrackingEvent
}

func (f *fakeTrackingRepo) UpsertEvents(_ context.Context, events []models.TrackingEvent) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var inserted int64
	for i := range events {
		ev := events[i]
		dup := false
		for _, existing := range f.events {
			if existing.EntityID == ev.EntityID && existing.EventType == ev.EventType && existing.EventTime.Equal(ev.EventTime) {
				dup = true
				break
			}
		}
		if !dup {
			f.events = append(f.events, &ev)
			inserted++
		}
	}
	return inserted, nil
}

func (f *fakeTrackingRepo) ListByEntity(_ context.Context, entityType, entityID string) ([]*models.TrackingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TrackingEvent
	for _, ev := range f.events {
		if ev.EntityType == entityType && ev.EntityID == entityID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ==================== Publisher fake ====================

type fakePublisher struct {
	mu             sync.Mutex
	packageEvents  []string
	shipmentEvents []string
	retryEvents    []bool
}

func (f *fakePublisher) PublishPackageStatus(pkg *models.Package, action string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packageEvents = append(f.packageEvents, action)
}

func (f *fakePublisher) PublishShipmentStatus(shipment *models.Shipment, action string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shipmentEvents = append(f.shipmentEvents, action)
}

func (f *fakePublisher) PublishRetryOutcome(record *models.FailureRecord, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryEvents = append(f.retryEvents, success)
}
