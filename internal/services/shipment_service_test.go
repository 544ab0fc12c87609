package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customs-backend/internal/clients"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

type shipmentFixture struct {
	svc       *ShipmentService
	shipments *fakeShipmentRepo
	packages  *fakePackageRepo
	failures  *fakeFailureRepo
	auditLog  *fakeAuditLog
	client    *fakeScreeningAPI
	publisher *fakePublisher
}

func newShipmentFixture() *shipmentFixture {
	f := &shipmentFixture{
		shipments: newFakeShipmentRepo(),
		packages:  newFakePackageRepo(),
		failures:  newFakeFailureRepo(),
		auditLog:  &fakeAuditLog{},
		client:    &fakeScreeningAPI{},
		publisher: &fakePublisher{},
	}
	f.svc = NewShipmentService(f.shipments, f.packages, f.failures, f.auditLog, f.client, f.publisher)
	return f
}

func (f *shipmentFixture) seedDutyPaidPackage(t *testing.T, env string) *models.Package {
	t.Helper()
	providerID := "prov-" + uuid.NewString()[:8]
	ddpn := "DDPN-" + uuid.NewString()[:8]
	pkg := &models.Package{
		ID:          uuid.NewString(),
		UserID:      "operator-1",
		Environment: env,
		Status:      models.PackageStatusDutyPaid,
		ProviderID:  &providerID,
		DDPN:        &ddpn,
	}
	require.NoError(t, f.packages.Create(context.Background(), pkg))
	return pkg
}

func (f *shipmentFixture) seedRegisteredShipment(t *testing.T) *models.Shipment {
	t.Helper()
	providerID := "prov-ship-1"
	now := time.Now()
	shipment := &models.Shipment{
		ID:               uuid.NewString(),
		UserID:           "operator-1",
		MasterBillNumber: "MBL-900",
		Environment:      "sandbox",
		Status:           models.ShipmentStatusRegistered,
		ProviderID:       &providerID,
		RegisteredAt:     &now,
	}
	require.NoError(t, f.shipments.Create(context.Background(), shipment))
	return shipment
}

func TestCreateShipmentGuardsEnvironmentMismatch(t *testing.T) {
	f := newShipmentFixture()
	pkg := f.seedDutyPaidPackage(t, "production")

	_, err := f.svc.Create(context.Background(), "operator-1", clients.EnvironmentSandbox, "MBL-1", "", []string{pkg.ID})
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.Contains(t, err.Error(), "environment")
}

func TestCreateShipmentGuardsUnpaidPackage(t *testing.T) {
	f := newShipmentFixture()

	providerID := "prov-1"
	pkg := &models.Package{
		ID:          uuid.NewString(),
		UserID:      "operator-1",
		Environment: "sandbox",
		Status:      models.PackageStatusAccepted,
		ProviderID:  &providerID,
	}
	require.NoError(t, f.packages.Create(context.Background(), pkg))

	_, err := f.svc.Create(context.Background(), "operator-1", clients.EnvironmentSandbox, "MBL-1", "", []string{pkg.ID})
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.Contains(t, err.Error(), "not duty-paid")
}

func TestCreateShipmentGuardsDoubleMembership(t *testing.T) {
	f := newShipmentFixture()
	pkg := f.seedDutyPaidPackage(t, "sandbox")

	other := "shipment-other"
	stored := f.packages.stored(pkg.ID)
	stored.ShipmentID = &other
	require.NoError(t, f.packages.Update(context.Background(), stored))

	_, err := f.svc.Create(context.Background(), "operator-1", clients.EnvironmentSandbox, "MBL-1", "", []string{pkg.ID})
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.Contains(t, err.Error(), "already belongs to shipment")
}

func TestRegisterGuardsShipmentStatus(t *testing.T) {
	f := newShipmentFixture()
	shipment := f.seedRegisteredShipment(t)

	_, err := f.svc.Register(context.Background(), "operator-1", shipment.ID)
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.Contains(t, err.Error(), "does not allow registration")
}

func TestRegisterGuardsEmptyShipment(t *testing.T) {
	f := newShipmentFixture()

	shipment := &models.Shipment{
		ID:               uuid.NewString(),
		UserID:           "operator-1",
		MasterBillNumber: "MBL-2",
		Environment:      "sandbox",
		Status:           models.ShipmentStatusPending,
	}
	require.NoError(t, f.shipments.Create(context.Background(), shipment))

	_, err := f.svc.Register(context.Background(), "operator-1", shipment.ID)
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.Contains(t, err.Error(), "no packages")
}

func TestRegisterProviderFailureParksShipment(t *testing.T) {
	f := newShipmentFixture()
	pkg := f.seedDutyPaidPackage(t, "sandbox")

	shipment := &models.Shipment{
		ID:               uuid.NewString(),
		UserID:           "operator-1",
		MasterBillNumber: "MBL-3",
		CarrierCode:      "UPSN",
		Environment:      "sandbox",
		Status:           models.ShipmentStatusPending,
		Packages:         []models.Package{*f.packages.stored(pkg.ID)},
	}
	require.NoError(t, f.shipments.Create(context.Background(), shipment))

	f.client.registerFn = func(env clients.Environment, req *clients.RegisterShipmentRequest) (*clients.RegisterShipmentResult, *clients.APIError) {
		assert.Equal(t, "MBL-3", req.MasterBillNumber)
		assert.Equal(t, []string{*pkg.ProviderID}, req.PackageIDs)
		return nil, &clients.APIError{StatusCode: 502, Code: "customs_unavailable", Message: "manifest endpoint down"}
	}

	_, err := f.svc.Register(context.Background(), "operator-1", shipment.ID)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)

	record := f.failures.stored(provErr.FailureID)
	require.NotNil(t, record)
	assert.Equal(t, models.EndpointRegisterShipment, record.Endpoint)
	assert.Equal(t, models.RetryStatusPending, record.RetryStatus)
	assert.Equal(t, models.DefaultMaxRetries, record.MaxRetries)
	require.NotNil(t, record.ShipmentID)
	assert.Equal(t, shipment.ID, *record.ShipmentID)

	assert.Equal(t, models.ShipmentStatusFailed, f.shipments.stored(shipment.ID).Status)
}

func TestVerifyAcceptsShipmentWithDocument(t *testing.T) {
	f := newShipmentFixture()
	shipment := f.seedRegisteredShipment(t)

	f.client.verifyFn = func(env clients.Environment, providerShipmentID string) (*clients.VerifyShipmentResult, *clients.APIError) {
		assert.Equal(t, "prov-ship-1", providerShipmentID)
		return &clients.VerifyShipmentResult{
			Code:              models.VerificationCodeAccepted,
			Status:            "verified",
			Document:          "JVBERi0xLjQK",
			DocumentMediaType: "application/pdf",
		}, nil
	}

	verified, err := f.svc.Verify(context.Background(), "operator-1", shipment.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ShipmentStatusVerified, verified.Status)
	require.NotNil(t, verified.VerificationCode)
	assert.Equal(t, models.VerificationCodeAccepted, *verified.VerificationCode)
	require.NotNil(t, verified.VerificationDocument)
	assert.Equal(t, "JVBERi0xLjQK", *verified.VerificationDocument)
	require.NotNil(t, verified.DocumentMediaType)
	assert.Equal(t, "application/pdf", *verified.DocumentMediaType)
	assert.Nil(t, verified.VerificationReason)
	require.NotNil(t, verified.VerifiedAt)

	assert.Contains(t, f.auditLog.actions(), models.AuditActionVerification)
	assert.Equal(t, []string{"updated"}, f.publisher.shipmentEvents)
}

func TestVerifyRejectsShipmentWithReason(t *testing.T) {
	f := newShipmentFixture()
	shipment := f.seedRegisteredShipment(t)

	f.client.verifyFn = func(env clients.Environment, providerShipmentID string) (*clients.VerifyShipmentResult, *clients.APIError) {
		return &clients.VerifyShipmentResult{Code: 2, Status: "rejected", Reason: "master bill already filed"}, nil
	}

	rejected, err := f.svc.Verify(context.Background(), "operator-1", shipment.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ShipmentStatusRejected, rejected.Status)
	require.NotNil(t, rejected.VerificationReason)
	assert.Equal(t, "master bill already filed", *rejected.VerificationReason)
	assert.Nil(t, rejected.VerificationDocument)
}

func TestVerifyGuardsUnregisteredShipment(t *testing.T) {
	f := newShipmentFixture()

	shipment := &models.Shipment{
		ID:               uuid.NewString(),
		UserID:           "operator-1",
		MasterBillNumber: "MBL-5",
		Environment:      "sandbox",
		Status:           models.ShipmentStatusPending,
	}
	require.NoError(t, f.shipments.Create(context.Background(), shipment))

	_, err := f.svc.Verify(context.Background(), "operator-1", shipment.ID)
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.Contains(t, err.Error(), "does not allow verification")
}

func TestVerifyProviderFailureFilesRecord(t *testing.T) {
	f := newShipmentFixture()
	shipment := f.seedRegisteredShipment(t)

	f.client.verifyFn = func(env clients.Environment, providerShipmentID string) (*clients.VerifyShipmentResult, *clients.APIError) {
		return nil, &clients.APIError{StatusCode: 504, Message: "verification timed out"}
	}

	_, err := f.svc.Verify(context.Background(), "operator-1", shipment.ID)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)

	record := f.failures.stored(provErr.FailureID)
	require.NotNil(t, record)
	assert.Equal(t, models.EndpointVerifyShipment, record.Endpoint)
	require.NotNil(t, record.ShipmentID)
	assert.Equal(t, shipment.ID, *record.ShipmentID)

	assert.Equal(t, models.ShipmentStatusFailed, f.shipments.stored(shipment.ID).Status)
}

func TestDeleteGuardsRegisteredShipment(t *testing.T) {
	f := newShipmentFixture()
	shipment := f.seedRegisteredShipment(t)

	err := f.svc.Delete(context.Background(), "admin-7", shipment.ID)
	assert.ErrorIs(t, err, repository.ErrShipmentNotDeletable)
}
