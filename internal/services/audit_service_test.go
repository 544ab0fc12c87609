package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customs-backend/internal/clients"
	"customs-backend/internal/models"
)

type auditFixture struct {
	svc       *AuditService
	packages  *fakePackageRepo
	failures  *fakeFailureRepo
	auditLog  *fakeAuditLog
	client    *fakeScreeningAPI
	publisher *fakePublisher
}

func newAuditFixture() *auditFixture {
	f := &auditFixture{
		packages:  newFakePackageRepo(),
		failures:  newFakeFailureRepo(),
		auditLog:  &fakeAuditLog{},
		client:    &fakeScreeningAPI{},
		publisher: &fakePublisher{},
	}
	f.svc = NewAuditService(f.packages, f.failures, f.auditLog, f.client, f.publisher)
	return f
}

func (f *auditFixture) seedAuditRequiredPackage(t *testing.T) *models.Package {
	t.Helper()
	providerID := "prov-300"
	pkg := &models.Package{
		ID:          uuid.NewString(),
		ExternalID:  "ORD-3001",
		UserID:      "operator-1",
		Environment: "sandbox",
		Status:      models.PackageStatusAuditRequired,
		ProviderID:  &providerID,
	}
	require.NoError(t, f.packages.Create(context.Background(), pkg))
	return pkg
}

func TestSubmitAuditPassesReview(t *testing.T) {
	f := newAuditFixture()
	pkg := f.seedAuditRequiredPackage(t)
	images := []string{"https://img.example/1.jpg", "https://img.example/2.jpg"}

	f.client.auditFn = func(env clients.Environment, req *clients.SubmitAuditRequest) (*clients.AuditResult, *clients.APIError) {
		assert.Equal(t, "prov-300", req.PackageID)
		assert.Equal(t, "ORD-3001", req.ExternalID)
		assert.Equal(t, images, req.Images)
		assert.Equal(t, "front and back labels", req.Remark)
		return &clients.AuditResult{Code: 1, Status: "passed"}, nil
	}

	updated, err := f.svc.SubmitAudit(context.Background(), "operator-1", pkg.ID, images, "front and back labels")
	require.NoError(t, err)

	assert.Equal(t, models.PackageStatusAccepted, updated.Status)
	require.NotNil(t, updated.AuditStatus)
	assert.Equal(t, "passed", *updated.AuditStatus)
	assert.Equal(t, len(images), len(updated.AuditImages))
	require.NotNil(t, updated.AuditRemark)
	require.NotNil(t, updated.AuditSubmittedAt)

	assert.Contains(t, f.auditLog.actions(), models.AuditActionAuditSubmission)
	assert.Equal(t, []string{"updated"}, f.publisher.packageEvents)
}

func TestSubmitAuditFailedReviewRejectsPackage(t *testing.T) {
	f := newAuditFixture()
	pkg := f.seedAuditRequiredPackage(t)

	f.client.auditFn = func(env clients.Environment, req *clients.SubmitAuditRequest) (*clients.AuditResult, *clients.APIError) {
		return &clients.AuditResult{Code: 2, Status: "failed"}, nil
	}

	updated, err := f.svc.SubmitAudit(context.Background(), "operator-1", pkg.ID, []string{"https://img.example/1.jpg", "https://img.example/2.jpg"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.PackageStatusRejected, updated.Status)
	assert.Nil(t, updated.AuditRemark)
}

func TestSubmitAuditPendingReviewHoldsPackage(t *testing.T) {
	f := newAuditFixture()
	pkg := f.seedAuditRequiredPackage(t)

	f.client.auditFn = func(env clients.Environment, req *clients.SubmitAuditRequest) (*clients.AuditResult, *clients.APIError) {
		return &clients.AuditResult{Code: 3, Status: "pending"}, nil
	}

	updated, err := f.svc.SubmitAudit(context.Background(), "operator-1", pkg.ID, []string{"https://img.example/1.jpg", "https://img.example/2.jpg"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.PackageStatusAuditSubmitted, updated.Status)
}

func TestSubmitAuditGuardsStatus(t *testing.T) {
	f := newAuditFixture()

	providerID := "prov-1"
	pkg := &models.Package{
		ID:         uuid.NewString(),
		UserID:     "operator-1",
		Status:     models.PackageStatusAccepted,
		ProviderID: &providerID,
	}
	require.NoError(t, f.packages.Create(context.Background(), pkg))

	_, err := f.svc.SubmitAudit(context.Background(), "operator-1", pkg.ID, []string{"x"}, "")
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.Contains(t, err.Error(), "does not allow audit submission")
}

func TestSubmitAuditGuardsMissingProviderID(t *testing.T) {
	f := newAuditFixture()

	pkg := &models.Package{
		ID:     uuid.NewString(),
		UserID: "operator-1",
		Status: models.PackageStatusAuditRequired,
	}
	require.NoError(t, f.packages.Create(context.Background(), pkg))

	_, err := f.svc.SubmitAudit(context.Background(), "operator-1", pkg.ID, []string{"x"}, "")
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.Contains(t, err.Error(), "not been screened")
}

func TestSubmitAuditRejectsSingleImage(t *testing.T) {
	f := newAuditFixture()
	pkg := f.seedAuditRequiredPackage(t)

	called := false
	f.client.auditFn = func(env clients.Environment, req *clients.SubmitAuditRequest) (*clients.AuditResult, *clients.APIError) {
		called = true
		return &clients.AuditResult{Code: 1, Status: "passed"}, nil
	}

	_, err := f.svc.SubmitAudit(context.Background(), "operator-1", pkg.ID, []string{"https://img.example/1.jpg"}, "")
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.Contains(t, err.Error(), "at least 2 images")

	assert.False(t, called, "guard rejections never reach the provider")
	assert.Empty(t, f.failures.order)
	assert.Equal(t, models.PackageStatusAuditRequired, f.packages.stored(pkg.ID).Status)
}

func TestSubmitAuditRejectsOverlongRemark(t *testing.T) {
	f := newAuditFixture()
	pkg := f.seedAuditRequiredPackage(t)
	images := []string{"https://img.example/1.jpg", "https://img.example/2.jpg"}

	called := false
	f.client.auditFn = func(env clients.Environment, req *clients.SubmitAuditRequest) (*clients.AuditResult, *clients.APIError) {
		called = true
		return &clients.AuditResult{Code: 1, Status: "passed"}, nil
	}

	_, err := f.svc.SubmitAudit(context.Background(), "operator-1", pkg.ID, images, strings.Repeat("x", 101))
	require.Error(t, err)
	assert.True(t, IsGuardError(err))
	assert.Contains(t, err.Error(), "at most 100 characters")

	assert.False(t, called)
	assert.Empty(t, f.failures.order)
}

func TestSubmitAuditProviderFailureFilesManualRecord(t *testing.T) {
	f := newAuditFixture()
	pkg := f.seedAuditRequiredPackage(t)

	f.client.auditFn = func(env clients.Environment, req *clients.SubmitAuditRequest) (*clients.AuditResult, *clients.APIError) {
		return nil, &clients.APIError{StatusCode: 422, Code: "invalid_images", Message: "image url unreachable"}
	}

	_, err := f.svc.SubmitAudit(context.Background(), "operator-1", pkg.ID, []string{"https://img.example/dead.jpg", "https://img.example/dead2.jpg"}, "")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)

	record := f.failures.stored(provErr.FailureID)
	require.NotNil(t, record)
	assert.Equal(t, models.EndpointSubmitAudit, record.Endpoint)
	assert.Equal(t, models.RetryStatusManualRequired, record.RetryStatus)
	assert.Equal(t, models.ManualOnlyMaxRetries, record.MaxRetries)

	// The package keeps its audit_required status for a corrected resubmission
	assert.Equal(t, models.PackageStatusAuditRequired, f.packages.stored(pkg.ID).Status)
}
