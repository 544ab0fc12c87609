package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"customs-backend/internal/metrics"
)

// Environment selects which provider deployment a call targets. Operations
// never mix environments within one call.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// Valid reports whether the environment name is one the client knows
func (e Environment) Valid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// APIError is the uniform failure shape for every provider call: provider
// error envelopes, HTTP errors, and transport faults all land here. The
// client never returns a Go error for provider-level failures.
type APIError struct {
	StatusCode int                    `json:"status_code,omitempty"`
	Code       string                 `json:"code,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Summary extracts a human-readable message. A nested details.errors list
// of {field, message} pairs wins over the top-level message.
func (e *APIError) Summary() string {
	if e == nil {
		return "Unknown error"
	}
	if e.Details != nil {
		if rawErrors, ok := e.Details["errors"].([]interface{}); ok && len(rawErrors) > 0 {
			parts := make([]string, 0, len(rawErrors))
			for _, raw := range rawErrors {
				item, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				field, _ := item["field"].(string)
				msg, _ := item["message"].(string)
				switch {
				case field != "" && msg != "":
					parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
				case msg != "":
					parts = append(parts, msg)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
	}
	if e.Message != "" {
		return e.Message
	}
	return "Unknown error"
}

// EnvironmentEndpoint is the connection settings for one provider deployment
type EnvironmentEndpoint struct {
	BaseURL string
	APIKey  string
}

// ScreeningClient wraps the third-party customs screening API. One client
// serves both environments; every operation names the environment it runs in.
type ScreeningClient struct {
	endpoints  map[Environment]EnvironmentEndpoint
	httpClient *http.Client
}

// NewScreeningClient creates a provider client with a fixed request timeout
func NewScreeningClient(endpoints map[Environment]EnvironmentEndpoint, timeout time.Duration) *ScreeningClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ScreeningClient{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ==================== Requests ====================

// ScreenPackageRequest is the replayable screening request body. The same
// struct is serialized into a failure record and decoded back on retry.
type ScreenPackageRequest struct {
	ExternalID         string          `json:"external_id"`
	Description        string          `json:"description"`
	OriginCountry      string          `json:"origin_country"`
	DestinationCountry string          `json:"destination_country"`
	Quantity           int             `json:"quantity"`
	WeightKg           decimal.Decimal `json:"weight_kg"`
	DeclaredValue      decimal.Decimal `json:"declared_value"`
	Currency           string          `json:"currency"`
	RecipientName      string          `json:"recipient_name"`
	RecipientAddress   string          `json:"recipient_address"`
	Barcode            string          `json:"barcode,omitempty"`
}

// PayDutyRequest pays customs duty for a screened package
type PayDutyRequest struct {
	PackageID string `json:"package_id"` // provider-assigned id
	Barcode   string `json:"barcode"`
}

// SubmitAuditRequest submits secondary review images for a package
type SubmitAuditRequest struct {
	PackageID  string   `json:"package_id,omitempty"`
	ExternalID string   `json:"external_id,omitempty"`
	Images     []string `json:"images"`
	Remark     string   `json:"remark,omitempty"`
}

// RegisterShipmentRequest registers a customs manifest
type RegisterShipmentRequest struct {
	MasterBillNumber string   `json:"master_bill_number"`
	CarrierCode      string   `json:"carrier_code,omitempty"`
	PackageIDs       []string `json:"package_ids"` // provider package ids
}

// ==================== Results ====================

// ScreeningResult carries the provider's screening verdict.
// Code: 1 accepted, 2 rejected, 3 inconclusive, 4 audit required.
type ScreeningResult struct {
	Code      int    `json:"code"`
	PackageID string `json:"packageId"`
	Status    string `json:"status"`
	LabelURL  string `json:"labelUrl,omitempty"`
}

// DutyResult carries the duty payment confirmation
type DutyResult struct {
	DDPN      string          `json:"ddpn"`
	TotalDuty decimal.Decimal `json:"totalDuty"`
}

// AuditResult carries the audit verdict. Code: 1 passed, 2 failed, 3 pending.
type AuditResult struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
}

// RegisterShipmentResult carries the provider shipment id
type RegisterShipmentResult struct {
	ShipmentID string `json:"shipmentId"`
}

// VerifyShipmentResult carries the customs verification decision.
// Code 1 accepts (with a document); any other code rejects with a reason.
type VerifyShipmentResult struct {
	Code              int    `json:"code"`
	Status            string `json:"status"`
	Reason            string `json:"reason,omitempty"`
	Document          string `json:"document,omitempty"` // base64
	DocumentMediaType string `json:"documentMediaType,omitempty"`
}

// TrackingEventData is one event in a tracking history
type TrackingEventData struct {
	EventType   string    `json:"eventType"`
	EventTime   time.Time `json:"eventTime"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// TrackingResult is the full tracking history for one entity
type TrackingResult struct {
	Events []TrackingEventData `json:"events"`
}

// Platform is one marketplace platform known to the provider
type Platform struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ==================== Operations ====================

// ScreenPackage submits one package for customs-risk screening
func (c *ScreeningClient) ScreenPackage(ctx context.Context, env Environment, req *ScreenPackageRequest) (*ScreeningResult, *APIError) {
	var result ScreeningResult
	if apiErr := c.call(ctx, env, http.MethodPost, "/api/v1/packages/screen", req, &result); apiErr != nil {
		return nil, apiErr
	}
	return &result, nil
}

// PayDuty pays customs duty for a screened package
func (c *ScreeningClient) PayDuty(ctx context.Context, env Environment, req *PayDutyRequest) (*DutyResult, *APIError) {
	var result DutyResult
	if apiErr := c.call(ctx, env, http.MethodPost, "/api/v1/duties/pay", req, &result); apiErr != nil {
		return nil, apiErr
	}
	return &result, nil
}

// SubmitAudit submits a secondary image review for a package
func (c *ScreeningClient) SubmitAudit(ctx context.Context, env Environment, req *SubmitAuditRequest) (*AuditResult, *APIError) {
	var result AuditResult
	if apiErr := c.call(ctx, env, http.MethodPost, "/api/v1/audits", req, &result); apiErr != nil {
		return nil, apiErr
	}
	return &result, nil
}

// RegisterShipment submits a grouped manifest to customs
func (c *ScreeningClient) RegisterShipment(ctx context.Context, env Environment, req *RegisterShipmentRequest) (*RegisterShipmentResult, *APIError) {
	var result RegisterShipmentResult
	if apiErr := c.call(ctx, env, http.MethodPost, "/api/v1/shipments", req, &result); apiErr != nil {
		return nil, apiErr
	}
	return &result, nil
}

// VerifyShipment requests the customs decision for a registered shipment
func (c *ScreeningClient) VerifyShipment(ctx context.Context, env Environment, providerShipmentID string) (*VerifyShipmentResult, *APIError) {
	var result VerifyShipmentResult
	path := fmt.Sprintf("/api/v1/shipments/%s/verify", providerShipmentID)
	if apiErr := c.call(ctx, env, http.MethodPost, path, nil, &result); apiErr != nil {
		return nil, apiErr
	}
	return &result, nil
}

// GetTracking pulls the tracking history for a provider package id
func (c *ScreeningClient) GetTracking(ctx context.Context, env Environment, providerPackageID string) (*TrackingResult, *APIError) {
	var result TrackingResult
	path := fmt.Sprintf("/api/v1/tracking/%s", providerPackageID)
	if apiErr := c.call(ctx, env, http.MethodGet, path, nil, &result); apiErr != nil {
		return nil, apiErr
	}
	sort.Slice(result.Events, func(i, j int) bool {
		return result.Events[i].EventTime.Before(result.Events[j].EventTime)
	})
	return &result, nil
}

// GetPlatforms lists the marketplace platforms known to the provider
func (c *ScreeningClient) GetPlatforms(ctx context.Context, env Environment) ([]Platform, *APIError) {
	var result []Platform
	if apiErr := c.call(ctx, env, http.MethodGet, "/api/v1/platforms", nil, &result); apiErr != nil {
		return nil, apiErr
	}
	return result, nil
}

// ==================== Transport ====================

// envelope is the provider's response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

// call issues one request against the selected environment and decodes the
// provider envelope. Transport faults are converted into the same APIError
// shape so callers have a single failure path to persist.
func (c *ScreeningClient) call(ctx context.Context, env Environment, method, path string, body, out interface{}) *APIError {
	endpoint, ok := c.endpoints[env]
	if !ok || endpoint.BaseURL == "" {
		return &APIError{Code: "environment_not_configured", Message: fmt.Sprintf("no endpoint configured for environment %q", env)}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &APIError{Code: "encode_error", Message: fmt.Sprintf("failed to encode request body: %v", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.BaseURL+path, reader)
	if err != nil {
		return &APIError{Code: "request_error", Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", endpoint.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(path, string(env), "transport_error").Inc()
		return &APIError{Code: "transport_error", Message: fmt.Sprintf("provider request failed: %v", err)}
	}
	defer resp.Body.Close()
	metrics.ProviderCallDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(path, string(env), "transport_error").Inc()
		return &APIError{StatusCode: resp.StatusCode, Code: "read_error", Message: fmt.Sprintf("failed to read provider response: %v", err)}
	}

	var respEnv envelope
	if err := json.Unmarshal(raw, &respEnv); err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(path, string(env), "decode_error").Inc()
		return &APIError{StatusCode: resp.StatusCode, Code: "decode_error", Message: fmt.Sprintf("provider returned status %d with unparseable body", resp.StatusCode)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !respEnv.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if respEnv.Error != nil {
			apiErr.Code = respEnv.Error.Code
			apiErr.Message = respEnv.Error.Message
			apiErr.Details = respEnv.Error.Details
		} else {
			apiErr.Code = "provider_error"
			apiErr.Message = fmt.Sprintf("provider returned status %d", resp.StatusCode)
		}
		metrics.ProviderCallsTotal.WithLabelValues(path, string(env), "provider_error").Inc()
		return apiErr
	}

	if out != nil && len(respEnv.Data) > 0 {
		if err := json.Unmarshal(respEnv.Data, out); err != nil {
			metrics.ProviderCallsTotal.WithLabelValues(path, string(env), "decode_error").Inc()
			return &APIError{StatusCode: resp.StatusCode, Code: "decode_error", Message: fmt.Sprintf("failed to decode provider data: %v", err)}
		}
	}

	metrics.ProviderCallsTotal.WithLabelValues(path, string(env), "success").Inc()
	return nil
}
