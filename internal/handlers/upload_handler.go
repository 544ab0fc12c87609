package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/clients"
	"customs-backend/internal/dto"
	"customs-backend/internal/middleware"
	"customs-backend/internal/repository"
	"customs-backend/internal/services"
)

// maxManifestRows caps a single manifest upload
const maxManifestRows = 1000

// manifestColumns is the required CSV header, in order
var manifestColumns = []string{
	"external_id",
	"description",
	"origin_country",
	"destination_country",
	"quantity",
	"weight_kg",
	"declared_value",
	"currency",
	"recipient_name",
	"recipient_address",
	"barcode",
}

// UploadHandler accepts CSV manifests and screens every row
type UploadHandler struct {
	screening *services.ScreeningService
	uploads   repository.UploadRepository
	logger    *logrus.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(screening *services.ScreeningService, uploads repository.UploadRepository, logger *logrus.Logger) *UploadHandler {
	return &UploadHandler{
		screening: screening,
		uploads:   uploads,
		logger:    logger,
	}
}

// Upload handles POST /api/uploads: a multipart CSV manifest plus an
// environment form field. Parse errors reject the whole file before any row
// reaches the provider.
func (h *UploadHandler) Upload(c *gin.Context) {
	env := c.PostForm("environment")
	if env != string(clients.EnvironmentSandbox) && env != string(clients.EnvironmentProduction) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "environment must be sandbox or production",
			"code":    "INVALID_REQUEST",
		})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "manifest file is required",
			"code":    "INVALID_REQUEST",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "failed to open uploaded file",
			"code":    "INVALID_REQUEST",
		})
		return
	}
	defer file.Close()

	rows, err := parseManifest(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "INVALID_MANIFEST",
		})
		return
	}

	upload, err := h.screening.UploadAndScreen(
		c.Request.Context(),
		middleware.UserID(c),
		clients.Environment(env),
		fileHeader.Filename,
		rows,
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.UploadResponse{
		UploadID:      upload.ID,
		RowCount:      upload.RowCount,
		ScreenedCount: upload.ScreenedCount,
		FailedCount:   upload.FailedCount,
		Status:        string(upload.Status),
	})
}

// List handles GET /api/uploads
func (h *UploadHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	uploads, total, err := h.uploads.List(c.Request.Context(), c.Query("user_id"), limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    uploads,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// Get handles GET /api/uploads/:id
func (h *UploadHandler) Get(c *gin.Context) {
	upload, err := h.uploads.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": upload})
}

// parseManifest validates the header and converts every data row into a
// screening request. Row numbers in errors are 1-based data rows, matching
// what the failure records store.
func parseManifest(r io.Reader) ([]clients.ScreenPackageRequest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}
	if len(header) != len(manifestColumns) {
		return nil, fmt.Errorf("manifest header has %d columns, expected %d", len(header), len(manifestColumns))
	}
	for i, col := range manifestColumns {
		if strings.TrimSpace(strings.ToLower(header[i])) != col {
			return nil, fmt.Errorf("manifest column %d is %q, expected %q", i+1, header[i], col)
		}
	}

	var rows []clients.ScreenPackageRequest
	for rowNumber := 1; ; rowNumber++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNumber, err)
		}
		if rowNumber > maxManifestRows {
			return nil, fmt.Errorf("manifest exceeds %d rows", maxManifestRows)
		}

		row, err := parseManifestRow(fields)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNumber, err)
		}
		rows = append(rows, *row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("manifest contains no data rows")
	}
	return rows, nil
}

func parseManifestRow(fields []string) (*clients.ScreenPackageRequest, error) {
	quantity, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil || quantity < 1 {
		return nil, fmt.Errorf("invalid quantity %q", fields[4])
	}
	weight, err := decimal.NewFromString(strings.TrimSpace(fields[5]))
	if err != nil || !weight.IsPositive() {
		return nil, fmt.Errorf("invalid weight_kg %q", fields[5])
	}
	value, err := decimal.NewFromString(strings.TrimSpace(fields[6]))
	if err != nil || !value.IsPositive() {
		return nil, fmt.Errorf("invalid declared_value %q", fields[6])
	}

	req := &clients.ScreenPackageRequest{
		ExternalID:         strings.TrimSpace(fields[0]),
		Description:        strings.TrimSpace(fields[1]),
		OriginCountry:      strings.ToUpper(strings.TrimSpace(fields[2])),
		DestinationCountry: strings.ToUpper(strings.TrimSpace(fields[3])),
		Quantity:           quantity,
		WeightKg:           weight,
		DeclaredValue:      value,
		Currency:           strings.ToUpper(strings.TrimSpace(fields[7])),
		RecipientName:      strings.TrimSpace(fields[8]),
		RecipientAddress:   strings.TrimSpace(fields[9]),
		Barcode:            strings.TrimSpace(fields[10]),
	}

	switch {
	case req.ExternalID == "":
		return nil, fmt.Errorf("external_id is required")
	case req.Description == "":
		return nil, fmt.Errorf("description is required")
	case len(req.OriginCountry) != 2:
		return nil, fmt.Errorf("invalid origin_country %q", req.OriginCountry)
	case len(req.DestinationCountry) != 2:
		return nil, fmt.Errorf("invalid destination_country %q", req.DestinationCountry)
	case len(req.Currency) != 3:
		return nil, fmt.Errorf("invalid currency %q", req.Currency)
	case req.RecipientName == "":
		return nil, fmt.Errorf("recipient_name is required")
	case req.RecipientAddress == "":
		return nil, fmt.Errorf("recipient_address is required")
	}
	return req, nil
}
