package handlers

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestHeader = "external_id,description,origin_country,destination_country,quantity,weight_kg,declared_value,currency,recipient_name,recipient_address,barcode"

func TestParseManifestValidFile(t *testing.T) {
	manifest := strings.Join([]string{
		manifestHeader,
		`ORD-1,cotton t-shirts,cn,us,3,1.25,45.50,usd,Jane Smith,"1 Main St, Springfield",BC-1`,
		`ORD-2,ceramic mugs,DE,US,12,4.0,89.99,EUR,Bob Lee,2 Oak Ave,`,
	}, "\n")

	rows, err := parseManifest(strings.NewReader(manifest))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "ORD-1", rows[0].ExternalID)
	assert.Equal(t, "CN", rows[0].OriginCountry)
	assert.Equal(t, "US", rows[0].DestinationCountry)
	assert.Equal(t, "USD", rows[0].Currency)
	assert.Equal(t, 3, rows[0].Quantity)
	assert.True(t, rows[0].WeightKg.Equal(decimal.NewFromFloat(1.25)))
	assert.True(t, rows[0].DeclaredValue.Equal(decimal.NewFromFloat(45.50)))
	assert.Equal(t, "1 Main St, Springfield", rows[0].RecipientAddress)
	assert.Equal(t, "BC-1", rows[0].Barcode)

	assert.Equal(t, "ORD-2", rows[1].ExternalID)
	assert.Empty(t, rows[1].Barcode)
}

func TestParseManifestRejectsWrongHeader(t *testing.T) {
	manifest := "external_id,description\nORD-1,socks"

	_, err := parseManifest(strings.NewReader(manifest))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")
}

func TestParseManifestRejectsReorderedHeader(t *testing.T) {
	reordered := strings.Replace(manifestHeader, "external_id,description", "description,external_id", 1)
	manifest := reordered + "\n" + `socks,ORD-1,CN,US,1,0.2,5.00,USD,Jane,1 Main St,`

	_, err := parseManifest(strings.NewReader(manifest))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected \"external_id\"")
}

func TestParseManifestRejectsEmptyFile(t *testing.T) {
	_, err := parseManifest(strings.NewReader(manifestHeader + "\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestParseManifestReportsRowNumbers(t *testing.T) {
	manifest := strings.Join([]string{
		manifestHeader,
		`ORD-1,socks,CN,US,1,0.2,5.00,USD,Jane,1 Main St,`,
		`ORD-2,socks,CN,US,zero,0.2,5.00,USD,Jane,1 Main St,`,
	}, "\n")

	_, err := parseManifest(strings.NewReader(manifest))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "invalid quantity")
}

func TestParseManifestRowValidation(t *testing.T) {
	valid := []string{"ORD-1", "socks", "CN", "US", "1", "0.2", "5.00", "USD", "Jane", "1 Main St", ""}

	cases := []struct {
		name    string
		mutate  func([]string)
		message string
	}{
		{"zero quantity", func(f []string) { f[4] = "0" }, "invalid quantity"},
		{"negative weight", func(f []string) { f[5] = "-1" }, "invalid weight_kg"},
		{"zero declared value", func(f []string) { f[6] = "0" }, "invalid declared_value"},
		{"bad country code", func(f []string) { f[2] = "CHN" }, "invalid origin_country"},
		{"bad currency", func(f []string) { f[7] = "US" }, "invalid currency"},
		{"missing external id", func(f []string) { f[0] = "" }, "external_id is required"},
		{"missing recipient", func(f []string) { f[8] = "" }, "recipient_name is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := append([]string(nil), valid...)
			tc.mutate(fields)
			_, err := parseManifestRow(fields)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}

	row, err := parseManifestRow(valid)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", row.ExternalID)
}
