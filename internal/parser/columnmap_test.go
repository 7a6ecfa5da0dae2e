package parser

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRawRecordValidRecord(t *testing.T) {
	integrationID := uuid.New()
	raw := map[string]string{
		ColPartNumber: "abc-123",
		ColDescription: "brake pad",
		ColPrice:       "19.99",
		ColQuantity:    "5",
		"customField":  "custom-value",
	}

	part, validationErr := FromRawRecord(raw, integrationID, "Acme Feed")
	require.Empty(t, validationErr)
	require.NotNil(t, part)
	assert.Equal(t, "ABC-123", part.PartNumber)
	assert.Equal(t, "brake pad", part.Description)
	require.NotNil(t, part.Price)
	assert.Equal(t, int64(1999), part.Price.MinorUnits)
	assert.Equal(t, 5, part.Quantity)
	assert.Equal(t, "custom-value", part.Attributes["customField"])
	assert.Equal(t, integrationID, part.IntegrationID)
	assert.Equal(t, "Acme Feed", part.IntegrationName)
}

func TestFromRawRecordMissingPartNumberFails(t *testing.T) {
	_, validationErr := FromRawRecord(map[string]string{ColDescription: "x"}, uuid.New(), "Acme")
	assert.NotEmpty(t, validationErr)
}

func TestFromRawRecordInvalidPriceFails(t *testing.T) {
	_, validationErr := FromRawRecord(map[string]string{
		ColPartNumber: "ABC",
		ColPrice:      "not-a-number",
	}, uuid.New(), "Acme")
	assert.NotEmpty(t, validationErr)
}

func TestFromRawRecordNegativePriceFails(t *testing.T) {
	_, validationErr := FromRawRecord(map[string]string{
		ColPartNumber: "ABC",
		ColPrice:      "-5",
	}, uuid.New(), "Acme")
	assert.NotEmpty(t, validationErr)
}

func TestFromRawRecordInvalidQuantityFails(t *testing.T) {
	_, validationErr := FromRawRecord(map[string]string{
		ColPartNumber: "ABC",
		ColQuantity:   "not-a-number",
	}, uuid.New(), "Acme")
	assert.NotEmpty(t, validationErr)
}

func TestFromRawRecordEmptyOptionalFieldsDefault(t *testing.T) {
	part, validationErr := FromRawRecord(map[string]string{ColPartNumber: "ABC"}, uuid.New(), "Acme")
	require.Empty(t, validationErr)
	assert.Nil(t, part.Price)
	assert.Equal(t, 0, part.Quantity)
	assert.Nil(t, part.DeliveryDays)
}

func TestColumnMapperCaseInsensitiveHeaderMatch(t *testing.T) {
	header := []string{"Part Number", "Desc", "Extra Col"}
	mapping := map[string]string{
		"part number": ColPartNumber,
		"desc":        ColDescription,
	}
	m := newColumnMapper(header, mapping)

	part, validationErr := m.toPart([]string{"xyz-1", "a widget", "leftover"}, uuid.New(), "Acme")
	require.Empty(t, validationErr)
	assert.Equal(t, "XYZ-1", part.PartNumber)
	assert.Equal(t, "a widget", part.Description)
	assert.Equal(t, "leftover", part.Attributes["Extra Col"])
}
