package parser

import (
	"strings"

	"github.com/partsform/syncengine/internal/entity"
)

// Canonical column names a ColumnMapping may target. Anything else in
// columnMapping's values is ignored; anything in the file's header not
// covered by columnMapping falls through to Attributes.
const (
	ColPartNumber   = "partNumber"
	ColDescription  = "description"
	ColBrand        = "brand"
	ColSupplier     = "supplier"
	ColPrice        = "price"
	ColQuantity     = "quantity"
	ColDeliveryDays = "deliveryDays"
	ColWeight       = "weight"
	ColCondition    = "condition"
	ColUOM          = "uom"
	ColCategory     = "category"
	ColSubcategory  = "subcategory"
	ColOrigin       = "origin"
)

// columnMapper resolves each header cell's index to either a canonical
// field or a passthrough attribute name, computed once per file.
type columnMapper struct {
	header     []string
	canonical  map[string]int // canonical field -> header column index
	attributes map[string]int // attribute name -> header column index
}

func newColumnMapper(header []string, columnMapping map[string]string) *columnMapper {
	m := &columnMapper{
		header:     header,
		canonical:  make(map[string]int),
		attributes: make(map[string]int),
	}

	mapped := make(map[int]bool, len(header))
	for i, h := range header {
		if canonicalName, ok := lookupMapping(columnMapping, h); ok {
			m.canonical[canonicalName] = i
			mapped[i] = true
		}
	}
	for i, h := range header {
		if mapped[i] || h == "" {
			continue
		}
		m.attributes[h] = i
	}
	return m
}

// lookupMapping matches a header against columnMapping keys
// case-insensitively and trimmed, since source headers vary in casing
// across supplier feeds.
func lookupMapping(columnMapping map[string]string, header string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(header))
	for source, canonical := range columnMapping {
		if strings.ToLower(strings.TrimSpace(source)) == needle {
			return canonical, true
		}
	}
	return "", false
}

func (m *columnMapper) cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func (m *columnMapper) value(row []string, canonical string) (string, bool) {
	idx, ok := m.canonical[canonical]
	if !ok {
		return "", false
	}
	return m.cell(row, idx), true
}

// toPart validates and projects one CSV row into a Part. A non-empty
// return string is a validation failure message; the row is skipped.
func (m *columnMapper) toPart(row []string, integrationID entity.IntegrationID, integrationName string) (*entity.Part, string) {
	values := make(map[string]string, len(m.canonical))
	for canonical := range m.canonical {
		values[canonical], _ = m.value(row, canonical)
	}

	attrs := make(map[string]string, len(m.attributes))
	for name, idx := range m.attributes {
		if v := m.cell(row, idx); v != "" {
			attrs[name] = v
		}
	}

	return partFromCanonicalValues(values, attrs, integrationID, integrationName)
}

// FromRawRecord projects an HTTP-API feed's already field-mapped
// record (keys are canonical field names, per the Integration's
// fieldMapping) into a Part, applying the same required-field and
// type validation the CSV path applies. A non-empty return string is a
// validation failure message; the record is skipped.
func FromRawRecord(raw map[string]string, integrationID entity.IntegrationID, integrationName string) (*entity.Part, string) {
	values := make(map[string]string, len(raw))
	attrs := make(map[string]string)
	known := map[string]bool{
		ColPartNumber: true, ColDescription: true, ColBrand: true, ColSupplier: true,
		ColPrice: true, ColQuantity: true, ColDeliveryDays: true, ColWeight: true,
		ColCondition: true, ColUOM: true, ColCategory: true, ColSubcategory: true, ColOrigin: true,
	}
	for k, v := range raw {
		if known[k] {
			values[k] = v
		} else if v != "" {
			attrs[k] = v
		}
	}
	return partFromCanonicalValues(values, attrs, integrationID, integrationName)
}

// partFromCanonicalValues is the shared validation/projection step
// both the CSV column mapper and the API raw-record path funnel
// through, keyed by canonical field name.
func partFromCanonicalValues(values map[string]string, attrs map[string]string, integrationID entity.IntegrationID, integrationName string) (*entity.Part, string) {
	partNumber := strings.ToUpper(strings.TrimSpace(values[ColPartNumber]))
	if partNumber == "" {
		return nil, "partNumber is required and must be non-empty after trimming"
	}

	price, ok := parsePrice(values[ColPrice])
	if !ok {
		return nil, "price must be a non-negative decimal or empty"
	}

	quantity, ok := parseQuantity(values[ColQuantity])
	if !ok {
		return nil, "quantity must be a non-negative integer or empty"
	}

	now := entity.Now()
	return &entity.Part{
		PartNumber:      partNumber,
		Description:     strings.TrimSpace(values[ColDescription]),
		Brand:           strings.TrimSpace(values[ColBrand]),
		Supplier:        strings.TrimSpace(values[ColSupplier]),
		Price:           price,
		Quantity:        quantity,
		DeliveryDays:    parseOptionalInt(values[ColDeliveryDays]),
		Weight:          parseOptionalFloat(values[ColWeight]),
		Condition:       strings.TrimSpace(values[ColCondition]),
		UOM:             strings.TrimSpace(values[ColUOM]),
		Category:        strings.TrimSpace(values[ColCategory]),
		Subcategory:     strings.TrimSpace(values[ColSubcategory]),
		Origin:          strings.TrimSpace(values[ColOrigin]),
		Attributes:      attrs,
		IntegrationID:   integrationID,
		IntegrationName: integrationName,
		ImportedAt:      now,
		LastUpdated:     now,
	}, ""
}
