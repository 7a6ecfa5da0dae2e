package search

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsform/syncengine/internal/entity"
)

func TestDocIDIsStableAndUnique(t *testing.T) {
	integrationID := uuid.New()
	key := entity.PartKey{IntegrationID: integrationID, PartNumber: "ABC-1", Supplier: "SupplierA"}

	id1 := docID(key)
	id2 := docID(key)
	assert.Equal(t, id1, id2)

	other := entity.PartKey{IntegrationID: integrationID, PartNumber: "ABC-2", Supplier: "SupplierA"}
	assert.NotEqual(t, id1, docID(other))
}

func TestToDocAndFromDocRoundTrip(t *testing.T) {
	integrationID := uuid.New()
	part := &entity.Part{
		IntegrationID:   integrationID,
		PartNumber:      "ABC-1",
		Description:     "brake pad",
		Brand:           "Acme",
		Supplier:        "SupplierA",
		Price:           &entity.Price{MinorUnits: 1999, Currency: "USD"},
		Quantity:        3,
		Category:        "brakes",
		IntegrationName: "Acme Feed",
	}

	doc := toDoc(part)
	assert.Equal(t, part.PartNumber, doc.PartNumber)
	assert.Equal(t, integrationID.String(), doc.IntegrationID)
	require.NotNil(t, doc.PriceMinorUnits)
	assert.Equal(t, int64(1999), *doc.PriceMinorUnits)

	back := fromDoc(doc)
	assert.Equal(t, part.PartNumber, back.PartNumber)
	assert.Equal(t, part.Brand, back.Brand)
	require.NotNil(t, back.Price)
	assert.Equal(t, part.Price.MinorUnits, back.Price.MinorUnits)
}

func TestToDocOmitsPriceWhenNil(t *testing.T) {
	part := &entity.Part{PartNumber: "ABC-1"}
	doc := toDoc(part)
	assert.Nil(t, doc.PriceMinorUnits)

	back := fromDoc(doc)
	assert.Nil(t, back.Price)
}

func TestParseSortValidFields(t *testing.T) {
	field, order, ok := parseSort("price:desc")
	assert.True(t, ok)
	assert.Equal(t, "priceMinorUnits", field)
	assert.Equal(t, "desc", order)

	field, order, ok = parseSort("brand")
	assert.True(t, ok)
	assert.Equal(t, "brand", field)
	assert.Equal(t, "asc", order)
}

func TestParseSortInvalidFieldRejected(t *testing.T) {
	_, _, ok := parseSort("nonsense:asc")
	assert.False(t, ok)
}

func TestParseSortEmptyIsNotOK(t *testing.T) {
	_, _, ok := parseSort("")
	assert.False(t, ok)
}

