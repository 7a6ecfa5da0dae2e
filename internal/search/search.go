// Package search implements the Search Indexer component (C4): a
// best-effort mirror of the primary store in Elasticsearch, bulk-
// loaded either inline (per batch) or deferred (whole integration
// after the primary import completes).
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/partsform/syncengine/internal/entity"
)

const defaultIndex = "parts"

// partDoc is the Elasticsearch document shape for a Part, flattening
// Price into two fields so range queries on price stay simple.
type partDoc struct {
	PartNumber      string            `json:"partNumber"`
	Description     string            `json:"description"`
	Brand           string            `json:"brand"`
	Supplier        string            `json:"supplier"`
	PriceMinorUnits *int64            `json:"priceMinorUnits,omitempty"`
	PriceCurrency   string            `json:"priceCurrency,omitempty"`
	Quantity        int               `json:"quantity"`
	Category        string            `json:"category"`
	Subcategory     string            `json:"subcategory"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	IntegrationID   string            `json:"integrationId"`
	IntegrationName string            `json:"integrationName"`
	LastUpdated     time.Time         `json:"lastUpdated"`
}

func docID(key entity.PartKey) string {
	return key.IntegrationID.String() + "|" + key.PartNumber + "|" + key.Supplier
}

func toDoc(p *entity.Part) partDoc {
	doc := partDoc{
		PartNumber:      p.PartNumber,
		Description:     p.Description,
		Brand:           p.Brand,
		Supplier:        p.Supplier,
		Quantity:        p.Quantity,
		Category:        p.Category,
		Subcategory:     p.Subcategory,
		Attributes:      p.Attributes,
		IntegrationID:   p.IntegrationID.String(),
		IntegrationName: p.IntegrationName,
		LastUpdated:     p.LastUpdated,
	}
	if p.Price != nil {
		doc.PriceMinorUnits = &p.Price.MinorUnits
		doc.PriceCurrency = p.Price.Currency
	}
	return doc
}

// PrimaryStore is the slice of the Store Writer the Indexer calls back
// into for deferred reindexing.
type PrimaryStore interface {
	GetByIntegration(ctx context.Context, integrationID entity.IntegrationID) ([]*entity.Part, error)
}

// Indexer is the Search Indexer component.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	store  PrimaryStore

	mu           sync.RWMutex
	hasDocsCache *bool
}

// New creates an Indexer over an Elasticsearch client and the
// PartRepository it reindexes from in deferred mode.
func New(client *elasticsearch.Client, store PrimaryStore) *Indexer {
	return &Indexer{client: client, index: defaultIndex, store: store}
}

// PrepareForBulk disables refresh and replication on the index, the
// settings that slow down bulk ingest (spec.md §4.4).
func (idx *Indexer) PrepareForBulk(ctx context.Context) error {
	return idx.updateSettings(ctx, map[string]interface{}{
		"index": map[string]interface{}{
			"refresh_interval":   "-1",
			"number_of_replicas": 0,
		},
	})
}

// Finalize restores normal index settings after a bulk import and
// forces a refresh so documents become searchable immediately.
func (idx *Indexer) Finalize(ctx context.Context) error {
	if err := idx.updateSettings(ctx, map[string]interface{}{
		"index": map[string]interface{}{
			"refresh_interval":   "1s",
			"number_of_replicas": 1,
		},
	}); err != nil {
		return err
	}

	idx.invalidateHasDocsCache()

	resp, err := idx.client.Indices.Refresh(idx.client.Indices.Refresh.WithIndex(idx.index))
	if err != nil {
		return fmt.Errorf("refresh index: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

func (idx *Indexer) updateSettings(ctx context.Context, settings map[string]interface{}) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal index settings: %w", err)
	}

	req := esapi.IndicesPutSettingsRequest{
		Index: []string{idx.index},
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, idx.client)
	if err != nil {
		return fmt.Errorf("put index settings: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("put index settings: %s", resp.String())
	}
	return nil
}

// IndexBatch bulk-indexes records (inline mode).
func (idx *Indexer) IndexBatch(ctx context.Context, records []*entity.Part) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, p := range records {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": idx.index,
				"_id":    docID(p.Key()),
			},
		}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal bulk meta: %w", err)
		}
		docLine, err := json.Marshal(toDoc(p))
		if err != nil {
			return fmt.Errorf("marshal bulk doc: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	resp, err := idx.client.Bulk(bytes.NewReader(buf.Bytes()), idx.client.Bulk.WithIndex(idx.index))
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("bulk index: %s", resp.String())
	}

	idx.invalidateHasDocsCache()
	return nil
}

// ReindexIntegration scans the primary store for every Part owned by
// integrationID and bulk-indexes them, used by deferred mode after a
// sync completes and by the fast/async write-mode's compensating
// reindex (spec.md §4.3, §4.4).
func (idx *Indexer) ReindexIntegration(ctx context.Context, integrationID entity.IntegrationID, onProgress func(indexed int)) error {
	parts, err := idx.store.GetByIntegration(ctx, integrationID)
	if err != nil {
		return fmt.Errorf("reindex integration: load primary parts: %w", err)
	}

	const chunkSize = 500
	indexed := 0
	for start := 0; start < len(parts); start += chunkSize {
		end := start + chunkSize
		if end > len(parts) {
			end = len(parts)
		}
		if err := idx.IndexBatch(ctx, parts[start:end]); err != nil {
			return fmt.Errorf("reindex integration: %w", err)
		}
		indexed += end - start
		if onProgress != nil {
			onProgress(indexed)
		}
	}
	return nil
}

// DeleteByIntegration removes every document for integrationID from
// the search store (delete-by-query), used on clean sync and
// Integration deletion.
func (idx *Indexer) DeleteByIntegration(ctx context.Context, integrationID entity.IntegrationID) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"integrationId": integrationID.String()},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("marshal delete query: %w", err)
	}

	resp, err := idx.client.DeleteByQuery([]string{idx.index}, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("delete by integration: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("delete by integration: %s", resp.String())
	}

	idx.invalidateHasDocsCache()
	return nil
}

// HasDocuments reports whether the search store holds any documents at
// all, cached so the read path (spec.md §6) doesn't issue a count
// query on every request.
func (idx *Indexer) HasDocuments(ctx context.Context) (bool, error) {
	idx.mu.RLock()
	if idx.hasDocsCache != nil {
		cached := *idx.hasDocsCache
		idx.mu.RUnlock()
		return cached, nil
	}
	idx.mu.RUnlock()

	resp, err := idx.client.Count(idx.client.Count.WithIndex(idx.index))
	if err != nil {
		return false, fmt.Errorf("count documents: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		// A missing index behaves the same as an empty one.
		return false, nil
	}

	var parsed struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decode count response: %w", err)
	}

	has := parsed.Count > 0
	idx.mu.Lock()
	idx.hasDocsCache = &has
	idx.mu.Unlock()
	return has, nil
}

func (idx *Indexer) invalidateHasDocsCache() {
	idx.mu.Lock()
	idx.hasDocsCache = nil
	idx.mu.Unlock()
}

// SearchParams is the search-read contract's filter set (spec.md §6).
type SearchParams struct {
	Query    string
	Brand    string
	Supplier string
	MinPrice *int64
	MaxPrice *int64
	InStock  *bool
	Sort     string
	Page     int
	Limit    int
}

// SearchResult is the search-read contract's response shape.
type SearchResult struct {
	Results     []*entity.Part
	Total       int64
	TotalPages  int64
	HasMore     bool
	SearchTime  time.Duration
	Source      string
}

// Search executes params against the search store. Callers are
// expected to have already checked HasDocuments and fallen back to the
// primary store when false.
func (idx *Indexer) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	start := time.Now()

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	must := []map[string]interface{}{}
	if params.Query != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  params.Query,
				"fields": []string{"partNumber^3", "description", "brand", "category"},
			},
		})
	}
	if params.Brand != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"brand": params.Brand}})
	}
	if params.Supplier != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"supplier": params.Supplier}})
	}
	if params.MinPrice != nil || params.MaxPrice != nil {
		rangeClause := map[string]interface{}{}
		if params.MinPrice != nil {
			rangeClause["gte"] = *params.MinPrice
		}
		if params.MaxPrice != nil {
			rangeClause["lte"] = *params.MaxPrice
		}
		must = append(must, map[string]interface{}{"range": map[string]interface{}{"priceMinorUnits": rangeClause}})
	}
	if params.InStock != nil {
		if *params.InStock {
			must = append(must, map[string]interface{}{"range": map[string]interface{}{"quantity": map[string]interface{}{"gt": 0}}})
		} else {
			must = append(must, map[string]interface{}{"term": map[string]interface{}{"quantity": 0}})
		}
	}

	query := map[string]interface{}{
		"from":  (page - 1) * limit,
		"size":  limit,
		"query": map[string]interface{}{"bool": map[string]interface{}{"must": must}},
	}
	if sortField, order, ok := parseSort(params.Sort); ok {
		query["sort"] = []map[string]interface{}{{sortField: map[string]interface{}{"order": order}}}
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	resp, err := idx.client.Search(
		idx.client.Search.WithContext(ctx),
		idx.client.Search.WithIndex(idx.index),
		idx.client.Search.WithBody(bytes.NewReader(body)),
		idx.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, fmt.Errorf("search: %s", resp.String())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source partDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]*entity.Part, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, fromDoc(hit.Source))
	}

	total := parsed.Hits.Total.Value
	totalPages := (total + int64(limit) - 1) / int64(limit)
	if totalPages < 1 {
		totalPages = 1
	}

	return &SearchResult{
		Results:    results,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    int64(page) < totalPages,
		SearchTime: time.Since(start),
		Source:     "search-store",
	}, nil
}

func fromDoc(doc partDoc) *entity.Part {
	p := &entity.Part{
		PartNumber:      doc.PartNumber,
		Description:     doc.Description,
		Brand:           doc.Brand,
		Supplier:        doc.Supplier,
		Quantity:        doc.Quantity,
		Category:        doc.Category,
		Subcategory:     doc.Subcategory,
		Attributes:      doc.Attributes,
		IntegrationName: doc.IntegrationName,
		LastUpdated:     doc.LastUpdated,
	}
	if doc.PriceMinorUnits != nil {
		p.Price = &entity.Price{MinorUnits: *doc.PriceMinorUnits, Currency: doc.PriceCurrency}
	}
	return p
}

// parseSort turns a "field:asc"/"field:desc" sort spec into an
// Elasticsearch sort field/order pair.
func parseSort(sort string) (field, order string, ok bool) {
	if sort == "" {
		return "", "", false
	}
	parts := strings.SplitN(sort, ":", 2)
	field = parts[0]
	order = "asc"
	if len(parts) == 2 && (parts[1] == "asc" || parts[1] == "desc") {
		order = parts[1]
	}
	switch field {
	case "price":
		field = "priceMinorUnits"
	case "quantity", "brand", "supplier":
	default:
		return "", "", false
	}
	return field, order, true
}
