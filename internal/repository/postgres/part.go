package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/repository"
)

// PartRepository implements repository.PartRepository for PostgreSQL.
// Identity is the unique index on (integration_id, part_number, supplier)
// (spec.md §3); UpsertBatch relies on ON CONFLICT to implement the
// replace-or-insert semantics of the Store Writer (spec.md §4.3).
type PartRepository struct {
	db *sql.DB
}

// NewPartRepository creates a new PartRepository.
func NewPartRepository(db *sql.DB) *PartRepository {
	return &PartRepository{db: db}
}

const upsertPartQuery = `
	INSERT INTO parts (
		integration_id, part_number, supplier, description, brand,
		price_minor_units, price_currency, quantity, delivery_days,
		weight, condition, uom, category, subcategory, origin,
		attributes, integration_name, imported_at, last_updated
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	ON CONFLICT (integration_id, part_number, supplier) DO UPDATE SET
		description = EXCLUDED.description,
		brand = EXCLUDED.brand,
		price_minor_units = EXCLUDED.price_minor_units,
		price_currency = EXCLUDED.price_currency,
		quantity = EXCLUDED.quantity,
		delivery_days = EXCLUDED.delivery_days,
		weight = EXCLUDED.weight,
		condition = EXCLUDED.condition,
		uom = EXCLUDED.uom,
		category = EXCLUDED.category,
		subcategory = EXCLUDED.subcategory,
		origin = EXCLUDED.origin,
		attributes = EXCLUDED.attributes,
		integration_name = EXCLUDED.integration_name,
		last_updated = EXCLUDED.last_updated
	RETURNING (xmax = 0) AS inserted
`

// UpsertBatch durably writes a batch of Parts. When ack is false the
// rows are still written one by one inside a single transaction, but
// the commit runs in the background and UpsertBatch returns without
// waiting for it; a commit error is reported only if it is already
// available — the Orchestrator compensates for any loss with a
// deferred reindex (spec.md §4.3, §9 "Unacknowledged writes").
func (r *PartRepository) UpsertBatch(ctx context.Context, parts []*entity.Part, ack bool) (inserted, updated, failed int, err error) {
	if len(parts) == 0 {
		return 0, 0, 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("begin upsert batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertPartQuery)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range parts {
		var priceMinor sql.NullInt64
		var priceCurrency sql.NullString
		if p.Price != nil {
			priceMinor = sql.NullInt64{Int64: p.Price.MinorUnits, Valid: true}
			priceCurrency = sql.NullString{String: p.Price.Currency, Valid: true}
		}

		attrs, marshalErr := json.Marshal(p.Attributes)
		if marshalErr != nil {
			failed++
			continue
		}

		var wasInsert bool
		scanErr := stmt.QueryRowContext(ctx,
			p.IntegrationID, p.PartNumber, p.Supplier, p.Description, p.Brand,
			priceMinor, priceCurrency, p.Quantity, p.DeliveryDays,
			p.Weight, p.Condition, p.UOM, p.Category, p.Subcategory, p.Origin,
			attrs, p.IntegrationName, p.ImportedAt, p.LastUpdated,
		).Scan(&wasInsert)
		if scanErr != nil {
			failed++
			continue
		}
		if wasInsert {
			inserted++
		} else {
			updated++
		}
	}

	if !ack {
		// Fire-and-forget: the caller doesn't wait for the commit round
		// trip to return before moving the worker pool on to the next
		// batch; the Orchestrator's deferred reindex covers any loss
		// from a commit that fails after this call has returned.
		commitErrCh := make(chan error, 1)
		go func() {
			commitErrCh <- tx.Commit()
		}()
		committed = true
		select {
		case err := <-commitErrCh:
			if err != nil {
				return inserted, updated, failed, fmt.Errorf("commit upsert batch: %w", err)
			}
		default:
		}
		return inserted, updated, failed, nil
	}

	committed = true
	if err := tx.Commit(); err != nil {
		return inserted, updated, failed, fmt.Errorf("commit upsert batch: %w", err)
	}
	return inserted, updated, failed, nil
}

// DeleteByIntegration deletes every Part owned by integrationID. Used
// before a clean full sync and on Integration deletion (spec.md §4.3).
func (r *PartRepository) DeleteByIntegration(ctx context.Context, integrationID entity.IntegrationID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM parts WHERE integration_id = $1`, integrationID)
	if err != nil {
		return 0, fmt.Errorf("delete parts by integration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete parts by integration: %w", err)
	}
	return n, nil
}

const selectPartColumns = `
	SELECT integration_id, part_number, supplier, description, brand,
	       price_minor_units, price_currency, quantity, delivery_days,
	       weight, condition, uom, category, subcategory, origin,
	       attributes, integration_name, imported_at, last_updated
	FROM parts
`

func scanPart(scan func(dest ...interface{}) error) (*entity.Part, error) {
	p := &entity.Part{}
	var priceMinor sql.NullInt64
	var priceCurrency sql.NullString
	var deliveryDays sql.NullInt64
	var weight sql.NullFloat64
	var attrs []byte

	if err := scan(
		&p.IntegrationID, &p.PartNumber, &p.Supplier, &p.Description, &p.Brand,
		&priceMinor, &priceCurrency, &p.Quantity, &deliveryDays,
		&weight, &p.Condition, &p.UOM, &p.Category, &p.Subcategory, &p.Origin,
		&attrs, &p.IntegrationName, &p.ImportedAt, &p.LastUpdated,
	); err != nil {
		return nil, err
	}

	if priceMinor.Valid {
		p.Price = &entity.Price{MinorUnits: priceMinor.Int64, Currency: priceCurrency.String}
	}
	if deliveryDays.Valid {
		d := int(deliveryDays.Int64)
		p.DeliveryDays = &d
	}
	if weight.Valid {
		p.Weight = &weight.Float64
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal part attributes: %w", err)
		}
	}

	return p, nil
}

// GetByIntegration returns every Part for integrationID, used by
// reindexIntegration (spec.md §4.4 deferred mode).
func (r *PartRepository) GetByIntegration(ctx context.Context, integrationID entity.IntegrationID) ([]*entity.Part, error) {
	rows, err := r.db.QueryContext(ctx, selectPartColumns+" WHERE integration_id = $1", integrationID)
	if err != nil {
		return nil, fmt.Errorf("query parts by integration: %w", err)
	}
	defer rows.Close()

	var out []*entity.Part
	for rows.Next() {
		p, err := scanPart(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PartRepository) CountByIntegration(ctx context.Context, integrationID entity.IntegrationID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parts WHERE integration_id = $1`, integrationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count parts by integration: %w", err)
	}
	return count, nil
}

var partSortColumns = map[string]string{
	"brand":    "brand",
	"supplier": "supplier",
	"quantity": "quantity",
	"price":    "price_minor_units",
}

// Search serves the search-read contract's degraded-mode fallback
// (spec.md §6), queried directly against Postgres when the search
// store has no documents yet.
func (r *PartRepository) Search(ctx context.Context, filter repository.PartFilter) ([]*entity.Part, int64, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		where = append(where, fmt.Sprintf("(part_number ILIKE %s OR description ILIKE %s OR brand ILIKE %s OR category ILIKE %s)",
			arg(like), arg(like), arg(like), arg(like)))
	}
	if filter.Brand != "" {
		where = append(where, fmt.Sprintf("brand = %s", arg(filter.Brand)))
	}
	if filter.Supplier != "" {
		where = append(where, fmt.Sprintf("supplier = %s", arg(filter.Supplier)))
	}
	if filter.MinPrice != nil {
		where = append(where, fmt.Sprintf("price_minor_units >= %s", arg(*filter.MinPrice)))
	}
	if filter.MaxPrice != nil {
		where = append(where, fmt.Sprintf("price_minor_units <= %s", arg(*filter.MaxPrice)))
	}
	if filter.InStock != nil {
		if *filter.InStock {
			where = append(where, "quantity > 0")
		} else {
			where = append(where, "quantity = 0")
		}
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM parts" + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	orderBy := "part_number ASC"
	if field, order, ok := strings.Cut(filter.Sort, ":"); ok || filter.Sort != "" {
		if column, known := partSortColumns[field]; known {
			if order != "desc" {
				order = "asc"
			}
			orderBy = column + " " + strings.ToUpper(order)
		}
	}

	query := selectPartColumns + whereClause + " ORDER BY " + orderBy +
		fmt.Sprintf(" LIMIT %s OFFSET %s", arg(limit), arg((page-1)*limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search parts: %w", err)
	}
	defer rows.Close()

	var out []*entity.Part
	for rows.Next() {
		p, err := scanPart(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan searched part: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *PartRepository) Get(ctx context.Context, key entity.PartKey) (*entity.Part, error) {
	row := r.db.QueryRowContext(ctx,
		selectPartColumns+" WHERE integration_id = $1 AND part_number = $2 AND supplier = $3",
		key.IntegrationID, key.PartNumber, key.Supplier,
	)
	p, err := scanPart(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get part: %w", err)
	}
	return p, nil
}
