package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"componentfinder/internal/domain"
	"componentfinder/internal/ports"
)

var _ ports.ComponentStore = (*DB)(nil)

const componentColumns = `id, dedup_key, part_number, name, description, manufacturer, category,
	image_url, datasheet_url, specifications, last_updated`

const listingColumns = `component_id, vendor_id, part_number, price::text, price_known, currency,
	in_stock, stock_quantity, delivery_days, break_points, url, last_updated`

const foreignKeyViolation = "23503"

func (db *DB) GetComponent(ctx context.Context, id string) (domain.MergedComponent, bool, error) {
	c, err := scanComponent(db.Pool.QueryRow(ctx, `SELECT `+componentColumns+` FROM components WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MergedComponent{}, false, nil
	}
	if err != nil {
		return domain.MergedComponent{}, false, err
	}
	out := []domain.MergedComponent{c}
	if err := db.attachListings(ctx, out); err != nil {
		return domain.MergedComponent{}, false, err
	}
	return out[0], true, nil
}

func (db *DB) FindComponentsByQuery(ctx context.Context, query, category string) ([]domain.MergedComponent, error) {
	sql := `SELECT ` + componentColumns + ` FROM components WHERE ($1 = '' OR lower(category) = lower($1))`
	args := []any{category}
	for _, term := range strings.Fields(strings.ToLower(query)) {
		args = append(args, term)
		sql += fmt.Sprintf(` AND strpos(lower(name || ' ' || description || ' ' || part_number || ' ' || manufacturer), $%d) > 0`, len(args))
	}
	sql += ` ORDER BY name`

	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.MergedComponent
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.attachListings(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (db *DB) UpsertComponent(ctx context.Context, c domain.MergedComponent) error {
	specs := c.Specifications
	if specs == nil {
		specs = map[string]any{}
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO components (`+componentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			dedup_key = EXCLUDED.dedup_key,
			part_number = EXCLUDED.part_number,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			manufacturer = EXCLUDED.manufacturer,
			category = EXCLUDED.category,
			image_url = EXCLUDED.image_url,
			datasheet_url = EXCLUDED.datasheet_url,
			specifications = EXCLUDED.specifications,
			last_updated = EXCLUDED.last_updated
		WHERE components.last_updated <= EXCLUDED.last_updated
	`, c.ID, c.Key, c.PartNumber, c.Name, c.Description, c.Manufacturer, c.Category,
		c.ImageURL, c.DatasheetURL, specs, c.LastUpdated)
	return err
}

func (db *DB) UpsertVendorListing(ctx context.Context, componentID string, r domain.VendorResult) error {
	breaks := r.BreakPoints
	if breaks == nil {
		breaks = []domain.BreakPoint{}
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO vendor_listings (component_id, vendor_id, part_number, price, price_known, currency,
			in_stock, stock_quantity, delivery_days, break_points, url, last_updated)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (component_id, vendor_id) DO UPDATE SET
			part_number = EXCLUDED.part_number,
			price = EXCLUDED.price,
			price_known = EXCLUDED.price_known,
			currency = EXCLUDED.currency,
			in_stock = EXCLUDED.in_stock,
			stock_quantity = EXCLUDED.stock_quantity,
			delivery_days = EXCLUDED.delivery_days,
			break_points = EXCLUDED.break_points,
			url = EXCLUDED.url,
			last_updated = EXCLUDED.last_updated
		WHERE vendor_listings.last_updated <= EXCLUDED.last_updated
	`, componentID, r.VendorID, r.PartNumber, r.Price.String(), r.PriceKnown, r.Currency,
		r.InStock, r.StockQuantity, r.DeliveryDays, breaks, r.URL, r.LastUpdated)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("upsert listing %s/%s: component %w", componentID, r.VendorID, domain.ErrNotFound)
	}
	return err
}

// ExpireListings moves every listing of the component to the epoch, which is
// older than any TTL and loses to any later write.
func (db *DB) ExpireListings(ctx context.Context, componentID string) error {
	var exists bool
	if err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM components WHERE id = $1)`, componentID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("expire %s: %w", componentID, domain.ErrNotFound)
	}
	_, err := db.Pool.Exec(ctx, `UPDATE vendor_listings SET last_updated = 'epoch' WHERE component_id = $1`, componentID)
	return err
}

func (db *DB) Categories(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT lower(category) FROM components WHERE category <> '' ORDER BY 1
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanComponent(row pgx.Row) (domain.MergedComponent, error) {
	var c domain.MergedComponent
	err := row.Scan(&c.ID, &c.Key, &c.PartNumber, &c.Name, &c.Description, &c.Manufacturer, &c.Category,
		&c.ImageURL, &c.DatasheetURL, &c.Specifications, &c.LastUpdated)
	if len(c.Specifications) == 0 {
		c.Specifications = nil
	}
	return c, err
}

// attachListings loads the listings of every component in one query.
func (db *DB) attachListings(ctx context.Context, cs []domain.MergedComponent) error {
	if len(cs) == 0 {
		return nil
	}
	ids := make([]string, len(cs))
	index := make(map[string]int, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
		index[c.ID] = i
		cs[i].Vendors = []domain.VendorResult{}
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT `+listingColumns+` FROM vendor_listings
		WHERE component_id = ANY($1)
		ORDER BY component_id, vendor_id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			componentID, price string
			r                  domain.VendorResult
			lastUpdated        time.Time
		)
		if err := rows.Scan(&componentID, &r.VendorID, &r.PartNumber, &price, &r.PriceKnown, &r.Currency,
			&r.InStock, &r.StockQuantity, &r.DeliveryDays, &r.BreakPoints, &r.URL, &lastUpdated); err != nil {
			return err
		}
		if r.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("listing %s/%s price %q: %w", componentID, r.VendorID, price, err)
		}
		if len(r.BreakPoints) == 0 {
			r.BreakPoints = nil
		}
		r.LastUpdated = lastUpdated.UTC()
		i := index[componentID]
		cs[i].Vendors = append(cs[i].Vendors, r)
	}
	return rows.Err()
}
