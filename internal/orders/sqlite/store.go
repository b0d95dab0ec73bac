// Package sqlite provides a SQLite-backed implementation of orders.Store.
//
// Line items live in their own table with ON DELETE CASCADE on the owning
// order; Save rewrites the owned collection inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/imrishuroy/go-orderlines/internal/orders"

	// Pure-Go driver, no CGO needed for local runs and tests.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    order_number        INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id          INTEGER NOT NULL,
    order_date          TEXT    NOT NULL,
    shipping_address_id INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_orders_account_date ON orders (account_id, order_date);

CREATE TABLE IF NOT EXISTS order_line_items (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    order_number INTEGER NOT NULL REFERENCES orders (order_number) ON DELETE CASCADE,
    position     INTEGER NOT NULL,
    product_id   INTEGER NOT NULL,
    quantity     INTEGER NOT NULL,
    price        REAL    NOT NULL DEFAULT 0,
    shipment_id  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_line_items_order ON order_line_items (order_number, position);
`

var _ orders.Store = (*Store)(nil)

// Store implements orders.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindAll(ctx context.Context) ([]orders.Order, error) {
	return s.queryOrders(ctx, `SELECT order_number, account_id, order_date, shipping_address_id
		FROM orders ORDER BY order_number`)
}

func (s *Store) FindByOrderNumber(ctx context.Context, orderNumber int64) (*orders.Order, error) {
	found, err := s.queryOrders(ctx, `SELECT order_number, account_id, order_date, shipping_address_id
		FROM orders WHERE order_number = ?`, orderNumber)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (s *Store) FindAllByAccountID(ctx context.Context, accountID int64, ascending bool) ([]orders.Order, error) {
	direction := "ASC"
	if !ascending {
		direction = "DESC"
	}
	return s.queryOrders(ctx, `SELECT order_number, account_id, order_date, shipping_address_id
		FROM orders WHERE account_id = ? ORDER BY order_date `+direction+`, order_number `+direction, accountID)
}

func (s *Store) FindLineItemsByOrderNumber(ctx context.Context, orderNumber int64) ([]orders.OrderLineItem, error) {
	return lineItems(ctx, s.db, orderNumber)
}

// Save inserts or updates the order and synchronises its line items:
// new items are inserted, existing ones updated, missing ones deleted.
func (s *Store) Save(ctx context.Context, o *orders.Order) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	date := orders.FormatStorageDate(o.OrderDate)
	if o.OrderNumber == 0 {
		res, err := tx.ExecContext(ctx, `INSERT INTO orders (account_id, order_date, shipping_address_id) VALUES (?, ?, ?)`,
			o.AccountID, date, o.ShippingAddressID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if o.OrderNumber, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("order id: %w", err)
		}
	} else {
		_, err := tx.ExecContext(ctx, `INSERT INTO orders (order_number, account_id, order_date, shipping_address_id)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (order_number) DO UPDATE SET
				account_id = excluded.account_id,
				order_date = excluded.order_date,
				shipping_address_id = excluded.shipping_address_id`,
			o.OrderNumber, o.AccountID, date, o.ShippingAddressID)
		if err != nil {
			return fmt.Errorf("upsert order %d: %w", o.OrderNumber, err)
		}
	}

	existing, err := lineItems(ctx, tx, o.OrderNumber)
	if err != nil {
		return err
	}
	keep := make(map[int64]bool, len(o.LineItems))
	for _, li := range o.LineItems {
		if li.ID != 0 {
			keep[li.ID] = true
		}
	}
	for _, li := range existing {
		if !keep[li.ID] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM order_line_items WHERE id = ?`, li.ID); err != nil {
				return fmt.Errorf("delete orphan line item %d: %w", li.ID, err)
			}
		}
	}

	for i := range o.LineItems {
		li := &o.LineItems[i]
		if li.ID == 0 {
			res, err := tx.ExecContext(ctx, `INSERT INTO order_line_items
				(order_number, position, product_id, quantity, price, shipment_id) VALUES (?, ?, ?, ?, ?, ?)`,
				o.OrderNumber, i, li.ProductID, li.Quantity, li.Price, li.ShipmentID)
			if err != nil {
				return fmt.Errorf("insert line item: %w", err)
			}
			if li.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("line item id: %w", err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO order_line_items
			(id, order_number, position, product_id, quantity, price, shipment_id) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				order_number = excluded.order_number,
				position = excluded.position,
				product_id = excluded.product_id,
				quantity = excluded.quantity,
				price = excluded.price,
				shipment_id = excluded.shipment_id`,
			li.ID, o.OrderNumber, i, li.ProductID, li.Quantity, li.Price, li.ShipmentID)
		if err != nil {
			return fmt.Errorf("upsert line item %d: %w", li.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes the order; the foreign key cascades to its line items.
func (s *Store) Delete(ctx context.Context, o orders.Order) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_number = ?`, o.OrderNumber); err != nil {
		return fmt.Errorf("delete order %d: %w", o.OrderNumber, err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]orders.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	out := []orders.Order{}
	for rows.Next() {
		var (
			o    orders.Order
			date string
		)
		if err := rows.Scan(&o.OrderNumber, &o.AccountID, &date, &o.ShippingAddressID); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if o.OrderDate, err = orders.ParseStorageDate(date); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("order %d: parse order_date: %w", o.OrderNumber, err)
		}
		out = append(out, o)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	// Line items are loaded after the order cursor is closed: with a single
	// connection a nested query would block on it.
	for i := range out {
		if out[i].LineItems, err = lineItems(ctx, s.db, out[i].OrderNumber); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func lineItems(ctx context.Context, q querier, orderNumber int64) ([]orders.OrderLineItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, product_id, quantity, price, shipment_id
		FROM order_line_items WHERE order_number = ? ORDER BY position, id`, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("query line items of order %d: %w", orderNumber, err)
	}
	defer rows.Close()

	out := []orders.OrderLineItem{}
	for rows.Next() {
		var li orders.OrderLineItem
		if err := rows.Scan(&li.ID, &li.ProductID, &li.Quantity, &li.Price, &li.ShipmentID); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		out = append(out, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}
	return out, nil
}
