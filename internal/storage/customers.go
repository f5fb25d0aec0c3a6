package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const customerColumns = "id, name, description, products_used, priority, notes, created_at, updated_at"

// AddCustomer inserts a new customer and returns its assigned ID.
// Returns ErrDuplicateName when the name is already taken; the table is left
// unchanged in that case.
func (s *Store) AddCustomer(c Customer) (int64, error) {
	priority := c.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		INSERT INTO customers (name, description, products_used, priority, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.ProductsUsed, priority, c.Notes, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateName
		}
		return 0, fmt.Errorf("inserting customer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading customer id: %w", err)
	}
	return id, nil
}

// GetCustomer returns a customer by ID.
func (s *Store) GetCustomer(id int64) (Customer, error) {
	row := s.db.QueryRow("SELECT "+customerColumns+" FROM customers WHERE id = ?", id)
	return scanCustomer(row)
}

// GetCustomerByName returns the first customer whose name contains the given
// string, case-insensitively.
func (s *Store) GetCustomerByName(name string) (Customer, error) {
	row := s.db.QueryRow(
		"SELECT "+customerColumns+" FROM customers WHERE name LIKE ? COLLATE NOCASE ORDER BY name LIMIT 1",
		"%"+name+"%",
	)
	return scanCustomer(row)
}

// ListCustomers returns all customers ordered by name.
func (s *Store) ListCustomers() ([]Customer, error) {
	rows, err := s.db.Query("SELECT " + customerColumns + " FROM customers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// CountCustomers returns the number of customers.
func (s *Store) CountCustomers() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM customers").Scan(&count)
	return count, err
}

// UpdateCustomer applies the non-nil fields of u to the customer with the
// given ID and bumps updated_at. Returns ErrNotFound if no row matched.
func (s *Store) UpdateCustomer(id int64, u CustomerUpdate) error {
	var sets []string
	var args []interface{}
	add := func(column string, v *string) {
		if v != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *v)
		}
	}
	add("name", u.Name)
	add("description", u.Description)
	add("products_used", u.ProductsUsed)
	add("priority", u.Priority)
	add("notes", u.Notes)

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339), id)

	res, err := s.db.Exec("UPDATE customers SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("updating customer %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCustomer removes a customer by ID. Returns ErrNotFound if absent.
func (s *Store) DeleteCustomer(id int64) error {
	res, err := s.db.Exec("DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting customer %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var c Customer
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ProductsUsed, &c.Priority, &c.Notes, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("scanning customer: %w", err)
	}
	if c.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Customer{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return Customer{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return c, nil
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
// modernc.org/sqlite surfaces these as formatted errors, not typed values.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
