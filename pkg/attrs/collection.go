package attrs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Collection provides list and create over one owned attribute table. The same
// implementation backs both tags and ingredients.
type Collection struct {
	db   *sql.DB
	kind Kind
}

// NewCollection creates a collection for the given kind
func NewCollection(db *sql.DB, kind Kind) (*Collection, error) {
	if kind.table() == "" {
		return nil, ErrUnknownKind
	}
	return &Collection{db: db, kind: kind}, nil
}

// Kind returns the collection's kind
func (c *Collection) Kind() Kind {
	return c.kind
}

// List returns the caller's attributes ordered by name descending
func (c *Collection) List(ctx context.Context, userID int64) ([]Attribute, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, name FROM %s
		WHERE user_id = $1
		ORDER BY name DESC, id DESC
	`, c.kind.table())

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %ss: %w", c.kind, err)
	}
	defer rows.Close()

	attrs := []Attribute{}
	for rows.Next() {
		var a Attribute
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c.kind, err)
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %ss: %w", c.kind, err)
	}
	return attrs, nil
}

// Create inserts a new attribute owned by the caller
func (c *Collection) Create(ctx context.Context, userID int64, name string) (*Attribute, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	a := &Attribute{UserID: userID, Name: name}
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, name) VALUES ($1, $2) RETURNING id
	`, c.kind.table())
	err := c.db.QueryRowContext(ctx, query, userID, name).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", c.kind, err)
	}
	return a, nil
}

// Exists reports whether every id refers to an existing attribute of this kind,
// regardless of owner. Returns the first missing id when any is absent.
func (c *Collection) Exists(ctx context.Context, ids []int64) (int64, bool, error) {
	if len(ids) == 0 {
		return 0, true, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id FROM %s WHERE id IN (%s)`,
		c.kind.table(), strings.Join(placeholders, ", "))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, false, fmt.Errorf("failed to check %s ids: %w", c.kind, err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, false, fmt.Errorf("failed to scan %s id: %w", c.kind, err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return 0, false, fmt.Errorf("failed to iterate %s ids: %w", c.kind, err)
	}

	for _, id := range ids {
		if !found[id] {
			return id, false, nil
		}
	}
	return 0, true, nil
}
