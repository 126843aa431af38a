package recipes

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/pantrylabs/cookbook/pkg/attrs"
)

// Service implements the recipe catalog on top of the database. Every call is
// scoped to an owner id; rows owned by other users behave as absent.
type Service struct {
	db          *sql.DB
	builder     sq.StatementBuilderType
	tags        *attrs.Collection
	ingredients *attrs.Collection
	images      ImageStore
}

// NewService creates a new recipe service
func NewService(db *sql.DB, tags, ingredients *attrs.Collection, images ImageStore) *Service {
	return &Service{
		db:          db,
		builder:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		tags:        tags,
		ingredients: ingredients,
		images:      images,
	}
}

// CreateInput carries the fields for creating a recipe. The owner is always
// the calling identity, never part of the input.
type CreateInput struct {
	Title         string
	TimeMinutes   int
	Price         Price
	Link          string
	TagIDs        []int64
	IngredientIDs []int64
}

// UpdateInput carries a partial update. Nil scalar fields are left untouched;
// a non-nil relationship list fully replaces the prior set. Full replace is
// expressed by supplying every field.
type UpdateInput struct {
	Title         *string
	TimeMinutes   *int
	Price         *Price
	Link          *string
	TagIDs        *[]int64
	IngredientIDs *[]int64
}

// List returns summaries of the caller's recipes in insertion order
func (s *Service) List(ctx context.Context, userID int64) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, time_minutes, price, link FROM recipes
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.TimeMinutes, &sum.Price, &sum.Link); err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		sum.Tags = []int64{}
		sum.Ingredients = []int64{}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipes: %w", err)
	}

	index := make(map[int64]int, len(summaries))
	for i, sum := range summaries {
		index[sum.ID] = i
	}

	if err := s.collectRefIDs(ctx, userID, "recipe_tags", "tag_id", func(recipeID, refID int64) {
		if i, ok := index[recipeID]; ok {
			summaries[i].Tags = append(summaries[i].Tags, refID)
		}
	}); err != nil {
		return nil, err
	}
	if err := s.collectRefIDs(ctx, userID, "recipe_ingredients", "ingredient_id", func(recipeID, refID int64) {
		if i, ok := index[recipeID]; ok {
			summaries[i].Ingredients = append(summaries[i].Ingredients, refID)
		}
	}); err != nil {
		return nil, err
	}

	return summaries, nil
}

// collectRefIDs streams the M2M rows for all of a user's recipes
func (s *Service) collectRefIDs(ctx context.Context, userID int64, table, column string, visit func(recipeID, refID int64)) error {
	query := fmt.Sprintf(`
		SELECT m.recipe_id, m.%s FROM %s m
		JOIN recipes r ON r.id = m.recipe_id
		WHERE r.user_id = $1
		ORDER BY m.recipe_id, m.%s
	`, column, table, column)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var recipeID, refID int64
		if err := rows.Scan(&recipeID, &refID); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}
		visit(recipeID, refID)
	}
	return rows.Err()
}

// Get returns the caller's recipe with expanded tags and ingredients. Absent
// and foreign-owned recipes are both ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, recipeID int64) (*Recipe, error) {
	r := &Recipe{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, time_minutes, price, link, image_path, created_at, updated_at
		FROM recipes WHERE id = $1 AND user_id = $2
	`, recipeID, userID).Scan(&r.ID, &r.UserID, &r.Title, &r.TimeMinutes, &r.Price,
		&r.Link, &r.ImagePath, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	if r.Tags, err = s.loadRefs(ctx, recipeID, "tags", "recipe_tags", "tag_id"); err != nil {
		return nil, err
	}
	if r.Ingredients, err = s.loadRefs(ctx, recipeID, "ingredients", "recipe_ingredients", "ingredient_id"); err != nil {
		return nil, err
	}
	return r, nil
}

// loadRefs expands one relationship set into attribute objects
func (s *Service) loadRefs(ctx context.Context, recipeID int64, attrTable, linkTable, column string) ([]attrs.Attribute, error) {
	query := fmt.Sprintf(`
		SELECT a.id, a.user_id, a.name FROM %s a
		JOIN %s m ON m.%s = a.id
		WHERE m.recipe_id = $1
		ORDER BY a.id
	`, attrTable, linkTable, column)

	rows, err := s.db.QueryContext(ctx, query, recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe %s: %w", attrTable, err)
	}
	defer rows.Close()

	refs := []attrs.Attribute{}
	for rows.Next() {
		var a attrs.Attribute
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan recipe %s: %w", attrTable, err)
		}
		refs = append(refs, a)
	}
	return refs, rows.Err()
}

// Create inserts a recipe owned by the caller and attaches its relationship
// sets atomically
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (*Recipe, error) {
	fields := ValidationError{}
	if input.Title == "" {
		fields["title"] = "title is required"
	}
	if input.TimeMinutes < 0 {
		fields["time_minutes"] = "time_minutes must not be negative"
	}
	if msg := input.Price.Validate(); msg != "" {
		fields["price"] = msg
	}
	if err := s.validateRefs(ctx, input.TagIDs, input.IngredientIDs, fields); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, fields
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var recipeID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO recipes (user_id, title, time_minutes, price, link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, userID, input.Title, input.TimeMinutes, input.Price, input.Link, now, now).Scan(&recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}

	if err := replaceRefs(ctx, tx, recipeID, "recipe_tags", "tag_id", input.TagIDs); err != nil {
		return nil, err
	}
	if err := replaceRefs(ctx, tx, recipeID, "recipe_ingredients", "ingredient_id", input.IngredientIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recipe: %w", err)
	}

	return s.Get(ctx, userID, recipeID)
}

// Update applies scalar changes and replaces any supplied relationship set
// atomically. Omitted fields stay untouched; callers expressing a full
// replace supply every field.
func (s *Service) Update(ctx context.Context, userID, recipeID int64, input UpdateInput) (*Recipe, error) {
	fields := ValidationError{}
	if input.Title != nil && *input.Title == "" {
		fields["title"] = "title is required"
	}
	if input.TimeMinutes != nil && *input.TimeMinutes < 0 {
		fields["time_minutes"] = "time_minutes must not be negative"
	}
	if input.Price != nil {
		if msg := input.Price.Validate(); msg != "" {
			fields["price"] = msg
		}
	}
	var tagIDs, ingredientIDs []int64
	if input.TagIDs != nil {
		tagIDs = *input.TagIDs
	}
	if input.IngredientIDs != nil {
		ingredientIDs = *input.IngredientIDs
	}
	if err := s.validateRefs(ctx, tagIDs, ingredientIDs, fields); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, fields
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Ownership check up front so relationship-only updates still 404
	var owned int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM recipes WHERE id = $1 AND user_id = $2`, recipeID, userID).Scan(&owned)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check recipe ownership: %w", err)
	}

	q := s.builder.Update("recipes").Set("updated_at", time.Now().UTC())
	if input.Title != nil {
		q = q.Set("title", *input.Title)
	}
	if input.TimeMinutes != nil {
		q = q.Set("time_minutes", *input.TimeMinutes)
	}
	if input.Price != nil {
		q = q.Set("price", *input.Price)
	}
	if input.Link != nil {
		q = q.Set("link", *input.Link)
	}
	query, args, err := q.Where(sq.Eq{"id": recipeID, "user_id": userID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}

	if input.TagIDs != nil {
		if err := clearRefs(ctx, tx, recipeID, "recipe_tags"); err != nil {
			return nil, err
		}
		if err := replaceRefs(ctx, tx, recipeID, "recipe_tags", "tag_id", *input.TagIDs); err != nil {
			return nil, err
		}
	}
	if input.IngredientIDs != nil {
		if err := clearRefs(ctx, tx, recipeID, "recipe_ingredients"); err != nil {
			return nil, err
		}
		if err := replaceRefs(ctx, tx, recipeID, "recipe_ingredients", "ingredient_id", *input.IngredientIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recipe update: %w", err)
	}

	return s.Get(ctx, userID, recipeID)
}

// SetImage stores an uploaded image and records its path on the recipe. The
// previous image file, if any, is removed best effort.
func (s *Service) SetImage(ctx context.Context, userID, recipeID int64, ext string, image io.Reader) (*ImageResult, error) {
	var oldPath string
	err := s.db.QueryRowContext(ctx, `
		SELECT image_path FROM recipes WHERE id = $1 AND user_id = $2
	`, recipeID, userID).Scan(&oldPath)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up recipe: %w", err)
	}

	newPath, err := s.images.Save(ext, image)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE recipes SET image_path = $1, updated_at = $2 WHERE id = $3 AND user_id = $4
	`, newPath, time.Now().UTC(), recipeID, userID)
	if err != nil {
		_ = s.images.Remove(newPath)
		return nil, fmt.Errorf("failed to record image path: %w", err)
	}

	if oldPath != "" && oldPath != newPath {
		_ = s.images.Remove(oldPath)
	}

	return &ImageResult{ID: recipeID, Image: newPath}, nil
}

// Count reports the total number of recipes for the business gauges
func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return n, nil
}

// validateRefs checks that every referenced tag and ingredient id exists.
// Existence is global: ids owned by other users are accepted.
func (s *Service) validateRefs(ctx context.Context, tagIDs, ingredientIDs []int64, fields ValidationError) error {
	if missing, ok, err := s.tags.Exists(ctx, tagIDs); err != nil {
		return err
	} else if !ok {
		fields["tags"] = fmt.Sprintf("invalid tag id %d", missing)
	}
	if missing, ok, err := s.ingredients.Exists(ctx, ingredientIDs); err != nil {
		return err
	} else if !ok {
		fields["ingredients"] = fmt.Sprintf("invalid ingredient id %d", missing)
	}
	return nil
}

// replaceRefs inserts the relationship rows for a recipe. Duplicate ids in
// the input collapse to one row.
func replaceRefs(ctx context.Context, tx *sql.Tx, recipeID int64, table, column string, ids []int64) error {
	query := fmt.Sprintf(`INSERT INTO %s (recipe_id, %s) VALUES ($1, $2)`, table, column)
	for _, id := range uniqueIDs(ids) {
		if _, err := tx.ExecContext(ctx, query, recipeID, id); err != nil {
			return fmt.Errorf("failed to attach %s %d: %w", column, id, err)
		}
	}
	return nil
}

// clearRefs detaches every row in one relationship set
func clearRefs(ctx context.Context, tx *sql.Tx, recipeID int64, table string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = $1`, table)
	if _, err := tx.ExecContext(ctx, query, recipeID); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

// uniqueIDs returns the distinct ids in ascending order
func uniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
