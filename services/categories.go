package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"coparent/backend/database"
	"coparent/backend/migrations"
	"coparent/backend/models"

	"github.com/google/uuid"
)

// ListCategories returns every typed category grouped by type. Untyped
// legacy categories are left out.
func ListCategories(ctx context.Context) ([]models.CategoryGroup, error) {
	rows, err := database.Query(ctx, database.DB, `
		SELECT t.id, t.name, c.id, c.name, c.description
		FROM category_types t
		LEFT JOIN categories c ON c.type_id = t.id
		ORDER BY t.name, c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	groups := []models.CategoryGroup{}
	for rows.Next() {
		var t models.CategoryType
		var id, name, description sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &id, &name, &description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if len(groups) == 0 || groups[len(groups)-1].Type.ID != t.ID {
			groups = append(groups, models.CategoryGroup{Type: t, Categories: []models.Category{}})
		}
		if id.Valid {
			g := &groups[len(groups)-1]
			g.Categories = append(g.Categories, models.Category{
				ID:          id.String,
				Name:        name.String,
				Description: description.String,
				TypeID:      t.ID,
				TypeName:    t.Name,
			})
		}
	}
	return groups, rows.Err()
}

func GetCategory(ctx context.Context, id string) (models.Category, error) {
	return loadCategory(ctx, database.DB, id)
}

func loadCategory(ctx context.Context, q database.Querier, id string) (models.Category, error) {
	var c models.Category
	var typeID, typeName sql.NullString
	err := database.QueryRow(ctx, q, `
		SELECT c.id, c.name, c.description, t.id, t.name
		FROM categories c
		LEFT JOIN category_types t ON t.id = c.type_id
		WHERE c.id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Description, &typeID, &typeName)
	if errors.Is(err, sql.ErrNoRows) {
		return c, notFound("category")
	}
	if err != nil {
		return c, fmt.Errorf("failed to load category: %w", err)
	}
	c.TypeID, c.TypeName = typeID.String, typeName.String
	return c, nil
}

// AddCategory files a new free-text category under the "Other" type.
func AddCategory(ctx context.Context, p models.Principal, name, description string) (models.Category, error) {
	if p.UserID == "" {
		return models.Category{}, forbidden("add category")
	}
	name = capitalize(name)
	if name == "" {
		return models.Category{}, invalid("name", "category name is required")
	}

	var c models.Category
	err := database.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := findCategoryByName(ctx, tx, name)
		if err != nil {
			return err
		}
		if existing != "" {
			return invalid("name", "a category named %q already exists", name)
		}
		id, err := insertOtherCategory(ctx, tx, name, capitalize(description))
		if err != nil {
			return err
		}
		c, err = loadCategory(ctx, tx, id)
		return err
	})
	return c, err
}

// categoryForName returns the id of the category called name, creating it
// under "Other" when it does not exist yet.
func categoryForName(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	name = capitalize(name)
	if name == "" {
		return "", invalid("categoryName", "category name is required")
	}
	id, err := findCategoryByName(ctx, tx, name)
	if err != nil || id != "" {
		return id, err
	}
	return insertOtherCategory(ctx, tx, name, "")
}

// findCategoryByName matches typed categories only. Untyped ones never
// reach a reconciliation, so documents must not be filed under them.
func findCategoryByName(ctx context.Context, q database.Querier, name string) (string, error) {
	var id string
	err := database.QueryRow(ctx, q,
		"SELECT id FROM categories WHERE LOWER(name) = LOWER(?) AND type_id IS NOT NULL ORDER BY id LIMIT 1", name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up category: %w", err)
	}
	return id, nil
}

func insertOtherCategory(ctx context.Context, tx *sql.Tx, name, description string) (string, error) {
	typeID, err := otherTypeID(ctx, tx)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = database.Exec(ctx, tx,
		"INSERT INTO categories (id, name, description, type_id) VALUES (?, ?, ?, ?)",
		id, name, description, typeID)
	if err != nil {
		return "", fmt.Errorf("failed to insert category: %w", err)
	}
	return id, nil
}

func otherTypeID(ctx context.Context, tx *sql.Tx) (string, error) {
	var id string
	err := database.QueryRow(ctx, tx, "SELECT id FROM category_types WHERE name = ?", migrations.OtherTypeName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up category type: %w", err)
	}

	id = uuid.NewString()
	if _, err := database.Exec(ctx, tx, "INSERT INTO category_types (id, name) VALUES (?, ?)", id, migrations.OtherTypeName); err != nil {
		return "", fmt.Errorf("failed to create category type: %w", err)
	}
	return id, nil
}

// capitalize trims s and upper-cases its first letter.
func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
