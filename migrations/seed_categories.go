package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"coparent/backend/database"

	"github.com/google/uuid"
)

// OtherTypeName is the category type free-text categories are filed under.
const OtherTypeName = "Other"

var defaultCategories = []struct {
	typeName   string
	categories []string
}{
	{"Education", []string{"School fees", "School supplies"}},
	{"Health", []string{"Medical expenses", "Pharmacy"}},
	{"Leisure", []string{"Sports", "Holidays"}},
	{OtherTypeName, []string{"Clothing"}},
}

// SeedCategories inserts the default category types and categories.
func SeedCategories(ctx context.Context, tx *sql.Tx) error {
	for _, group := range defaultCategories {
		typeID := uuid.NewString()
		_, err := database.Exec(ctx, tx, "INSERT INTO category_types (id, name) VALUES (?, ?)", typeID, group.typeName)
		if err != nil {
			return fmt.Errorf("failed to insert category type %s: %w", group.typeName, err)
		}

		for _, name := range group.categories {
			_, err := database.Exec(ctx, tx,
				"INSERT INTO categories (id, name, type_id) VALUES (?, ?, ?)",
				uuid.NewString(), name, typeID)
			if err != nil {
				return fmt.Errorf("failed to insert category %s: %w", name, err)
			}
		}
	}
	return nil
}
