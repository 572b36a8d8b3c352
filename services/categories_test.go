package services

import (
	"testing"

	"coparent/backend/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCategoriesGroupedByType(t *testing.T) {
	setup(t)

	groups, err := ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 4)

	assert.Equal(t, "Education", groups[0].Type.Name)
	require.Len(t, groups[0].Categories, 2)
	assert.Equal(t, "School fees", groups[0].Categories[0].Name)
	assert.Equal(t, "Education", groups[0].Categories[0].TypeName)
}

func TestListCategoriesSkipsUntyped(t *testing.T) {
	f := setup(t)
	_, err := dbExec("INSERT INTO categories (id, name) VALUES (?, ?)", "legacy", "Legacy")
	require.NoError(t, err)

	groups, err := ListCategories(ctx)
	require.NoError(t, err)
	for _, g := range groups {
		for _, c := range g.Categories {
			assert.NotEqual(t, "legacy", c.ID)
		}
	}
	assert.Equal(t, 8, f.count("SELECT COUNT(*) FROM categories"))
}

func TestAddCategory(t *testing.T) {
	f := setup(t)

	c, err := AddCategory(ctx, f.parent1, "  babysitting ", "evening care")
	require.NoError(t, err)
	assert.Equal(t, "Babysitting", c.Name)
	assert.Equal(t, "Evening care", c.Description)
	assert.Equal(t, migrations.OtherTypeName, c.TypeName)

	_, err = AddCategory(ctx, f.parent2, "Babysitting", "")
	assert.Equal(t, "name", validationField(t, err))

	_, err = AddCategory(ctx, f.parent2, "   ", "")
	assert.Equal(t, "name", validationField(t, err))
}

func TestAddCategoryRecreatesOtherType(t *testing.T) {
	f := setup(t)
	_, err := dbExec("UPDATE categories SET type_id = NULL")
	require.NoError(t, err)
	_, err = dbExec("DELETE FROM category_types WHERE name = ?", migrations.OtherTypeName)
	require.NoError(t, err)

	c, err := AddCategory(ctx, f.admin, "Tutoring", "")
	require.NoError(t, err)
	assert.Equal(t, migrations.OtherTypeName, c.TypeName)
	assert.Equal(t, 1, f.count("SELECT COUNT(*) FROM category_types WHERE name = ?", migrations.OtherTypeName))
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "École", capitalize(" école"))
	assert.Equal(t, "Pharmacy", capitalize("Pharmacy"))
	assert.Equal(t, "", capitalize("  "))
}
