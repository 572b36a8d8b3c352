package services

import (
	"testing"

	"coparent/backend/events"
	"coparent/backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCaseByLawyer(t *testing.T) {
	f := setup(t)
	dave := createUser(t, "dave", models.RoleParent)

	c, err := CreateCase(ctx, f.outsider, CreateCaseInput{Parent1ID: f.stranger.UserID, Parent2ID: dave.UserID})
	require.NoError(t, err)

	assert.False(t, c.Draft)
	assert.Equal(t, f.stranger.UserID, c.Parent1.ID)
	assert.Equal(t, dave.UserID, c.Parent2ID())
	require.Len(t, c.Lawyers, 1)
	assert.Equal(t, f.outsider.UserID, c.Lawyers[0].ID)
	assert.True(t, c.Parent1Percentage.Equal(decimal.NewFromInt(50)))
	assert.Contains(t, f.events.Types(), events.CaseCreated)
}

func TestCreateCaseRules(t *testing.T) {
	f := setup(t)

	testCases := []struct {
		name      string
		principal models.Principal
		input     CreateCaseInput
		field     string
		forbidden bool
	}{
		{"parent cannot create", f.parent1, CreateCaseInput{Parent1ID: f.stranger.UserID, Parent2ID: f.parent2.UserID}, "", true},
		{"same parent twice", f.lawyer, CreateCaseInput{Parent1ID: f.stranger.UserID, Parent2ID: f.stranger.UserID}, "parent2Id", false},
		{"pair already has a case", f.lawyer, CreateCaseInput{Parent1ID: f.parent2.UserID, Parent2ID: f.parent1.UserID}, "parent2Id", false},
		{"parent must have parent role", f.lawyer, CreateCaseInput{Parent1ID: f.stranger.UserID, Parent2ID: f.judge.UserID}, "parent2Id", false},
		{"unknown parent", f.lawyer, CreateCaseInput{Parent1ID: "ghost", Parent2ID: f.stranger.UserID}, "parent1Id", false},
		{"admin must name lawyer", f.admin, CreateCaseInput{Parent1ID: f.stranger.UserID, Parent2ID: f.parent1.UserID}, "lawyerId", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateCase(ctx, tc.principal, tc.input)
			if tc.forbidden {
				assert.ErrorIs(t, err, ErrForbidden)
				return
			}
			assert.Equal(t, tc.field, validationField(t, err))
		})
	}
	assert.Equal(t, 1, f.count("SELECT COUNT(*) FROM cases"))
}

func TestCreateCaseByAdminLinksNamedLawyer(t *testing.T) {
	f := setup(t)

	c, err := CreateCase(ctx, f.admin, CreateCaseInput{Parent1ID: f.stranger.UserID, Parent2ID: f.parent1.UserID, LawyerID: f.outsider.UserID})
	require.NoError(t, err)
	require.Len(t, c.Lawyers, 1)
	assert.Equal(t, f.outsider.UserID, c.Lawyers[0].ID)
}

func TestCreateDraftLimit(t *testing.T) {
	f := setup(t)

	for i := 0; i < MaxDraftsPerParent; i++ {
		c, err := CreateDraft(ctx, f.stranger)
		require.NoError(t, err)
		assert.True(t, c.Draft)
		assert.Nil(t, c.Parent2)
	}

	_, err := CreateDraft(ctx, f.stranger)
	assert.Equal(t, "draft", validationField(t, err))

	_, err = CreateDraft(ctx, f.lawyer)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListCases(t *testing.T) {
	f := setup(t)
	f.newCase(f.stranger.UserID, "")

	mine, err := ListCases(ctx, f.parent1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	judged, err := ListCases(ctx, f.judge)
	require.NoError(t, err)
	assert.Len(t, judged, 1)

	none, err := ListCases(ctx, f.outsider)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := ListCases(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drafts, err := ListDrafts(ctx, f.outsider)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	_, err = ListDrafts(ctx, f.parent1)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConvertDraft(t *testing.T) {
	f := setup(t)
	dave := createUser(t, "dave", models.RoleParent)
	draftID := f.newCase(f.stranger.UserID, "")

	c, err := ConvertDraft(ctx, f.outsider, draftID, dave.UserID)
	require.NoError(t, err)
	assert.False(t, c.Draft)
	assert.Equal(t, dave.UserID, c.Parent2ID())
	require.Len(t, c.Lawyers, 1)
	assert.Equal(t, f.outsider.UserID, c.Lawyers[0].ID)

	_, err = ConvertDraft(ctx, f.outsider, draftID, dave.UserID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = ConvertDraft(ctx, f.parent1, draftID, dave.UserID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCombineDrafts(t *testing.T) {
	f := setup(t)
	dave := createUser(t, "dave", models.RoleParent)
	draft1 := f.newCase(f.stranger.UserID, "")
	draft2 := f.newCase(dave.UserID, "")
	doc1 := f.addDoc(draft1, f.stranger.UserID, "Clothing", 1000, "2024-01-10", models.StatusPending)
	doc2 := f.addDoc(draft2, dave.UserID, "Pharmacy", 2000, "2024-02-10", models.StatusPending)
	f.addChild(draft2, "Mila")

	c, err := CombineDrafts(ctx, f.outsider, draft1, draft2)
	require.NoError(t, err)

	assert.False(t, c.Draft)
	assert.Equal(t, dave.UserID, c.Parent2ID())
	assert.Equal(t, 1, c.ChildrenCount)
	assert.Equal(t, 0, f.count("SELECT COUNT(*) FROM cases WHERE id = ?", draft2))
	assert.Equal(t, 2, f.count("SELECT COUNT(*) FROM documents WHERE case_id = ? AND id IN (?, ?)", draft1, doc1, doc2))
	require.Len(t, c.Lawyers, 1)
	assert.Contains(t, f.events.Types(), events.DraftsCombined)
}

func TestActivatedDraftSharesAddUpTo100(t *testing.T) {
	tests := []struct {
		name             string
		parent1, parent2 int64
		want1, want2     int64
	}{
		{"uneven shares reset", 70, 10, 50, 50},
		{"complete shares kept", 70, 30, 70, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			dave := createUser(t, "dave", models.RoleParent)
			erin := createUser(t, "erin", models.RoleParent)
			converted := f.newCase(f.stranger.UserID, "")
			combined := f.newCase(dave.UserID, "")
			absorbed := f.newCase(erin.UserID, "")
			for _, id := range []string{converted, combined} {
				_, err := UpdatePercentages(ctx, f.admin, id, decimal.NewFromInt(tt.parent1), decimal.NewFromInt(tt.parent2))
				require.NoError(t, err)
			}

			c, err := ConvertDraft(ctx, f.admin, converted, f.parent1.UserID)
			require.NoError(t, err)
			assert.True(t, c.Parent1Percentage.Equal(decimal.NewFromInt(tt.want1)), c.Parent1Percentage.String())
			assert.True(t, c.Parent2Percentage.Equal(decimal.NewFromInt(tt.want2)), c.Parent2Percentage.String())

			c, err = CombineDrafts(ctx, f.admin, combined, absorbed)
			require.NoError(t, err)
			assert.True(t, c.Parent1Percentage.Equal(decimal.NewFromInt(tt.want1)), c.Parent1Percentage.String())
			assert.True(t, c.Parent2Percentage.Equal(decimal.NewFromInt(tt.want2)), c.Parent2Percentage.String())
		})
	}
}

func TestActivateDraftAlreadyLinkedToLawyer(t *testing.T) {
	f := setup(t)
	dave := createUser(t, "dave", models.RoleParent)
	erin := createUser(t, "erin", models.RoleParent)
	converted := f.newCase(f.stranger.UserID, "")
	combined := f.newCase(dave.UserID, "")
	absorbed := f.newCase(erin.UserID, "")
	for _, id := range []string{converted, combined} {
		_, err := AssignLawyer(ctx, f.admin, id, f.outsider.UserID)
		require.NoError(t, err)
	}

	c, err := ConvertDraft(ctx, f.outsider, converted, f.parent1.UserID)
	require.NoError(t, err)
	require.Len(t, c.Lawyers, 1)
	assert.Equal(t, f.outsider.UserID, c.Lawyers[0].ID)

	c, err = CombineDrafts(ctx, f.outsider, combined, absorbed)
	require.NoError(t, err)
	require.Len(t, c.Lawyers, 1)
	assert.Equal(t, f.outsider.UserID, c.Lawyers[0].ID)
}

func TestCombineDraftsSameParentRejected(t *testing.T) {
	f := setup(t)
	draft1 := f.newCase(f.stranger.UserID, "")
	draft2 := f.newCase(f.stranger.UserID, "")
	doc := f.addDoc(draft2, f.stranger.UserID, "Clothing", 1000, "2024-01-10", models.StatusPending)

	_, err := CombineDrafts(ctx, f.admin, draft1, draft2)
	assert.Equal(t, "draft2Id", validationField(t, err))

	assert.Equal(t, 2, f.count("SELECT COUNT(*) FROM cases WHERE id IN (?, ?) AND draft = ? AND parent2_id IS NULL", draft1, draft2, true))
	assert.Equal(t, 1, f.count("SELECT COUNT(*) FROM documents WHERE id = ? AND case_id = ?", doc, draft2))
	assert.Empty(t, f.events.Types())
}

func TestCombineDraftsRequiresDrafts(t *testing.T) {
	f := setup(t)
	draft := f.newCase(f.stranger.UserID, "")

	_, err := CombineDrafts(ctx, f.admin, draft, f.caseID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = CombineDrafts(ctx, f.admin, draft, draft)
	assert.Equal(t, "draft2Id", validationField(t, err))
}

func TestUpdatePercentages(t *testing.T) {
	f := setup(t)

	c, err := UpdatePercentages(ctx, f.lawyer, f.caseID, decimal.NewFromInt(60), decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.True(t, c.Parent1Percentage.Equal(decimal.NewFromInt(60)))
	assert.True(t, c.Parent2Percentage.Equal(decimal.NewFromInt(40)))

	_, err = UpdatePercentages(ctx, f.lawyer, f.caseID, decimal.NewFromInt(60), decimal.NewFromInt(60))
	assert.Equal(t, "parent2Percentage", validationField(t, err))

	_, err = UpdatePercentages(ctx, f.lawyer, f.caseID, decimal.NewFromInt(120), decimal.NewFromInt(-20))
	assert.Equal(t, "parent1Percentage", validationField(t, err))

	_, err = UpdatePercentages(ctx, f.judge, f.caseID, decimal.NewFromInt(50), decimal.NewFromInt(50))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLinkAndUnlinkLawyerAndJudge(t *testing.T) {
	f := setup(t)
	judge2 := createUser(t, "june", models.RoleJudge)

	c, err := AssignLawyer(ctx, f.admin, f.caseID, f.outsider.UserID)
	require.NoError(t, err)
	assert.Len(t, c.Lawyers, 2)

	_, err = AssignLawyer(ctx, f.admin, f.caseID, f.outsider.UserID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = AssignLawyer(ctx, f.admin, f.caseID, judge2.UserID)
	assert.Equal(t, "userId", validationField(t, err))

	c, err = AssignJudge(ctx, f.lawyer, f.caseID, judge2.UserID)
	require.NoError(t, err)
	assert.Len(t, c.Judges, 2)

	c, err = RemoveJudge(ctx, f.lawyer, f.caseID, judge2.UserID)
	require.NoError(t, err)
	assert.Len(t, c.Judges, 1)

	c, err = RemoveLawyer(ctx, f.admin, f.caseID, f.outsider.UserID)
	require.NoError(t, err)
	assert.Len(t, c.Lawyers, 1)

	_, err = RemoveLawyer(ctx, f.admin, f.caseID, f.outsider.UserID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = AssignJudge(ctx, f.parent1, f.caseID, judge2.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	// unlinking never removes the case
	assert.Equal(t, 1, f.count("SELECT COUNT(*) FROM cases WHERE id = ?", f.caseID))
}
