package services

import (
	"context"

	"coparent/backend/database"
	"coparent/backend/models"
)

// CaseAccess is what a principal may do on one case.
type CaseAccess struct {
	Case     models.Case
	IsParent bool
	IsLawyer bool
	IsJudge  bool
	IsAdmin  bool
}

// ResolveCaseAccess loads the case and the principal's relation to it. A
// missing case is ErrNotFound; a case the principal may not see is
// ErrForbidden.
func ResolveCaseAccess(ctx context.Context, p models.Principal, caseID string) (*CaseAccess, error) {
	return resolveCaseAccess(ctx, database.DB, p, caseID)
}

func resolveCaseAccess(ctx context.Context, q database.Querier, p models.Principal, caseID string) (*CaseAccess, error) {
	c, err := loadCase(ctx, q, caseID)
	if err != nil {
		return nil, err
	}

	a := &CaseAccess{
		Case:     c,
		IsParent: c.HasParent(p.UserID),
		IsLawyer: containsUser(c.Lawyers, p.UserID),
		IsJudge:  containsUser(c.Judges, p.UserID),
		IsAdmin:  p.IsAdmin(),
	}
	if !a.CanView() {
		return nil, forbidden("view case")
	}
	return a, nil
}

func (a *CaseAccess) CanView() bool {
	return a.IsParent || a.IsLawyer || a.IsJudge || a.IsAdmin
}

// CanManage covers percentages and lawyer/judge linkage.
func (a *CaseAccess) CanManage() bool {
	return a.IsAdmin || a.IsLawyer
}

// CanReview covers validating and rejecting documents.
func (a *CaseAccess) CanReview() bool {
	return a.IsAdmin || a.IsLawyer || a.IsJudge
}

func (a *CaseAccess) CanSubmit() bool {
	return a.IsParent || a.IsLawyer || a.IsAdmin
}

func (a *CaseAccess) CanEditChildren() bool {
	return a.IsParent || a.IsLawyer || a.IsAdmin
}

// CanDeleteDocument reports whether p may delete doc: its parent, or staff.
func CanDeleteDocument(p models.Principal, doc models.Document) bool {
	return p.IsAdmin() || p.IsStaff || (p.UserID != "" && doc.UserID == p.UserID)
}

func containsUser(users []models.UserSummary, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}
