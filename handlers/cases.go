package handlers

import (
	"context"
	"net/http"

	"coparent/backend/models"
	"coparent/backend/services"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

func ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := services.ListCases(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func CreateCase(w http.ResponseWriter, r *http.Request) {
	var in services.CreateCaseInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := services.CreateCase(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func CreateDraft(w http.ResponseWriter, r *http.Request) {
	c, err := services.CreateDraft(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func ListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := services.ListDrafts(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

func CombineDrafts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Draft1ID string `json:"draft1Id"`
		Draft2ID string `json:"draft2Id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := services.CombineDrafts(r.Context(), principal(r), body.Draft1ID, body.Draft2ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := services.GetCase(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func ConvertDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Parent2ID string `json:"parent2Id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := services.ConvertDraft(r.Context(), principal(r), mux.Vars(r)["id"], body.Parent2ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func UpdatePercentages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Parent1Percentage decimal.Decimal `json:"parent1Percentage"`
		Parent2Percentage decimal.Decimal `json:"parent2Percentage"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := services.UpdatePercentages(r.Context(), principal(r), mux.Vars(r)["id"], body.Parent1Percentage, body.Parent2Percentage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type linkFunc func(ctx context.Context, p models.Principal, caseID, userID string) (models.Case, error)

// linkHandler serves the link endpoints, which take the user in the body,
// and the unlink endpoints, which take it from the path.
func linkHandler(fn linkFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		userID := vars["userId"]
		if userID == "" {
			var body struct {
				UserID string `json:"userId"`
			}
			if err := decodeJSON(r, &body); err != nil {
				writeError(w, r, err)
				return
			}
			userID = body.UserID
		}
		c, err := fn(r.Context(), principal(r), vars["id"], userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

var (
	AssignLawyer = linkHandler(services.AssignLawyer)
	RemoveLawyer = linkHandler(services.RemoveLawyer)
	AssignJudge  = linkHandler(services.AssignJudge)
	RemoveJudge  = linkHandler(services.RemoveJudge)
)

func ListChildren(w http.ResponseWriter, r *http.Request) {
	children, err := services.ListChildren(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func AddChild(w http.ResponseWriter, r *http.Request) {
	var in services.ChildInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	child, err := services.AddChild(r.Context(), principal(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

func DeleteChild(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := services.DeleteChild(r.Context(), principal(r), vars["id"], vars["childId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
