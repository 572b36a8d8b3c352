package handlers

import (
	"net/http"

	"coparent/backend/middleware"
	"coparent/backend/models"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all API routes on r.
func RegisterRoutes(r *mux.Router) {
	// Public routes (no auth required)
	r.HandleFunc("/health", HealthCheck).Methods("GET", "OPTIONS")

	protected := r.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	adminOnly := middleware.RequireRole(models.RoleAdministrator)

	protected.HandleFunc("/users/sync", SyncUser).Methods("POST")
	protected.HandleFunc("/users/me", GetMe).Methods("GET")
	protected.HandleFunc("/users", ListUsers).Methods("GET")
	protected.Handle("/users/{id}/role", adminOnly(http.HandlerFunc(SetUserRole))).Methods("PUT")

	// Fixed case paths go before /cases/{id}
	protected.HandleFunc("/cases/drafts", ListDrafts).Methods("GET")
	protected.HandleFunc("/cases/drafts", CreateDraft).Methods("POST")
	protected.HandleFunc("/cases/combine", CombineDrafts).Methods("POST")
	protected.HandleFunc("/cases", ListCases).Methods("GET")
	protected.HandleFunc("/cases", CreateCase).Methods("POST")
	protected.HandleFunc("/cases/{id}", GetCase).Methods("GET")
	protected.HandleFunc("/cases/{id}/convert", ConvertDraft).Methods("POST")
	protected.HandleFunc("/cases/{id}/percentages", UpdatePercentages).Methods("PUT")
	protected.HandleFunc("/cases/{id}/lawyers", AssignLawyer).Methods("POST")
	protected.HandleFunc("/cases/{id}/lawyers/{userId}", RemoveLawyer).Methods("DELETE")
	protected.HandleFunc("/cases/{id}/judges", AssignJudge).Methods("POST")
	protected.HandleFunc("/cases/{id}/judges/{userId}", RemoveJudge).Methods("DELETE")

	protected.HandleFunc("/cases/{id}/children", ListChildren).Methods("GET")
	protected.HandleFunc("/cases/{id}/children", AddChild).Methods("POST")
	protected.HandleFunc("/cases/{id}/children/{childId}", DeleteChild).Methods("DELETE")

	protected.HandleFunc("/categories", ListCategories).Methods("GET")
	protected.HandleFunc("/categories", AddCategory).Methods("POST")

	protected.HandleFunc("/cases/{id}/documents", ListDocuments).Methods("GET")
	protected.HandleFunc("/cases/{id}/documents", SubmitDocument).Methods("POST")
	protected.HandleFunc("/cases/{id}/documents/pending", ListPending).Methods("GET")
	protected.HandleFunc("/cases/{id}/documents/review", ReviewDocuments).Methods("POST")
	protected.HandleFunc("/cases/{id}/documents/{docId}", DeleteDocument).Methods("DELETE")
	protected.HandleFunc("/cases/{id}/documents/{docId}/attachment", GetAttachment).Methods("GET")

	protected.HandleFunc("/cases/{id}/reconciliation", Reconcile).Methods("GET")
	protected.HandleFunc("/cases/{id}/reconciliation/export", ExportReconciliation).Methods("GET")
	protected.HandleFunc("/cases/{id}/categories/{categoryId}/documents", CategoryDocuments).Methods("GET")

	protected.HandleFunc("/indexations", ListIndexations).Methods("GET")
	protected.Handle("/indexations", adminOnly(http.HandlerFunc(ApplyIndexation))).Methods("POST")
	protected.Handle("/indexations/{id}", adminOnly(http.HandlerFunc(ReverseIndexation))).Methods("DELETE")
}
