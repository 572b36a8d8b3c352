package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"coparent/backend/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
)

// maxUploadBody leaves room for the form fields next to the attachment.
const maxUploadBody = services.MaxAttachmentSize + 1<<20

func ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := services.ListDocuments(r.Context(), principal(r), mux.Vars(r)["id"], q.Get("year"), q.Get("quarter"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// SubmitDocument accepts either a multipart form, with the receipt in the
// "document" file field, or a JSON body without attachment.
func SubmitDocument(w http.ResponseWriter, r *http.Request) {
	in, err := readDocumentInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := services.SubmitDocument(r.Context(), principal(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func readDocumentInput(w http.ResponseWriter, r *http.Request) (services.SubmitDocumentInput, error) {
	var in services.SubmitDocumentInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return in, decodeJSON(r, &in)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(services.MaxAttachmentSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, &services.ValidationError{Field: "document", Message: "the file must be smaller than 10 MB"}
		}
		return in, &services.ValidationError{Message: "invalid form: " + err.Error()}
	}
	in.ParentID = r.FormValue("parentId")
	in.Amount = r.FormValue("amount")
	in.Date = r.FormValue("date")
	in.CategoryID = r.FormValue("categoryId")
	in.CategoryName = r.FormValue("categoryName")
	in.Description = r.FormValue("description")

	file, header, err := r.FormFile("document")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return in, &services.ValidationError{Field: "document", Message: "could not read the uploaded file"}
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return in, err
	}
	in.Attachment = &services.Attachment{Filename: header.Filename, Data: data}
	return in, nil
}

func ListPending(w http.ResponseWriter, r *http.Request) {
	docs, err := services.ListPending(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func ReviewDocuments(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DocumentIDs []string `json:"documentIds"`
		Action      string   `json:"action"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := services.ReviewDocuments(r.Context(), principal(r), mux.Vars(r)["id"], body.DocumentIDs, strings.ToLower(body.Action))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func DeleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := services.DeleteDocument(r.Context(), principal(r), vars["id"], vars["docId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func GetAttachment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rc, contentType, err := services.GetAttachment(r.Context(), principal(r), vars["id"], vars["docId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "inline")
	if _, err := io.Copy(w, rc); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to stream attachment")
	}
}

func ListCategories(w http.ResponseWriter, r *http.Request) {
	groups, err := services.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func AddCategory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := services.AddCategory(r.Context(), principal(r), body.Name, body.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
