package statement

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// writeJSON writes a JSON response with CORS headers set.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	s.setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses: invalid input 400,
// missing entities 404, state conflicts 409, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidStatement):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}

	s.writeJSON(w, status, map[string]string{"error": message})
}

type uploadRequest struct {
	CreditCardID string `json:"credit_card_id"`
	BankCode     string `json:"bank_code"`
	FileName     string `json:"file_name"`
	FileData     string `json:"file_data"` // base64-encoded PDF
}

// handleUploadStatement accepts a statement PDF and persists it as a
// pending statement.
func (s *Server) handleUploadStatement(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	fileData, err := base64.StdEncoding.DecodeString(req.FileData)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file_data is not valid base64"})
		return
	}

	st, err := s.service.UploadStatement(r.Context(), UploadRequest{
		OwnerID:      s.ownerID,
		CreditCardID: req.CreditCardID,
		BankCode:     req.BankCode,
		FileName:     req.FileName,
		FileData:     fileData,
	})
	if err != nil {
		slog.Error("Error uploading statement", "file_name", req.FileName, "error", err)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, st)
}

// handleListStatements returns the owner's statements, optionally filtered
// by credit card and status.
func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	filter := StatementFilter{
		CreditCardID: r.URL.Query().Get("credit_card_id"),
		Status:       Status(r.URL.Query().Get("status")),
	}

	statements, err := s.service.ListStatements(s.ownerID, filter)
	if err != nil {
		slog.Error("Error listing statements", "error", err)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, statements)
}

// handleGetStatement returns one statement with its annotated line items.
func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	details, err := s.service.GetStatementDetails(s.ownerID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, details)
}

// handleAnnotateStatement runs duplicate detection and AI categorization
// over the statement's line items.
func (s *Server) handleAnnotateStatement(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.AnnotateStatement(r.Context(), s.ownerID, r.PathValue("id"))
	if err != nil {
		slog.Error("Error annotating statement", "statement_id", r.PathValue("id"), "error", err)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleImportStatement imports the reviewed statement's included line items
// as transactions.
func (s *Server) handleImportStatement(w http.ResponseWriter, r *http.Request) {
	var opts ImportOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	result, err := s.service.ImportStatement(r.Context(), s.ownerID, r.PathValue("id"), opts)
	if err != nil {
		slog.Error("Error importing statement", "statement_id", r.PathValue("id"), "error", err)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleCreateCreditCard registers a credit card so statements can be
// uploaded against it.
func (s *Server) handleCreateCreditCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Limit string `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	card, err := s.service.CreateCreditCard(s.ownerID, req.Name, req.Limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, card)
}

// handleCreateCategory registers a spending category offered to the AI
// categorizer.
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	category, err := s.service.CreateCategory(s.ownerID, req.Name, req.Type)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, category)
}

// handleCancelStatement discards a statement that has not been imported.
func (s *Server) handleCancelStatement(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.CancelStatement(s.ownerID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, st)
}
