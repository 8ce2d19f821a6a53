package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
)

type transactionRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Description string      `json:"description" validate:"max=1000"`
	Amount      json.Number `json:"amount" validate:"required"`
	Type        string      `json:"type" validate:"required,oneof=income expense"`
	CategoryID  *string     `json:"category_id"`
	Date        string      `json:"date" validate:"required,datetime=2006-01-02"`
}

type createTransactionRequest struct {
	transactionRequest
	IsRecurring       bool    `json:"is_recurring"`
	RecurrencePattern string  `json:"recurrence_pattern" validate:"required_if=IsRecurring true"`
	RecurrenceEndDate *string `json:"recurrence_end_date" validate:"omitempty,datetime=2006-01-02"`
}

type updateTransactionRequest struct {
	transactionRequest
	ID           string `json:"id" validate:"required"`
	UpdateFuture bool   `json:"updateFuture"`
}

type transactionResponse struct {
	ID                  string      `json:"id"`
	UserID              string      `json:"user_id"`
	CategoryID          *string     `json:"category_id"`
	Name                string      `json:"name"`
	Description         string      `json:"description"`
	Amount              json.Number `json:"amount"`
	Type                core.Kind   `json:"type"`
	Date                core.Date   `json:"date"`
	RecurringTemplateID *string     `json:"recurring_template_id"`
	CategoryName        string      `json:"category_name,omitempty"`
	CategoryEmoji       string      `json:"category_emoji,omitempty"`
	RecurrencePattern   string      `json:"recurrence_pattern,omitempty"`
	RecurrenceEndDate   *core.Date  `json:"recurrence_end_date"`
	IsRecurring         bool        `json:"is_recurring"`
}

func toTransactionResponse(v core.TransactionView) transactionResponse {
	return transactionResponse{
		ID:                  v.ID,
		UserID:              v.UserID,
		CategoryID:          v.CategoryID,
		Name:                v.Name,
		Description:         v.Description,
		Amount:              json.Number(v.Amount.StringFixed(2)),
		Type:                v.Kind,
		Date:                v.Date,
		RecurringTemplateID: v.TemplateID,
		CategoryName:        v.CategoryName,
		CategoryEmoji:       v.CategoryEmoji,
		RecurrencePattern:   string(v.RecurrencePattern),
		RecurrenceEndDate:   v.RecurrenceEndDate,
		IsRecurring:         v.IsRecurring(),
	}
}

// transaction converts the request body into a domain transaction owned by userID.
func (req transactionRequest) transaction(userID, id string) (core.Transaction, error) {
	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		return core.Transaction{}, &services.ValidationError{Err: err}
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, &services.ValidationError{Err: err}
	}
	var categoryID *string
	if req.CategoryID != nil && strings.TrimSpace(*req.CategoryID) != "" {
		c := strings.TrimSpace(*req.CategoryID)
		categoryID = &c
	}
	return core.Transaction{
		ID:          id,
		UserID:      userID,
		CategoryID:  categoryID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Amount:      amount,
		Kind:        core.Kind(req.Type),
		Date:        date,
	}, nil
}

// handleListTransactions catches the user's recurring templates up first, so
// the list includes anything that came due since the last visit.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.fireTrigger(r.Context(), user.ID)

	views, err := s.transactions.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toTransactionResponse(v))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user := currentUser(r)
	t, err := req.transaction(user.ID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	in := services.NewTransaction{Transaction: t}
	if req.IsRecurring {
		in.Recurring = true
		in.Pattern = core.Pattern(req.RecurrencePattern)
		if req.RecurrenceEndDate != nil && *req.RecurrenceEndDate != "" {
			end, err := core.ParseDate(*req.RecurrenceEndDate)
			if err != nil {
				writeError(w, r, &services.ValidationError{Err: err})
				return
			}
			in.EndDate = &end
		}
	}

	created, templateID, err := s.transactions.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.fireTrigger(r.Context(), user.ID)

	resp := map[string]string{"id": created.ID}
	if templateID != "" {
		resp["template_id"] = templateID
	}
	writeJSON(w, r, http.StatusCreated, resp)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.transaction(currentUser(r).ID, req.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.transactions.Update(r.Context(), t, req.UpdateFuture); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := strings.TrimSpace(q.Get("id"))
	if id == "" {
		writeError(w, r, badRequest("transaction id required"))
		return
	}
	deleteFuture := false
	if v := q.Get("deleteFuture"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, badRequest("invalid deleteFuture value %q", v))
			return
		}
		deleteFuture = b
	}

	if err := s.transactions.Delete(r.Context(), currentUser(r).ID, id, deleteFuture); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

type generateResponse struct {
	Success   bool `json:"success"`
	Generated int  `json:"generated"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
}

// handleGenerateRecurring runs one sweep over the caller's templates and
// reports the counts. Per-template failures do not fail the request.
func (s *Server) handleGenerateRecurring(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	report, err := s.recurring.RunForUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if report.Failed > 0 {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Manual recurring generation had failures",
			log.FieldExecutionID, report.ExecutionID,
			log.FieldFailed, report.Failed,
			log.FieldError, report.Err())
	}
	writeJSON(w, r, http.StatusOK, generateResponse{
		Success:   true,
		Generated: report.Generated,
		Skipped:   report.Skipped,
		Failed:    report.Failed,
	})
}
