package http

import (
	"net/http"
	"strings"

	"ledger/internal/core"
	"ledger/internal/services"
)

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Emoji       string `json:"emoji" validate:"required,max=16"`
	Description string `json:"description" validate:"max=500"`
}

type updateCategoryRequest struct {
	categoryRequest
	ID string `json:"id" validate:"required"`
}

type categoryResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, UserID: c.UserID, Name: c.Name, Emoji: c.Emoji, Description: c.Description}
}

func (req categoryRequest) category(userID, id string) (core.Category, error) {
	c := core.Category{
		ID:          id,
		UserID:      userID,
		Name:        strings.TrimSpace(req.Name),
		Emoji:       strings.TrimSpace(req.Emoji),
		Description: strings.TrimSpace(req.Description),
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, &services.ValidationError{Err: err}
	}
	return c, nil
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.ListCategories(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := req.category(currentUser(r).ID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err = s.categories.CreateCategory(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"id": c.ID})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := req.category(currentUser(r).ID, req.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.categories.UpdateCategory(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, r, badRequest("category id required"))
		return
	}
	if err := s.categories.DeleteCategory(r.Context(), currentUser(r).ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}
