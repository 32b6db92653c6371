package api

import (
	"database/sql"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/erazemk/duka/internal/auth"
	"github.com/erazemk/duka/internal/model"
	"github.com/erazemk/duka/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB *sql.DB
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin manager user"`
}

type updateUserRequest struct {
	Role string `json:"role" validate:"required,oneof=admin manager user"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !bind(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Username, hash, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger(r.Context()).Info("user created", zap.String("new_user", req.Username), zap.String("role", req.Role))
	jsonResponse(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	user, err := h.liveUser(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	var req updateUserRequest
	if !bind(w, r, &req) {
		return
	}

	user, err := h.liveUser(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user.Role == model.RoleAdmin && req.Role != model.RoleAdmin {
		if err := h.keepAnAdmin(r); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := store.UpdateUser(r.Context(), h.DB, id, req.Role); err != nil {
		writeError(w, r, err)
		return
	}
	user.Role = req.Role

	logger(r.Context()).Info("user role updated", zap.String("target_user", user.Username), zap.String("new_role", req.Role))
	jsonResponse(w, http.StatusOK, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	var req resetPasswordRequest
	if !bind(w, r, &req) {
		return
	}

	user, err := h.liveUser(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, id, hash); err != nil {
		writeError(w, r, err)
		return
	}

	logger(r.Context()).Info("user password reset", zap.String("target_user", user.Username))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID == id {
		writeError(w, r, fmt.Errorf("%w: cannot delete yourself", model.ErrConflict))
		return
	}

	user, err := h.liveUser(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user.Role == model.RoleAdmin {
		if err := h.keepAnAdmin(r); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}

	logger(r.Context()).Info("user deleted", zap.String("deleted_user", user.Username))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *UsersHandler) liveUser(r *http.Request, id int64) (*model.User, error) {
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, fmt.Errorf("%w: user %d", model.ErrNotFound, id)
	}
	return user, nil
}

// keepAnAdmin fails when removing one admin would leave none.
func (h *UsersHandler) keepAnAdmin(r *http.Request) error {
	n, err := store.CountAdmins(r.Context(), h.DB)
	if err != nil {
		return err
	}
	if n <= 1 {
		return fmt.Errorf("%w: the last admin cannot be removed", model.ErrConflict)
	}
	return nil
}
