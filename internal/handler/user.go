package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mreed/campuslink/internal/model"
	"github.com/mreed/campuslink/internal/session"
	"github.com/mreed/campuslink/internal/store"
)

// UserHandler serves the profile routes. They sit behind the access
// gate and consume the identity it forwards; profile semantics are
// otherwise outside the auth core.
type UserHandler struct {
	users   *store.UserStore
	manager *session.Manager
	logger  *slog.Logger
}

func NewUserHandler(us *store.UserStore, m *session.Manager, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: us, manager: m, logger: logger}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeInternalError(w)
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid user id")
		return
	}

	user, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeInternalError(w)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NotFound", "User not found!")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	Street       string   `json:"street"`
	Semester     int      `json:"semester"`
	StudentType  string   `json:"student_type"`
	ClassSection string   `json:"class_section"`
	Skills       []string `json:"skills"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid user id")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}

	var errs []FieldError
	if strings.TrimSpace(req.Name) == "" {
		errs = append(errs, FieldError{"name", "Name is required"})
	}
	if !validEmail(req.Email) {
		errs = append(errs, FieldError{"email", "Please enter a valid email address"})
	}
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	existing, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeInternalError(w)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "NotFound", "User not found!")
		return
	}

	updated, err := h.users.Update(id, &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        strings.TrimSpace(req.Phone),
		Street:       strings.TrimSpace(req.Street),
		Semester:     req.Semester,
		StudentType:  req.StudentType,
		ClassSection: strings.TrimSpace(req.ClassSection),
		Skills:       req.Skills,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "AuthError", "User with that email already exists.")
			return
		}
		h.logger.Error("update user", "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a user and revokes their session. Reached only through
// the admin path prefix, so the gate has already checked the role.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid user id")
		return
	}

	user, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeInternalError(w)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NotFound", "User not found!")
		return
	}

	if err := h.manager.Revoke(id); err != nil {
		h.logger.Error("revoke session", "error", err)
		writeInternalError(w)
		return
	}
	if err := h.users.Delete(id); err != nil {
		h.logger.Error("delete user", "error", err)
		writeInternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
