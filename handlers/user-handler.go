package handlers

import (
	"net/http"

	"user-service/models"
)

type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

// createUserRequest is the body of user creation and registration; all
// three fields are mandatory there.
type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72,maxbytes=72"`
}

func (req createUserRequest) toDTO() models.UserDTO {
	return models.UserDTO{Username: &req.Username, Email: &req.Email, Password: &req.Password}
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) error {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	user, err := h.users.Create(r.Context(), req.toDTO())
	if err != nil {
		return mapServiceError(err)
	}
	writeJSON(w, http.StatusCreated, models.Success("User created successfully", user))
	return nil
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) error {
	id, err := parseID(r)
	if err != nil {
		return err
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	writeJSON(w, http.StatusOK, models.SuccessData(user))
	return nil
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) error {
	users, err := h.users.List(r.Context())
	if err != nil {
		return mapServiceError(err)
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, models.SuccessData(users))
	return nil
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) error {
	id, err := parseID(r)
	if err != nil {
		return err
	}

	var dto models.UserDTO
	if err := decodeJSON(w, r, &dto); err != nil {
		return err
	}
	if err := validateRequest(dto); err != nil {
		return err
	}

	user, err := h.users.Update(r.Context(), id, dto)
	if err != nil {
		return mapServiceError(err)
	}
	writeJSON(w, http.StatusOK, models.Success("User updated successfully", user))
	return nil
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) error {
	id, err := parseID(r)
	if err != nil {
		return err
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		return mapServiceError(err)
	}
	writeJSON(w, http.StatusOK, models.SuccessMessage("User deleted successfully"))
	return nil
}
