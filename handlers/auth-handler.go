package handlers

import (
	"net/http"
	"time"

	"user-service/config"
	"user-service/middleware"
	"user-service/models"
	"user-service/store"
	"user-service/utils"
)

var (
	newTokenID    = utils.NewTokenID
	generateToken = utils.GenerateToken
)

const tokenTypeBearer = "Bearer"

type AuthHandler struct {
	cfg        config.Config
	users      UserService
	tokenStore store.TokenStore
}

func NewAuthHandler(cfg config.Config, users UserService, tokenStore store.TokenStore) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, tokenStore: tokenStore}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string      `json:"accessToken"`
	TokenType   string      `json:"tokenType"`
	ExpiresIn   int64       `json:"expiresIn"`
	User        models.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) error {
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
	writeJSON(w, http.StatusOK, models.Success("User registered successfully", user))
	return nil
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		return mapServiceError(err)
	}

	token, err := h.issueToken(r, user)
	if err != nil {
		return middleware.NewAppError(http.StatusInternalServerError, "Internal server error", err)
	}
	setCookie(w, h.cfg, h.cfg.Auth.AccessCookieName, token, h.cfg.Auth.AccessTokenTTL)

	writeJSON(w, http.StatusOK, models.Success("Login successful", loginResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(h.cfg.Auth.AccessTokenTTL.Seconds()),
		User:        user,
	}))
	return nil
}

// Logout revokes the presented token, if any, and clears the cookie. It
// succeeds even without a valid token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	if token := middleware.TokenFromRequest(r, h.cfg.Auth.AccessCookieName); token != "" {
		if claims, err := utils.ParseToken(token, h.cfg.Auth.AccessTokenSecret, h.cfg.Auth.Issuer); err == nil {
			if err := h.tokenStore.Revoke(r.Context(), claims.ID); err != nil {
				return middleware.NewAppError(http.StatusInternalServerError, "Internal server error", err)
			}
		}
	}

	clearCookie(w, h.cfg, h.cfg.Auth.AccessCookieName)
	writeJSON(w, http.StatusOK, models.SuccessMessage("Logged out successfully"))
	return nil
}

// Me returns the user the access token was issued to. It runs behind
// middleware.AuthMiddleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) error {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return middleware.NewAppError(http.StatusUnauthorized, "No token provided", nil).WithCode(models.ErrCodeUnauthorized)
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		return mapServiceError(err)
	}
	writeJSON(w, http.StatusOK, models.SuccessData(user))
	return nil
}

func (h *AuthHandler) issueToken(r *http.Request, user models.User) (string, error) {
	tokenID, err := newTokenID()
	if err != nil {
		return "", err
	}

	claims := utils.Claims{UserID: user.ID, Username: user.Username}
	claims.ID = tokenID
	token, err := generateToken(claims, h.cfg.Auth.AccessTokenTTL, h.cfg.Auth.Issuer, h.cfg.Auth.AccessTokenSecret)
	if err != nil {
		return "", err
	}

	if err := h.tokenStore.Save(r.Context(), tokenID, user.ID, h.cfg.Auth.AccessTokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

func setCookie(w http.ResponseWriter, cfg config.Config, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cfg.Cookie.Path,
		Domain:   cfg.Cookie.Domain,
		HttpOnly: true,
		Secure:   cfg.Cookie.Secure,
		SameSite: cfg.Cookie.SameSite,
		MaxAge:   int(ttl.Seconds()),
	})
}

func clearCookie(w http.ResponseWriter, cfg config.Config, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     cfg.Cookie.Path,
		Domain:   cfg.Cookie.Domain,
		HttpOnly: true,
		Secure:   cfg.Cookie.Secure,
		SameSite: cfg.Cookie.SameSite,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
