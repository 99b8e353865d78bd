package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pliu/offchat/internal/auth"
	"github.com/pliu/offchat/internal/middleware"
	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthHandler struct {
	Store  store.Store
	Logger zerolog.Logger
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	type SignupRequest struct {
		Username      string `json:"username"`
		Password      string `json:"password"`
		WalletAddress string `json:"walletAddress"`
		Avatar        string `json:"avatar"`
	}

	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 6 {
		http.Error(w, "Username and a password of at least 6 characters are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Username:      req.Username,
		Password:      string(hashedPassword),
		WalletAddress: req.WalletAddress,
		Avatar:        req.Avatar,
	}

	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			http.Error(w, "Username already exists", http.StatusConflict)
			return
		}
		storeError(w, h.Logger, err, "User")
		return
	}

	h.Logger.Info().Str("user_id", user.ID).Msg("user signed up")
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if !decode(w, r, &creds) {
		return
	}

	user, err := h.Store.GetUserByUsername(r.Context(), creds.Username)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, auth.SessionCookie(user.ID))
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: auth.CookieName, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Store.GetUser(r.Context(), middleware.UserID(r))
	if err != nil {
		storeError(w, h.Logger, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusOK, []models.User{})
		return
	}

	users, err := h.Store.SearchUsers(r.Context(), query)
	if err != nil {
		storeError(w, h.Logger, err, "User")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
