package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// CookieName is the session cookie carrying the signed user id.
const CookieName = "user_id"

const sessionTTL = 7 * 24 * time.Hour

var (
	ErrNoSession        = errors.New("no session cookie")
	ErrInvalidFormat    = errors.New("invalid cookie format")
	ErrInvalidSignature = errors.New("invalid signature")
)

var (
	secretMu  sync.RWMutex
	secretKey = []byte("offchat-development-cookie-secret")
)

// SetSecret replaces the HMAC key. Cookies signed with the old key stop
// verifying.
func SetSecret(secret string) {
	if secret == "" {
		return
	}
	secretMu.Lock()
	secretKey = []byte(secret)
	secretMu.Unlock()
}

func sign(value string) []byte {
	secretMu.RLock()
	mac := hmac.New(sha256.New, secretKey)
	secretMu.RUnlock()
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

// SignCookie creates a signed cookie value in the format "value|signature"
func SignCookie(value string) string {
	return fmt.Sprintf("%s|%s",
		base64.URLEncoding.EncodeToString([]byte(value)),
		base64.URLEncoding.EncodeToString(sign(value)))
}

// VerifyCookie verifies the signed cookie and returns the original value
func VerifyCookie(signedValue string) (string, error) {
	encoded, sig, ok := strings.Cut(signedValue, "|")
	if !ok {
		return "", ErrInvalidFormat
	}

	valueBytes, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidFormat
	}
	signature, err := base64.URLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidFormat
	}

	value := string(valueBytes)
	if !hmac.Equal(signature, sign(value)) {
		return "", ErrInvalidSignature
	}
	if value == "" {
		return "", ErrInvalidFormat
	}
	return value, nil
}

// SessionCookie is set on login.
func SessionCookie(userID string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    SignCookie(userID),
		Path:     "/",
		Expires:  time.Now().Add(sessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// UserID returns the verified user id of the request's session cookie.
func UserID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", ErrNoSession
	}
	return VerifyCookie(cookie.Value)
}
