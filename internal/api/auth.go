package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/anon-chat/internal/types"
	"golang.org/x/crypto/bcrypt"
)

var (
	defaultJwtExpiration = time.Hour * 12
	tokenCookieKey       = "token"
)

const (
	adminClaim = "admin"
	expClaim   = "exp"
)

type contextKey string

const adminKey contextKey = "admin"

func WithAdmin(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, adminKey, username)
}

// Admin returns the admin username stored by the auth middleware.
func Admin(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(adminKey).(string)

	return username, ok
}

func (s *AnonChatApp) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req types.AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError("Invalid request body"))
		return
	}

	if req.Username == "" || req.Password == "" {
		s.writeError(w, NewBadRequestError("Username and password are required"))
		return
	}

	if !s.verifyAdmin(req.Username, req.Password) {
		s.log.Warn().Str("username", req.Username).Msg("failed admin login")
		s.writeError(w, NewUnauthorizedError())
		return
	}

	token, err := s.createJwtForSession(req.Username, defaultJwtExpiration)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, types.Result{Success: true})
}

func (s *AnonChatApp) adminLogout(w http.ResponseWriter, _ *http.Request) {
	// overwrite the cookie with an expired one so the client drops it
	http.SetCookie(w, createJwtCookie("", -time.Hour))
	s.writeJson(w, http.StatusOK, types.Result{Success: true})
}

func (s *AnonChatApp) verifyAdmin(username, password string) bool {
	if len(s.adminPasswordHash) == 0 {
		return false
	}

	userOk := subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUsername)) == 1
	passOk := bcrypt.CompareHashAndPassword(s.adminPasswordHash, []byte(password)) == nil
	return userOk && passOk
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}

func (s *AnonChatApp) createJwtForSession(username string, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		adminClaim: username,
		expClaim:   time.Now().Add(exp).Unix(),
	})

	return token.SignedString(s.signingKey)
}

func (s *AnonChatApp) verifyToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return token, nil
}

func (s *AnonChatApp) extractAdminFromToken(tokenString string) (string, error) {
	token, err := s.verifyToken(tokenString)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	username, ok := claims[adminClaim].(string)
	if !ok || username == "" {
		return "", fmt.Errorf("invalid admin claim")
	}

	return username, nil
}
