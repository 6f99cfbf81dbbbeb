package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenCookieKey = "token"
	tokenTTL       = 30 * 24 * time.Hour

	adminId    = "admin-root"
	adminName  = "General Admin"
	adminLocal = "00000000"
)

var errInvalidPhone = NewBadRequestError("invalid-phone-number", "invalid phone number")

type claims struct {
	UserId string `json:"uid"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

type SignupRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

type SigninRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// normalizePhone renders a Chadian number as +235 followed by its local
// digits. Leading zeros are dropped except for the reserved admin number.
func normalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := strings.TrimPrefix(b.String(), "235")
	if digits != adminLocal {
		digits = strings.TrimLeft(digits, "0")
	}
	if digits == "" {
		return "", errInvalidPhone
	}

	return "+235" + digits, nil
}

func parseRole(raw string) database.Role {
	if raw == string(database.RoleDoctor) {
		return database.RoleDoctor
	}

	return database.RolePatient
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}

func (a *App) createToken(u database.User) (string, error) {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserId: u.Id,
		Role:   string(u.Role),
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(tokenTTL).Unix(),
		},
	})

	return token.SignedString(a.signingKey)
}

func (a *App) parseToken(tokenString string) (claims, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return claims{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || c.UserId == "" {
		return claims{}, fmt.Errorf("invalid token")
	}

	return c, nil
}

func (a *App) writeSession(w http.ResponseWriter, status int, u database.User) {
	token, err := a.createToken(u)
	if err != nil {
		a.writeError(w, err)
		return
	}

	http.SetCookie(w, createJwtCookie(token, a.now().Add(tokenTTL)))
	a.writeJson(w, status, AuthResponse{Token: token, User: types.NewUser(u)})
}

func createJwtCookie(tokenString string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (a *App) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	phone, err := normalizePhone(req.PhoneNumber)
	if err != nil {
		a.writeError(w, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if utf8.RuneCountInString(name) < 3 {
		a.writeError(w, NewBadRequestError("invalid-name", "name must be at least 3 characters"))
		return
	}
	if utf8.RuneCountInString(req.Password) < 6 {
		a.writeError(w, NewBadRequestError("weak-password", "password must be at least 6 characters"))
		return
	}

	user, err := a.createUser(r.Context(), database.CreateUserParams{
		Name:        name,
		PhoneNumber: phone,
		Role:        parseRole(req.Role),
	}, req.Password)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.log.Info("account created", zap.String("user_id", user.Id), zap.String("role", string(user.Role)))
	a.writeSession(w, http.StatusCreated, user)
}

// createUser hashes password and inserts the account, reporting a taken
// phone number as a conflict.
func (a *App) createUser(ctx context.Context, params database.CreateUserParams, password string) (database.User, error) {
	_, err := a.repo.GetUserByPhone(ctx, params.PhoneNumber)
	switch {
	case err == nil:
		return database.User{}, errPhoneInUse
	case !errors.Is(err, database.ErrNotFound):
		return database.User{}, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return database.User{}, err
	}

	if params.Id == "" {
		params.Id = uuid.NewString()
	}
	params.PasswordHash = hash
	params.CreatedAt = a.now()

	user, err := a.repo.CreateUser(ctx, params)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return database.User{}, errPhoneInUse
		}
		return database.User{}, err
	}

	return user, nil
}

func (a *App) signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	phone, err := normalizePhone(req.PhoneNumber)
	if err != nil {
		a.writeError(w, err)
		return
	}

	user, err := a.repo.GetUserByPhone(r.Context(), phone)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			a.writeError(w, errInvalidCredential)
			return
		}
		a.writeError(w, err)
		return
	}
	if user.Disabled {
		a.writeError(w, errAccountDisabled)
		return
	}
	if !verifyPassword(user.PasswordHash, req.Password) {
		a.writeError(w, errInvalidCredential)
		return
	}

	a.writeSession(w, http.StatusOK, user)
}

func (a *App) me(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	a.writeJson(w, http.StatusOK, map[string]any{"user": types.NewUser(user)})
}

func (a *App) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", time.Unix(0, 0)))
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) changePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())

	var req ChangePasswordRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	if utf8.RuneCountInString(req.NewPassword) < 8 {
		a.writeError(w, NewBadRequestError("weak-password", "new password must be at least 8 characters"))
		return
	}
	if !verifyPassword(user.PasswordHash, req.CurrentPassword) {
		a.writeError(w, NewBadRequestError("wrong-password", "current password is incorrect"))
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.repo.UpdatePassword(r.Context(), user.Id, hash); err != nil {
		a.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EnsureAdminAccount creates the built-in admin account, or restores its name
// and re-enables it when it already exists.
func (a *App) EnsureAdminAccount(ctx context.Context) error {
	existing, err := a.repo.GetUserByPhone(ctx, types.AdminPhone)
	switch {
	case err == nil:
		if err := a.repo.RenameUser(ctx, existing.Id, adminName); err != nil {
			return fmt.Errorf("rename admin: %w", err)
		}
		if existing.Disabled {
			if _, err := a.repo.SetUserDisabled(ctx, existing.Id, false, a.now()); err != nil {
				return fmt.Errorf("enable admin: %w", err)
			}
		}
		return nil
	case !errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("lookup admin: %w", err)
	}

	_, err = a.createUser(ctx, database.CreateUserParams{
		Id:          adminId,
		Name:        adminName,
		PhoneNumber: types.AdminPhone,
		Role:        database.RolePatient,
	}, a.adminPassword)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	a.log.Info("admin account created", zap.String("user_id", adminId))
	return nil
}
