package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func Test_normalizePhone(t *testing.T) {
	tcases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "local digits", raw: "66 11 22 33", want: "+23566112233"},
		{name: "international", raw: "+235 66-11-22-33", want: "+23566112233"},
		{name: "leading zeros dropped", raw: "0066112233", want: "+23566112233"},
		{name: "admin number kept", raw: "00000000", want: types.AdminPhone},
		{name: "admin with country code", raw: "+235 0000 0000", want: types.AdminPhone},
		{name: "no digits", raw: "phone", wantErr: true},
		{name: "only zeros", raw: "000", wantErr: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizePhone(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, errInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func Test_parseRole(t *testing.T) {
	assert.Equal(t, database.RoleDoctor, parseRole("doctor"))
	assert.Equal(t, database.RolePatient, parseRole("patient"))
	assert.Equal(t, database.RolePatient, parseRole("admin"))
	assert.Equal(t, database.RolePatient, parseRole(""))
}

func Test_token(t *testing.T) {
	app := newTestApp(t, new(database.MockRepository))

	t.Run("round trip", func(t *testing.T) {
		app.now = func() time.Time { return time.Now().UTC() }
		token, err := app.createToken(doctor)
		require.NoError(t, err)

		c, err := app.parseToken(token)
		require.NoError(t, err)
		assert.Equal(t, doctor.Id, c.UserId)
		assert.Equal(t, "doctor", c.Role)
	})

	t.Run("expired", func(t *testing.T) {
		app.now = func() time.Time { return time.Now().UTC().Add(-2 * tokenTTL) }
		token, err := app.createToken(doctor)
		require.NoError(t, err)

		_, err = app.parseToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := newTestApp(t, new(database.MockRepository))
		other.signingKey = []byte("another-key")
		other.now = func() time.Time { return time.Now().UTC() }
		token, err := other.createToken(doctor)
		require.NoError(t, err)

		_, err = app.parseToken(token)
		assert.Error(t, err)
	})

	t.Run("unsigned token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims{UserId: doctor.Id}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = app.parseToken(token)
		assert.Error(t, err)
	})
}

func Test_signup(t *testing.T) {
	tcases := []struct {
		name   string
		body   SignupRequest
		status int
		code   string
	}{
		{name: "invalid phone", body: SignupRequest{Name: "Amina", PhoneNumber: "abc", Password: "secret1"}, status: http.StatusBadRequest, code: "invalid-phone-number"},
		{name: "short name", body: SignupRequest{Name: " Am ", PhoneNumber: "66112233", Password: "secret1"}, status: http.StatusBadRequest, code: "invalid-name"},
		{name: "weak password", body: SignupRequest{Name: "Amina", PhoneNumber: "66112233", Password: "12345"}, status: http.StatusBadRequest, code: "weak-password"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(database.MockRepository)
			rr := httptest.NewRecorder()
			newTestApp(t, repo).signup(rr, newRequest(t, http.MethodPost, "/api/auth/signup", tc.body, database.User{}))

			assertApiError(t, rr, tc.status, tc.code)
			repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
		})
	}

	t.Run("creates a patient by default", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetUserByPhone", mock.Anything, "+23566112233").Return(database.User{}, database.ErrNotFound).Once()
		repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(p database.CreateUserParams) bool {
			return p.Id != "" && p.Name == "Amina" && p.PhoneNumber == "+23566112233" &&
				p.Role == database.RolePatient && verifyPassword(p.PasswordHash, "secret1") && p.CreatedAt.Equal(testNow)
		})).Return(patient, nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).signup(rr, newRequest(t, http.MethodPost, "/api/auth/signup", SignupRequest{
			Name:        " Amina ",
			PhoneNumber: "66 11 22 33",
			Password:    "secret1",
			Role:        "admin",
		}, database.User{}))

		assert.Equal(t, http.StatusCreated, rr.Code)
		var resp AuthResponse
		decodeResponse(t, rr, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, patient.Id, resp.User.Id)
		cookie := findCookie(rr, tokenCookieKey)
		require.NotNil(t, cookie)
		assert.Equal(t, resp.Token, cookie.Value)
		assert.True(t, cookie.HttpOnly)
		repo.AssertExpectations(t)
	})

	t.Run("phone in use", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetUserByPhone", mock.Anything, "+23566112233").Return(patient, nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).signup(rr, newRequest(t, http.MethodPost, "/api/auth/signup", SignupRequest{
			Name: "Amina", PhoneNumber: "66112233", Password: "secret1",
		}, database.User{}))

		assertApiError(t, rr, http.StatusConflict, "phone-already-in-use")
	})

	t.Run("lost insert race", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetUserByPhone", mock.Anything, mock.Anything).Return(database.User{}, database.ErrNotFound).Once()
		repo.On("CreateUser", mock.Anything, mock.Anything).Return(database.User{}, database.ErrDuplicate).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).signup(rr, newRequest(t, http.MethodPost, "/api/auth/signup", SignupRequest{
			Name: "Amina", PhoneNumber: "66112233", Password: "secret1",
		}, database.User{}))

		assertApiError(t, rr, http.StatusConflict, "phone-already-in-use")
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader("{"))
		rr := httptest.NewRecorder()
		newTestApp(t, new(database.MockRepository)).signup(rr, req)

		assertApiError(t, rr, http.StatusBadRequest, "invalid-request")
	})
}

func Test_signin(t *testing.T) {
	hash, err := hashPassword("secret1")
	require.NoError(t, err)
	stored := patient
	stored.PasswordHash = hash

	disabled := stored
	disabled.Disabled = true

	tcases := []struct {
		name     string
		password string
		user     database.User
		lookup   error
		status   int
		code     string
	}{
		{name: "success", password: "secret1", user: stored, status: http.StatusOK},
		{name: "wrong password", password: "nope", user: stored, status: http.StatusUnauthorized, code: "invalid-credential"},
		{name: "unknown phone", password: "secret1", lookup: database.ErrNotFound, status: http.StatusUnauthorized, code: "invalid-credential"},
		{name: "disabled", password: "secret1", user: disabled, status: http.StatusForbidden, code: "account-disabled"},
		{name: "store failure", password: "secret1", lookup: errors.New("db down"), status: http.StatusInternalServerError, code: "internal-error"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(database.MockRepository)
			repo.On("GetUserByPhone", mock.Anything, patient.PhoneNumber).Return(tc.user, tc.lookup).Once()

			rr := httptest.NewRecorder()
			newTestApp(t, repo).signin(rr, newRequest(t, http.MethodPost, "/api/auth/signin", SigninRequest{
				PhoneNumber: "+235 66 11 22 33",
				Password:    tc.password,
			}, database.User{}))

			if tc.code != "" {
				assertApiError(t, rr, tc.status, tc.code)
				assert.Nil(t, findCookie(rr, tokenCookieKey))
				return
			}

			assert.Equal(t, tc.status, rr.Code)
			var resp AuthResponse
			decodeResponse(t, rr, &resp)
			assert.Equal(t, patient.Id, resp.User.Id)
			assert.NotNil(t, findCookie(rr, tokenCookieKey))
			repo.AssertExpectations(t)
		})
	}
}

func Test_me(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestApp(t, new(database.MockRepository)).me(rr, newRequest(t, http.MethodGet, "/api/auth/me", nil, admin))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		User types.User `json:"user"`
	}
	decodeResponse(t, rr, &resp)
	assert.Equal(t, admin.Id, resp.User.Id)
	assert.True(t, resp.User.IsAdmin)
}

func Test_logout(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestApp(t, new(database.MockRepository)).logout(rr, newRequest(t, http.MethodPost, "/api/auth/logout", nil, patient))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookie := findCookie(rr, tokenCookieKey)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()))
}

func Test_changePassword(t *testing.T) {
	hash, err := hashPassword("current-pass")
	require.NoError(t, err)
	user := patient
	user.PasswordHash = hash

	t.Run("weak", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newTestApp(t, new(database.MockRepository)).changePassword(rr, newRequest(t, http.MethodPost, "/", ChangePasswordRequest{
			CurrentPassword: "current-pass",
			NewPassword:     "short",
		}, user))

		assertApiError(t, rr, http.StatusBadRequest, "weak-password")
	})

	t.Run("wrong current", func(t *testing.T) {
		repo := new(database.MockRepository)
		rr := httptest.NewRecorder()
		newTestApp(t, repo).changePassword(rr, newRequest(t, http.MethodPost, "/", ChangePasswordRequest{
			CurrentPassword: "guess",
			NewPassword:     "long-enough",
		}, user))

		assertApiError(t, rr, http.StatusBadRequest, "wrong-password")
		repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("success", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("UpdatePassword", mock.Anything, user.Id, mock.MatchedBy(func(h string) bool {
			return verifyPassword(h, "long-enough")
		})).Return(nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).changePassword(rr, newRequest(t, http.MethodPost, "/", ChangePasswordRequest{
			CurrentPassword: "current-pass",
			NewPassword:     "long-enough",
		}, user))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		repo.AssertExpectations(t)
	})
}

func TestEnsureAdminAccount(t *testing.T) {
	t.Run("creates the account", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetUserByPhone", mock.Anything, types.AdminPhone).Return(database.User{}, database.ErrNotFound).Twice()
		repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(p database.CreateUserParams) bool {
			return p.Id == adminId && p.Name == adminName && p.Role == database.RolePatient &&
				verifyPassword(p.PasswordHash, "0412")
		})).Return(admin, nil).Once()

		err := newTestApp(t, repo).EnsureAdminAccount(t.Context())

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("restores name and re-enables", func(t *testing.T) {
		existing := admin
		existing.Name = "Renamed"
		existing.Disabled = true

		repo := new(database.MockRepository)
		repo.On("GetUserByPhone", mock.Anything, types.AdminPhone).Return(existing, nil).Once()
		repo.On("RenameUser", mock.Anything, admin.Id, adminName).Return(nil).Once()
		repo.On("SetUserDisabled", mock.Anything, admin.Id, false, testNow).Return(admin, nil).Once()

		err := newTestApp(t, repo).EnsureAdminAccount(t.Context())

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("enabled admin is only renamed", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetUserByPhone", mock.Anything, types.AdminPhone).Return(admin, nil).Once()
		repo.On("RenameUser", mock.Anything, admin.Id, adminName).Return(nil).Once()

		require.NoError(t, newTestApp(t, repo).EnsureAdminAccount(t.Context()))
		repo.AssertNotCalled(t, "SetUserDisabled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lookup failure", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetUserByPhone", mock.Anything, types.AdminPhone).Return(database.User{}, errors.New("db down")).Once()

		err := newTestApp(t, repo).EnsureAdminAccount(t.Context())
		assert.ErrorContains(t, err, "lookup admin")
	})
}
