package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/types"
	"go.uber.org/zap"
)

type contextKey string

const userKey contextKey = "user"

func WithUser(ctx context.Context, u database.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func CurrentUser(ctx context.Context) (database.User, bool) {
	u, ok := ctx.Value(userKey).(database.User)
	return u, ok
}

func (a *App) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				a.log.Error("panic", zap.Error(panicError), zap.String("path", r.URL.Path))
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				a.writeJson(w, errResp.StatusCode, errResp)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (a *App) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		a.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", m.Code),
			zap.Duration("latency", m.Duration),
			zap.Int64("bytes", m.Written),
		)
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(tokenCookieKey); err == nil {
		return c.Value
	}

	return ""
}

// authMiddleware resolves the caller from the bearer token or session cookie,
// refuses disabled accounts and records app activity.
func (a *App) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			errResp := NewUnauthorizedError()
			a.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		c, err := a.parseToken(token)
		if err != nil {
			a.log.Debug("rejected token", zap.Error(err))
			errResp := NewUnauthorizedError()
			a.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		user, err := a.repo.GetUserById(r.Context(), c.UserId)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				errResp := NewUnauthorizedError()
				a.writeJson(w, errResp.StatusCode, errResp)
				return
			}
			a.writeError(w, err)
			return
		}
		if user.Disabled {
			a.writeJson(w, errAccountDisabled.StatusCode, errAccountDisabled)
			return
		}

		if err := a.appPresence.Touch(r.Context(), user.Id); err != nil {
			a.log.Warn("failed to record app presence", zap.String("user_id", user.Id), zap.Error(err))
		}

		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

func (a *App) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			a.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if user.PhoneNumber != types.AdminPhone {
			a.writeJson(w, errAdminRequired.StatusCode, errAdminRequired)
			return
		}

		next(w, r)
	}
}
