package api

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/policy"
	"github.com/sihhaapp/sihha/internal/types"
	"go.uber.org/zap"
)

const (
	maxJsonBody       = 1 << 20
	minBlogContentLen = 80
)

type DoctorProfileRequest struct {
	Specialty       string  `json:"specialty"`
	HospitalName    string  `json:"hospitalName"`
	ExperienceYears float64 `json:"experienceYears"`
	StudyYears      float64 `json:"studyYears"`
}

type CreateBlogRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (a *App) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("json encode", zap.Error(err))
	}
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	errResp := fromError(err)
	if errResp.StatusCode >= http.StatusInternalServerError {
		a.log.Error("request failed", zap.Int("status", errResp.StatusCode), zap.Error(err))
	}

	a.writeJson(w, errResp.StatusCode, errResp)
}

// decodeJson reads a JSON body into v. An empty body leaves v untouched.
func (a *App) decodeJson(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxJsonBody)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		a.writeError(w, NewInvalidBodyError())
		return false
	}

	return true
}

// caller returns the authenticated user. Routes behind authMiddleware always
// carry one.
func caller(r *http.Request) database.User {
	u, _ := CurrentUser(r.Context())
	return u
}

func (a *App) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := a.repo.Ping(r.Context()); err != nil {
		a.log.Error("health check failed", zap.Error(err))
		a.writeError(w, apperr.Unavailable("database-unavailable", "database is unreachable", err))
		return
	}

	a.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := a.repo.ListDoctors(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"doctors": types.NewUsers(doctors)})
}

func (a *App) updateDoctorProfile(w http.ResponseWriter, r *http.Request) {
	user := caller(r)
	if err := policy.Check(policy.ProfileDoctor, user.Role); err != nil {
		a.writeError(w, err)
		return
	}

	var req DoctorProfileRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	specialty := strings.TrimSpace(req.Specialty)
	hospital := strings.TrimSpace(req.HospitalName)
	if specialty == "" || hospital == "" {
		a.writeError(w, NewBadRequestError("doctor-profile-required-fields", "specialty and hospital name are required"))
		return
	}
	if req.ExperienceYears < 0 || req.StudyYears < 0 {
		a.writeError(w, NewBadRequestError("doctor-profile-invalid-years", "years must be zero or positive"))
		return
	}

	updated, err := a.repo.UpdateDoctorProfile(r.Context(), database.UpdateDoctorProfileParams{
		UserId:          user.Id,
		Specialty:       specialty,
		HospitalName:    hospital,
		ExperienceYears: int(math.Floor(req.ExperienceYears)),
		StudyYears:      int(math.Floor(req.StudyYears)),
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"user": types.NewUser(updated)})
}

func (a *App) listBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := a.repo.ListBlogs(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]types.Blog, 0, len(blogs))
	for _, b := range blogs {
		out = append(out, types.NewBlog(b))
	}

	a.writeJson(w, http.StatusOK, map[string]any{"blogs": out})
}

func (a *App) createBlog(w http.ResponseWriter, r *http.Request) {
	user := caller(r)
	if err := policy.Check(policy.BlogPublish, user.Role); err != nil {
		a.writeError(w, err)
		return
	}

	var req CreateBlogRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	category := strings.TrimSpace(req.Category)
	if title == "" || content == "" || category == "" {
		a.writeError(w, NewBadRequestError("blog-required-fields", "title, content and category are required"))
		return
	}
	if utf8.RuneCountInString(content) < minBlogContentLen {
		a.writeError(w, NewBadRequestError("blog-content-too-short", "blog content must be at least 80 characters"))
		return
	}

	now := a.now()
	blog := database.Blog{
		Id:          uuid.NewString(),
		Title:       title,
		Content:     content,
		Category:    category,
		AuthorId:    user.Id,
		AuthorName:  user.Name,
		PublishedAt: now,
		UpdatedAt:   now,
	}
	if err := a.repo.CreateBlog(r.Context(), blog); err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusCreated, map[string]any{"blog": types.NewBlog(blog)})
}
