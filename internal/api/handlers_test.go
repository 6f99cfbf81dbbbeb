package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{name: "successful health check"},
		{name: "failed health check", mockErr: errors.New("db error")},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(database.MockRepository)
			repo.On("Ping", mock.Anything).Return(tc.mockErr).Once()

			rr := httptest.NewRecorder()
			newTestApp(t, repo).healthCheck(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if tc.mockErr != nil {
				assertApiError(t, rr, http.StatusServiceUnavailable, "database-unavailable")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
			}
			repo.AssertExpectations(t)
		})
	}
}

func Test_fromError(t *testing.T) {
	tcases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "api error passes through", err: errPhoneInUse, status: http.StatusConflict, code: "phone-already-in-use"},
		{name: "validation", err: apperr.Validation("bad", "bad"), status: http.StatusBadRequest, code: "bad"},
		{name: "authorization", err: apperr.Authorization("forbidden", "no"), status: http.StatusForbidden, code: "forbidden"},
		{name: "conflict", err: apperr.Conflict("taken", "taken"), status: http.StatusConflict, code: "taken"},
		{name: "not found", err: apperr.NotFound("room-not-found", "gone"), status: http.StatusNotFound, code: "room-not-found"},
		{name: "unavailable", err: apperr.Unavailable("down", "down", nil), status: http.StatusServiceUnavailable, code: "down"},
		{name: "wrapped", err: fmt.Errorf("load: %w", apperr.NotFound("x", "x")), status: http.StatusNotFound, code: "x"},
		{name: "store not found", err: database.ErrNotFound, status: http.StatusNotFound, code: "not-found"},
		{name: "anything else", err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal-error"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			got := fromError(tc.err)
			assert.Equal(t, tc.status, got.StatusCode)
			assert.Equal(t, tc.code, got.Code)
		})
	}
}

func Test_listDoctors(t *testing.T) {
	repo := new(database.MockRepository)
	repo.On("ListDoctors", mock.Anything).Return([]database.User{doctor, doctor2}, nil).Once()

	rr := httptest.NewRecorder()
	newTestApp(t, repo).listDoctors(rr, newRequest(t, http.MethodGet, "/api/doctors", nil, patient))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Doctors []types.User `json:"doctors"`
	}
	decodeResponse(t, rr, &resp)
	assert.Len(t, resp.Doctors, 2)
	assert.Equal(t, "Pediatrics", resp.Doctors[0].Specialty)
}

func Test_updateDoctorProfile(t *testing.T) {
	tcases := []struct {
		name   string
		user   database.User
		body   DoctorProfileRequest
		status int
		code   string
	}{
		{name: "patient", user: patient, body: DoctorProfileRequest{Specialty: "x", HospitalName: "y"}, status: http.StatusForbidden, code: "forbidden"},
		{name: "missing fields", user: doctor, body: DoctorProfileRequest{Specialty: " "}, status: http.StatusBadRequest, code: "doctor-profile-required-fields"},
		{name: "negative years", user: doctor, body: DoctorProfileRequest{Specialty: "x", HospitalName: "y", StudyYears: -1}, status: http.StatusBadRequest, code: "doctor-profile-invalid-years"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(database.MockRepository)
			rr := httptest.NewRecorder()
			newTestApp(t, repo).updateDoctorProfile(rr, newRequest(t, http.MethodPut, "/", tc.body, tc.user))

			assertApiError(t, rr, tc.status, tc.code)
			repo.AssertNotCalled(t, "UpdateDoctorProfile", mock.Anything, mock.Anything)
		})
	}

	t.Run("floors years", func(t *testing.T) {
		updated := doctor
		updated.HospitalName = "Hopital de la Mere et de l'Enfant"
		updated.ExperienceYears = 7

		repo := new(database.MockRepository)
		repo.On("UpdateDoctorProfile", mock.Anything, database.UpdateDoctorProfileParams{
			UserId:          doctor.Id,
			Specialty:       "Pediatrics",
			HospitalName:    "Hopital de la Mere et de l'Enfant",
			ExperienceYears: 7,
			StudyYears:      9,
		}).Return(updated, nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).updateDoctorProfile(rr, newRequest(t, http.MethodPut, "/", DoctorProfileRequest{
			Specialty:       " Pediatrics ",
			HospitalName:    "Hopital de la Mere et de l'Enfant",
			ExperienceYears: 7.9,
			StudyYears:      9.2,
		}, doctor))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			User types.User `json:"user"`
		}
		decodeResponse(t, rr, &resp)
		assert.Equal(t, 7, resp.User.ExperienceYears)
		repo.AssertExpectations(t)
	})
}

func Test_blogs(t *testing.T) {
	longContent := strings.Repeat("Drink clean water and wash your hands. ", 3)

	t.Run("list", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("ListBlogs", mock.Anything).Return([]database.Blog{{Id: "b-1", Title: "Malaria", AuthorId: doctor.Id}}, nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).listBlogs(rr, newRequest(t, http.MethodGet, "/api/blogs", nil, patient))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Blogs []types.Blog `json:"blogs"`
		}
		decodeResponse(t, rr, &resp)
		assert.Len(t, resp.Blogs, 1)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("ListBlogs", mock.Anything).Return([]database.Blog(nil), nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).listBlogs(rr, newRequest(t, http.MethodGet, "/api/blogs", nil, patient))

		assert.JSONEq(t, `{"blogs":[]}`, rr.Body.String())
	})

	tcases := []struct {
		name   string
		user   database.User
		body   CreateBlogRequest
		status int
		code   string
	}{
		{name: "patient", user: patient, body: CreateBlogRequest{Title: "t", Content: longContent, Category: "c"}, status: http.StatusForbidden, code: "forbidden"},
		{name: "missing category", user: doctor, body: CreateBlogRequest{Title: "t", Content: longContent}, status: http.StatusBadRequest, code: "blog-required-fields"},
		{name: "short content", user: doctor, body: CreateBlogRequest{Title: "t", Content: "too short", Category: "c"}, status: http.StatusBadRequest, code: "blog-content-too-short"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(database.MockRepository)
			rr := httptest.NewRecorder()
			newTestApp(t, repo).createBlog(rr, newRequest(t, http.MethodPost, "/api/blogs", tc.body, tc.user))

			assertApiError(t, rr, tc.status, tc.code)
			repo.AssertNotCalled(t, "CreateBlog", mock.Anything, mock.Anything)
		})
	}

	t.Run("publish", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("CreateBlog", mock.Anything, mock.MatchedBy(func(b database.Blog) bool {
			return b.Id != "" && b.Title == "Malaria season" && b.AuthorId == doctor.Id &&
				b.AuthorName == doctor.Name && b.PublishedAt.Equal(testNow)
		})).Return(nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).createBlog(rr, newRequest(t, http.MethodPost, "/api/blogs", CreateBlogRequest{
			Title:    " Malaria season ",
			Content:  longContent,
			Category: "prevention",
		}, doctor))

		assert.Equal(t, http.StatusCreated, rr.Code)
		var resp struct {
			Blog types.Blog `json:"blog"`
		}
		decodeResponse(t, rr, &resp)
		assert.Equal(t, "Malaria season", resp.Blog.Title)
		repo.AssertExpectations(t)
	})
}
