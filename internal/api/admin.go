package api

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/presence"
	"github.com/sihhaapp/sihha/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const currentVisitorsLimit = 100

type CreateUserRequest struct {
	Name            string  `json:"name"`
	PhoneNumber     string  `json:"phoneNumber"`
	Password        string  `json:"password"`
	Role            string  `json:"role"`
	Specialty       string  `json:"specialty"`
	HospitalName    string  `json:"hospitalName"`
	ExperienceYears float64 `json:"experienceYears"`
	StudyYears      float64 `json:"studyYears"`
}

type SetStatusRequest struct {
	Disabled bool `json:"disabled"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func wholeYears(v float64) int {
	return int(math.Max(0, math.Floor(v)))
}

func (a *App) adminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.repo.ListUsersWithPresence(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"users": types.NewUsers(users)})
}

// dashboardQuery bounds the dashboard to the current UTC day, month and year.
func dashboardQuery(now time.Time) database.DashboardQuery {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return database.DashboardQuery{
		DayStart:     day,
		MonthStart:   time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
		YearStart:    time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
		OnlineSince:  now.Add(-presence.AppOnlineWindow),
		ExcludePhone: types.AdminPhone,
		Limit:        currentVisitorsLimit,
	}
}

func (a *App) adminDashboard(w http.ResponseWriter, r *http.Request) {
	q := dashboardQuery(a.now())

	var (
		summary  database.DashboardSummary
		visitors database.VisitorCounts
		doctors  []database.DoctorActivity
		current  []database.Visitor
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		summary, err = a.repo.GetDashboardSummary(ctx, q)
		return err
	})
	g.Go(func() (err error) {
		visitors, err = a.repo.GetVisitorCounts(ctx, q)
		return err
	})
	g.Go(func() (err error) {
		doctors, err = a.repo.ListDoctorActivity(ctx, q)
		return err
	})
	g.Go(func() (err error) {
		current, err = a.repo.ListCurrentVisitors(ctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, newDashboard(summary, visitors, doctors, current))
}

func newDashboard(s database.DashboardSummary, v database.VisitorCounts, doctors []database.DoctorActivity, current []database.Visitor) types.Dashboard {
	d := types.Dashboard{
		Summary: types.DashboardSummary{
			TotalUsers:         s.TotalUsers,
			DoctorsCount:       s.DoctorsCount,
			PatientsCount:      s.PatientsCount,
			DisabledUsersCount: s.DisabledUsersCount,
		},
		Visitors: types.VisitorCounts{
			Today:         v.Today,
			Month:         v.Month,
			Year:          v.Year,
			CurrentOnline: v.CurrentOnline,
		},
		Doctors:         make([]types.DoctorActivity, 0, len(doctors)),
		CurrentVisitors: make([]types.Visitor, 0, len(current)),
	}

	for _, doc := range doctors {
		d.Doctors = append(d.Doctors, types.DoctorActivity{
			Id:                 doc.DoctorId,
			Name:               doc.DoctorName,
			PhoneNumber:        doc.PhoneNumber,
			PhotoUrl:           doc.PhotoURL,
			Specialty:          doc.Specialty,
			HospitalName:       doc.HospitalName,
			IsDisabled:         doc.Disabled,
			PatientsToday:      doc.PatientsToday,
			PatientsMonth:      doc.PatientsMonth,
			PatientsYear:       doc.PatientsYear,
			ConsultationsToday: doc.ConsultationsToday,
			ConsultationsMonth: doc.ConsultationsMonth,
			ConsultationsYear:  doc.ConsultationsYear,
		})
	}
	for _, vis := range current {
		d.CurrentVisitors = append(d.CurrentVisitors, types.Visitor{
			Id:          vis.UserId,
			Name:        vis.Name,
			PhoneNumber: vis.PhoneNumber,
			Role:        string(vis.Role),
			PhotoUrl:    vis.PhotoURL,
			IsDisabled:  vis.Disabled,
			LastSeenAt:  vis.LastSeenAt,
		})
	}

	return d
}

func (a *App) adminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
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
	if utf8.RuneCountInString(req.Password) < 4 {
		a.writeError(w, NewBadRequestError("weak-password", "password must be at least 4 characters"))
		return
	}
	if phone == types.AdminPhone {
		a.writeError(w, NewConflictError("reserved-phone", "this phone number is reserved for admin"))
		return
	}

	params := database.CreateUserParams{
		Name:        name,
		PhoneNumber: phone,
		Role:        parseRole(req.Role),
	}
	if params.Role == database.RoleDoctor {
		params.Specialty = strings.TrimSpace(req.Specialty)
		params.HospitalName = strings.TrimSpace(req.HospitalName)
		params.ExperienceYears = wholeYears(req.ExperienceYears)
		params.StudyYears = wholeYears(req.StudyYears)
	}

	user, err := a.createUser(r.Context(), params, req.Password)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.log.Info("admin created user", zap.String("user_id", user.Id), zap.String("role", string(user.Role)))
	a.writeJson(w, http.StatusCreated, map[string]any{"user": types.NewUser(user)})
}

// targetUser loads the user named by the {userId} path segment.
func (a *App) targetUser(w http.ResponseWriter, r *http.Request) (database.User, bool) {
	userId := strings.TrimSpace(r.PathValue("userId"))
	if userId == "" {
		a.writeError(w, NewBadRequestError("user-id-required", "userId is required"))
		return database.User{}, false
	}

	user, err := a.repo.GetUserById(r.Context(), userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			a.writeError(w, errUserNotFound)
			return database.User{}, false
		}
		a.writeError(w, err)
		return database.User{}, false
	}

	return user, true
}

func (a *App) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	target, ok := a.targetUser(w, r)
	if !ok {
		return
	}
	if target.PhoneNumber == types.AdminPhone {
		a.writeError(w, NewForbiddenError("cannot-disable-admin", "admin account cannot be disabled"))
		return
	}
	if target.Id == caller(r).Id {
		a.writeError(w, NewForbiddenError("cannot-disable-self", "you cannot disable your own account"))
		return
	}

	var req SetStatusRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	updated, err := a.repo.SetUserDisabled(r.Context(), target.Id, req.Disabled, a.now())
	if err != nil {
		a.writeError(w, err)
		return
	}
	updated.LastSeenAt = target.LastSeenAt

	a.log.Info("user status changed", zap.String("user_id", target.Id), zap.Bool("disabled", req.Disabled))
	a.writeJson(w, http.StatusOK, map[string]any{"user": types.NewUser(updated)})
}

func (a *App) adminResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !a.decodeJson(w, r, &req) {
		return
	}
	if utf8.RuneCountInString(req.NewPassword) < 4 {
		a.writeError(w, NewBadRequestError("weak-password", "password must be at least 4 characters"))
		return
	}

	target, ok := a.targetUser(w, r)
	if !ok {
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.repo.UpdatePassword(r.Context(), target.Id, hash); err != nil {
		a.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *App) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(r.PathValue("userId")) == caller(r).Id {
		a.writeError(w, NewForbiddenError("cannot-delete-self", "admin cannot delete own account"))
		return
	}

	target, ok := a.targetUser(w, r)
	if !ok {
		return
	}
	if target.PhoneNumber == types.AdminPhone {
		a.writeError(w, NewForbiddenError("cannot-delete-admin", "cannot delete the main admin account"))
		return
	}

	err := a.repo.WithTx(r.Context(), func(tx database.Repository) error {
		return tx.DeleteUser(r.Context(), target.Id)
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.log.Info("user deleted", zap.String("user_id", target.Id))
	w.WriteHeader(http.StatusNoContent)
}
