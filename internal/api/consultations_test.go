package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/stats"
	"github.com/sihhaapp/sihha/internal/testutil"
	"github.com/sihhaapp/sihha/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingConsultation() database.ConsultationRequest {
	return database.ConsultationRequest{
		Id:             "cr-1",
		PatientId:      patient.Id,
		TargetDoctorId: doctor.Id,
		SubjectType:    "self",
		SubjectName:    patient.Name,
		AgeYears:       34,
		Gender:         "female",
		WeightKg:       60,
		StateCode:      "n_djamena",
		SpokenLanguage: "fr",
		Symptoms:       "fever and headache",
		Status:         database.ConsultationPending,
		PatientName:    patient.Name,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
}

func consultationRequest(t *testing.T, method, suffix string, body any, u database.User) *http.Request {
	req := newRequest(t, method, "/api/consultation-requests/cr-1"+suffix, body, u)
	req.SetPathValue("requestId", "cr-1")
	return req
}

type requestResponse struct {
	Request types.ConsultationRequest `json:"request"`
}

func Test_myConsultations(t *testing.T) {
	t.Run("patient", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("ListConsultationRequestsByPatient", mock.Anything, patient.Id).
			Return([]database.ConsultationRequest{pendingConsultation()}, nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).myConsultations(rr, newRequest(t, http.MethodGet, "/", nil, patient))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Requests []types.ConsultationRequest `json:"requests"`
		}
		decodeResponse(t, rr, &resp)
		require.Len(t, resp.Requests, 1)
		assert.Equal(t, "pending", resp.Requests[0].Status)
	})

	t.Run("doctor", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newTestApp(t, new(database.MockRepository)).myConsultations(rr, newRequest(t, http.MethodGet, "/", nil, doctor))

		assertApiError(t, rr, http.StatusForbidden, "forbidden")
	})
}

func Test_consultationInbox(t *testing.T) {
	repo := new(database.MockRepository)
	repo.On("ListPendingConsultationRequests", mock.Anything, doctor.Id).
		Return([]database.ConsultationRequest(nil), nil).Once()

	rr := httptest.NewRecorder()
	newTestApp(t, repo).consultationInbox(rr, newRequest(t, http.MethodGet, "/", nil, doctor))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"requests":[]}`, rr.Body.String())
}

func Test_createConsultation(t *testing.T) {
	body := map[string]any{
		"doctorId":       doctor.Id,
		"subjectType":    "self",
		"ageYears":       34,
		"gender":         "female",
		"weightKg":       60,
		"stateCode":      "n_djamena",
		"spokenLanguage": "fr",
		"symptoms":       "fever and headache",
	}

	t.Run("created", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetUserById", mock.Anything, doctor.Id).Return(doctor, nil).Once()
		repo.On("GetRoom", mock.Anything, testRoom.Id).Return(database.Room{}, database.ErrNotFound).Once()
		repo.On("ConsultationRequestExists", mock.Anything, mock.Anything).Return(false, nil).Twice()
		repo.On("CreateConsultationRequest", mock.Anything, mock.MatchedBy(func(r database.ConsultationRequest) bool {
			return r.PatientId == patient.Id && r.TargetDoctorId == doctor.Id && r.AgeYears == 34 && r.SubjectName == patient.Name
		})).Return(nil).Once()
		repo.On("GetConsultationRequest", mock.Anything, mock.Anything).Return(pendingConsultation(), nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.ConsultationsCreated).Once()
		app := NewApp(http.NewServeMux(), testutil.TestLogger(t), nil, repo, su, testConfig(), WithClock(testutil.FixedClock(testNow)))

		rr := httptest.NewRecorder()
		app.createConsultation(rr, newRequest(t, http.MethodPost, "/api/consultation-requests", body, patient))

		assert.Equal(t, http.StatusCreated, rr.Code)
		var resp requestResponse
		decodeResponse(t, rr, &resp)
		assert.Equal(t, "cr-1", resp.Request.Id)
		repo.AssertExpectations(t)
		su.AssertExpectations(t)
	})

	t.Run("open room conflicts", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetUserById", mock.Anything, doctor.Id).Return(doctor, nil).Once()
		repo.On("GetRoom", mock.Anything, testRoom.Id).Return(testRoom, nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).createConsultation(rr, newRequest(t, http.MethodPost, "/", body, patient))

		assertApiError(t, rr, http.StatusConflict, "consultation-room-exists")
	})

	t.Run("invalid details", func(t *testing.T) {
		bad := map[string]any{"doctorId": doctor.Id, "subjectType": "self", "ageYears": 34, "gender": "x"}

		rr := httptest.NewRecorder()
		newTestApp(t, new(database.MockRepository)).createConsultation(rr, newRequest(t, http.MethodPost, "/", bad, patient))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func Test_acceptConsultation(t *testing.T) {
	t.Run("accepts and opens the room", func(t *testing.T) {
		accepted := pendingConsultation()
		accepted.Status = database.ConsultationAccepted
		accepted.LinkedRoomId = &testRoom.Id

		repo := new(database.MockRepository)
		repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(pendingConsultation(), nil).Once()
		repo.On("GetUserById", mock.Anything, patient.Id).Return(patient, nil).Once()
		repo.On("GetRoom", mock.Anything, testRoom.Id).Return(database.Room{}, database.ErrNotFound).Once()
		repo.On("InsertRoom", mock.Anything, mock.Anything).Return(true, nil).Once()
		repo.On("GetRoom", mock.Anything, testRoom.Id).Return(testRoom, nil).Once()
		repo.On("MarkConsultationAccepted", mock.Anything, database.RespondConsultationParams{
			Id: "cr-1", DoctorId: doctor.Id, RoomId: testRoom.Id, At: testNow,
		}).Return(nil).Once()
		repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(accepted, nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).acceptConsultation(rr, consultationRequest(t, http.MethodPost, "/accept", nil, doctor))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Request types.ConsultationRequest `json:"request"`
			Room    types.Room                `json:"room"`
		}
		decodeResponse(t, rr, &resp)
		assert.Equal(t, "accepted", resp.Request.Status)
		assert.Equal(t, testRoom.Id, resp.Room.Id)
		repo.AssertExpectations(t)
	})

	t.Run("other doctor", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(pendingConsultation(), nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).acceptConsultation(rr, consultationRequest(t, http.MethodPost, "/accept", nil, doctor2))

		assertApiError(t, rr, http.StatusForbidden, "forbidden")
	})

	t.Run("unknown request", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(database.ConsultationRequest{}, database.ErrNotFound).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).acceptConsultation(rr, consultationRequest(t, http.MethodPost, "/accept", nil, doctor))

		assertApiError(t, rr, http.StatusNotFound, "consultation-request-not-found")
	})
}

func Test_rejectConsultation(t *testing.T) {
	t.Run("rejects", func(t *testing.T) {
		rejected := pendingConsultation()
		rejected.Status = database.ConsultationRejected

		repo := new(database.MockRepository)
		repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(pendingConsultation(), nil).Once()
		repo.On("MarkConsultationRejected", mock.Anything, database.RespondConsultationParams{
			Id: "cr-1", DoctorId: doctor.Id, At: testNow,
		}).Return(nil).Once()
		repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(rejected, nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).rejectConsultation(rr, consultationRequest(t, http.MethodPost, "/reject", nil, doctor))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp requestResponse
		decodeResponse(t, rr, &resp)
		assert.Equal(t, "rejected", resp.Request.Status)
	})

	t.Run("already answered", func(t *testing.T) {
		answered := pendingConsultation()
		answered.Status = database.ConsultationAccepted

		repo := new(database.MockRepository)
		repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(answered, nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).rejectConsultation(rr, consultationRequest(t, http.MethodPost, "/reject", nil, doctor))

		assertApiError(t, rr, http.StatusConflict, "consultation-request-not-pending")
	})
}

func Test_transferConsultation(t *testing.T) {
	t.Run("to self", func(t *testing.T) {
		repo := new(database.MockRepository)
		repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(pendingConsultation(), nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).transferConsultation(rr, consultationRequest(t, http.MethodPost, "/transfer", TransferRequest{DoctorId: doctor.Id}, doctor))

		assertApiError(t, rr, http.StatusBadRequest, "consultation-transfer-same-doctor")
	})

	t.Run("transfers", func(t *testing.T) {
		moved := pendingConsultation()
		moved.TargetDoctorId = doctor2.Id

		repo := new(database.MockRepository)
		repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(pendingConsultation(), nil).Once()
		repo.On("GetUserById", mock.Anything, doctor2.Id).Return(doctor2, nil).Once()
		repo.On("ConsultationRequestExists", mock.Anything, mock.MatchedBy(func(l database.ConsultationLookup) bool {
			return l.DoctorId == doctor2.Id && l.ExcludeId == "cr-1"
		})).Return(false, nil).Once()
		repo.On("TransferConsultationRequest", mock.Anything, database.TransferConsultationParams{
			Id: "cr-1", FromDoctorId: doctor.Id, ToDoctorId: doctor2.Id, At: testNow,
		}).Return(nil).Once()
		repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(moved, nil).Once()

		rr := httptest.NewRecorder()
		newTestApp(t, repo).transferConsultation(rr, consultationRequest(t, http.MethodPost, "/transfer", TransferRequest{DoctorId: doctor2.Id}, doctor))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp requestResponse
		decodeResponse(t, rr, &resp)
		assert.Equal(t, doctor2.Id, resp.Request.TargetDoctorId)
		repo.AssertExpectations(t)
	})
}

func Test_editConsultation(t *testing.T) {
	repo := new(database.MockRepository)
	repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(pendingConsultation(), nil).Once()
	repo.On("UpdateConsultationDetails", mock.Anything, mock.MatchedBy(func(r database.ConsultationRequest) bool {
		return r.WeightKg == 62 && r.AgeYears == 34 && r.UpdatedAt.Equal(testNow)
	})).Return(nil).Once()
	repo.On("GetConsultationRequest", mock.Anything, "cr-1").Return(pendingConsultation(), nil).Once()

	rr := httptest.NewRecorder()
	newTestApp(t, repo).editConsultation(rr, consultationRequest(t, http.MethodPut, "", map[string]any{"weightKg": 62}, doctor))

	assert.Equal(t, http.StatusOK, rr.Code)
	repo.AssertExpectations(t)
}
