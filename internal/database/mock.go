package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

var _ Repository = (*MockRepository)(nil)

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// WithTx runs fn against the mock itself so expectations set on m apply inside
// the transaction too.
func (m *MockRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	return fn(m)
}

func (m *MockRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetUserById(ctx context.Context, id string) (User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetUserByPhone(ctx context.Context, phone string) (User, error) {
	args := m.Called(ctx, phone)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) UpdatePassword(ctx context.Context, userId, passwordHash string) error {
	args := m.Called(ctx, userId, passwordHash)
	return args.Error(0)
}
func (m *MockRepository) RenameUser(ctx context.Context, userId, name string) error {
	args := m.Called(ctx, userId, name)
	return args.Error(0)
}
func (m *MockRepository) UpdateDoctorProfile(ctx context.Context, params UpdateDoctorProfileParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) UpdatePhoto(ctx context.Context, userId, photoURL string) (User, error) {
	args := m.Called(ctx, userId, photoURL)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) ListDoctors(ctx context.Context) ([]User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRepository) ListUsersWithPresence(ctx context.Context) ([]User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRepository) SetUserDisabled(ctx context.Context, userId string, disabled bool, at time.Time) (User, error) {
	args := m.Called(ctx, userId, disabled, at)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) DeleteUser(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

func (m *MockRepository) GetRoom(ctx context.Context, roomId string) (Room, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) InsertRoom(ctx context.Context, room Room) (bool, error) {
	args := m.Called(ctx, room)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) ReopenRoom(ctx context.Context, roomId string, at time.Time) error {
	args := m.Called(ctx, roomId, at)
	return args.Error(0)
}
func (m *MockRepository) CloseRoom(ctx context.Context, roomId, preview string, at time.Time) error {
	args := m.Called(ctx, roomId, preview, at)
	return args.Error(0)
}
func (m *MockRepository) ListRoomsForUser(ctx context.Context, userId string) ([]Room, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]Room), args.Error(1)
}

func (m *MockRepository) UpsertRoomPresence(ctx context.Context, p Presence) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
func (m *MockRepository) GetRoomPresence(ctx context.Context, roomId, userId string) (Presence, error) {
	args := m.Called(ctx, roomId, userId)
	return args.Get(0).(Presence), args.Error(1)
}
func (m *MockRepository) TouchAppPresence(ctx context.Context, userId string, at time.Time) error {
	args := m.Called(ctx, userId, at)
	return args.Error(0)
}

func (m *MockRepository) InsertMessage(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
func (m *MockRepository) UpdateRoomPreview(ctx context.Context, roomId, preview string, at time.Time) error {
	args := m.Called(ctx, roomId, preview, at)
	return args.Error(0)
}
func (m *MockRepository) MarkMessagesDelivered(ctx context.Context, roomId, readerId string, at time.Time) (int64, error) {
	args := m.Called(ctx, roomId, readerId, at)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockRepository) ListRoomMessages(ctx context.Context, roomId string) ([]Message, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockRepository) GetLiveSession(ctx context.Context, roomId string) (LiveSession, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(LiveSession), args.Error(1)
}
func (m *MockRepository) UpsertLiveSession(ctx context.Context, s LiveSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}
func (m *MockRepository) InsertLiveSession(ctx context.Context, s LiveSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockRepository) CreateConsultationRequest(ctx context.Context, req ConsultationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
func (m *MockRepository) GetConsultationRequest(ctx context.Context, id string) (ConsultationRequest, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(ConsultationRequest), args.Error(1)
}
func (m *MockRepository) GetLatestConsultationRequestForPair(ctx context.Context, patientId, doctorId string) (ConsultationRequest, error) {
	args := m.Called(ctx, patientId, doctorId)
	return args.Get(0).(ConsultationRequest), args.Error(1)
}
func (m *MockRepository) GetConsultationRequestByRoom(ctx context.Context, roomId string) (ConsultationRequest, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(ConsultationRequest), args.Error(1)
}
func (m *MockRepository) ListConsultationRequestsByPatient(ctx context.Context, patientId string) ([]ConsultationRequest, error) {
	args := m.Called(ctx, patientId)
	return args.Get(0).([]ConsultationRequest), args.Error(1)
}
func (m *MockRepository) ListPendingConsultationRequests(ctx context.Context, doctorId string) ([]ConsultationRequest, error) {
	args := m.Called(ctx, doctorId)
	return args.Get(0).([]ConsultationRequest), args.Error(1)
}
func (m *MockRepository) ConsultationRequestExists(ctx context.Context, lookup ConsultationLookup) (bool, error) {
	args := m.Called(ctx, lookup)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) MarkConsultationAccepted(ctx context.Context, params RespondConsultationParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}
func (m *MockRepository) MarkConsultationRejected(ctx context.Context, params RespondConsultationParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}
func (m *MockRepository) TransferConsultationRequest(ctx context.Context, params TransferConsultationParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}
func (m *MockRepository) UpdateConsultationDetails(ctx context.Context, req ConsultationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRepository) GetMedicalRecord(ctx context.Context, patientId string) (MedicalRecord, error) {
	args := m.Called(ctx, patientId)
	return args.Get(0).(MedicalRecord), args.Error(1)
}
func (m *MockRepository) UpsertMedicalRecord(ctx context.Context, rec MedicalRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
func (m *MockRepository) GetMedicalRecordEntry(ctx context.Context, roomId, doctorId string) (MedicalRecordEntry, error) {
	args := m.Called(ctx, roomId, doctorId)
	return args.Get(0).(MedicalRecordEntry), args.Error(1)
}
func (m *MockRepository) UpsertMedicalRecordEntry(ctx context.Context, entry MedicalRecordEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
func (m *MockRepository) ListMedicalRecordEntries(ctx context.Context, patientId string) ([]MedicalRecordEntry, error) {
	args := m.Called(ctx, patientId)
	return args.Get(0).([]MedicalRecordEntry), args.Error(1)
}

func (m *MockRepository) ListBlogs(ctx context.Context) ([]Blog, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Blog), args.Error(1)
}
func (m *MockRepository) CreateBlog(ctx context.Context, blog Blog) error {
	args := m.Called(ctx, blog)
	return args.Error(0)
}

func (m *MockRepository) GetDashboardSummary(ctx context.Context, q DashboardQuery) (DashboardSummary, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(DashboardSummary), args.Error(1)
}
func (m *MockRepository) GetVisitorCounts(ctx context.Context, q DashboardQuery) (VisitorCounts, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(VisitorCounts), args.Error(1)
}
func (m *MockRepository) ListDoctorActivity(ctx context.Context, q DashboardQuery) ([]DoctorActivity, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]DoctorActivity), args.Error(1)
}
func (m *MockRepository) ListCurrentVisitors(ctx context.Context, q DashboardQuery) ([]Visitor, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]Visitor), args.Error(1)
}

func (m *MockRepository) InsertTriageAuditLog(ctx context.Context, entry TriageAuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
