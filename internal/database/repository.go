package database

import (
	"context"
	"time"
)

type UserStore interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserById(ctx context.Context, id string) (User, error)
	GetUserByPhone(ctx context.Context, phone string) (User, error)
	UpdatePassword(ctx context.Context, userId, passwordHash string) error
	RenameUser(ctx context.Context, userId, name string) error
	UpdateDoctorProfile(ctx context.Context, params UpdateDoctorProfileParams) (User, error)
	UpdatePhoto(ctx context.Context, userId, photoURL string) (User, error)
	ListDoctors(ctx context.Context) ([]User, error)
	ListUsersWithPresence(ctx context.Context) ([]User, error)
	SetUserDisabled(ctx context.Context, userId string, disabled bool, at time.Time) (User, error)
	DeleteUser(ctx context.Context, userId string) error
}

type RoomStore interface {
	GetRoom(ctx context.Context, roomId string) (Room, error)
	InsertRoom(ctx context.Context, room Room) (bool, error)
	ReopenRoom(ctx context.Context, roomId string, at time.Time) error
	CloseRoom(ctx context.Context, roomId, preview string, at time.Time) error
	ListRoomsForUser(ctx context.Context, userId string) ([]Room, error)
}

type PresenceStore interface {
	UpsertRoomPresence(ctx context.Context, p Presence) error
	GetRoomPresence(ctx context.Context, roomId, userId string) (Presence, error)
	TouchAppPresence(ctx context.Context, userId string, at time.Time) error
}

type MessageStore interface {
	InsertMessage(ctx context.Context, msg Message) error
	UpdateRoomPreview(ctx context.Context, roomId, preview string, at time.Time) error
	MarkMessagesDelivered(ctx context.Context, roomId, readerId string, at time.Time) (int64, error)
	ListRoomMessages(ctx context.Context, roomId string) ([]Message, error)
}

type LiveSessionStore interface {
	GetLiveSession(ctx context.Context, roomId string) (LiveSession, error)
	UpsertLiveSession(ctx context.Context, s LiveSession) error
	InsertLiveSession(ctx context.Context, s LiveSession) error
}

type ConsultationStore interface {
	CreateConsultationRequest(ctx context.Context, req ConsultationRequest) error
	GetConsultationRequest(ctx context.Context, id string) (ConsultationRequest, error)
	GetLatestConsultationRequestForPair(ctx context.Context, patientId, doctorId string) (ConsultationRequest, error)
	GetConsultationRequestByRoom(ctx context.Context, roomId string) (ConsultationRequest, error)
	ListConsultationRequestsByPatient(ctx context.Context, patientId string) ([]ConsultationRequest, error)
	ListPendingConsultationRequests(ctx context.Context, doctorId string) ([]ConsultationRequest, error)
	ConsultationRequestExists(ctx context.Context, lookup ConsultationLookup) (bool, error)
	MarkConsultationAccepted(ctx context.Context, params RespondConsultationParams) error
	MarkConsultationRejected(ctx context.Context, params RespondConsultationParams) error
	TransferConsultationRequest(ctx context.Context, params TransferConsultationParams) error
	UpdateConsultationDetails(ctx context.Context, req ConsultationRequest) error
}

type RecordStore interface {
	GetMedicalRecord(ctx context.Context, patientId string) (MedicalRecord, error)
	UpsertMedicalRecord(ctx context.Context, rec MedicalRecord) error
	GetMedicalRecordEntry(ctx context.Context, roomId, doctorId string) (MedicalRecordEntry, error)
	UpsertMedicalRecordEntry(ctx context.Context, entry MedicalRecordEntry) error
	ListMedicalRecordEntries(ctx context.Context, patientId string) ([]MedicalRecordEntry, error)
}

type BlogStore interface {
	ListBlogs(ctx context.Context) ([]Blog, error)
	CreateBlog(ctx context.Context, blog Blog) error
}

type AdminStore interface {
	GetDashboardSummary(ctx context.Context, q DashboardQuery) (DashboardSummary, error)
	GetVisitorCounts(ctx context.Context, q DashboardQuery) (VisitorCounts, error)
	ListDoctorActivity(ctx context.Context, q DashboardQuery) ([]DoctorActivity, error)
	ListCurrentVisitors(ctx context.Context, q DashboardQuery) ([]Visitor, error)
}

type TriageAuditStore interface {
	InsertTriageAuditLog(ctx context.Context, entry TriageAuditLog) error
}

// Repository is the full persistence surface. Components should depend on the
// narrowest store interface they need.
type Repository interface {
	UserStore
	RoomStore
	PresenceStore
	MessageStore
	LiveSessionStore
	ConsultationStore
	RecordStore
	BlogStore
	AdminStore
	TriageAuditStore

	Ping(ctx context.Context) error
	// WithTx runs fn against a repository bound to a single transaction. The
	// transaction is committed when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
