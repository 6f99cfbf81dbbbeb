package types

import (
	"time"

	"github.com/sihhaapp/sihha/internal/database"
)

// AdminPhone identifies the built-in admin account.
const AdminPhone = "+23500000000"

type User struct {
	Id              string     `json:"id"`
	Name            string     `json:"name"`
	PhoneNumber     string     `json:"phoneNumber"`
	Role            string     `json:"role"`
	CreatedAt       time.Time  `json:"createdAt"`
	PhotoUrl        string     `json:"photoUrl"`
	Specialty       string     `json:"specialty"`
	HospitalName    string     `json:"hospitalName"`
	ExperienceYears int        `json:"experienceYears"`
	StudyYears      int        `json:"studyYears"`
	IsDisabled      bool       `json:"isDisabled"`
	DisabledAt      *time.Time `json:"disabledAt"`
	LastSeenAt      *time.Time `json:"lastSeenAt"`
	IsAdmin         bool       `json:"isAdmin"`
}

func NewUser(u database.User) User {
	return User{
		Id:              u.Id,
		Name:            u.Name,
		PhoneNumber:     u.PhoneNumber,
		Role:            string(u.Role),
		CreatedAt:       u.CreatedAt,
		PhotoUrl:        u.PhotoURL,
		Specialty:       u.Specialty,
		HospitalName:    u.HospitalName,
		ExperienceYears: u.ExperienceYears,
		StudyYears:      u.StudyYears,
		IsDisabled:      u.Disabled,
		DisabledAt:      u.DisabledAt,
		LastSeenAt:      u.LastSeenAt,
		IsAdmin:         u.PhoneNumber == AdminPhone,
	}
}

func NewUsers(users []database.User) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		out = append(out, NewUser(u))
	}
	return out
}

type Room struct {
	Id              string    `json:"id"`
	PatientId       string    `json:"patientId"`
	PatientName     string    `json:"patientName"`
	DoctorId        string    `json:"doctorId"`
	DoctorName      string    `json:"doctorName"`
	ParticipantIds  []string  `json:"participantIds"`
	PatientPhotoUrl string    `json:"patientPhotoUrl"`
	DoctorPhotoUrl  string    `json:"doctorPhotoUrl"`
	LastMessage     string    `json:"lastMessage"`
	UnreadCount     int       `json:"unreadCount"`
	CreatedAt       time.Time `json:"createdAt"`
	LastUpdatedAt   time.Time `json:"lastUpdatedAt"`
	IsClosed        bool      `json:"isClosed"`
}

func NewRoom(r database.Room) Room {
	ids := r.ParticipantIds
	if ids == nil {
		ids = []string{r.PatientId, r.DoctorId}
	}

	return Room{
		Id:              r.Id,
		PatientId:       r.PatientId,
		PatientName:     r.PatientName,
		DoctorId:        r.DoctorId,
		DoctorName:      r.DoctorName,
		ParticipantIds:  ids,
		PatientPhotoUrl: r.PatientPhotoURL,
		DoctorPhotoUrl:  r.DoctorPhotoURL,
		LastMessage:     r.LastMessage,
		UnreadCount:     r.UnreadCount,
		CreatedAt:       r.CreatedAt,
		LastUpdatedAt:   r.LastUpdatedAt,
		IsClosed:        r.Closed,
	}
}

func NewRooms(rooms []database.Room) []Room {
	out := make([]Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, NewRoom(r))
	}
	return out
}

type Message struct {
	Id              string     `json:"id"`
	RoomId          string     `json:"roomId"`
	SenderId        string     `json:"senderId"`
	SenderName      string     `json:"senderName"`
	Type            string     `json:"type"`
	EventKind       string     `json:"eventKind"`
	Content         string     `json:"content"`
	DurationSeconds int        `json:"durationSeconds"`
	DeliveredAt     *time.Time `json:"deliveredAt"`
	ReadAt          *time.Time `json:"readAt"`
	SentAt          time.Time  `json:"sentAt"`
}

func NewMessage(m database.Message) Message {
	return Message{
		Id:              m.Id,
		RoomId:          m.RoomId,
		SenderId:        m.SenderId,
		SenderName:      m.SenderName,
		Type:            string(m.Type),
		EventKind:       string(m.EventKind),
		Content:         m.Content,
		DurationSeconds: m.DurationSeconds,
		DeliveredAt:     m.DeliveredAt,
		ReadAt:          m.ReadAt,
		SentAt:          m.SentAt,
	}
}

func NewMessages(msgs []database.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewMessage(m))
	}
	return out
}

type LiveSession struct {
	RoomId      string     `json:"roomId"`
	Status      string     `json:"status"`
	RequestedBy *string    `json:"requestedBy"`
	RequestedAt *time.Time `json:"requestedAt"`
	RespondedAt *time.Time `json:"respondedAt"`
}

func NewLiveSession(s database.LiveSession) LiveSession {
	return LiveSession{
		RoomId:      s.RoomId,
		Status:      string(s.Status),
		RequestedBy: s.RequestedBy,
		RequestedAt: s.RequestedAt,
		RespondedAt: s.RespondedAt,
	}
}

type ConsultationRequest struct {
	Id                      string     `json:"id"`
	PatientId               string     `json:"patientId"`
	TargetDoctorId          string     `json:"targetDoctorId"`
	SubjectType             string     `json:"subjectType"`
	SubjectName             string     `json:"subjectName"`
	AgeYears                int        `json:"ageYears"`
	Gender                  string     `json:"gender"`
	WeightKg                float64    `json:"weightKg"`
	StateCode               string     `json:"stateCode"`
	SpokenLanguage          string     `json:"spokenLanguage"`
	Symptoms                string     `json:"symptoms"`
	Status                  string     `json:"status"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
	RespondedAt             *time.Time `json:"respondedAt"`
	RespondedByDoctorId     *string    `json:"respondedByDoctorId"`
	TransferredByDoctorId   *string    `json:"transferredByDoctorId"`
	LinkedRoomId            *string    `json:"linkedRoomId"`
	PatientName             string     `json:"patientName"`
	PatientPhotoUrl         string     `json:"patientPhotoUrl"`
	TargetDoctorName        string     `json:"targetDoctorName"`
	TargetDoctorPhotoUrl    string     `json:"targetDoctorPhotoUrl"`
	RespondedByDoctorName   *string    `json:"respondedByDoctorName"`
	TransferredByDoctorName *string    `json:"transferredByDoctorName"`
}

func NewConsultationRequest(r database.ConsultationRequest) ConsultationRequest {
	return ConsultationRequest{
		Id:                      r.Id,
		PatientId:               r.PatientId,
		TargetDoctorId:          r.TargetDoctorId,
		SubjectType:             r.SubjectType,
		SubjectName:             r.SubjectName,
		AgeYears:                r.AgeYears,
		Gender:                  r.Gender,
		WeightKg:                r.WeightKg,
		StateCode:               r.StateCode,
		SpokenLanguage:          r.SpokenLanguage,
		Symptoms:                r.Symptoms,
		Status:                  string(r.Status),
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
		RespondedAt:             r.RespondedAt,
		RespondedByDoctorId:     r.RespondedByDoctorId,
		TransferredByDoctorId:   r.TransferredByDoctorId,
		LinkedRoomId:            r.LinkedRoomId,
		PatientName:             r.PatientName,
		PatientPhotoUrl:         r.PatientPhotoURL,
		TargetDoctorName:        r.TargetDoctorName,
		TargetDoctorPhotoUrl:    r.TargetDoctorPhotoURL,
		RespondedByDoctorName:   r.RespondedByDoctorName,
		TransferredByDoctorName: r.TransferredByDoctorName,
	}
}

func NewConsultationRequests(reqs []database.ConsultationRequest) []ConsultationRequest {
	out := make([]ConsultationRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, NewConsultationRequest(r))
	}
	return out
}

type Blog struct {
	Id          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	AuthorId    string    `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	PublishedAt time.Time `json:"publishedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func NewBlog(b database.Blog) Blog {
	return Blog{
		Id:          b.Id,
		Title:       b.Title,
		Content:     b.Content,
		Category:    b.Category,
		AuthorId:    b.AuthorId,
		AuthorName:  b.AuthorName,
		PublishedAt: b.PublishedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

type MedicalRecordEntry struct {
	Id                    string    `json:"id"`
	PatientId             string    `json:"patientId"`
	RoomId                string    `json:"roomId"`
	DoctorId              string    `json:"doctorId"`
	DoctorName            string    `json:"doctorName"`
	Diagnosis             string    `json:"diagnosis"`
	PrescribedMedications string    `json:"prescribedMedications"`
	SecretNotes           string    `json:"secretNotes"`
	PrescriptionPdfUrl    string    `json:"prescriptionPdfUrl"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

type ConsultationHistory struct {
	RoomId        string    `json:"roomId"`
	DoctorId      string    `json:"doctorId"`
	DoctorName    string    `json:"doctorName"`
	StartedAt     time.Time `json:"startedAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	IsClosed      bool      `json:"isClosed"`
}

type MedicalRecord struct {
	PatientId                string                `json:"patientId"`
	Allergies                string                `json:"allergies"`
	ChronicDiseases          string                `json:"chronicDiseases"`
	ConsultationHistory      []ConsultationHistory `json:"consultationHistory"`
	PreviousDiagnoses        []string              `json:"previousDiagnoses"`
	PrescribedMedications    []string              `json:"prescribedMedications"`
	LatestPrescriptionPdfUrl *string               `json:"latestPrescriptionPdfUrl"`
	UpdatedAt                *time.Time            `json:"updatedAt"`
	Entries                  []MedicalRecordEntry  `json:"entries"`
}

type DashboardSummary struct {
	TotalUsers         int `json:"totalUsers"`
	DoctorsCount       int `json:"doctorsCount"`
	PatientsCount      int `json:"patientsCount"`
	DisabledUsersCount int `json:"disabledUsersCount"`
}

type VisitorCounts struct {
	Today         int `json:"today"`
	Month         int `json:"month"`
	Year          int `json:"year"`
	CurrentOnline int `json:"currentOnline"`
}

type DoctorActivity struct {
	Id                 string `json:"id"`
	Name               string `json:"name"`
	PhoneNumber        string `json:"phoneNumber"`
	PhotoUrl           string `json:"photoUrl"`
	Specialty          string `json:"specialty"`
	HospitalName       string `json:"hospitalName"`
	IsDisabled         bool   `json:"isDisabled"`
	PatientsToday      int    `json:"patientsToday"`
	PatientsMonth      int    `json:"patientsMonth"`
	PatientsYear       int    `json:"patientsYear"`
	ConsultationsToday int    `json:"consultationsToday"`
	ConsultationsMonth int    `json:"consultationsMonth"`
	ConsultationsYear  int    `json:"consultationsYear"`
}

type Visitor struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
	Role        string    `json:"role"`
	PhotoUrl    string    `json:"photoUrl"`
	IsDisabled  bool      `json:"isDisabled"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

type Dashboard struct {
	Summary         DashboardSummary `json:"summary"`
	Visitors        VisitorCounts    `json:"visitors"`
	Doctors         []DoctorActivity `json:"doctors"`
	CurrentVisitors []Visitor        `json:"currentVisitors"`
}
