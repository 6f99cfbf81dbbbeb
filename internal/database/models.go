package database

import "time"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

type User struct {
	Id              string
	Name            string
	PhoneNumber     string
	PasswordHash    string
	Role            Role
	PhotoURL        string
	Specialty       string
	HospitalName    string
	ExperienceYears int
	StudyYears      int
	Disabled        bool
	DisabledAt      *time.Time
	CreatedAt       time.Time
	LastSeenAt      *time.Time
}

type Room struct {
	Id              string
	PatientId       string
	PatientName     string
	DoctorId        string
	DoctorName      string
	ParticipantIds  []string
	PatientPhotoURL string
	DoctorPhotoURL  string
	LastMessage     string
	UnreadCount     int
	Closed          bool
	CreatedAt       time.Time
	LastUpdatedAt   time.Time
}

// HasParticipant reports whether userId is the patient or the doctor of r.
func (r Room) HasParticipant(userId string) bool {
	return r.PatientId == userId || r.DoctorId == userId
}

// PeerOf returns the other participant's id.
func (r Room) PeerOf(userId string) string {
	if r.PatientId == userId {
		return r.DoctorId
	}

	return r.PatientId
}

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageAudio MessageType = "audio"
	MessageImage MessageType = "image"
	MessageLive  MessageType = "live"
)

// EventKind tags live-session transcript entries. Ordinary chat uses EventNone.
type EventKind string

const (
	EventNone    EventKind = "none"
	EventRequest EventKind = "request"
	EventAccept  EventKind = "accept"
	EventReject  EventKind = "reject"
	EventStart   EventKind = "start"
	EventStop    EventKind = "stop"
	EventSignal  EventKind = "signal"
)

type Message struct {
	Id              string
	RoomId          string
	SenderId        string
	SenderName      string
	Type            MessageType
	EventKind       EventKind
	Content         string
	DurationSeconds int
	DeliveredAt     *time.Time
	ReadAt          *time.Time
	SentAt          time.Time
}

type Presence struct {
	RoomId     string
	UserId     string
	LastSeenAt time.Time
	Active     bool
}

type LiveStatus string

const (
	LiveIdle    LiveStatus = "idle"
	LivePending LiveStatus = "pending"
	LiveActive  LiveStatus = "active"
)

type LiveSession struct {
	RoomId      string
	Status      LiveStatus
	RequestedBy *string
	RequestedAt *time.Time
	RespondedAt *time.Time
}

type ConsultationStatus string

const (
	ConsultationPending  ConsultationStatus = "pending"
	ConsultationAccepted ConsultationStatus = "accepted"
	ConsultationRejected ConsultationStatus = "rejected"
)

type ConsultationRequest struct {
	Id                    string
	PatientId             string
	TargetDoctorId        string
	SubjectType           string
	SubjectName           string
	AgeYears              int
	Gender                string
	WeightKg              float64
	StateCode             string
	SpokenLanguage        string
	Symptoms              string
	Status                ConsultationStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
	RespondedAt           *time.Time
	RespondedByDoctorId   *string
	TransferredByDoctorId *string
	LinkedRoomId          *string

	// joined for display
	PatientName             string
	PatientPhotoURL         string
	TargetDoctorName        string
	TargetDoctorPhotoURL    string
	RespondedByDoctorName   *string
	TransferredByDoctorName *string
}

type Blog struct {
	Id          string
	Title       string
	Content     string
	Category    string
	AuthorId    string
	AuthorName  string
	PublishedAt time.Time
	UpdatedAt   time.Time
}

type MedicalRecord struct {
	PatientId       string
	Allergies       string
	ChronicDiseases string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type MedicalRecordEntry struct {
	Id                    string
	PatientId             string
	RoomId                string
	DoctorId              string
	DoctorName            string
	Diagnosis             string
	PrescribedMedications string
	SecretNotes           string
	PrescriptionPdfURL    string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type TriageAuditLog struct {
	Id                 string
	UserId             string
	AgeYears           int
	Sex                string
	WeightKg           float64
	Pregnant           bool
	Symptoms           string
	DurationText       string
	Language           string
	RiskLevel          *string
	SuggestedSpecialty *string
	RedFlags           []string
	FollowUpQuestions  []string
	SelfCare           []string
	SeekUrgentCareIf   []string
	SummaryForDoctor   string
	ModelName          string
	ModerationFlagged  bool
	Status             string
	ErrorCode          *string
	ErrorMessage       *string
	CreatedAt          time.Time
}

type DashboardSummary struct {
	TotalUsers         int
	DoctorsCount       int
	PatientsCount      int
	DisabledUsersCount int
}

type VisitorCounts struct {
	Today         int
	Month         int
	Year          int
	CurrentOnline int
}

type DoctorActivity struct {
	DoctorId           string
	DoctorName         string
	PhoneNumber        string
	PhotoURL           string
	Specialty          string
	HospitalName       string
	Disabled           bool
	PatientsToday      int
	PatientsMonth      int
	PatientsYear       int
	ConsultationsToday int
	ConsultationsMonth int
	ConsultationsYear  int
}

type Visitor struct {
	UserId      string
	Name        string
	PhoneNumber string
	Role        Role
	PhotoURL    string
	Disabled    bool
	LastSeenAt  time.Time
}

// DashboardQuery bounds the admin dashboard aggregates. All times are UTC.
type DashboardQuery struct {
	DayStart     time.Time
	MonthStart   time.Time
	YearStart    time.Time
	OnlineSince  time.Time
	ExcludePhone string
	Limit        int
}

type CreateUserParams struct {
	Id              string
	Name            string
	PhoneNumber     string
	PasswordHash    string
	Role            Role
	Specialty       string
	HospitalName    string
	ExperienceYears int
	StudyYears      int
	CreatedAt       time.Time
}

type UpdateDoctorProfileParams struct {
	UserId          string
	Specialty       string
	HospitalName    string
	ExperienceYears int
	StudyYears      int
}

type ConsultationLookup struct {
	PatientId string
	DoctorId  string
	Statuses  []ConsultationStatus
	ExcludeId string
}

type RespondConsultationParams struct {
	Id       string
	DoctorId string
	RoomId   string
	At       time.Time
}

type TransferConsultationParams struct {
	Id           string
	FromDoctorId string
	ToDoctorId   string
	At           time.Time
}
