// Package policy holds the role guard evaluated once per operation.
package policy

import (
	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
)

type Operation string

const (
	ConsultationCreate   Operation = "consultation.create"
	ConsultationListMine Operation = "consultation.list-mine"
	ConsultationInbox    Operation = "consultation.inbox"
	ConsultationAccept   Operation = "consultation.accept"
	ConsultationReject   Operation = "consultation.reject"
	ConsultationTransfer Operation = "consultation.transfer"
	ConsultationEdit     Operation = "consultation.edit"
	RoomCreateDirect     Operation = "room.create-direct"
	RoomWithDoctor       Operation = "room.with-doctor"
	RoomRead             Operation = "room.read"
	RoomClose            Operation = "room.close"
	MessagePost          Operation = "message.post"
	LiveNegotiate        Operation = "live.negotiate"
	RecordRead           Operation = "record.read"
	RecordUpdate         Operation = "record.update"
	BlogPublish          Operation = "blog.publish"
	UploadMedia          Operation = "upload.media"
	UploadPrescription   Operation = "upload.prescription"
	ProfileDoctor        Operation = "profile.doctor"
	TriageAnalyze        Operation = "triage.analyze"
)

var (
	patientOnly = []database.Role{database.RolePatient}
	doctorOnly  = []database.Role{database.RoleDoctor}
	anyRole     = []database.Role{database.RolePatient, database.RoleDoctor}
)

type rule struct {
	roles   []database.Role
	message string
}

var table = map[Operation]rule{
	ConsultationCreate:   {patientOnly, "only patients can create consultation requests"},
	ConsultationListMine: {patientOnly, "only patients can list their consultation requests"},
	ConsultationInbox:    {doctorOnly, "only doctors can access the consultation inbox"},
	ConsultationAccept:   {doctorOnly, "only doctors can accept consultation requests"},
	ConsultationReject:   {doctorOnly, "only doctors can reject consultation requests"},
	ConsultationTransfer: {doctorOnly, "only doctors can transfer consultation requests"},
	ConsultationEdit:     {doctorOnly, "only doctors can update consultation requests"},
	RoomCreateDirect:     {patientOnly, "only patients can open a room with a doctor"},
	RoomWithDoctor:       {patientOnly, "only patients can look up a room by doctor"},
	RoomRead:             {anyRole, "no access to this room"},
	RoomClose:            {doctorOnly, "only doctors can close a consultation"},
	MessagePost:          {anyRole, "no access to this room"},
	LiveNegotiate:        {anyRole, "no access to this room"},
	RecordRead:           {anyRole, "no access to this medical record"},
	RecordUpdate:         {doctorOnly, "only doctors can update medical records"},
	BlogPublish:          {doctorOnly, "only doctors can publish blogs"},
	UploadMedia:          {anyRole, "uploads require an account"},
	UploadPrescription:   {doctorOnly, "only doctors can upload prescriptions"},
	ProfileDoctor:        {doctorOnly, "only doctors can update a doctor profile"},
	TriageAnalyze:        {anyRole, "triage requires an account"},
}

// Allowed reports whether role may perform op. Unknown operations are denied.
func Allowed(op Operation, role database.Role) bool {
	r, ok := table[op]
	if !ok {
		return false
	}
	for _, allowed := range r.roles {
		if allowed == role {
			return true
		}
	}

	return false
}

// Check returns an Authorization error when role may not perform op.
func Check(op Operation, role database.Role) error {
	if Allowed(op, role) {
		return nil
	}

	msg := "forbidden"
	if r, ok := table[op]; ok {
		msg = r.message
	}

	return apperr.Authorization("forbidden", msg)
}
