package api

import (
	"net/http"

	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/records"
	"github.com/sihhaapp/sihha/internal/server"
	"github.com/sihhaapp/sihha/internal/stats"
	"github.com/sihhaapp/sihha/internal/types"
	"go.uber.org/zap"
)

type CreateRoomRequest struct {
	DoctorId string `json:"doctorId"`
}

type PresenceRequest struct {
	Active *bool `json:"active"`
}

type TextMessageRequest struct {
	Text string `json:"text"`
}

type AudioMessageRequest struct {
	AudioUrl        string  `json:"audioUrl"`
	DurationSeconds float64 `json:"durationSeconds"`
}

type ImageMessageRequest struct {
	ImageUrl string `json:"imageUrl"`
}

type LiveSignalRequest struct {
	Content string `json:"content"`
}

// room loads the {roomId} path room for the caller, writing the error
// response when the caller is not a participant.
func (a *App) room(w http.ResponseWriter, r *http.Request) (database.Room, bool) {
	room, err := a.registry.Get(r.Context(), caller(r).Id, r.PathValue("roomId"))
	if err != nil {
		a.writeError(w, err)
		return database.Room{}, false
	}

	return room, true
}

func (a *App) pushMessage(room database.Room, m database.Message) {
	a.incr(stats.MessagesPosted)
	a.cs.Push(server.MessagePosted(types.NewMessage(m)), room.PatientId, room.DoctorId)
}

func (a *App) createOrGetRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	room, err := a.workflow.DirectRoom(r.Context(), caller(r), req.DoctorId)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusCreated, map[string]any{"room": types.NewRoom(room)})
}

func (a *App) roomWithDoctor(w http.ResponseWriter, r *http.Request) {
	room, err := a.workflow.RoomWithDoctor(r.Context(), caller(r), r.PathValue("doctorId"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	var out *types.Room
	if room != nil {
		dto := types.NewRoom(*room)
		out = &dto
	}

	a.writeJson(w, http.StatusOK, map[string]any{"room": out})
}

func (a *App) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.registry.List(r.Context(), caller(r).Id)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"rooms": types.NewRooms(rooms)})
}

func (a *App) getRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := a.room(w, r)
	if !ok {
		return
	}

	if err := a.tracker.Touch(r.Context(), room.Id, caller(r).Id); err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"room": types.NewRoom(room)})
}

func (a *App) closeRoom(w http.ResponseWriter, r *http.Request) {
	room, err := a.registry.Close(r.Context(), caller(r).Id, r.PathValue("roomId"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	dto := types.NewRoom(room)
	a.cs.Push(server.RoomChanged(dto), room.PatientId, room.DoctorId)
	a.log.Info("room closed", zap.String("room_id", room.Id), zap.String("doctor_id", room.DoctorId))

	a.writeJson(w, http.StatusOK, map[string]any{"room": dto})
}

func (a *App) setPresence(w http.ResponseWriter, r *http.Request) {
	room, ok := a.room(w, r)
	if !ok {
		return
	}

	var req PresenceRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	active := req.Active == nil || *req.Active
	if err := a.tracker.Set(r.Context(), room.Id, caller(r).Id, active); err != nil {
		a.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *App) getMessages(w http.ResponseWriter, r *http.Request) {
	room, ok := a.room(w, r)
	if !ok {
		return
	}

	msgs, err := a.ledger.ListAndMarkDelivered(r.Context(), room, caller(r).Id)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"messages": types.NewMessages(msgs)})
}

func (a *App) postText(w http.ResponseWriter, r *http.Request) {
	room, ok := a.room(w, r)
	if !ok {
		return
	}

	var req TextMessageRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	m, err := a.ledger.PostText(r.Context(), room, caller(r), req.Text)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.pushMessage(room, m)
	a.writeJson(w, http.StatusCreated, map[string]any{"message": types.NewMessage(m)})
}

func (a *App) postAudio(w http.ResponseWriter, r *http.Request) {
	room, ok := a.room(w, r)
	if !ok {
		return
	}

	var req AudioMessageRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	m, err := a.ledger.PostAudio(r.Context(), room, caller(r), req.AudioUrl, req.DurationSeconds)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.pushMessage(room, m)
	a.writeJson(w, http.StatusCreated, map[string]any{"message": types.NewMessage(m)})
}

func (a *App) postImage(w http.ResponseWriter, r *http.Request) {
	room, ok := a.room(w, r)
	if !ok {
		return
	}

	var req ImageMessageRequest
	if !a.decodeJson(w, r, &req) {
		return
	}

	m, err := a.ledger.PostImage(r.Context(), room, caller(r), req.ImageUrl)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.pushMessage(room, m)
	a.writeJson(w, http.StatusCreated, map[string]any{"message": types.NewMessage(m)})
}

func (a *App) consultationForRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := a.room(w, r)
	if !ok {
		return
	}

	req, err := a.workflow.ForRoom(r.Context(), room)
	if err != nil {
		a.writeError(w, err)
		return
	}

	var out *types.ConsultationRequest
	if req != nil {
		dto := types.NewConsultationRequest(*req)
		out = &dto
	}

	a.writeJson(w, http.StatusOK, map[string]any{"request": out})
}

func (a *App) getMedicalRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := a.records.Get(r.Context(), caller(r), r.PathValue("roomId"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"record": newMedicalRecord(rec)})
}

func (a *App) updateMedicalRecord(w http.ResponseWriter, r *http.Request) {
	var patch records.Patch
	if !a.decodeJson(w, r, &patch) {
		return
	}

	rec, err := a.records.Update(r.Context(), caller(r), r.PathValue("roomId"), patch)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"record": newMedicalRecord(rec)})
}

func newMedicalRecord(rec records.Record) types.MedicalRecord {
	out := types.MedicalRecord{
		PatientId:                rec.PatientId,
		Allergies:                rec.Allergies,
		ChronicDiseases:          rec.ChronicDiseases,
		ConsultationHistory:      make([]types.ConsultationHistory, 0, len(rec.History)),
		PreviousDiagnoses:        rec.PreviousDiagnoses,
		PrescribedMedications:    rec.PrescribedMedications,
		LatestPrescriptionPdfUrl: rec.LatestPrescriptionPdfURL,
		UpdatedAt:                rec.UpdatedAt,
		Entries:                  make([]types.MedicalRecordEntry, 0, len(rec.Entries)),
	}

	for _, room := range rec.History {
		out.ConsultationHistory = append(out.ConsultationHistory, types.ConsultationHistory{
			RoomId:        room.Id,
			DoctorId:      room.DoctorId,
			DoctorName:    room.DoctorName,
			StartedAt:     room.CreatedAt,
			LastUpdatedAt: room.LastUpdatedAt,
			IsClosed:      room.Closed,
		})
	}
	for _, e := range rec.Entries {
		out.Entries = append(out.Entries, types.MedicalRecordEntry{
			Id:                    e.Id,
			PatientId:             e.PatientId,
			RoomId:                e.RoomId,
			DoctorId:              e.DoctorId,
			DoctorName:            e.DoctorName,
			Diagnosis:             e.Diagnosis,
			PrescribedMedications: e.PrescribedMedications,
			SecretNotes:           e.SecretNotes,
			PrescriptionPdfUrl:    e.PrescriptionPdfURL,
			CreatedAt:             e.CreatedAt,
			UpdatedAt:             e.UpdatedAt,
		})
	}

	return out
}
