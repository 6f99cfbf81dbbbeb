package api

import (
	"net/http"

	"github.com/sihhaapp/sihha/internal/consultation"
	"github.com/sihhaapp/sihha/internal/server"
	"github.com/sihhaapp/sihha/internal/stats"
	"github.com/sihhaapp/sihha/internal/types"
)

// CreateConsultationRequest is the patient's filing: the target doctor plus
// the request details.
type CreateConsultationRequest struct {
	DoctorId string `json:"doctorId"`
	consultation.Input
}

type TransferRequest struct {
	DoctorId string `json:"doctorId"`
}

func (a *App) myConsultations(w http.ResponseWriter, r *http.Request) {
	reqs, err := a.workflow.Mine(r.Context(), caller(r))
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"requests": types.NewConsultationRequests(reqs)})
}

func (a *App) consultationInbox(w http.ResponseWriter, r *http.Request) {
	reqs, err := a.workflow.Inbox(r.Context(), caller(r))
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"requests": types.NewConsultationRequests(reqs)})
}

func (a *App) createConsultation(w http.ResponseWriter, r *http.Request) {
	var body CreateConsultationRequest
	if !a.decodeJson(w, r, &body) {
		return
	}

	req, err := a.workflow.Create(r.Context(), caller(r), body.DoctorId, body.Input)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.incr(stats.ConsultationsCreated)
	a.writeJson(w, http.StatusCreated, map[string]any{"request": types.NewConsultationRequest(req)})
}

func (a *App) editConsultation(w http.ResponseWriter, r *http.Request) {
	var in consultation.Input
	if !a.decodeJson(w, r, &in) {
		return
	}

	req, err := a.workflow.Edit(r.Context(), caller(r), r.PathValue("requestId"), in)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"request": types.NewConsultationRequest(req)})
}

func (a *App) acceptConsultation(w http.ResponseWriter, r *http.Request) {
	req, room, err := a.workflow.Accept(r.Context(), caller(r), r.PathValue("requestId"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	dto := types.NewRoom(room)
	a.cs.Push(server.RoomChanged(dto), room.PatientId, room.DoctorId)

	a.writeJson(w, http.StatusOK, map[string]any{
		"request": types.NewConsultationRequest(req),
		"room":    dto,
	})
}

func (a *App) rejectConsultation(w http.ResponseWriter, r *http.Request) {
	req, err := a.workflow.Reject(r.Context(), caller(r), r.PathValue("requestId"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"request": types.NewConsultationRequest(req)})
}

func (a *App) transferConsultation(w http.ResponseWriter, r *http.Request) {
	var body TransferRequest
	if !a.decodeJson(w, r, &body) {
		return
	}

	req, err := a.workflow.Transfer(r.Context(), caller(r), r.PathValue("requestId"), body.DoctorId)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"request": types.NewConsultationRequest(req)})
}
