package api

import (
	"net/http"

	"github.com/sihhaapp/sihha/internal/policy"
	"github.com/sihhaapp/sihha/internal/stats"
	"github.com/sihhaapp/sihha/internal/triage"
)

func (a *App) analyzeTriage(w http.ResponseWriter, r *http.Request) {
	user := caller(r)
	if err := policy.Check(policy.TriageAnalyze, user.Role); err != nil {
		a.writeError(w, err)
		return
	}

	var req triage.Request
	if !a.decodeJson(w, r, &req) {
		return
	}

	a.incr(stats.TriageRequests)
	res, err := a.triage.Analyze(r.Context(), user.Id, req)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, res)
}
