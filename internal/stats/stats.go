// Package stats keeps in-process counters for the API and the websocket hub
// and serves them as JSON at GET /debug/vars.
package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"
	"time"
)

// Counter names.
const (
	ConsultationsCreated = "ConsultationsCreated"
	MessagesPosted       = "MessagesPosted"
	LiveTransitions      = "LiveTransitions"
	TriageRequests       = "TriageRequests"
	WsConnections        = "WsConnections"
)

var defaultMetrics = []string{
	ConsultationsCreated,
	MessagesPosted,
	LiveTransitions,
	TriageRequests,
	WsConnections,
}

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

type delta struct {
	name string
	by   int64
}

// StatsUpdater applies counter deltas on a single goroutine so callers on the
// request path never contend on the map.
type StatsUpdater struct {
	vars    *expvar.Map
	started time.Time
	updates chan delta
	done    chan struct{}
	stop    sync.Once
}

// NewStatsUpdater registers the counters and serves them at GET /debug/vars.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:    new(expvar.Map).Init(),
		started: time.Now(),
		updates: make(chan delta, 512),
		done:    make(chan struct{}),
	}

	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(su.started).Milliseconds()
	}))
	for _, name := range defaultMetrics {
		su.RegisterMetric(name)
	}

	mux.HandleFunc("GET /debug/vars", su.serveVars)

	return su
}

func (su *StatsUpdater) serveVars(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]json.RawMessage)
	su.vars.Do(func(kv expvar.KeyValue) {
		out[kv.Key] = json.RawMessage(kv.Value.String())
	})

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(out)
}

func (su *StatsUpdater) apply() {
	for {
		select {
		case d := <-su.updates:
			// Map.Add creates unknown counters on first use
			su.vars.Add(d.name, d.by)
		case <-su.done:
			for {
				select {
				case d := <-su.updates:
					su.vars.Add(d.name, d.by)
				default:
					return
				}
			}
		}
	}
}

func (su *StatsUpdater) send(d delta) {
	select {
	case <-su.done:
	case su.updates <- d:
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.send(delta{name: name, by: 1})
}

func (su *StatsUpdater) Decr(name string) {
	su.send(delta{name: name, by: -1})
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

// Value reads a counter. Unknown names read as zero.
func (su *StatsUpdater) Value(name string) int64 {
	if v, ok := su.vars.Get(name).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

func (su *StatsUpdater) Run() {
	go su.apply()
}

// Stop applies what is already queued. Deltas sent afterwards are dropped.
func (su *StatsUpdater) Stop() {
	su.stop.Do(func() { close(su.done) })
}
