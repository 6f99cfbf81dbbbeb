package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/sihhaapp/sihha/internal/cache"
	"github.com/sihhaapp/sihha/internal/config"
	"github.com/sihhaapp/sihha/internal/consultation"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/ledger"
	"github.com/sihhaapp/sihha/internal/live"
	"github.com/sihhaapp/sihha/internal/livekit"
	"github.com/sihhaapp/sihha/internal/presence"
	"github.com/sihhaapp/sihha/internal/records"
	"github.com/sihhaapp/sihha/internal/rooms"
	"github.com/sihhaapp/sihha/internal/server"
	"github.com/sihhaapp/sihha/internal/stats"
	"github.com/sihhaapp/sihha/internal/storage"
	"github.com/sihhaapp/sihha/internal/triage"
	"go.uber.org/zap"
)

// ObjectStore keeps uploaded files and returns the URL they are served from.
type ObjectStore interface {
	Put(ctx context.Context, cat storage.Category, userId string, f storage.File) (string, error)
}

type App struct {
	log            *zap.Logger
	repo           database.Repository
	srv            *http.Server
	cs             *server.ChatServer
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string
	adminPassword  string
	now            func() time.Time

	objects      ObjectStore
	kv           cache.KV
	triageClient triage.Client

	registry    *rooms.Registry
	tracker     *presence.Tracker
	appPresence *presence.AppTracker
	ledger      *ledger.Ledger
	workflow    *consultation.Workflow
	live        *live.Negotiator
	records     *records.Service
	triage      *triage.Service
}

type Option func(*App)

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func WithTriageClient(c triage.Client) Option {
	return func(a *App) { a.triageClient = c }
}

func WithObjectStore(s ObjectStore) Option {
	return func(a *App) { a.objects = s }
}

// WithCache throttles app presence writes through kv.
func WithCache(kv cache.KV) Option {
	return func(a *App) { a.kv = kv }
}

func NewApp(
	mux *http.ServeMux,
	logger *zap.Logger,
	cs *server.ChatServer,
	repo database.Repository,
	su stats.StatsProvider,
	cfg *config.Config,
	opts ...Option,
) *App {
	a := &App{
		log:            logger,
		repo:           repo,
		cs:             cs,
		stats:          su,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		adminPassword:  cfg.Admin.DefaultPassword,
		now:            func() time.Time { return time.Now().UTC() },
		objects:        (*storage.S3Store)(nil),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.registry = rooms.NewRegistry(repo, a.now)
	a.tracker = presence.NewTracker(repo, presence.WithClock(a.now))
	a.appPresence = presence.NewAppTracker(repo, a.kv, logger)
	a.ledger = ledger.NewLedger(repo, a.tracker, a.now)
	a.workflow = consultation.NewWorkflow(repo, a.registry, logger, a.now)
	a.records = records.NewService(repo, a.registry, logger, a.now)

	ttl := time.Duration(cfg.LiveKit.TokenTTLSeconds) * time.Second
	issuer := livekit.NewTokenIssuer(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, ttl)
	a.live = live.NewNegotiator(repo, a.tracker, a.ledger, issuer, cfg.LiveKit.RoomPrefix, logger)
	a.triage = triage.NewService(a.triageClient, cfg.OpenAI.TriageModel, cfg.OpenAI.EnableModeration, repo, logger)

	a.routes(mux)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = a.errorHandler(h)
	h = a.accessLog(h)

	a.srv = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a
}

func (a *App) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.healthCheck)

	mux.HandleFunc("POST /api/auth/signup", a.signup)
	mux.HandleFunc("POST /api/auth/signin", a.signin)
	mux.Handle("GET /api/auth/me", a.authMiddleware(a.me))
	mux.Handle("POST /api/auth/logout", a.authMiddleware(a.logout))
	mux.Handle("POST /api/auth/change-password", a.authMiddleware(a.changePassword))

	mux.Handle("GET /api/doctors", a.authMiddleware(a.listDoctors))
	mux.Handle("PUT /api/users/me/doctor-profile", a.authMiddleware(a.updateDoctorProfile))
	mux.Handle("POST /api/users/me/photo", a.authMiddleware(a.uploadPhoto))

	mux.Handle("GET /api/admin/users", a.authMiddleware(a.adminOnly(a.adminListUsers)))
	mux.Handle("POST /api/admin/users", a.authMiddleware(a.adminOnly(a.adminCreateUser)))
	mux.Handle("GET /api/admin/dashboard", a.authMiddleware(a.adminOnly(a.adminDashboard)))
	mux.Handle("PATCH /api/admin/users/{userId}/status", a.authMiddleware(a.adminOnly(a.adminSetStatus)))
	mux.Handle("POST /api/admin/users/{userId}/reset-password", a.authMiddleware(a.adminOnly(a.adminResetPassword)))
	mux.Handle("DELETE /api/admin/users/{userId}", a.authMiddleware(a.adminOnly(a.adminDeleteUser)))

	mux.Handle("POST /api/rooms/create-or-get", a.authMiddleware(a.createOrGetRoom))
	mux.Handle("GET /api/rooms/with-doctor/{doctorId}", a.authMiddleware(a.roomWithDoctor))
	mux.Handle("GET /api/rooms", a.authMiddleware(a.listRooms))
	mux.Handle("GET /api/rooms/{roomId}", a.authMiddleware(a.getRoom))
	mux.Handle("POST /api/rooms/{roomId}/close", a.authMiddleware(a.closeRoom))
	mux.Handle("POST /api/rooms/{roomId}/presence", a.authMiddleware(a.setPresence))
	mux.Handle("GET /api/rooms/{roomId}/messages", a.authMiddleware(a.getMessages))
	mux.Handle("POST /api/rooms/{roomId}/messages/text", a.authMiddleware(a.postText))
	mux.Handle("POST /api/rooms/{roomId}/messages/audio", a.authMiddleware(a.postAudio))
	mux.Handle("POST /api/rooms/{roomId}/messages/image", a.authMiddleware(a.postImage))
	mux.Handle("POST /api/rooms/{roomId}/messages/live", a.authMiddleware(a.postLiveSignal))

	mux.Handle("GET /api/rooms/{roomId}/live/status", a.authMiddleware(a.liveStatus))
	mux.Handle("POST /api/rooms/{roomId}/live/request", a.authMiddleware(a.liveTransition(a.live.Request)))
	mux.Handle("POST /api/rooms/{roomId}/live/start", a.authMiddleware(a.liveTransition(a.live.Start)))
	mux.Handle("POST /api/rooms/{roomId}/live/accept", a.authMiddleware(a.liveTransition(a.live.Accept)))
	mux.Handle("POST /api/rooms/{roomId}/live/reject", a.authMiddleware(a.liveTransition(a.live.Reject)))
	mux.Handle("POST /api/rooms/{roomId}/live/stop", a.authMiddleware(a.liveTransition(a.live.Stop)))
	mux.Handle("POST /api/rooms/{roomId}/live/join", a.authMiddleware(a.liveJoin))

	mux.Handle("GET /api/rooms/{roomId}/consultation-request", a.authMiddleware(a.consultationForRoom))
	mux.Handle("GET /api/rooms/{roomId}/medical-record", a.authMiddleware(a.getMedicalRecord))
	mux.Handle("PUT /api/rooms/{roomId}/medical-record", a.authMiddleware(a.updateMedicalRecord))

	mux.Handle("GET /api/consultation-requests/mine", a.authMiddleware(a.myConsultations))
	mux.Handle("GET /api/consultation-requests/inbox", a.authMiddleware(a.consultationInbox))
	mux.Handle("POST /api/consultation-requests", a.authMiddleware(a.createConsultation))
	mux.Handle("PUT /api/consultation-requests/{requestId}", a.authMiddleware(a.editConsultation))
	mux.Handle("POST /api/consultation-requests/{requestId}/accept", a.authMiddleware(a.acceptConsultation))
	mux.Handle("POST /api/consultation-requests/{requestId}/reject", a.authMiddleware(a.rejectConsultation))
	mux.Handle("POST /api/consultation-requests/{requestId}/transfer", a.authMiddleware(a.transferConsultation))

	mux.Handle("POST /api/uploads/audio", a.authMiddleware(a.upload(storage.Audio)))
	mux.Handle("POST /api/uploads/image", a.authMiddleware(a.upload(storage.Image)))
	mux.Handle("POST /api/uploads/prescription-pdf", a.authMiddleware(a.uploadPrescription))

	mux.Handle("POST /api/triage/analyze", a.authMiddleware(a.analyzeTriage))

	mux.Handle("GET /api/blogs", a.authMiddleware(a.listBlogs))
	mux.Handle("POST /api/blogs", a.authMiddleware(a.createBlog))

	mux.Handle("GET /ws", a.authMiddleware(a.serveWs))
}

// Handler is the fully wrapped root handler.
func (a *App) Handler() http.Handler {
	return a.srv.Handler
}

func (a *App) Start() error {
	a.log.Info("starting server", zap.String("addr", a.srv.Addr))
	return a.srv.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down HTTP server")
	if err := a.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (a *App) incr(metric string) {
	if a.stats != nil {
		a.stats.Incr(metric)
	}
}
