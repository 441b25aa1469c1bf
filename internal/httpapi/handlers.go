package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/carnest-gateway/internal/auth"
	"github.com/example/carnest-gateway/internal/config"
	"github.com/example/carnest-gateway/internal/form"
	"github.com/example/carnest-gateway/internal/geocode"
	"github.com/example/carnest-gateway/internal/ingest"
	"github.com/example/carnest-gateway/internal/models"
	"github.com/example/carnest-gateway/internal/observability"
	"github.com/example/carnest-gateway/internal/session"
	"github.com/example/carnest-gateway/internal/storage"
	"github.com/example/carnest-gateway/internal/transport"
	"github.com/example/carnest-gateway/internal/vehicles"
)

// Server hosts the form orchestration core for browser sessions: each
// session owns one draft store, one submission controller and one feedback
// notice; the handlers translate widget events and submit actions onto
// them.
type Server struct {
	cfg      config.GatewayConfig
	logger   *slog.Logger
	registry *session.Registry
	upstream *transport.Client
	geocoder geocode.Geocoder
	vehicles *vehicles.Client
	events   *ingest.KafkaProducer // nil without brokers
	receipts storage.ReceiptStore
	hub      *WSHub
	mux      *mux.Router
}

func NewServer(cfg config.GatewayConfig, logger *slog.Logger) *Server {
	var cache geocode.Cache
	if cfg.RedisAddr != "" {
		cache = geocode.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.GeocodeCacheTTL)
	} else {
		cache = geocode.NewMemoryCache(cfg.GeocodeCacheTTL)
	}

	var receipts storage.ReceiptStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			receipts = ps
		} else {
			logger.Warn("postgres unavailable, keeping receipts in memory", "error", err)
		}
	}
	if receipts == nil {
		receipts = storage.NewMemoryStore()
	}

	var events *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		events = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: session.NewRegistry(cfg.SessionTTL),
		upstream: transport.NewClient(cfg.APIBaseURL),
		geocoder: geocode.NewClient(cfg.GeocoderURL, cfg.GeocodeLimit, cache),
		vehicles: vehicles.NewClient(cfg.APIBaseURL, cfg.VehicleCacheTTL),
		events:   events,
		receipts: receipts,
		hub:      NewWSHub(logger),
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handleSessionState).Methods("GET")
	api.HandleFunc("/sessions/{id}/fields", s.handleFieldUpdate).Methods("POST")
	api.HandleFunc("/sessions/{id}/place", s.handlePlaceEvent).Methods("POST")
	api.HandleFunc("/sessions/{id}/submit", s.handleSubmit).Methods("POST")
	api.HandleFunc("/sessions/{id}/feedback/dismiss", s.handleDismiss).Methods("POST")
	api.HandleFunc("/sessions/{id}/vehicles", s.handleVehicles).Methods("GET")
	api.HandleFunc("/geocode", s.handleGeocode).Methods("GET")
	api.HandleFunc("/password-reset", s.handlePasswordReset).Methods("POST")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// RunSessionSweeper drops idle sessions until ctx is canceled.
func (s *Server) RunSessionSweeper(done <-chan struct{}) {
	t := time.NewTicker(s.cfg.SessionTTL / 2)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if n := s.registry.Sweep(); n > 0 {
				s.logger.Info("swept idle sessions", "count", n)
			}
		}
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := auth.SessionFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id := newID()
	store := form.NewStore()
	feedback := form.NewFeedback(s.cfg.FeedbackTTL)
	f := &session.Form{
		ID:       id,
		Auth:     sess,
		Store:    store,
		Feedback: feedback,
		Controller: &form.Controller{
			Store:     store,
			Transport: s.upstream,
			Session:   sess,
			Feedback:  feedback,
			Vehicles:  s.vehicles.Bind(sess.AccessToken),
			Logger:    s.logger,
		},
	}
	s.registry.Put(f)
	s.respondJSON(w, http.StatusCreated, map[string]any{"session_id": id})
}

// sessionState is the snapshot the render layer polls between events.
type sessionState struct {
	Draft    models.RideDraft `json:"draft"`
	Errors   models.ErrorBag  `json:"errors"`
	Feedback feedbackState    `json:"feedback"`
	State    string           `json:"state"`
}

type feedbackState struct {
	Message string `json:"message"`
	Visible bool   `json:"visible"`
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	f, ok := s.formFrom(r)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	msg, visible := f.Feedback.Current()
	s.respondJSON(w, http.StatusOK, sessionState{
		Draft:    f.Store.Snapshot(),
		Errors:   f.Controller.Errors(),
		Feedback: feedbackState{Message: msg, Visible: visible},
		State:    f.Controller.State().String(),
	})
}

func (s *Server) handleFieldUpdate(w http.ResponseWriter, r *http.Request) {
	f, ok := s.formFrom(r)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	var body struct {
		Field string `json:"field"`
		Value any    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch body.Field {
	case "vehicle":
		n, ok := body.Value.(float64)
		if !ok {
			http.Error(w, "vehicle must be a number", http.StatusBadRequest)
			return
		}
		f.Store.SetVehicle(int64(n))
	case "date_time":
		v, ok := body.Value.(string)
		if !ok {
			http.Error(w, "date_time must be a string", http.StatusBadRequest)
			return
		}
		f.Store.SetDepartAt(v)
	default:
		v, ok := body.Value.(string)
		if !ok {
			http.Error(w, "value must be a string", http.StatusBadRequest)
			return
		}
		f.Store.SetField(body.Field, v)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaceEvent(w http.ResponseWriter, r *http.Request) {
	f, ok := s.formFrom(r)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	var body struct {
		Role    string   `json:"role"`
		Address *string  `json:"address"`
		Lat     *float64 `json:"lat"`
		Lng     *float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if (body.Lat == nil) != (body.Lng == nil) {
		http.Error(w, "lat and lng must be sent together", http.StatusBadRequest)
		return
	}
	adapter := form.PlaceAdapter{Role: form.PlaceRole(body.Role), Store: f.Store}
	if body.Address != nil {
		adapter.AddressChosen(*body.Address)
	}
	if body.Lat != nil {
		adapter.CoordinatesChosen(*body.Lat, *body.Lng)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	f, ok := s.formFrom(r)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	out, err := f.Controller.Submit(r.Context())
	if errors.Is(err, form.ErrNoSession) {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if out.InFlight {
		s.respondJSON(w, http.StatusConflict, map[string]any{"in_flight": true})
		return
	}

	switch out.State {
	case form.Succeeded:
		observability.SubmissionsTotal.WithLabelValues("posted").Inc()
		s.recordOutcome(f.ID, out, "posted")
		if s.events != nil {
			if err := s.events.PublishRidePosted(f.ID, out.Payload); err != nil {
				s.logger.Warn("ride-posted event not published", "error", err)
			}
		}
	default:
		observability.SubmissionsTotal.WithLabelValues("rejected").Inc()
		s.recordOutcome(f.ID, out, "rejected")
	}

	msg, visible := f.Feedback.Current()
	s.notify(f.ID, map[string]any{
		"type":     "submission",
		"state":    out.State.String(),
		"errors":   out.Errors,
		"feedback": feedbackState{Message: msg, Visible: visible},
	})
	s.respondJSON(w, http.StatusOK, map[string]any{
		"state":    out.State.String(),
		"errors":   out.Errors,
		"feedback": feedbackState{Message: msg, Visible: visible},
	})
}

func (s *Server) recordOutcome(sessionID string, out form.Outcome, outcome string) {
	fields := make([]string, 0, len(out.Errors))
	for k := range out.Errors {
		fields = append(fields, k)
	}
	receipt := &models.Receipt{
		SessionID:   sessionID,
		Driver:      out.Payload.Driver,
		GoingFrom:   out.Payload.GoingFrom,
		GoingTo:     out.Payload.GoingTo,
		DateTime:    out.Payload.DateTime,
		Outcome:     outcome,
		ErrorFields: fields,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.receipts.SaveReceipt(receipt); err != nil {
		s.logger.Warn("receipt not saved", "error", err)
	}
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	f, ok := s.formFrom(r)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	f.Feedback.Dismiss()
	s.notify(f.ID, map[string]any{"type": "feedback", "message": "", "visible": false})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	f, ok := s.formFrom(r)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	list, err := s.vehicles.List(r.Context(), f.Auth.AccessToken)
	if err != nil {
		http.Error(w, "vehicle list unavailable", http.StatusBadGateway)
		return
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	places, err := s.geocoder.Search(r.Context(), q)
	if err != nil {
		http.Error(w, "geocoder unavailable", http.StatusBadGateway)
		return
	}
	if places == nil {
		places = []models.Place{}
	}
	s.respondJSON(w, http.StatusOK, places)
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rc := &form.ResetController{
		Transport: s.upstream,
		Feedback:  form.NewFeedback(s.cfg.FeedbackTTL),
		Logger:    s.logger,
	}
	out := rc.Submit(r.Context(), body.Email)
	if out.State == form.Succeeded {
		observability.PasswordResetsTotal.WithLabelValues("sent").Inc()
	} else {
		observability.PasswordResetsTotal.WithLabelValues("rejected").Inc()
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"state":  out.State.String(),
		"msg":    out.Message,
		"errors": out.Errors,
	})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.registry.Get(id); !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.hub.Add(id, conn)
}

func (s *Server) notify(sessionID string, payload any) {
	if err := s.hub.Notify(sessionID, payload); err != nil && !errors.Is(err, ErrNoListener) {
		s.logger.Warn("ws notify failed", "session", sessionID, "error", err)
	}
}

func (s *Server) formFrom(r *http.Request) (*session.Form, bool) {
	return s.registry.Get(mux.Vars(r)["id"])
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
