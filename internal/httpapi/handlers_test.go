package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt"

	"github.com/example/carnest-gateway/internal/config"
	"github.com/example/carnest-gateway/internal/models"
)

// fakeUpstream stands in for the Carnest API; the ride response is
// switchable per test step.
type fakeUpstream struct {
	mu         sync.Mutex
	rideStatus int
	rideBody   string
}

func (u *fakeUpstream) set(status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rideStatus = status
	u.rideBody = body
}

func (u *fakeUpstream) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		status, body := u.rideStatus, u.rideBody
		u.mu.Unlock()
		switch r.URL.Path {
		case "/api/rides/":
			w.WriteHeader(status)
			fmt.Fprint(w, body)
		case "/api/user/send-reset-password-email/":
			fmt.Fprint(w, `{"msg":"Reset link sent"}`)
		case "/api/vehicle/":
			fmt.Fprint(w, `[{"id":3,"model":"Civic"}]`)
		default:
			http.NotFound(w, r)
		}
	})
}

func testToken(t *testing.T) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": float64(7)}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func newTestServer(t *testing.T, upstreamURL, geocoderURL string) *Server {
	t.Helper()
	cfg := config.GatewayConfig{
		APIBaseURL:      upstreamURL,
		GeocoderURL:     geocoderURL,
		GeocodeCacheTTL: time.Minute,
		GeocodeLimit:    5,
		FeedbackTTL:     time.Minute,
		SessionTTL:      time.Minute,
		VehicleCacheTTL: time.Minute,
	}
	return NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestCreateSessionRequiresToken(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	if w := doJSON(t, s, "POST", "/api/v1/sessions", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRidePostingFlow(t *testing.T) {
	up := &fakeUpstream{}
	upstream := httptest.NewServer(up.handler())
	defer upstream.Close()
	s := newTestServer(t, upstream.URL, "http://unused.invalid")
	authed := map[string]string{"Authorization": "Bearer " + testToken(t)}

	w := doJSON(t, s, "POST", "/api/v1/sessions", nil, authed)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body)
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	base := "/api/v1/sessions/" + created.SessionID

	steps := []map[string]any{
		{"field": "price_per_seat", "value": "15"},
		{"field": "ride_description", "value": "Morning carpool"},
		{"field": "date_time", "value": "2024-06-01T10:00:00Z"},
		{"field": "vehicle", "value": 3},
	}
	for _, step := range steps {
		if w := doJSON(t, s, "POST", base+"/fields", step, nil); w.Code != http.StatusNoContent {
			t.Fatalf("field %v status = %d", step, w.Code)
		}
	}
	places := []map[string]any{
		{"role": "origin", "address": "Austin, TX"},
		{"role": "origin", "lat": 30.27, "lng": -97.74},
		{"role": "destination", "address": "Dallas, TX", "lat": 32.78, "lng": -96.80},
	}
	for _, p := range places {
		if w := doJSON(t, s, "POST", base+"/place", p, nil); w.Code != http.StatusNoContent {
			t.Fatalf("place %v status = %d", p, w.Code)
		}
	}

	// server rejects first
	up.set(http.StatusBadRequest, `{"errors":{"price_per_seat":["Must be positive"],"non_field_errors":["Vehicle already booked"]}}`)
	w = doJSON(t, s, "POST", base+"/submit", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d", w.Code)
	}
	var failed struct {
		State  string          `json:"state"`
		Errors models.ErrorBag `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &failed); err != nil {
		t.Fatal(err)
	}
	if failed.State != "failed" || failed.Errors.First("price_per_seat") != "Must be positive" {
		t.Fatalf("failed submit = %+v", failed)
	}

	// draft survives the rejection
	var state struct {
		Draft  models.RideDraft `json:"draft"`
		Errors models.ErrorBag  `json:"errors"`
	}
	w = doJSON(t, s, "GET", base, nil, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if state.Draft.PricePerSeat != "15" || state.Draft.OriginName != "Austin, TX" {
		t.Fatalf("draft lost after rejection: %+v", state.Draft)
	}
	if state.Errors.First(models.NonFieldErrors) != "Vehicle already booked" {
		t.Fatalf("errors missing from state: %v", state.Errors)
	}

	// then accepts
	up.set(http.StatusCreated, `{"id":11}`)
	w = doJSON(t, s, "POST", base+"/submit", nil, nil)
	var ok struct {
		State    string `json:"state"`
		Feedback struct {
			Message string `json:"message"`
			Visible bool   `json:"visible"`
		} `json:"feedback"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ok); err != nil {
		t.Fatal(err)
	}
	if ok.State != "succeeded" || !ok.Feedback.Visible || ok.Feedback.Message != "Ride post successfully" {
		t.Fatalf("success submit = %+v", ok)
	}

	w = doJSON(t, s, "GET", base, nil, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if state.Draft.PricePerSeat != "" || state.Draft.OriginLat != nil || len(state.Errors) != 0 {
		t.Fatalf("draft/errors not cleared on success: %+v %v", state.Draft, state.Errors)
	}

	if w := doJSON(t, s, "POST", base+"/feedback/dismiss", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("dismiss status = %d", w.Code)
	}
}

func TestPlaceEventRejectsSplitCoordinatePair(t *testing.T) {
	up := &fakeUpstream{}
	upstream := httptest.NewServer(up.handler())
	defer upstream.Close()
	s := newTestServer(t, upstream.URL, "http://unused.invalid")

	w := doJSON(t, s, "POST", "/api/v1/sessions", nil, map[string]string{"Authorization": "Bearer " + testToken(t)})
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, s, "POST", "/api/v1/sessions/"+created.SessionID+"/place", map[string]any{"role": "origin", "lat": 30.27}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestPasswordReset(t *testing.T) {
	up := &fakeUpstream{}
	upstream := httptest.NewServer(up.handler())
	defer upstream.Close()
	s := newTestServer(t, upstream.URL, "http://unused.invalid")

	w := doJSON(t, s, "POST", "/api/v1/password-reset", map[string]any{"email": "user@example.com"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		State string `json:"state"`
		Msg   string `json:"msg"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.State != "succeeded" || out.Msg != "Reset link sent" {
		t.Fatalf("reset = %+v", out)
	}
}

func TestGeocodeEndpoint(t *testing.T) {
	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features":[{"geometry":{"coordinates":[-97.74,30.27]},"properties":{"name":"Austin","state":"Texas"}}]}`)
	}))
	defer geocoder.Close()
	s := newTestServer(t, "http://unused.invalid", geocoder.URL)

	w := doJSON(t, s, "GET", "/api/v1/geocode?q=Austin", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var places []models.Place
	if err := json.Unmarshal(w.Body.Bytes(), &places); err != nil {
		t.Fatal(err)
	}
	if len(places) != 1 || places[0].Name != "Austin, Texas" {
		t.Fatalf("places = %+v", places)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	if w := doJSON(t, s, "GET", "/api/v1/sessions/deadbeef", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
