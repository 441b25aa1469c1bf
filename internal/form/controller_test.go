package form

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/example/carnest-gateway/internal/models"
)

type fakeTransport struct {
	mu      sync.Mutex
	sent    []models.SubmitRidePayload
	tokens  []string
	results []models.Result
	block   chan struct{} // when set, PostRide waits on it before answering
}

func (f *fakeTransport) PostRide(ctx context.Context, p models.SubmitRidePayload, token string) models.Result {
	f.mu.Lock()
	f.sent = append(f.sent, p)
	f.tokens = append(f.tokens, token)
	idx := len(f.sent) - 1
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < len(f.results) {
		return f.results[idx]
	}
	return models.Result{Data: map[string]any{}}
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var testSession = models.AuthSession{AccessToken: "tok-1", Profile: models.Profile{ID: "7"}}

func filledStore() *Store {
	s := NewStore()
	PlaceAdapter{Role: RoleOrigin, Store: s}.AddressChosen("Austin, TX")
	PlaceAdapter{Role: RoleOrigin, Store: s}.CoordinatesChosen(30.27, -97.74)
	PlaceAdapter{Role: RoleDestination, Store: s}.AddressChosen("Dallas, TX")
	PlaceAdapter{Role: RoleDestination, Store: s}.CoordinatesChosen(32.78, -96.80)
	s.SetDepartAt("2024-06-01T10:00:00Z")
	s.SetField(FieldPricePerSeat, "15")
	s.SetVehicle(3)
	s.SetField(FieldDescription, "Morning carpool")
	return s
}

func TestSubmitSuccessResetsDraftAndShowsFeedback(t *testing.T) {
	tr := &fakeTransport{results: []models.Result{{Data: map[string]any{"id": float64(11)}}}}
	store := filledStore()
	fb := NewFeedback(time.Minute)
	c := &Controller{Store: store, Transport: tr, Session: testSession, Feedback: fb}

	out, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.State != Succeeded {
		t.Fatalf("state = %v", out.State)
	}

	sent := tr.sent[0]
	if sent.Driver != "7" || sent.GoingFrom != "Austin, TX" || sent.GoingTo != "Dallas, TX" {
		t.Fatalf("payload = %+v", sent)
	}
	if *sent.GoingFromLat != 30.27 || *sent.GoingToLng != -96.80 {
		t.Fatalf("payload coords = %+v", sent)
	}
	if sent.DateTime != "2024-06-01T10:00:00Z" || sent.PricePerSeat != "15" || sent.Vehicle != 3 {
		t.Fatalf("payload = %+v", sent)
	}
	if tr.tokens[0] != "tok-1" {
		t.Fatalf("token = %q", tr.tokens[0])
	}

	if !reflect.DeepEqual(store.Snapshot(), (models.RideDraft{})) {
		t.Fatalf("draft not reset: %+v", store.Snapshot())
	}
	if len(c.Errors()) != 0 {
		t.Fatalf("error bag not empty: %v", c.Errors())
	}
	msg, visible := fb.Current()
	if !visible || msg != "Ride post successfully" {
		t.Fatalf("feedback = %q visible=%v", msg, visible)
	}
	if c.State() != Idle {
		t.Fatalf("controller not back to idle: %v", c.State())
	}
}

func TestSubmitFailureInstallsBagVerbatimAndKeepsDraft(t *testing.T) {
	bag := models.ErrorBag{
		"price_per_seat":      {"Must be positive"},
		models.NonFieldErrors: {"Vehicle already booked"},
	}
	tr := &fakeTransport{results: []models.Result{{Err: &models.APIError{Status: 400, Errors: bag}}}}
	store := filledStore()
	before := store.Snapshot()
	fb := NewFeedback(time.Minute)
	c := &Controller{Store: store, Transport: tr, Session: testSession, Feedback: fb}

	out, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.State != Failed {
		t.Fatalf("state = %v", out.State)
	}
	got := c.Errors()
	if got.First("price_per_seat") != "Must be positive" {
		t.Fatalf("bag = %v", got)
	}
	if got.First(models.NonFieldErrors) != "Vehicle already booked" {
		t.Fatalf("bag = %v", got)
	}
	if len(got) != 2 {
		t.Fatalf("bag has extra keys: %v", got)
	}
	if !reflect.DeepEqual(store.Snapshot(), before) {
		t.Fatalf("draft changed on failure")
	}
	if _, visible := fb.Current(); visible {
		t.Fatalf("feedback shown on failure")
	}
}

func TestFailedSubmissionReplacesBagWholesale(t *testing.T) {
	tr := &fakeTransport{results: []models.Result{
		{Err: &models.APIError{Errors: models.ErrorBag{"price_per_seat": {"Must be positive"}}}},
		{Err: &models.APIError{Errors: models.ErrorBag{"date_time": {"Must be in the future"}}}},
	}}
	c := &Controller{Store: filledStore(), Transport: tr, Session: testSession}

	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := c.Errors()
	if len(got) != 1 || got.First("date_time") != "Must be in the future" {
		t.Fatalf("stale keys survived replacement: %v", got)
	}
}

func TestPayloadSnapshotIsolatedFromLaterEdits(t *testing.T) {
	tr := &fakeTransport{block: make(chan struct{})}
	store := filledStore()
	c := &Controller{Store: store, Transport: tr, Session: testSession, Feedback: NewFeedback(time.Minute)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Submit(context.Background())
	}()

	waitFor(t, func() bool { return tr.calls() == 1 })
	store.SetField(FieldPricePerSeat, "999")
	PlaceAdapter{Role: RoleOrigin, Store: store}.CoordinatesChosen(0.1, 0.2)
	close(tr.block)
	<-done

	sent := tr.sent[0]
	if sent.PricePerSeat != "15" || *sent.GoingFromLat != 30.27 {
		t.Fatalf("in-flight payload saw later edits: %+v", sent)
	}
}

func TestSecondSubmitWhileInFlightIsNoOp(t *testing.T) {
	tr := &fakeTransport{block: make(chan struct{})}
	c := &Controller{Store: filledStore(), Transport: tr, Session: testSession, Feedback: NewFeedback(time.Minute)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Submit(context.Background())
	}()
	waitFor(t, func() bool { return tr.calls() == 1 })

	out, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !out.InFlight {
		t.Fatalf("expected in-flight no-op, got %+v", out)
	}
	close(tr.block)
	<-done

	if tr.calls() != 1 {
		t.Fatalf("second transport call issued: %d", tr.calls())
	}
}

func TestSubmitWithoutSessionIsPreconditionFailure(t *testing.T) {
	tr := &fakeTransport{}
	c := &Controller{Store: filledStore(), Transport: tr, Session: models.AuthSession{}}
	if _, err := c.Submit(context.Background()); err != ErrNoSession {
		t.Fatalf("err = %v", err)
	}
	if tr.calls() != 0 {
		t.Fatalf("transport called without a session")
	}
}

func TestNetworkFailureSurfacesNonFieldMessage(t *testing.T) {
	tr := &fakeTransport{results: []models.Result{{Err: &models.APIError{Kind: models.KindNetwork, Errors: models.ErrorBag{models.NonFieldErrors: {"dial tcp: refused"}}}}}}
	store := filledStore()
	c := &Controller{Store: store, Transport: tr, Session: testSession}

	out, _ := c.Submit(context.Background())
	if out.State != Failed {
		t.Fatalf("state = %v", out.State)
	}
	if c.Errors().First(models.NonFieldErrors) != unreachableMessage {
		t.Fatalf("bag = %v", c.Errors())
	}
	if reflect.DeepEqual(store.Snapshot(), (models.RideDraft{})) {
		t.Fatalf("draft reset on network failure")
	}
}

func TestMalformedResponseSurfacesGenericFailure(t *testing.T) {
	tr := &fakeTransport{results: []models.Result{{}}}
	c := &Controller{Store: filledStore(), Transport: tr, Session: testSession}

	out, _ := c.Submit(context.Background())
	if out.State != Failed {
		t.Fatalf("state = %v", out.State)
	}
	if c.Errors().First(models.NonFieldErrors) != malformedMessage {
		t.Fatalf("bag = %v", c.Errors())
	}
}

func TestNewDraftAfterSuccessStartsFromDefaults(t *testing.T) {
	tr := &fakeTransport{results: []models.Result{{Data: map[string]any{}}}}
	c := &Controller{Store: filledStore(), Transport: tr, Session: testSession, Feedback: NewFeedback(time.Minute)}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(NewStore().Snapshot(), c.Store.Snapshot()) {
		t.Fatalf("post-success draft differs from a fresh one")
	}
}

type fakeVehicles struct {
	contains bool
	asked    []int64
}

func (f *fakeVehicles) Contains(ctx context.Context, id int64) bool {
	f.asked = append(f.asked, id)
	return f.contains
}

func TestUnknownVehicleDoesNotBlockSubmission(t *testing.T) {
	tr := &fakeTransport{results: []models.Result{{Data: map[string]any{}}}}
	v := &fakeVehicles{contains: false}
	c := &Controller{Store: filledStore(), Transport: tr, Session: testSession, Feedback: NewFeedback(time.Minute), Vehicles: v}

	out, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.State != Succeeded {
		t.Fatalf("state = %v", out.State)
	}
	if len(v.asked) != 1 || v.asked[0] != 3 {
		t.Fatalf("vehicle check asked = %v", v.asked)
	}
	if tr.calls() != 1 {
		t.Fatalf("transport calls = %d", tr.calls())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
