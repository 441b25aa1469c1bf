package form

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/carnest-gateway/internal/models"
)

// Transport is the external mutation abstraction for posting a ride. The
// access token travels alongside the payload, never inside it; the transport
// puts it on the Authorization header.
type Transport interface {
	PostRide(ctx context.Context, payload models.SubmitRidePayload, accessToken string) models.Result
}

// VehicleList is the externally supplied list of the user's vehicles, used
// for a best-effort check before submit. The authoritative check is
// server-side.
type VehicleList interface {
	Contains(ctx context.Context, id int64) bool
}

// ErrNoSession is returned when submit is attempted without an authenticated
// session. This is a precondition violation the route layer should have
// prevented, not a recoverable form error.
var ErrNoSession = errors.New("form: no authenticated session")

// State is the submission controller's position in its lifecycle.
type State int32

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

const (
	postSuccessMessage = "Ride post successfully"
	unreachableMessage = "Could not reach the server. Please try again."
	malformedMessage   = "Unexpected response from the server. Please try again."
)

// Outcome reports how one submission attempt ended.
type Outcome struct {
	State    State
	InFlight bool // a previous submission was still running; nothing was sent
	Payload  models.SubmitRidePayload
	Errors   models.ErrorBag
}

// Controller drives one ride draft through Idle, Submitting and back. It
// owns the server error bag exclusively; the render layer only reads it. At
// most one submission is in flight per controller.
type Controller struct {
	Store     *Store
	Transport Transport
	Session   models.AuthSession
	Feedback  *Feedback
	Vehicles  VehicleList
	Logger    *slog.Logger

	mu    sync.Mutex
	state State
	bag   models.ErrorBag
}

// State returns the controller's current lifecycle position. Outside of an
// in-flight submission this is always Idle; Succeeded and Failed are
// reported through the Outcome.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Errors returns a copy of the current server error bag.
func (c *Controller) Errors() models.ErrorBag {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bag.Clone()
}

// Submit runs one attempt: snapshot the draft, call the transport, reconcile
// the result. While a previous attempt is in flight it is a no-op. The draft
// snapshot is taken before the call, so store mutations during the request
// never leak into the payload already sent.
func (c *Controller) Submit(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.state == Submitting {
		c.mu.Unlock()
		return Outcome{State: Submitting, InFlight: true}, nil
	}
	if c.Session.Empty() {
		c.mu.Unlock()
		return Outcome{}, ErrNoSession
	}
	c.state = Submitting
	c.bag = nil
	payload := BuildPayload(c.Store.Snapshot(), c.Session.Profile.ID)
	c.mu.Unlock()

	if c.Vehicles != nil && payload.Vehicle != 0 && !c.Vehicles.Contains(ctx, payload.Vehicle) {
		if c.Logger != nil {
			c.Logger.Warn("selected vehicle not in user's list, deferring to server validation",
				"vehicle", payload.Vehicle)
		}
	}

	res := c.Transport.PostRide(ctx, payload, c.Session.AccessToken)

	c.mu.Lock()
	defer c.mu.Unlock()
	out := Outcome{Payload: payload}
	switch {
	case res.Err != nil:
		c.state = Failed
		if res.Err.Kind == models.KindNetwork {
			c.bag = models.ErrorBag{models.NonFieldErrors: {unreachableMessage}}
		} else {
			c.bag = res.Err.Errors.Clone()
		}
		out.State = Failed
		out.Errors = c.bag.Clone()
	case res.Data != nil:
		c.state = Succeeded
		c.bag = nil
		if c.Feedback != nil {
			c.Feedback.Show(postSuccessMessage)
		}
		c.Store.Reset()
		out.State = Succeeded
	default:
		// Upstream answered with neither data nor error. Surfacing a
		// generic failure beats the original's silent freeze.
		c.state = Failed
		c.bag = models.ErrorBag{models.NonFieldErrors: {malformedMessage}}
		out.State = Failed
		out.Errors = c.bag.Clone()
	}
	c.state = Idle
	return out, nil
}

// BuildPayload maps a draft snapshot plus the driver identity into the fixed
// upstream request shape. Keeping the mapping in one typed function removes
// key-name typos as a class of bug.
func BuildPayload(d models.RideDraft, driverID string) models.SubmitRidePayload {
	return models.SubmitRidePayload{
		Driver:          driverID,
		GoingFrom:       d.OriginName,
		GoingFromLat:    d.OriginLat,
		GoingFromLng:    d.OriginLng,
		GoingFromWithin: d.OriginRadius,
		GoingTo:         d.DestinationName,
		GoingToLat:      d.DestinationLat,
		GoingToLng:      d.DestinationLng,
		GoingToWithin:   d.DestinationRadius,
		DateTime:        d.DepartAt,
		PricePerSeat:    d.PricePerSeat,
		Vehicle:         d.VehicleID,
		RideDescription: d.Description,
	}
}
