package models

import "time"

// Place is the combined output of the location search widget: the free-text
// display name plus the geocoded coordinate pair. Coordinates are pointers so
// "not chosen yet" is distinguishable from (0, 0).
type Place struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

// RideDraft holds all user-entered and derived field values for one
// in-progress ride post. The coordinate pair for each place is always set or
// cleared together; only the form store writes to this struct.
type RideDraft struct {
	OriginName        string   `json:"going_from"`
	OriginLat         *float64 `json:"going_from_lat"`
	OriginLng         *float64 `json:"going_from_lng"`
	OriginRadius      string   `json:"going_from_within"`
	DestinationName   string   `json:"going_to"`
	DestinationLat    *float64 `json:"going_to_lat"`
	DestinationLng    *float64 `json:"going_to_lng"`
	DestinationRadius string   `json:"going_to_within"`
	DepartAt          string   `json:"date_time"`
	PricePerSeat      string   `json:"price_per_seat"`
	VehicleID         int64    `json:"vehicle"`
	Description       string   `json:"ride_description"`
}

// SubmitRidePayload is the wire shape of the post-ride mutation. Key names
// are fixed by the upstream API.
type SubmitRidePayload struct {
	Driver          string   `json:"driver"`
	GoingFrom       string   `json:"going_from"`
	GoingFromLat    *float64 `json:"going_from_lat"`
	GoingFromLng    *float64 `json:"going_from_lng"`
	GoingFromWithin string   `json:"going_from_within"`
	GoingTo         string   `json:"going_to"`
	GoingToLat      *float64 `json:"going_to_lat"`
	GoingToLng      *float64 `json:"going_to_lng"`
	GoingToWithin   string   `json:"going_to_within"`
	DateTime        string   `json:"date_time"`
	PricePerSeat    string   `json:"price_per_seat"`
	Vehicle         int64    `json:"vehicle"`
	RideDescription string   `json:"ride_description"`
}

// PasswordResetPayload is the wire shape of the forgot-password mutation.
type PasswordResetPayload struct {
	Email string `json:"email"`
}

// NonFieldErrors is the sentinel key the upstream API uses for validation
// errors not attributable to a single input.
const NonFieldErrors = "non_field_errors"

// ErrorBag maps payload field names to one or more human-readable validation
// messages. It is replaced wholesale on every failed submission and cleared
// wholesale on success or on the next attempt.
type ErrorBag map[string][]string

// First returns the first message for a field, or "" when the field is clean.
// Only the first message is shown even when the server sends several.
func (b ErrorBag) First(field string) string {
	if msgs, ok := b[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Has reports whether the bag holds at least one message for the field.
func (b ErrorBag) Has(field string) bool { return b.First(field) != "" }

// Clone returns a deep copy so the render layer never aliases the
// controller's bag.
func (b ErrorBag) Clone() ErrorBag {
	if b == nil {
		return nil
	}
	out := make(ErrorBag, len(b))
	for k, v := range b {
		msgs := make([]string, len(v))
		copy(msgs, v)
		out[k] = msgs
	}
	return out
}

// ErrorKind distinguishes upstream validation failures from transport-level
// failures (unreachable host, timeout).
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNetwork
)

// APIError is the error half of a mutation result.
type APIError struct {
	Status int
	Kind   ErrorKind
	Errors ErrorBag
}

func (e *APIError) Error() string {
	if e.Kind == KindNetwork {
		return "upstream unreachable"
	}
	return "upstream rejected request"
}

// Result is the discriminated outcome of a mutation: exactly one of Data or
// Err is expected to be set. Both nil means the upstream answered with
// something we could not interpret.
type Result struct {
	Data map[string]any
	Err  *APIError
}

// Profile is the slice of the authenticated user's profile this service
// needs: the identifier sent as the ride's driver.
type Profile struct {
	ID string `json:"id"`
}

// AuthSession is the authenticated session context, read-only here. It must
// be non-empty to submit; absence is a precondition violation enforced at
// the HTTP boundary, not a recoverable form error.
type AuthSession struct {
	AccessToken string
	Profile     Profile
}

// Empty reports whether the session is unusable for submission.
func (s AuthSession) Empty() bool {
	return s.AccessToken == "" || s.Profile.ID == ""
}

// Vehicle is one entry of the externally supplied vehicle list.
type Vehicle struct {
	ID    int64  `json:"id"`
	Model string `json:"model"`
}

// Receipt records the outcome of one submission attempt for audit and
// analytics. This is telemetry of the gateway's own activity, not ride
// storage; the upstream API remains the system of record.
type Receipt struct {
	SessionID   string
	Driver      string
	GoingFrom   string
	GoingTo     string
	DateTime    string
	Outcome     string // posted, rejected, unreachable
	ErrorFields []string
	CreatedAt   time.Time
}
