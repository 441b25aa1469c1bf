package form

import (
	"sync"

	"github.com/example/carnest-gateway/internal/models"
)

// PlaceRole discriminates which place a location widget event targets.
type PlaceRole string

const (
	RoleOrigin      PlaceRole = "origin"
	RoleDestination PlaceRole = "destination"
)

// Scalar field names the store accepts through SetField. They match the
// upstream payload keys so the error bag indexes line up with the inputs.
const (
	FieldOriginRadius      = "going_from_within"
	FieldDestinationRadius = "going_to_within"
	FieldPricePerSeat      = "price_per_seat"
	FieldDescription       = "ride_description"
)

// Store is the single source of truth for one in-progress ride draft. All
// updates are named operations, synchronous and total; none can fail or
// leave a latitude set without its paired longitude. One Store per form
// instance.
type Store struct {
	mu    sync.Mutex
	draft models.RideDraft
}

func NewStore() *Store { return &Store{} }

// SetField replaces one scalar text field. Unknown field names are ignored;
// the coordinate fields are deliberately not reachable from here.
func (s *Store) SetField(field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch field {
	case FieldOriginRadius:
		s.draft.OriginRadius = value
	case FieldDestinationRadius:
		s.draft.DestinationRadius = value
	case FieldPricePerSeat:
		s.draft.PricePerSeat = value
	case FieldDescription:
		s.draft.Description = value
	}
}

// SetPlaceName replaces only the display name for the given role. An
// unrecognized role is a no-op.
func (s *Store) SetPlaceName(role PlaceRole, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch role {
	case RoleOrigin:
		s.draft.OriginName = name
	case RoleDestination:
		s.draft.DestinationName = name
	}
}

// SetCoordinates replaces both coordinate fields for the given role in one
// update. This is the only write path to the coordinate fields, which keeps
// the lat/lng pairing intact under rapid re-entry.
func (s *Store) SetCoordinates(role PlaceRole, lat, lng float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch role {
	case RoleOrigin:
		s.draft.OriginLat, s.draft.OriginLng = &lat, &lng
	case RoleDestination:
		s.draft.DestinationLat, s.draft.DestinationLng = &lat, &lng
	}
}

// SetDepartAt replaces the departure timestamp (ISO-8601 text from the
// date/time widget, validated upstream).
func (s *Store) SetDepartAt(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.DepartAt = value
}

// SetVehicle replaces the selected vehicle id. Zero means none selected.
func (s *Store) SetVehicle(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.VehicleID = id
}

// Reset restores the draft to its empty default shape, the same shape a
// fresh Store starts from.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = models.RideDraft{}
}

// Snapshot returns a value copy of the current draft. The coordinate
// pointers are cloned so later store updates cannot reach into a payload
// already being sent.
func (s *Store) Snapshot() models.RideDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft
	d.OriginLat = clone(d.OriginLat)
	d.OriginLng = clone(d.OriginLng)
	d.DestinationLat = clone(d.DestinationLat)
	d.DestinationLng = clone(d.DestinationLng)
	return d
}

func clone(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
