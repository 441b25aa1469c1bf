package form

// PlaceAdapter fans the two independent events of a location search widget
// out into the store fields for one place role. The widget reports the
// chosen address text and the geocoded coordinates separately; the adapter
// routes each to the right fields, coordinates always as a single atomic
// store update.
type PlaceAdapter struct {
	Role  PlaceRole
	Store *Store
}

// AddressChosen updates only the display-name field for the adapter's role.
func (a PlaceAdapter) AddressChosen(text string) {
	a.Store.SetPlaceName(a.Role, text)
}

// CoordinatesChosen updates both coordinate fields together.
func (a PlaceAdapter) CoordinatesChosen(lat, lng float64) {
	a.Store.SetCoordinates(a.Role, lat, lng)
}
