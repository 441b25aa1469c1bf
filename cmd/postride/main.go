// Command postride drives the ride-posting form end to end from a terminal:
// it geocodes the origin and destination, fills the draft through the same
// store and adapters the gateway uses, and submits once. Useful for smoke
// testing against a real upstream without a browser.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/carnest-gateway/internal/auth"
	"github.com/example/carnest-gateway/internal/form"
	"github.com/example/carnest-gateway/internal/geocode"
	"github.com/example/carnest-gateway/internal/logging"
	"github.com/example/carnest-gateway/internal/models"
	"github.com/example/carnest-gateway/internal/transport"
)

func main() {
	var (
		apiURL      = flag.String("api", envOr("CARNEST_API_URL", "http://localhost:8000"), "upstream Carnest API base URL")
		geocoderURL = flag.String("geocoder", envOr("GEOCODER_URL", "https://photon.komoot.io"), "forward geocoder base URL")
		token       = flag.String("token", os.Getenv("CARNEST_ACCESS_TOKEN"), "bearer access token")
		from        = flag.String("from", "", "origin place text")
		to          = flag.String("to", "", "destination place text")
		fromWithin  = flag.String("from-within", "", "origin radius in miles")
		toWithin    = flag.String("to-within", "", "destination radius in miles")
		departAt    = flag.String("depart", "", "departure time, e.g. 2024-06-01T10:00:00Z")
		price       = flag.String("price", "", "price per seat")
		vehicle     = flag.Int64("vehicle", 0, "vehicle id")
		description = flag.String("description", "", "ride description")
	)
	flag.Parse()
	logger := logging.NewLogger(envOr("LOG_LEVEL", "warn"))

	sess, err := auth.SessionFromHeader("Bearer " + *token)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot post a ride without a valid access token:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := form.NewStore()
	geocoder := geocode.NewClient(*geocoderURL, 1, geocode.NewMemoryCache(time.Minute))
	if err := fillPlace(ctx, geocoder, store, form.RoleOrigin, *from); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := fillPlace(ctx, geocoder, store, form.RoleDestination, *to); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	store.SetField(form.FieldOriginRadius, *fromWithin)
	store.SetField(form.FieldDestinationRadius, *toWithin)
	store.SetField(form.FieldPricePerSeat, *price)
	store.SetField(form.FieldDescription, *description)
	store.SetDepartAt(*departAt)
	store.SetVehicle(*vehicle)

	feedback := form.NewFeedback(6 * time.Second)
	controller := &form.Controller{
		Store:     store,
		Transport: transport.NewClient(*apiURL),
		Session:   sess,
		Feedback:  feedback,
		Logger:    logger,
	}

	out, err := controller.Submit(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "submit failed:", err)
		os.Exit(1)
	}
	if out.State == form.Succeeded {
		msg, _ := feedback.Current()
		fmt.Println(msg)
		return
	}
	fmt.Fprintln(os.Stderr, "ride rejected:")
	for field, msgs := range out.Errors {
		if len(msgs) > 0 {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msgs[0])
		}
	}
	os.Exit(1)
}

func fillPlace(ctx context.Context, g geocode.Geocoder, store *form.Store, role form.PlaceRole, query string) error {
	if query == "" {
		return fmt.Errorf("missing -%s", flagName(role))
	}
	places, err := g.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("geocode %q: %w", query, err)
	}
	adapter := form.PlaceAdapter{Role: role, Store: store}
	if len(places) == 0 {
		// no match: keep the raw text, let the server validate
		adapter.AddressChosen(query)
		return nil
	}
	applyPlace(adapter, places[0])
	return nil
}

func applyPlace(a form.PlaceAdapter, p models.Place) {
	a.AddressChosen(p.Name)
	if p.Lat != nil && p.Lng != nil {
		a.CoordinatesChosen(*p.Lat, *p.Lng)
	}
}

func flagName(role form.PlaceRole) string {
	if role == form.RoleOrigin {
		return "from"
	}
	return "to"
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
