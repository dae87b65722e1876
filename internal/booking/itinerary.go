package booking

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/tripmind/backend/internal/domain"
)

var itineraryTmpl = template.Must(template.New("itinerary").Parse(`<html>
<body>
  <h1>Booking {{.BookingRef}}</h1>
  <p>Status: {{.Status}}</p>
  <p>Guest: {{.GuestName}}</p>
  {{if .Flight}}
  <h2>Flight</h2>
  <p>{{.Flight.Airline}} {{.Flight.FlightNumber}} from {{.Flight.Origin}} to {{.Flight.Destination}}</p>
  <p>Departs {{.Flight.DepartureTime}}, arrives {{.Flight.ArrivalTime}}</p>
  <p>Total: {{printf "%.2f" .Flight.Price}} {{.Flight.Currency}}</p>
  {{end}}
  {{if .Hotel}}
  <h2>Hotel</h2>
  <p>{{.Hotel.Name}}, {{.Hotel.Address}}</p>
  <p>{{printf "%.2f" .Hotel.PricePerNight}} {{.Hotel.Currency}} per night, total {{printf "%.2f" .Hotel.TotalPrice}}</p>
  {{end}}
</body>
</html>`))

type itineraryData struct {
	BookingRef string
	Status     string
	GuestName  string
	Flight     *domain.FlightOption
	Hotel      *domain.HotelOption
}

// renderItinerary produces the HTML confirmation body.
func renderItinerary(bookingRef, status, guestName string, flight *domain.FlightOption, hotel *domain.HotelOption) (string, error) {
	var b strings.Builder
	err := itineraryTmpl.Execute(&b, itineraryData{
		BookingRef: bookingRef,
		Status:     status,
		GuestName:  guestName,
		Flight:     flight,
		Hotel:      hotel,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render itinerary: %w", err)
	}
	return b.String(), nil
}
