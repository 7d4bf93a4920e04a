package geo

import "strings"

// Bounds is a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

func (b Bounds) Center() (lat, lng float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// Continental bounding boxes for the markets the network operates in.
// Used by the placeholder candidate generator when no finer bounds are known.
var countryBounds = map[string]Bounds{
	"US": {MinLat: 24.5, MinLng: -124.8, MaxLat: 49.4, MaxLng: -66.9},
	"CA": {MinLat: 41.7, MinLng: -141.0, MaxLat: 70.0, MaxLng: -52.6},
	"MX": {MinLat: 14.5, MinLng: -118.4, MaxLat: 32.7, MaxLng: -86.7},
	"GB": {MinLat: 49.9, MinLng: -8.6, MaxLat: 58.7, MaxLng: 1.8},
	"DE": {MinLat: 47.3, MinLng: 5.9, MaxLat: 55.1, MaxLng: 15.0},
	"AU": {MinLat: -43.6, MinLng: 113.3, MaxLat: -10.7, MaxLng: 153.6},
}

// CountryBounds returns the bounding box for an ISO country code,
// falling back to the US box for unknown codes.
func CountryBounds(code string) Bounds {
	if b, ok := countryBounds[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return b
	}
	return countryBounds["US"]
}
