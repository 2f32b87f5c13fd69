package posts

// PlaceID identifies a place
type PlaceID = string

// Place is embedded by value in every Post; the client does not keep a
// separate place table.
type Place struct {
	PlaceID  PlaceID  `json:"placeId" validate:"required"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
}

// Location is a WGS84 coordinate
type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Region is a circular area around a coordinate, radius in meters
type Region struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius" validate:"gte=0"`
}

// MaybeCreatePlaceRequest describes a place the server should reuse or create
// when a post references a place it has not seen before.
type MaybeCreatePlaceRequest struct {
	Region   *Region  `json:"region,omitempty"`
	Name     string   `json:"name" validate:"required"`
	Location Location `json:"location"`
}
