package models

import (
	"encoding/json"
	"errors"
)

// Location is a point on the globe plus a human readable address. On the
// wire it is GeoJSON shaped: {"type":"Point","coordinates":[lng,lat],"address":"..."}.
type Location struct {
	Latitude  float64 `gorm:"column:latitude"`
	Longitude float64 `gorm:"column:longitude"`
	Address   string  `gorm:"column:address"`
}

type locationJSON struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
}

// MarshalJSON renders the GeoJSON shape.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(locationJSON{
		Type:        "Point",
		Coordinates: []float64{l.Longitude, l.Latitude},
		Address:     l.Address,
	})
}

// UnmarshalJSON accepts either GeoJSON coordinates or explicit
// latitude/longitude keys.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw locationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case len(raw.Coordinates) == 2:
		l.Longitude, l.Latitude = raw.Coordinates[0], raw.Coordinates[1]
	case len(raw.Coordinates) != 0:
		return errors.New("location coordinates must be [longitude, latitude]")
	case raw.Latitude != nil && raw.Longitude != nil:
		l.Latitude, l.Longitude = *raw.Latitude, *raw.Longitude
	}
	l.Address = raw.Address
	return nil
}

// ValidCoordinates reports whether the point lies within WGS84 bounds.
func (l Location) ValidCoordinates() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}
