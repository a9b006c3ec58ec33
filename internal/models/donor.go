package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Donor is a registered individual eligible to give blood.
type Donor struct {
	BaseModel
	Name         string         `gorm:"not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	Phone        string         `gorm:"uniqueIndex;size:10;not null" json:"phone"`
	PasswordHash string         `gorm:"not null" json:"-"`
	BloodType    BloodType      `gorm:"index;size:3;not null" json:"bloodType"`
	Location     Location       `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	IsAdmin      bool           `gorm:"not null" json:"isAdmin"`
	IsAvailable  bool           `gorm:"not null;index" json:"isAvailable"`
	LastDonation *time.Time     `json:"lastDonation"`
	Donations    []Donation     `gorm:"foreignKey:DonorID;constraint:OnDelete:CASCADE" json:"donations"`
	Requests     pq.StringArray `gorm:"type:text[]" json:"requests"`

	// Distance in metres from the query point; only set by nearby lookups.
	Distance float64 `gorm:"->;-:migration" json:"distance,omitempty"`
}

// Donation is one entry of a donor's donation history.
type Donation struct {
	BaseModel
	DonorID  string    `gorm:"type:uuid;index;not null" json:"-"`
	Date     time.Time `gorm:"not null" json:"date"`
	Location string    `gorm:"not null" json:"location"`
	Notes    string    `json:"notes,omitempty"`
}

// HasRequest reports whether the donor already references the request.
func (d *Donor) HasRequest(requestID string) bool {
	for _, id := range d.Requests {
		if id == requestID {
			return true
		}
	}
	return false
}

// RecordDonation appends a donation and keeps LastDonation pointing at the
// most recent date.
func (d *Donor) RecordDonation(donation Donation) {
	d.Donations = append(d.Donations, donation)
	if d.LastDonation == nil || donation.Date.After(*d.LastDonation) {
		date := donation.Date
		d.LastDonation = &date
	}
}

// InitCollections replaces nil slices with empty ones so they render as [].
func (d *Donor) InitCollections() {
	if d.Donations == nil {
		d.Donations = []Donation{}
	}
	if d.Requests == nil {
		d.Requests = pq.StringArray{}
	}
}

// AfterFind runs once associations are preloaded.
func (d *Donor) AfterFind(*gorm.DB) error {
	d.InitCollections()
	return nil
}
