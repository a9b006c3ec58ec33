// Package store persists donors and blood requests. Two backends exist:
// Postgres through gorm and MongoDB through the official driver.
package store

import (
	"context"
	"errors"

	"github.com/example/bloodlink/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// DonorFilter narrows donor listings.
type DonorFilter struct {
	BloodType     models.BloodType
	AvailableOnly bool
}

// NearbyQuery describes a proximity search. MaxDistance is in metres.
type NearbyQuery struct {
	Latitude    float64
	Longitude   float64
	MaxDistance float64
	BloodTypes  []models.BloodType
	Limit       int
}

// RequestFilter narrows blood request listings.
type RequestFilter struct {
	BloodType    models.BloodType
	Status       models.RequestStatus
	RequesterID  string
	ContactPhone string
	IDs          []string
	Limit        int
	Offset       int
}

// DonorStore persists Donor documents.
type DonorStore interface {
	Create(ctx context.Context, donor *models.Donor) error
	FindByID(ctx context.Context, id string) (*models.Donor, error)
	FindByPhone(ctx context.Context, phone string) (*models.Donor, error)
	List(ctx context.Context, filter DonorFilter) ([]models.Donor, error)
	Nearby(ctx context.Context, q NearbyQuery) ([]models.Donor, error)
	// Update writes every scalar field of the donor, including the stored
	// password hash as-is. Donations are not touched.
	Update(ctx context.Context, donor *models.Donor) error
	Delete(ctx context.Context, id string) error
	AddDonation(ctx context.Context, donorID string, donation *models.Donation) error
	LinkRequest(ctx context.Context, donorID, requestID string) error
}

// RequestStore persists BloodRequest documents and their donor responses.
type RequestStore interface {
	Create(ctx context.Context, req *models.BloodRequest) error
	FindByID(ctx context.Context, id string) (*models.BloodRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]models.BloodRequest, int64, error)
	// Update writes the request's scalar fields and upserts its responses.
	Update(ctx context.Context, req *models.BloodRequest) error
	Delete(ctx context.Context, id string) error
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
