package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/bloodlink/internal/models"
)

// great-circle distance in metres between the donor row and a point;
// bind order: lat, lat, lng
const haversineSQL = `6371000 * 2 * ASIN(SQRT(POWER(SIN(RADIANS(location_latitude - ?) / 2), 2) + ` +
	`COS(RADIANS(?)) * COS(RADIANS(location_latitude)) * POWER(SIN(RADIANS(location_longitude - ?) / 2), 2)))`

var donorColumns = []string{
	"name", "email", "phone", "password_hash", "blood_type",
	"location_latitude", "location_longitude", "location_address",
	"is_admin", "is_available", "last_donation", "requests", "updated_at",
}

var requestColumns = []string{
	"patient_name", "contact_name", "contact_phone", "blood_type", "units", "hospital",
	"location_latitude", "location_longitude", "location_address",
	"urgency", "notes", "status", "updated_at",
}

// PostgresDonors is the gorm-backed DonorStore.
type PostgresDonors struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewPostgresDonors constructs PostgresDonors.
func NewPostgresDonors(db *gorm.DB, log logrus.FieldLogger) *PostgresDonors {
	return &PostgresDonors{db: db, log: log.WithField("store", "postgres.donors")}
}

func (s *PostgresDonors) Create(ctx context.Context, donor *models.Donor) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(donor).Error
	return translateGormError(err)
}

func (s *PostgresDonors) FindByID(ctx context.Context, id string) (*models.Donor, error) {
	if !validUUID(id) {
		return nil, ErrNotFound
	}

	var donor models.Donor
	err := s.db.WithContext(ctx).
		Preload("Donations", func(tx *gorm.DB) *gorm.DB { return tx.Order("date asc") }).
		First(&donor, "id = ?", id).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &donor, nil
}

func (s *PostgresDonors) FindByPhone(ctx context.Context, phone string) (*models.Donor, error) {
	var donor models.Donor
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&donor).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &donor, nil
}

func (s *PostgresDonors) List(ctx context.Context, filter DonorFilter) ([]models.Donor, error) {
	query := s.db.WithContext(ctx).Model(&models.Donor{})
	if filter.BloodType != "" {
		query = query.Where("blood_type = ?", filter.BloodType)
	}
	if filter.AvailableOnly {
		query = query.Where("is_available = ?", true)
	}

	var donors []models.Donor
	if err := query.Order("created_at asc").Find(&donors).Error; err != nil {
		return nil, translateGormError(err)
	}
	return donors, nil
}

func (s *PostgresDonors) Nearby(ctx context.Context, q NearbyQuery) ([]models.Donor, error) {
	query := s.db.WithContext(ctx).Model(&models.Donor{}).
		Select("donors.*, "+haversineSQL+" AS distance", q.Latitude, q.Latitude, q.Longitude).
		Where("is_available = ?", true).
		Where(haversineSQL+" <= ?", q.Latitude, q.Latitude, q.Longitude, q.MaxDistance)

	if len(q.BloodTypes) > 0 {
		query = query.Where("blood_type IN ?", q.BloodTypes)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var donors []models.Donor
	if err := query.Order("distance asc").Find(&donors).Error; err != nil {
		return nil, translateGormError(err)
	}
	return donors, nil
}

func (s *PostgresDonors) Update(ctx context.Context, donor *models.Donor) error {
	res := s.db.WithContext(ctx).Model(donor).
		Select(donorColumns).
		Omit(clause.Associations).
		Updates(donor)
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresDonors) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).Delete(&models.Donor{}, "id = ?", id)
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresDonors) AddDonation(ctx context.Context, donorID string, donation *models.Donation) error {
	if !validUUID(donorID) {
		return ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Donor{}).Where("id = ?", donorID).
			Update("last_donation", gorm.Expr("GREATEST(COALESCE(last_donation, ?), ?)", donation.Date, donation.Date))
		if res.Error != nil {
			return translateGormError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		donation.DonorID = donorID
		return translateGormError(tx.Create(donation).Error)
	})
}

func (s *PostgresDonors) LinkRequest(ctx context.Context, donorID, requestID string) error {
	if !validUUID(donorID) {
		return ErrNotFound
	}

	db := s.db.WithContext(ctx)
	res := db.Model(&models.Donor{}).
		Where("id = ?", donorID).
		Where("NOT (? = ANY(COALESCE(requests, '{}')))", requestID).
		Update("requests", gorm.Expr("array_append(COALESCE(requests, '{}'), ?)", requestID))
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&models.Donor{}).Where("id = ?", donorID).Count(&count).Error; err != nil {
		return translateGormError(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresRequests is the gorm-backed RequestStore.
type PostgresRequests struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewPostgresRequests constructs PostgresRequests.
func NewPostgresRequests(db *gorm.DB, log logrus.FieldLogger) *PostgresRequests {
	return &PostgresRequests{db: db, log: log.WithField("store", "postgres.requests")}
}

func (s *PostgresRequests) Create(ctx context.Context, req *models.BloodRequest) error {
	return translateGormError(s.db.WithContext(ctx).Create(req).Error)
}

func (s *PostgresRequests) FindByID(ctx context.Context, id string) (*models.BloodRequest, error) {
	if !validUUID(id) {
		return nil, ErrNotFound
	}

	var req models.BloodRequest
	err := s.db.WithContext(ctx).
		Preload("Responses", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at asc") }).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &req, nil
}

func (s *PostgresRequests) List(ctx context.Context, filter RequestFilter) ([]models.BloodRequest, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.BloodRequest{})
	if filter.BloodType != "" {
		query = query.Where("blood_type = ?", filter.BloodType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.RequesterID != "" {
		query = query.Where("requester_id = ?", filter.RequesterID)
	}
	if filter.ContactPhone != "" {
		query = query.Where("contact_phone = ?", filter.ContactPhone)
	}
	if filter.IDs != nil {
		ids := make([]string, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if validUUID(id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return []models.BloodRequest{}, 0, nil
		}
		query = query.Where("id IN ?", ids)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateGormError(err)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var requests []models.BloodRequest
	err := query.
		Preload("Responses", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at asc") }).
		Order("created_at desc").
		Find(&requests).Error
	if err != nil {
		return nil, 0, translateGormError(err)
	}
	return requests, total, nil
}

func (s *PostgresRequests) Update(ctx context.Context, req *models.BloodRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(req).Select(requestColumns).Omit(clause.Associations).Updates(req)
		if res.Error != nil {
			return translateGormError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		for i := range req.Responses {
			req.Responses[i].RequestID = req.ID
			if err := tx.Save(&req.Responses[i]).Error; err != nil {
				return translateGormError(err)
			}
		}
		return nil
	})
}

func (s *PostgresRequests) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).Delete(&models.BloodRequest{}, "id = ?", id)
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translateGormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
