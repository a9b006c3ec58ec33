package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/bloodlink/internal/logger"
	"github.com/example/bloodlink/internal/models"
	"github.com/example/bloodlink/internal/store"
	"github.com/example/bloodlink/internal/utils"
	"github.com/example/bloodlink/internal/validation"
)

// DefaultSearchRadiusKm applies when a nearby search gives no usable radius.
const DefaultSearchRadiusKm = 10

const invalidCredentials = "Invalid phone number or password"

// TokenConfig signs session tokens.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
}

// Issue returns a signed token for the donor.
func (t TokenConfig) Issue(donorID string) (string, error) {
	return utils.GenerateToken(t.Secret, donorID, t.TTL)
}

// DonorService implements registration, authentication and donor records.
type DonorService struct {
	donors   store.DonorStore
	requests store.RequestStore
	sms      SMSGateway
	tokens   TokenConfig
	log      *logrus.Entry
}

// NewDonorService constructs a DonorService.
func NewDonorService(donors store.DonorStore, requests store.RequestStore, sms SMSGateway, tokens TokenConfig, log logrus.FieldLogger) *DonorService {
	return &DonorService{
		donors:   donors,
		requests: requests,
		sms:      sms,
		tokens:   tokens,
		log:      logger.Component(log, "donors"),
	}
}

// AuthResult is a donor with a freshly issued session token.
type AuthResult struct {
	Donor *models.Donor
	Token string
}

// RegisterInput is the signup payload.
type RegisterInput struct {
	Name      string          `json:"name" validate:"required"`
	Email     string          `json:"email" validate:"required,email"`
	Phone     string          `json:"phone" validate:"required,phone10"`
	Password  string          `json:"password" validate:"required,min=6"`
	BloodType string          `json:"bloodType" validate:"required,bloodtype"`
	Location  models.Location `json:"location"`
}

// Register creates a donor and signs them in.
func (s *DonorService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = validation.Sanitize(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Location.Address = validation.Sanitize(in.Location.Address)

	errs := validation.Check(in)
	checkLocation(errs, in.Location)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if _, err := s.donors.FindByPhone(ctx, in.Phone); err == nil {
		return nil, fail(ErrConflict, "Donor already exists with this phone number")
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	bloodType, _ := models.ParseBloodType(in.BloodType)
	donor := &models.Donor{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		BloodType:    bloodType,
		Location:     in.Location,
		IsAvailable:  true,
	}
	if err := s.donors.Create(ctx, donor); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fail(ErrConflict, "Donor already exists with this phone number or email")
		}
		return nil, err
	}

	token, err := s.tokens.Issue(donor.ID)
	if err != nil {
		return nil, err
	}

	s.log.WithField("donor_id", donor.ID).Info("donor registered")
	if res := s.sms.SendSMS(ctx, donor.Phone, RegistrationMessage(true)); !res.Success {
		s.log.WithField("donor_id", donor.ID).WithField("error", res.Error).Warn("registration sms not delivered")
	}

	return &AuthResult{Donor: donor, Token: token}, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// Login authenticates by phone and password. Unknown phones and wrong
// passwords fail identically.
func (s *DonorService) Login(ctx context.Context, phone, password string) (*AuthResult, error) {
	if strings.TrimSpace(phone) == "" || password == "" {
		return nil, fail(ErrBadRequest, "Please provide phone number and password")
	}

	donor, err := s.donors.FindByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if store.IsNotFound(err) {
			dummyHashOnce.Do(func() { dummyHash, _ = utils.HashPassword("not-a-real-password") })
			utils.CheckPassword(dummyHash, password)
			return nil, fail(ErrUnauthorized, invalidCredentials)
		}
		return nil, err
	}
	if !utils.CheckPassword(donor.PasswordHash, password) {
		return nil, fail(ErrUnauthorized, invalidCredentials)
	}

	token, err := s.tokens.Issue(donor.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Donor: donor, Token: token}, nil
}

// Authenticate resolves a bearer token to its donor.
func (s *DonorService) Authenticate(ctx context.Context, token string) (*models.Donor, error) {
	id, err := utils.ParseToken(s.tokens.Secret, token)
	if err != nil {
		return nil, fail(ErrUnauthorized, "Not authorized, token failed")
	}
	donor, err := s.donors.FindByID(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fail(ErrUnauthorized, "Not authorized, donor not found")
		}
		return nil, err
	}
	return donor, nil
}

// GetDonor returns a donor by ID.
func (s *DonorService) GetDonor(ctx context.Context, id string) (*models.Donor, error) {
	donor, err := s.donors.FindByID(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fail(ErrNotFound, "Donor not found")
		}
		return nil, err
	}
	return donor, nil
}

// DonorUpdate is a partial donor edit. Nil and empty values are ignored.
// Phone, IsAdmin and IsAvailable are honoured only for admin edits, except
// IsAvailable which a donor may toggle on their own profile.
type DonorUpdate struct {
	Name        *string          `json:"name" validate:"omitempty,min=1"`
	Email       *string          `json:"email" validate:"omitempty,email"`
	Phone       *string          `json:"phone" validate:"omitempty,phone10"`
	Password    *string          `json:"password" validate:"omitempty,min=6"`
	BloodType   *string          `json:"bloodType" validate:"omitempty,bloodtype"`
	Location    *models.Location `json:"location"`
	IsAvailable *bool            `json:"isAvailable"`
	IsAdmin     *bool            `json:"isAdmin"`
}

// UpdateProfile edits the caller's own record and issues a fresh token.
func (s *DonorService) UpdateProfile(ctx context.Context, id string, in DonorUpdate) (*AuthResult, error) {
	in.Phone, in.IsAdmin = nil, nil
	donor, err := s.applyUpdate(ctx, id, in)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(donor.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Donor: donor, Token: token}, nil
}

// AdminUpdate edits any donor.
func (s *DonorService) AdminUpdate(ctx context.Context, id string, in DonorUpdate) (*models.Donor, error) {
	return s.applyUpdate(ctx, id, in)
}

func (s *DonorService) applyUpdate(ctx context.Context, id string, in DonorUpdate) (*models.Donor, error) {
	trimmed := func(p *string, sanitize bool) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		if sanitize {
			v = validation.Sanitize(v)
		}
		if v == "" {
			return nil
		}
		return &v
	}
	in.Name = trimmed(in.Name, true)
	in.Email = trimmed(in.Email, false)
	in.Phone = trimmed(in.Phone, false)
	in.BloodType = trimmed(in.BloodType, false)
	if in.Password != nil && *in.Password == "" {
		in.Password = nil
	}

	errs := validation.Check(in)
	if in.Location != nil {
		in.Location.Address = validation.Sanitize(in.Location.Address)
		checkLocation(errs, *in.Location)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	donor, err := s.GetDonor(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		donor.Name = *in.Name
	}
	if in.Email != nil {
		donor.Email = strings.ToLower(*in.Email)
	}
	if in.Phone != nil {
		donor.Phone = *in.Phone
	}
	if in.BloodType != nil {
		donor.BloodType, _ = models.ParseBloodType(*in.BloodType)
	}
	if in.Location != nil {
		donor.Location = *in.Location
	}
	if in.IsAvailable != nil {
		donor.IsAvailable = *in.IsAvailable
	}
	if in.IsAdmin != nil {
		donor.IsAdmin = *in.IsAdmin
	}
	if in.Password != nil {
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		donor.PasswordHash = hash
	}

	if err := s.donors.Update(ctx, donor); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fail(ErrConflict, "Phone number or email already in use")
		}
		if store.IsNotFound(err) {
			return nil, fail(ErrNotFound, "Donor not found")
		}
		return nil, err
	}
	return donor, nil
}

// DeleteDonor removes a donor and their donation history.
func (s *DonorService) DeleteDonor(ctx context.Context, id string) error {
	if err := s.donors.Delete(ctx, id); err != nil {
		if store.IsNotFound(err) {
			return fail(ErrNotFound, "Donor not found")
		}
		return err
	}
	s.log.WithField("donor_id", id).Info("donor removed")
	return nil
}

// ListDonors returns donors, optionally of one blood type.
func (s *DonorService) ListDonors(ctx context.Context, bloodType string) ([]models.Donor, error) {
	var filter store.DonorFilter
	if bloodType != "" {
		bt, ok := models.ParseBloodType(bloodType)
		if !ok {
			return nil, fail(ErrBadRequest, "Invalid blood type")
		}
		filter.BloodType = bt
	}
	return s.donors.List(ctx, filter)
}

// NearbyInput carries raw query values for a proximity search.
type NearbyInput struct {
	Latitude  string
	Longitude string
	RadiusKm  string
	BloodType string
}

// NearbyDonors finds available donors within the radius, closest first.
func (s *DonorService) NearbyDonors(ctx context.Context, in NearbyInput) ([]models.Donor, error) {
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(in.Latitude), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(in.Longitude), 64)
	point := models.Location{Latitude: lat, Longitude: lng}
	if errLat != nil || errLng != nil || math.IsNaN(lat) || math.IsNaN(lng) || !point.ValidCoordinates() {
		return nil, fail(ErrBadRequest, "Invalid latitude or longitude")
	}

	q := store.NearbyQuery{
		Latitude:    lat,
		Longitude:   lng,
		MaxDistance: ParseRadiusKm(in.RadiusKm) * 1000,
	}
	if in.BloodType != "" {
		bt, ok := models.ParseBloodType(in.BloodType)
		if !ok {
			return nil, fail(ErrBadRequest, "Invalid blood type")
		}
		q.BloodTypes = []models.BloodType{bt}
	}
	return s.donors.Nearby(ctx, q)
}

// ParseRadiusKm reads a search radius, falling back to the default for
// missing, malformed or non-positive values.
func ParseRadiusKm(raw string) float64 {
	radius, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return DefaultSearchRadiusKm
	}
	return radius
}

// DonationInput is one donation history entry.
type DonationInput struct {
	Date     string `json:"date" validate:"required"`
	Location string `json:"location" validate:"required"`
	Notes    string `json:"notes"`
}

// AddDonation appends to the donor's history.
func (s *DonorService) AddDonation(ctx context.Context, donorID string, in DonationInput) (*models.Donation, error) {
	in.Location = validation.Sanitize(in.Location)
	in.Notes = validation.Sanitize(in.Notes)

	errs := validation.Check(in)
	var date time.Time
	if in.Date != "" {
		var ok bool
		if date, ok = parseDate(in.Date); !ok {
			errs.Add("date", "Please add a valid donation date")
		} else if date.After(time.Now().Add(24 * time.Hour)) {
			errs.Add("date", "Donation date cannot be in the future")
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	donation := &models.Donation{Date: date, Location: in.Location, Notes: in.Notes}
	if err := s.donors.AddDonation(ctx, donorID, donation); err != nil {
		if store.IsNotFound(err) {
			return nil, fail(ErrNotFound, "Donor not found")
		}
		return nil, err
	}
	return donation, nil
}

// GetDonations returns the donor's donation history.
func (s *DonorService) GetDonations(ctx context.Context, donorID string) ([]models.Donation, error) {
	donor, err := s.GetDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if donor.Donations == nil {
		return []models.Donation{}, nil
	}
	return donor.Donations, nil
}

// DonorRequests returns the requests the donor has been linked to.
func (s *DonorService) DonorRequests(ctx context.Context, donorID string) ([]models.BloodRequest, error) {
	donor, err := s.GetDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if len(donor.Requests) == 0 {
		return []models.BloodRequest{}, nil
	}
	items, _, err := s.requests.List(ctx, store.RequestFilter{IDs: append([]string{}, donor.Requests...)})
	return items, err
}

// PromoteAdmin grants admin rights to the donor with the given phone.
func (s *DonorService) PromoteAdmin(ctx context.Context, phone string) (*models.Donor, error) {
	donor, err := s.findByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return nil, err
	}
	if donor.IsAdmin {
		return donor, nil
	}
	donor.IsAdmin = true
	if err := s.donors.Update(ctx, donor); err != nil {
		return nil, err
	}
	s.log.WithField("donor_id", donor.ID).Info("donor promoted to admin")
	return donor, nil
}

func checkLocation(errs *validation.Errors, loc models.Location) {
	if strings.TrimSpace(loc.Address) == "" {
		errs.Add("location.address", "Please add an address")
	}
	if !loc.ValidCoordinates() {
		errs.Add("location.coordinates", "Invalid latitude or longitude")
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
