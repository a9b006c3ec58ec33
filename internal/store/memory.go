package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/bloodlink/internal/models"
)

const earthRadiusMetres = 6371000

// Memory keeps donors and requests in process memory. It backs the
// "memory" driver for local runs and the service tests.
type Memory struct {
	mu       sync.RWMutex
	donors   map[string]*models.Donor
	requests map[string]*models.BloodRequest
	now      func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		donors:   map[string]*models.Donor{},
		requests: map[string]*models.BloodRequest{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Donors exposes the DonorStore half.
func (m *Memory) Donors() DonorStore { return memoryDonors{m} }

// Requests exposes the RequestStore half.
func (m *Memory) Requests() RequestStore { return memoryRequests{m} }

type memoryDonors struct{ m *Memory }

func (s memoryDonors) Create(_ context.Context, donor *models.Donor) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.donors {
		if d.Phone == donor.Phone || strings.EqualFold(d.Email, donor.Email) {
			return ErrDuplicate
		}
	}
	if donor.ID == "" {
		donor.ID = uuid.NewString()
	}
	now := m.now()
	donor.CreatedAt, donor.UpdatedAt = now, now
	m.donors[donor.ID] = copyDonor(donor)
	return nil
}

func (s memoryDonors) FindByID(_ context.Context, id string) (*models.Donor, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.donors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDonor(d), nil
}

func (s memoryDonors) FindByPhone(_ context.Context, phone string) (*models.Donor, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.donors {
		if d.Phone == phone {
			return copyDonor(d), nil
		}
	}
	return nil, ErrNotFound
}

func (s memoryDonors) List(_ context.Context, filter DonorFilter) ([]models.Donor, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Donor{}
	for _, d := range m.donors {
		if filter.BloodType != "" && d.BloodType != filter.BloodType {
			continue
		}
		if filter.AvailableOnly && !d.IsAvailable {
			continue
		}
		c := copyDonor(d)
		c.Donations = []models.Donation{}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s memoryDonors) Nearby(_ context.Context, q NearbyQuery) ([]models.Donor, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Donor{}
	for _, d := range m.donors {
		if !d.IsAvailable || (len(q.BloodTypes) > 0 && !containsType(q.BloodTypes, d.BloodType)) {
			continue
		}
		dist := Haversine(q.Latitude, q.Longitude, d.Location.Latitude, d.Location.Longitude)
		if dist > q.MaxDistance {
			continue
		}
		c := copyDonor(d)
		c.Donations = []models.Donation{}
		c.Distance = dist
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s memoryDonors) Update(_ context.Context, donor *models.Donor) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.donors[donor.ID]
	if !ok {
		return ErrNotFound
	}
	for id, d := range m.donors {
		if id != donor.ID && (d.Phone == donor.Phone || strings.EqualFold(d.Email, donor.Email)) {
			return ErrDuplicate
		}
	}

	updated := copyDonor(donor)
	updated.Donations = existing.Donations
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = m.now()
	updated.Distance = 0
	m.donors[donor.ID] = updated
	return nil
}

func (s memoryDonors) Delete(_ context.Context, id string) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.donors[id]; !ok {
		return ErrNotFound
	}
	delete(m.donors, id)
	return nil
}

func (s memoryDonors) AddDonation(_ context.Context, donorID string, donation *models.Donation) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.donors[donorID]
	if !ok {
		return ErrNotFound
	}
	donation.ID = uuid.NewString()
	donation.DonorID = donorID
	donation.CreatedAt = m.now()
	donation.UpdatedAt = donation.CreatedAt
	d.RecordDonation(*donation)
	return nil
}

func (s memoryDonors) LinkRequest(_ context.Context, donorID, requestID string) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.donors[donorID]
	if !ok {
		return ErrNotFound
	}
	if !d.HasRequest(requestID) {
		d.Requests = append(d.Requests, requestID)
	}
	return nil
}

type memoryRequests struct{ m *Memory }

func (s memoryRequests) Create(_ context.Context, req *models.BloodRequest) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.requests {
		if r.Reference == req.Reference {
			return ErrDuplicate
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := m.now()
	req.CreatedAt, req.UpdatedAt = now, now
	assignResponseIDs(req, now)
	m.requests[req.ID] = copyRequest(req)
	return nil
}

func (s memoryRequests) FindByID(_ context.Context, id string) (*models.BloodRequest, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRequest(r), nil
}

func (s memoryRequests) List(_ context.Context, filter RequestFilter) ([]models.BloodRequest, int64, error) {
	m := s.m
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids map[string]bool
	if filter.IDs != nil {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	out := []models.BloodRequest{}
	for _, r := range m.requests {
		switch {
		case filter.BloodType != "" && r.BloodType != filter.BloodType,
			filter.Status != "" && r.Status != filter.Status,
			filter.RequesterID != "" && r.RequesterID != filter.RequesterID,
			filter.ContactPhone != "" && r.ContactPhone != filter.ContactPhone,
			ids != nil && !ids[r.ID]:
			continue
		}
		out = append(out, *copyRequest(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := int64(len(out))
	if filter.Limit > 0 {
		start := min(filter.Offset, len(out))
		end := min(start+filter.Limit, len(out))
		out = out[start:end]
	}
	return out, total, nil
}

func (s memoryRequests) Update(_ context.Context, req *models.BloodRequest) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.requests[req.ID]
	if !ok {
		return ErrNotFound
	}
	now := m.now()
	req.CreatedAt = existing.CreatedAt
	req.UpdatedAt = now
	assignResponseIDs(req, now)
	m.requests[req.ID] = copyRequest(req)
	return nil
}

func (s memoryRequests) Delete(_ context.Context, id string) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[id]; !ok {
		return ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

// Haversine returns the great-circle distance in metres between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Pow(math.Sin(dLat/2), 2) + math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Pow(math.Sin(dLng/2), 2)
	return earthRadiusMetres * 2 * math.Asin(math.Sqrt(a))
}

func assignResponseIDs(req *models.BloodRequest, now time.Time) {
	for i := range req.Responses {
		resp := &req.Responses[i]
		resp.RequestID = req.ID
		if resp.ID == "" {
			resp.ID = uuid.NewString()
			resp.CreatedAt = now
		}
		resp.UpdatedAt = now
	}
}

func containsType(types []models.BloodType, t models.BloodType) bool {
	for _, bt := range types {
		if bt == t {
			return true
		}
	}
	return false
}

func copyDonor(d *models.Donor) *models.Donor {
	c := *d
	c.Donations = append([]models.Donation{}, d.Donations...)
	c.Requests = append([]string{}, d.Requests...)
	if d.LastDonation != nil {
		t := *d.LastDonation
		c.LastDonation = &t
	}
	return &c
}

func copyRequest(r *models.BloodRequest) *models.BloodRequest {
	c := *r
	c.Responses = append([]models.DonorResponse{}, r.Responses...)
	return &c
}
