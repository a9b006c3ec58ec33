package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/bloodlink/internal/logger"
	"github.com/example/bloodlink/internal/models"
	"github.com/example/bloodlink/internal/store"
)

type sentSMS struct {
	Phone   string
	Message string
}

type fakeSMS struct {
	mu   sync.Mutex
	fail bool
	sent []sentSMS
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, message string) SMSResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return SMSResult{Success: false, Message: "Failed to send SMS", Error: "provider down"}
	}
	f.sent = append(f.sent, sentSMS{Phone: phone, Message: message})
	return SMSResult{Success: true, SID: "SMtest", Message: "SMS sent successfully"}
}

func (f *fakeSMS) SendOTP(context.Context, string) SMSResult {
	return SMSResult{Success: true, SID: "VEtest", Status: "pending"}
}

func (f *fakeSMS) VerifyOTP(_ context.Context, _, code string) SMSResult {
	return SMSResult{Success: code == DevOTPCode, Status: "approved"}
}

func (f *fakeSMS) messages() []sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSMS(nil), f.sent...)
}

type fakeNotifier struct {
	created  []string
	accepted []string
}

func (f *fakeNotifier) NotifyNewRequest(_ context.Context, req *models.BloodRequest) error {
	f.created = append(f.created, req.ID)
	return nil
}

func (f *fakeNotifier) NotifyDonorAccepted(_ context.Context, _ *models.BloodRequest, donor *models.Donor) error {
	f.accepted = append(f.accepted, donor.ID)
	return nil
}

type fixture struct {
	mem      *store.Memory
	sms      *fakeSMS
	notifier *fakeNotifier
	donors   *DonorService
	requests *RequestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	sms := &fakeSMS{}
	notifier := &fakeNotifier{}
	log := logger.Discard()
	tokens := TokenConfig{Secret: "test-secret", TTL: time.Hour}
	return &fixture{
		mem:      mem,
		sms:      sms,
		notifier: notifier,
		donors:   NewDonorService(mem.Donors(), mem.Requests(), sms, tokens, log),
		requests: NewRequestService(mem.Requests(), mem.Donors(), sms, notifier, log),
	}
}

func (f *fixture) register(t *testing.T, phone string, bt models.BloodType, lat, lng float64) *models.Donor {
	t.Helper()
	res, err := f.donors.Register(context.Background(), RegisterInput{
		Name:      "Donor " + phone,
		Email:     phone + "@example.com",
		Phone:     phone,
		Password:  "secret1",
		BloodType: string(bt),
		Location:  models.Location{Latitude: lat, Longitude: lng, Address: "MG Road"},
	})
	require.NoError(t, err)
	return res.Donor
}

func (f *fixture) createRequest(t *testing.T, requester *models.Donor, bt models.BloodType) *models.BloodRequest {
	t.Helper()
	req, err := f.requests.Create(context.Background(), requester, CreateRequestInput{
		PatientName:  "Asha",
		ContactPhone: "9111111111",
		BloodType:    string(bt),
		Hospital:     "City Hospital",
	})
	require.NoError(t, err)
	return req
}
