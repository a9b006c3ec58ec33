package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/bloodlink/internal/logger"
	"github.com/example/bloodlink/internal/models"
	"github.com/example/bloodlink/internal/store"
	"github.com/example/bloodlink/internal/utils"
	"github.com/example/bloodlink/internal/validation"
)

// MatchLimit caps how many donors a match run returns.
const MatchLimit = 50

// RequestService implements blood requests and the donor notification
// workflow.
type RequestService struct {
	requests store.RequestStore
	donors   store.DonorStore
	sms      SMSGateway
	notifier AdminNotifier
	log      *logrus.Entry
	now      func() time.Time
}

// NewRequestService constructs a RequestService.
func NewRequestService(requests store.RequestStore, donors store.DonorStore, sms SMSGateway, notifier AdminNotifier, log logrus.FieldLogger) *RequestService {
	return &RequestService{
		requests: requests,
		donors:   donors,
		sms:      sms,
		notifier: notifier,
		log:      logger.Component(log, "requests"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequestInput is the payload for a new blood request.
type CreateRequestInput struct {
	PatientName  string           `json:"patientName" validate:"required"`
	ContactName  string           `json:"contactName"`
	ContactPhone string           `json:"contactPhone" validate:"required,phone10"`
	BloodType    string           `json:"bloodType" validate:"required,bloodtype"`
	Units        int              `json:"units" validate:"gte=0,max=20"`
	Hospital     string           `json:"hospital"`
	Location     *models.Location `json:"location"`
	Urgency      string           `json:"urgency" validate:"omitempty,oneof=normal urgent critical"`
	Notes        string           `json:"notes" validate:"max=1000"`
}

// Create records a new request on behalf of requester.
func (s *RequestService) Create(ctx context.Context, requester *models.Donor, in CreateRequestInput) (*models.BloodRequest, error) {
	in.PatientName = validation.Sanitize(in.PatientName)
	in.ContactName = validation.Sanitize(in.ContactName)
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	in.Hospital = validation.Sanitize(in.Hospital)
	in.Notes = validation.Sanitize(in.Notes)
	in.Urgency = strings.ToLower(strings.TrimSpace(in.Urgency))

	location := requester.Location
	if in.Location != nil {
		location = *in.Location
		location.Address = validation.Sanitize(location.Address)
	}

	errs := validation.Check(in)
	checkLocation(errs, location)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if in.Units == 0 {
		in.Units = 1
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyNormal
	}
	bloodType, _ := models.ParseBloodType(in.BloodType)

	reference, err := utils.NewReference()
	if err != nil {
		return nil, err
	}

	req := &models.BloodRequest{
		Reference:    reference,
		RequesterID:  requester.ID,
		PatientName:  in.PatientName,
		ContactName:  in.ContactName,
		ContactPhone: in.ContactPhone,
		BloodType:    bloodType,
		Units:        in.Units,
		Hospital:     in.Hospital,
		Location:     location,
		Urgency:      in.Urgency,
		Notes:        in.Notes,
		Status:       models.RequestPending,
		Responses:    []models.DonorResponse{},
	}
	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fail(ErrConflict, "Could not allocate a request reference, please retry")
		}
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"request_id": req.ID, "reference": req.Reference})
	log.Info("blood request created")

	if res := s.sms.SendSMS(ctx, req.ContactPhone, RegistrationMessage(false)); !res.Success {
		log.WithField("error", res.Error).Warn("request confirmation sms not delivered")
	}
	if err := s.notifier.NotifyNewRequest(ctx, req); err != nil {
		log.WithError(err).Warn("admin alert not delivered")
	}
	return req, nil
}

// ListInput filters a request listing.
type ListInput struct {
	BloodType string
	Status    string
	Page      utils.Pagination
}

// RequestPage is one page of requests plus the total match count.
type RequestPage struct {
	Items []models.BloodRequest
	Total int64
}

// List returns requests, newest first.
func (s *RequestService) List(ctx context.Context, in ListInput) (*RequestPage, error) {
	filter := store.RequestFilter{Limit: in.Page.Limit, Offset: in.Page.Offset}
	if in.BloodType != "" {
		bt, ok := models.ParseBloodType(in.BloodType)
		if !ok {
			return nil, fail(ErrBadRequest, "Invalid blood type")
		}
		filter.BloodType = bt
	}
	if in.Status != "" {
		status := models.RequestStatus(strings.ToLower(in.Status))
		if !status.Valid() {
			return nil, fail(ErrBadRequest, "Invalid request status")
		}
		filter.Status = status
	}
	items, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &RequestPage{Items: items, Total: total}, nil
}

// ListByRequester returns the requests the donor created.
func (s *RequestService) ListByRequester(ctx context.Context, requesterID string, page utils.Pagination) (*RequestPage, error) {
	items, total, err := s.requests.List(ctx, store.RequestFilter{RequesterID: requesterID, Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return nil, err
	}
	return &RequestPage{Items: items, Total: total}, nil
}

// Get returns a request by ID.
func (s *RequestService) Get(ctx context.Context, id string) (*models.BloodRequest, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fail(ErrNotFound, "Blood request not found")
		}
		return nil, err
	}
	return req, nil
}

// StatusLookup finds requests by contact phone, for requesters without an
// account.
func (s *RequestService) StatusLookup(ctx context.Context, phone, bloodType string) ([]models.BloodRequest, error) {
	phone = strings.TrimSpace(phone)
	if !validation.ValidPhone(phone) {
		return nil, fail(ErrBadRequest, "Please enter a valid 10-digit phone number")
	}
	filter := store.RequestFilter{ContactPhone: phone}
	if bloodType != "" {
		bt, ok := models.ParseBloodType(bloodType)
		if !ok {
			return nil, fail(ErrBadRequest, "Invalid blood type")
		}
		filter.BloodType = bt
	}
	items, _, err := s.requests.List(ctx, filter)
	return items, err
}

// RequestUpdate is a partial request edit by its owner or an admin.
type RequestUpdate struct {
	PatientName  *string          `json:"patientName" validate:"omitempty,min=1"`
	ContactName  *string          `json:"contactName"`
	ContactPhone *string          `json:"contactPhone" validate:"omitempty,phone10"`
	Units        *int             `json:"units" validate:"omitempty,min=1,max=20"`
	Hospital     *string          `json:"hospital"`
	Location     *models.Location `json:"location"`
	Urgency      *string          `json:"urgency" validate:"omitempty,oneof=normal urgent critical"`
	Notes        *string          `json:"notes" validate:"omitempty,max=1000"`
	Status       *string          `json:"status" validate:"omitempty,oneof=fulfilled cancelled"`
}

func (in RequestUpdate) hasFieldEdits() bool {
	return in.PatientName != nil || in.ContactName != nil || in.ContactPhone != nil ||
		in.Units != nil || in.Hospital != nil || in.Location != nil ||
		in.Urgency != nil || in.Notes != nil
}

// Update edits a request. Status may only move to fulfilled or cancelled.
func (s *RequestService) Update(ctx context.Context, actor *models.Donor, id string, in RequestUpdate) (*models.BloodRequest, error) {
	errs := validation.Check(in)
	if in.Location != nil {
		in.Location.Address = validation.Sanitize(in.Location.Address)
		checkLocation(errs, *in.Location)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, req) {
		return nil, fail(ErrForbidden, "Not authorized to modify this request")
	}

	if req.Status.Terminal() {
		// only a repeat of the current terminal status is accepted
		if in.Status == nil || in.hasFieldEdits() || req.Close(models.RequestStatus(*in.Status)) != nil {
			return nil, fail(ErrBadRequest, "Request is already closed")
		}
		return req, nil
	}
	if in.Status != nil {
		if err := req.Close(models.RequestStatus(*in.Status)); err != nil {
			return nil, fail(ErrBadRequest, "Request is already closed")
		}
	}
	if in.PatientName != nil {
		req.PatientName = validation.Sanitize(*in.PatientName)
	}
	if in.ContactName != nil {
		req.ContactName = validation.Sanitize(*in.ContactName)
	}
	if in.ContactPhone != nil {
		req.ContactPhone = *in.ContactPhone
	}
	if in.Units != nil {
		req.Units = *in.Units
	}
	if in.Hospital != nil {
		req.Hospital = validation.Sanitize(*in.Hospital)
	}
	if in.Location != nil {
		req.Location = *in.Location
	}
	if in.Urgency != nil {
		req.Urgency = *in.Urgency
	}
	if in.Notes != nil {
		req.Notes = validation.Sanitize(*in.Notes)
	}

	if err := s.requests.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Delete removes a request.
func (s *RequestService) Delete(ctx context.Context, actor *models.Donor, id string) error {
	req, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(actor, req) {
		return fail(ErrForbidden, "Not authorized to delete this request")
	}
	if err := s.requests.Delete(ctx, id); err != nil {
		if store.IsNotFound(err) {
			return fail(ErrNotFound, "Blood request not found")
		}
		return err
	}
	return nil
}

// NotifyDonor texts a donor about a request and records the contact. Only
// the requester or an admin may notify. If the SMS fails nothing is
// recorded and the error wraps ErrUpstream.
func (s *RequestService) NotifyDonor(ctx context.Context, actor *models.Donor, requestID, donorID string) (*models.BloodRequest, SMSResult, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, SMSResult{}, err
	}
	if !canManage(actor, req) {
		return nil, SMSResult{}, fail(ErrForbidden, "Not authorized to notify donors for this request")
	}
	donor, err := s.donors.FindByID(ctx, donorID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, SMSResult{}, fail(ErrNotFound, "Donor not found")
		}
		return nil, SMSResult{}, err
	}
	if req.Status.Terminal() {
		return nil, SMSResult{}, fail(ErrBadRequest, "Request is already closed")
	}

	log := s.log.WithFields(logrus.Fields{"request_id": req.ID, "donor_id": donor.ID})

	result := s.sms.SendSMS(ctx, donor.Phone, RequestNotificationMessage(string(req.BloodType)))
	if !result.Success {
		log.WithField("error", result.Error).Warn("donor notification failed")
		msg := "Failed to send SMS"
		if result.Error != "" {
			msg += ": " + result.Error
		}
		return nil, result, fail(ErrUpstream, msg)
	}

	if _, err := req.MarkNotified(donor.ID, result.SID, s.now()); err != nil {
		return nil, result, fail(ErrBadRequest, "Request is already closed")
	}
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, result, err
	}
	if err := s.donors.LinkRequest(ctx, donor.ID, req.ID); err != nil {
		return nil, result, err
	}

	log.WithField("sid", result.SID).Info("donor notified")
	return req, result, nil
}

// Respond records the caller's own decision on a request.
func (s *RequestService) Respond(ctx context.Context, actor *models.Donor, requestID, status, notes string) (*models.BloodRequest, error) {
	return s.UpdateDonationStatus(ctx, actor, requestID, actor.ID, status, notes)
}

// UpdateDonationStatus records a donor's accepted/rejected decision. The
// donor, the requester or an admin may submit it. Repeating the current
// decision is a no-op.
func (s *RequestService) UpdateDonationStatus(ctx context.Context, actor *models.Donor, requestID, donorID, status, notes string) (*models.BloodRequest, error) {
	decision, ok := models.ParseDecision(strings.ToLower(strings.TrimSpace(status)))
	if !ok {
		return nil, fail(ErrBadRequest, "Invalid status. Must be either accepted or rejected")
	}

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.ID != donorID && !canManage(actor, req) {
		return nil, fail(ErrForbidden, "Not authorized to update this donation status")
	}

	donor, err := s.donors.FindByID(ctx, donorID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fail(ErrNotFound, "Donor not found")
		}
		return nil, err
	}

	_, changed, err := req.ApplyDecision(donor.ID, decision, validation.Sanitize(notes), s.now())
	if err != nil {
		return nil, fail(ErrBadRequest, "Request is already closed")
	}
	if !changed {
		return req, nil
	}

	if err := s.requests.Update(ctx, req); err != nil {
		return nil, err
	}
	if err := s.donors.LinkRequest(ctx, donor.ID, req.ID); err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"request_id": req.ID, "donor_id": donor.ID, "decision": decision})
	log.Info("donor response recorded")
	if decision == models.ResponseAccepted {
		if err := s.notifier.NotifyDonorAccepted(ctx, req, donor); err != nil {
			log.WithError(err).Warn("admin alert not delivered")
		}
	}
	return req, nil
}

// MatchDonors finds available donors whose blood the patient can receive
// near the request location, then tells the requester how many were found.
func (s *RequestService) MatchDonors(ctx context.Context, actor *models.Donor, requestID, radiusKm string) ([]models.Donor, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, req) {
		return nil, fail(ErrForbidden, "Not authorized to match donors for this request")
	}
	if req.Status.Terminal() {
		return nil, fail(ErrBadRequest, "Request is already closed")
	}

	donors, err := s.donors.Nearby(ctx, store.NearbyQuery{
		Latitude:    req.Location.Latitude,
		Longitude:   req.Location.Longitude,
		MaxDistance: ParseRadiusKm(radiusKm) * 1000,
		BloodTypes:  models.CompatibleDonorTypes(req.BloodType),
		Limit:       MatchLimit,
	})
	if err != nil {
		return nil, err
	}

	if len(donors) > 0 {
		if res := s.sms.SendSMS(ctx, req.ContactPhone, DonorMatchMessage(len(donors))); !res.Success {
			s.log.WithField("request_id", req.ID).WithField("error", res.Error).Warn("match summary sms not delivered")
		}
	}
	return donors, nil
}

func canManage(actor *models.Donor, req *models.BloodRequest) bool {
	return actor.IsAdmin || actor.ID == req.RequesterID
}
