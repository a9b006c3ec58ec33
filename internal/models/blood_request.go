package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// RequestStatus is the lifecycle state of a BloodRequest.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestNotified  RequestStatus = "notified"
	RequestAccepted  RequestStatus = "accepted"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestCancelled RequestStatus = "cancelled"
)

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestNotified, RequestAccepted, RequestFulfilled, RequestCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestFulfilled || s == RequestCancelled
}

// ResponseStatus is a single donor's position on a request.
type ResponseStatus string

const (
	ResponseNotified ResponseStatus = "notified"
	ResponseAccepted ResponseStatus = "accepted"
	ResponseRejected ResponseStatus = "rejected"
)

// ParseDecision accepts only the statuses a donor may submit.
func ParseDecision(s string) (ResponseStatus, bool) {
	switch ResponseStatus(s) {
	case ResponseAccepted, ResponseRejected:
		return ResponseStatus(s), true
	}
	return "", false
}

// Urgency levels for a request.
const (
	UrgencyNormal   = "normal"
	UrgencyUrgent   = "urgent"
	UrgencyCritical = "critical"
)

var (
	ErrRequestClosed     = errors.New("request is no longer open")
	ErrInvalidTransition = errors.New("invalid request status transition")
)

// BloodRequest asks for a specific blood type on behalf of a patient.
type BloodRequest struct {
	BaseModel
	Reference    string          `gorm:"uniqueIndex;size:16;not null" json:"reference"`
	RequesterID  string          `gorm:"index" json:"requester"`
	PatientName  string          `gorm:"not null" json:"patientName"`
	ContactName  string          `json:"contactName,omitempty"`
	ContactPhone string          `gorm:"index;size:10;not null" json:"contactPhone"`
	BloodType    BloodType       `gorm:"index;size:3;not null" json:"bloodType"`
	Units        int             `gorm:"not null" json:"units"`
	Hospital     string          `json:"hospital,omitempty"`
	Location     Location        `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Urgency      string          `gorm:"size:16;not null" json:"urgency"`
	Notes        string          `json:"notes,omitempty"`
	Status       RequestStatus   `gorm:"index;size:16;not null" json:"status"`
	Responses    []DonorResponse `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"responses"`
}

// DonorResponse tracks one donor's involvement with a request.
type DonorResponse struct {
	BaseModel
	RequestID   string         `gorm:"type:uuid;uniqueIndex:idx_response_request_donor;not null" json:"-"`
	DonorID     string         `gorm:"uniqueIndex:idx_response_request_donor;not null" json:"donor"`
	Status      ResponseStatus `gorm:"size:16;not null" json:"status"`
	MessageSID  string         `json:"messageSid,omitempty"`
	NotifiedAt  *time.Time     `json:"notifiedAt,omitempty"`
	RespondedAt *time.Time     `json:"respondedAt,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// ResponseFor returns the donor's response, or nil.
func (r *BloodRequest) ResponseFor(donorID string) *DonorResponse {
	for i := range r.Responses {
		if r.Responses[i].DonorID == donorID {
			return &r.Responses[i]
		}
	}
	return nil
}

// MarkNotified records a successful notification to the donor. A donor who
// already answered keeps their decision.
func (r *BloodRequest) MarkNotified(donorID, messageSID string, now time.Time) (*DonorResponse, error) {
	if r.Status.Terminal() {
		return nil, ErrRequestClosed
	}

	resp := r.ResponseFor(donorID)
	if resp == nil {
		r.Responses = append(r.Responses, DonorResponse{
			RequestID: r.ID,
			DonorID:   donorID,
			Status:    ResponseNotified,
		})
		resp = &r.Responses[len(r.Responses)-1]
	}
	resp.MessageSID = messageSID
	resp.NotifiedAt = &now

	if r.Status == RequestPending {
		r.Status = RequestNotified
	}
	return resp, nil
}

// ApplyDecision records a donor's accepted/rejected decision and advances
// the request status. It reports changed=false when the donor re-submits
// the decision already on file.
func (r *BloodRequest) ApplyDecision(donorID string, decision ResponseStatus, notes string, now time.Time) (resp *DonorResponse, changed bool, err error) {
	if decision != ResponseAccepted && decision != ResponseRejected {
		return nil, false, ErrInvalidTransition
	}
	if r.Status.Terminal() {
		return nil, false, ErrRequestClosed
	}

	resp = r.ResponseFor(donorID)
	if resp != nil && resp.Status == decision {
		return resp, false, nil
	}
	if resp == nil {
		r.Responses = append(r.Responses, DonorResponse{
			RequestID: r.ID,
			DonorID:   donorID,
		})
		resp = &r.Responses[len(r.Responses)-1]
	}

	resp.Status = decision
	resp.RespondedAt = &now
	if notes != "" {
		resp.Notes = notes
	}

	r.recomputeStatus()
	return resp, true, nil
}

// Close moves the request to a terminal status.
func (r *BloodRequest) Close(status RequestStatus) error {
	if !status.Terminal() {
		return ErrInvalidTransition
	}
	if r.Status.Terminal() {
		if r.Status == status {
			return nil
		}
		return ErrRequestClosed
	}
	r.Status = status
	return nil
}

func (r *BloodRequest) recomputeStatus() {
	accepted, contacted := false, false
	for _, resp := range r.Responses {
		if resp.Status == ResponseAccepted {
			accepted = true
		}
		if resp.NotifiedAt != nil || resp.Status == ResponseNotified {
			contacted = true
		}
	}
	switch {
	case accepted:
		r.Status = RequestAccepted
	case contacted:
		r.Status = RequestNotified
	default:
		r.Status = RequestPending
	}
}

// InitCollections replaces a nil response list with an empty one.
func (r *BloodRequest) InitCollections() {
	if r.Responses == nil {
		r.Responses = []DonorResponse{}
	}
}

// AfterFind runs once responses are preloaded.
func (r *BloodRequest) AfterFind(*gorm.DB) error {
	r.InitCollections()
	return nil
}
