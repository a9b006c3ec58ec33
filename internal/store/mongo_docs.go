package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/example/bloodlink/internal/models"
)

const (
	DonorsCollection   = "donors"
	RequestsCollection = "bloodrequests"
)

type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
	Address     string    `bson:"address"`
}

type donationDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Date     time.Time          `bson:"date"`
	Location string             `bson:"location"`
	Notes    string             `bson:"notes,omitempty"`
}

type donorDoc struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Name         string               `bson:"name"`
	Email        string               `bson:"email"`
	Phone        string               `bson:"phone"`
	Password     string               `bson:"password"`
	BloodType    string               `bson:"bloodType"`
	Location     geoPoint             `bson:"location"`
	IsAdmin      bool                 `bson:"isAdmin"`
	IsAvailable  bool                 `bson:"isAvailable"`
	LastDonation *time.Time           `bson:"lastDonation"`
	Donations    []donationDoc        `bson:"donations"`
	Requests     []primitive.ObjectID `bson:"requests"`
	Distance     float64              `bson:"distance,omitempty"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

type responseDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	DonorID     primitive.ObjectID `bson:"donor"`
	Status      string             `bson:"status"`
	MessageSID  string             `bson:"messageSid,omitempty"`
	NotifiedAt  *time.Time         `bson:"notifiedAt,omitempty"`
	RespondedAt *time.Time         `bson:"respondedAt,omitempty"`
	Notes       string             `bson:"notes,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

type requestDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Reference    string             `bson:"reference"`
	RequesterID  primitive.ObjectID `bson:"requester,omitempty"`
	PatientName  string             `bson:"patientName"`
	ContactName  string             `bson:"contactName,omitempty"`
	ContactPhone string             `bson:"contactPhone"`
	BloodType    string             `bson:"bloodType"`
	Units        int                `bson:"units"`
	Hospital     string             `bson:"hospital,omitempty"`
	Location     geoPoint           `bson:"location"`
	Urgency      string             `bson:"urgency"`
	Notes        string             `bson:"notes,omitempty"`
	Status       string             `bson:"status"`
	Responses    []responseDoc      `bson:"responses"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func toGeoPoint(l models.Location) geoPoint {
	return geoPoint{Type: "Point", Coordinates: []float64{l.Longitude, l.Latitude}, Address: l.Address}
}

func fromGeoPoint(p geoPoint) models.Location {
	loc := models.Location{Address: p.Address}
	if len(p.Coordinates) == 2 {
		loc.Longitude, loc.Latitude = p.Coordinates[0], p.Coordinates[1]
	}
	return loc
}

// objectID converts a hex id; unknown ids map to the nil ObjectID, which
// matches nothing.
func objectID(hex string) primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

func hexOrEmpty(oid primitive.ObjectID) string {
	if oid.IsZero() {
		return ""
	}
	return oid.Hex()
}

func toDonorDoc(d *models.Donor) donorDoc {
	doc := donorDoc{
		ID:           objectID(d.ID),
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		Password:     d.PasswordHash,
		BloodType:    string(d.BloodType),
		Location:     toGeoPoint(d.Location),
		IsAdmin:      d.IsAdmin,
		IsAvailable:  d.IsAvailable,
		LastDonation: d.LastDonation,
		Donations:    make([]donationDoc, 0, len(d.Donations)),
		Requests:     make([]primitive.ObjectID, 0, len(d.Requests)),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	for _, don := range d.Donations {
		doc.Donations = append(doc.Donations, donationDoc{
			ID:       objectID(don.ID),
			Date:     don.Date,
			Location: don.Location,
			Notes:    don.Notes,
		})
	}
	for _, id := range d.Requests {
		if oid := objectID(id); !oid.IsZero() {
			doc.Requests = append(doc.Requests, oid)
		}
	}
	return doc
}

func fromDonorDoc(doc donorDoc) models.Donor {
	d := models.Donor{
		BaseModel: models.BaseModel{
			ID:        doc.ID.Hex(),
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		},
		Name:         doc.Name,
		Email:        doc.Email,
		Phone:        doc.Phone,
		PasswordHash: doc.Password,
		BloodType:    models.BloodType(doc.BloodType),
		Location:     fromGeoPoint(doc.Location),
		IsAdmin:      doc.IsAdmin,
		IsAvailable:  doc.IsAvailable,
		LastDonation: doc.LastDonation,
		Distance:     doc.Distance,
	}
	for _, don := range doc.Donations {
		d.Donations = append(d.Donations, fromDonationDoc(doc.ID, don))
	}
	d.Requests = make([]string, 0, len(doc.Requests))
	for _, oid := range doc.Requests {
		d.Requests = append(d.Requests, oid.Hex())
	}
	d.InitCollections()
	return d
}

func fromDonationDoc(donorID primitive.ObjectID, doc donationDoc) models.Donation {
	return models.Donation{
		BaseModel: models.BaseModel{ID: doc.ID.Hex(), CreatedAt: doc.Date, UpdatedAt: doc.Date},
		DonorID:   donorID.Hex(),
		Date:      doc.Date,
		Location:  doc.Location,
		Notes:     doc.Notes,
	}
}

func toRequestDoc(r *models.BloodRequest, now time.Time) requestDoc {
	doc := requestDoc{
		ID:           objectID(r.ID),
		Reference:    r.Reference,
		RequesterID:  objectID(r.RequesterID),
		PatientName:  r.PatientName,
		ContactName:  r.ContactName,
		ContactPhone: r.ContactPhone,
		BloodType:    string(r.BloodType),
		Units:        r.Units,
		Hospital:     r.Hospital,
		Location:     toGeoPoint(r.Location),
		Urgency:      r.Urgency,
		Notes:        r.Notes,
		Status:       string(r.Status),
		Responses:    make([]responseDoc, 0, len(r.Responses)),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	for i := range r.Responses {
		resp := &r.Responses[i]
		if resp.ID == "" {
			resp.ID = primitive.NewObjectID().Hex()
			resp.CreatedAt = now
		}
		resp.RequestID = r.ID
		resp.UpdatedAt = now
		doc.Responses = append(doc.Responses, responseDoc{
			ID:          objectID(resp.ID),
			DonorID:     objectID(resp.DonorID),
			Status:      string(resp.Status),
			MessageSID:  resp.MessageSID,
			NotifiedAt:  resp.NotifiedAt,
			RespondedAt: resp.RespondedAt,
			Notes:       resp.Notes,
			CreatedAt:   resp.CreatedAt,
			UpdatedAt:   resp.UpdatedAt,
		})
	}
	return doc
}

func fromRequestDoc(doc requestDoc) models.BloodRequest {
	r := models.BloodRequest{
		BaseModel: models.BaseModel{
			ID:        doc.ID.Hex(),
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		},
		Reference:    doc.Reference,
		RequesterID:  hexOrEmpty(doc.RequesterID),
		PatientName:  doc.PatientName,
		ContactName:  doc.ContactName,
		ContactPhone: doc.ContactPhone,
		BloodType:    models.BloodType(doc.BloodType),
		Units:        doc.Units,
		Hospital:     doc.Hospital,
		Location:     fromGeoPoint(doc.Location),
		Urgency:      doc.Urgency,
		Notes:        doc.Notes,
		Status:       models.RequestStatus(doc.Status),
	}
	for _, resp := range doc.Responses {
		r.Responses = append(r.Responses, models.DonorResponse{
			BaseModel: models.BaseModel{
				ID:        resp.ID.Hex(),
				CreatedAt: resp.CreatedAt,
				UpdatedAt: resp.UpdatedAt,
			},
			RequestID:   r.ID,
			DonorID:     resp.DonorID.Hex(),
			Status:      models.ResponseStatus(resp.Status),
			MessageSID:  resp.MessageSID,
			NotifiedAt:  resp.NotifiedAt,
			RespondedAt: resp.RespondedAt,
			Notes:       resp.Notes,
		})
	}
	r.InitCollections()
	return r
}
