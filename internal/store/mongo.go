package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/bloodlink/internal/models"
)

// MongoDonors is the MongoDB-backed DonorStore. Proximity queries rely on
// the 2dsphere index over "location".
type MongoDonors struct {
	c   *mongo.Collection
	log *logrus.Entry
}

// NewMongoDonors constructs MongoDonors.
func NewMongoDonors(db *mongo.Database, log logrus.FieldLogger) *MongoDonors {
	return &MongoDonors{c: db.Collection(DonorsCollection), log: log.WithField("store", "mongo.donors")}
}

func (s *MongoDonors) Create(ctx context.Context, donor *models.Donor) error {
	now := time.Now().UTC()
	donor.ID = primitive.NewObjectID().Hex()
	donor.CreatedAt, donor.UpdatedAt = now, now

	if _, err := s.c.InsertOne(ctx, toDonorDoc(donor)); err != nil {
		donor.ID = ""
		return translateMongoError(err)
	}
	return nil
}

func (s *MongoDonors) FindByID(ctx context.Context, id string) (*models.Donor, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoDonors) FindByPhone(ctx context.Context, phone string) (*models.Donor, error) {
	return s.findOne(ctx, bson.M{"phone": phone})
}

func (s *MongoDonors) findOne(ctx context.Context, filter bson.M) (*models.Donor, error) {
	var doc donorDoc
	if err := s.c.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	donor := fromDonorDoc(doc)
	return &donor, nil
}

func (s *MongoDonors) List(ctx context.Context, filter DonorFilter) ([]models.Donor, error) {
	query := bson.M{}
	if filter.BloodType != "" {
		query["bloodType"] = string(filter.BloodType)
	}
	if filter.AvailableOnly {
		query["isAvailable"] = true
	}

	cur, err := s.c.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, translateMongoError(err)
	}
	return decodeDonors(ctx, cur)
}

func (s *MongoDonors) Nearby(ctx context.Context, q NearbyQuery) ([]models.Donor, error) {
	cur, err := s.c.Aggregate(ctx, nearbyPipeline(q))
	if err != nil {
		return nil, translateMongoError(err)
	}
	return decodeDonors(ctx, cur)
}

// nearbyPipeline builds a $geoNear aggregation. $geoNear returns documents
// nearest first and writes the distance in metres to "distance".
func nearbyPipeline(q NearbyQuery) mongo.Pipeline {
	query := bson.M{"isAvailable": true}
	if len(q.BloodTypes) > 0 {
		types := make([]string, 0, len(q.BloodTypes))
		for _, t := range q.BloodTypes {
			types = append(types, string(t))
		}
		query["bloodType"] = bson.M{"$in": types}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: bson.A{q.Longitude, q.Latitude}},
			}},
			{Key: "distanceField", Value: "distance"},
			{Key: "maxDistance", Value: q.MaxDistance},
			{Key: "spherical", Value: true},
			{Key: "query", Value: query},
		}}},
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: q.Limit}})
	}
	return pipeline
}

func (s *MongoDonors) Update(ctx context.Context, donor *models.Donor) error {
	oid, err := primitive.ObjectIDFromHex(donor.ID)
	if err != nil {
		return ErrNotFound
	}

	donor.UpdatedAt = time.Now().UTC()
	doc := toDonorDoc(donor)
	res, err := s.c.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"name":         doc.Name,
		"email":        doc.Email,
		"phone":        doc.Phone,
		"password":     doc.Password,
		"bloodType":    doc.BloodType,
		"location":     doc.Location,
		"isAdmin":      doc.IsAdmin,
		"isAvailable":  doc.IsAvailable,
		"lastDonation": doc.LastDonation,
		"requests":     doc.Requests,
		"updatedAt":    doc.UpdatedAt,
	}})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDonors) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translateMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDonors) AddDonation(ctx context.Context, donorID string, donation *models.Donation) error {
	oid, err := primitive.ObjectIDFromHex(donorID)
	if err != nil {
		return ErrNotFound
	}

	doc := donationDoc{
		ID:       primitive.NewObjectID(),
		Date:     donation.Date,
		Location: donation.Location,
		Notes:    donation.Notes,
	}
	res, err := s.c.UpdateByID(ctx, oid, bson.M{
		"$push": bson.M{"donations": doc},
		"$max":  bson.M{"lastDonation": donation.Date},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	*donation = fromDonationDoc(oid, doc)
	return nil
}

func (s *MongoDonors) LinkRequest(ctx context.Context, donorID, requestID string) error {
	oid, err := primitive.ObjectIDFromHex(donorID)
	if err != nil {
		return ErrNotFound
	}
	reqOID, err := primitive.ObjectIDFromHex(requestID)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.c.UpdateByID(ctx, oid, bson.M{"$addToSet": bson.M{"requests": reqOID}})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeDonors(ctx context.Context, cur *mongo.Cursor) ([]models.Donor, error) {
	defer cur.Close(ctx)

	donors := []models.Donor{}
	for cur.Next(ctx) {
		var doc donorDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		donors = append(donors, fromDonorDoc(doc))
	}
	return donors, cur.Err()
}

// MongoRequests is the MongoDB-backed RequestStore. Donor responses are
// embedded in the request document.
type MongoRequests struct {
	c   *mongo.Collection
	log *logrus.Entry
}

// NewMongoRequests constructs MongoRequests.
func NewMongoRequests(db *mongo.Database, log logrus.FieldLogger) *MongoRequests {
	return &MongoRequests{c: db.Collection(RequestsCollection), log: log.WithField("store", "mongo.requests")}
}

func (s *MongoRequests) Create(ctx context.Context, req *models.BloodRequest) error {
	now := time.Now().UTC()
	req.ID = primitive.NewObjectID().Hex()
	req.CreatedAt, req.UpdatedAt = now, now

	if _, err := s.c.InsertOne(ctx, toRequestDoc(req, now)); err != nil {
		req.ID = ""
		return translateMongoError(err)
	}
	return nil
}

func (s *MongoRequests) FindByID(ctx context.Context, id string) (*models.BloodRequest, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc requestDoc
	if err := s.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	req := fromRequestDoc(doc)
	return &req, nil
}

func (s *MongoRequests) List(ctx context.Context, filter RequestFilter) ([]models.BloodRequest, int64, error) {
	query := requestQuery(filter)

	total, err := s.c.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, translateMongoError(err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit)).SetSkip(int64(filter.Offset))
	}

	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, translateMongoError(err)
	}
	defer cur.Close(ctx)

	requests := []models.BloodRequest{}
	for cur.Next(ctx) {
		var doc requestDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, 0, err
		}
		requests = append(requests, fromRequestDoc(doc))
	}
	return requests, total, cur.Err()
}

func requestQuery(filter RequestFilter) bson.M {
	query := bson.M{}
	if filter.BloodType != "" {
		query["bloodType"] = string(filter.BloodType)
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.RequesterID != "" {
		query["requester"] = objectID(filter.RequesterID)
	}
	if filter.ContactPhone != "" {
		query["contactPhone"] = filter.ContactPhone
	}
	if filter.IDs != nil {
		ids := make([]primitive.ObjectID, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if oid := objectID(id); !oid.IsZero() {
				ids = append(ids, oid)
			}
		}
		query["_id"] = bson.M{"$in": ids}
	}
	return query
}

func (s *MongoRequests) Update(ctx context.Context, req *models.BloodRequest) error {
	oid, err := primitive.ObjectIDFromHex(req.ID)
	if err != nil {
		return ErrNotFound
	}

	now := time.Now().UTC()
	req.UpdatedAt = now
	doc := toRequestDoc(req, now)
	res, err := s.c.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"patientName":  doc.PatientName,
		"contactName":  doc.ContactName,
		"contactPhone": doc.ContactPhone,
		"bloodType":    doc.BloodType,
		"units":        doc.Units,
		"hospital":     doc.Hospital,
		"location":     doc.Location,
		"urgency":      doc.Urgency,
		"notes":        doc.Notes,
		"status":       doc.Status,
		"responses":    doc.Responses,
		"updatedAt":    doc.UpdatedAt,
	}})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoRequests) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translateMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func translateMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}
