package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/example/bloodlink/internal/models"
)

func TestNearbyPipeline(t *testing.T) {
	pipeline := nearbyPipeline(NearbyQuery{
		Latitude:    12.97,
		Longitude:   77.59,
		MaxDistance: 10000,
		BloodTypes:  []models.BloodType{models.OPositive, models.ONegative},
		Limit:       25,
	})
	require.Len(t, pipeline, 2)

	stage := pipeline[0]
	require.Equal(t, "$geoNear", stage[0].Key)
	geoNear := stage[0].Value.(bson.D).Map()

	near := geoNear["near"].(bson.D).Map()
	assert.Equal(t, bson.A{77.59, 12.97}, near["coordinates"], "GeoJSON order is [lng, lat]")
	assert.Equal(t, 10000.0, geoNear["maxDistance"])
	assert.Equal(t, "distance", geoNear["distanceField"])

	query := geoNear["query"].(bson.M)
	assert.Equal(t, true, query["isAvailable"])
	assert.Equal(t, bson.M{"$in": []string{"O+", "O-"}}, query["bloodType"])

	assert.Equal(t, "$limit", pipeline[1][0].Key)
}

func TestNearbyPipelineWithoutFilters(t *testing.T) {
	pipeline := nearbyPipeline(NearbyQuery{Latitude: 1, Longitude: 2, MaxDistance: 500})
	require.Len(t, pipeline, 1)

	query := pipeline[0][0].Value.(bson.D).Map()["query"].(bson.M)
	_, hasType := query["bloodType"]
	assert.False(t, hasType)
}

func TestRequestQuery(t *testing.T) {
	requester := primitive.NewObjectID()
	q := requestQuery(RequestFilter{
		BloodType:    models.APositive,
		Status:       models.RequestNotified,
		RequesterID:  requester.Hex(),
		ContactPhone: "9876543210",
		IDs:          []string{requester.Hex(), "not-an-id"},
	})

	assert.Equal(t, "A+", q["bloodType"])
	assert.Equal(t, "notified", q["status"])
	assert.Equal(t, requester, q["requester"])
	assert.Equal(t, "9876543210", q["contactPhone"])
	assert.Equal(t, bson.M{"$in": []primitive.ObjectID{requester}}, q["_id"])
}

func TestDonorDocConversion(t *testing.T) {
	id := primitive.NewObjectID()
	reqID := primitive.NewObjectID()
	last := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	donor := models.Donor{
		BaseModel:    models.BaseModel{ID: id.Hex()},
		Name:         "Asha",
		Phone:        "9876543210",
		PasswordHash: "hash",
		BloodType:    models.BNegative,
		Location:     models.Location{Latitude: 12.9, Longitude: 77.5, Address: "Indiranagar"},
		IsAvailable:  true,
		LastDonation: &last,
		Requests:     []string{reqID.Hex()},
	}

	doc := toDonorDoc(&donor)
	assert.Equal(t, []float64{77.5, 12.9}, doc.Location.Coordinates)
	assert.Equal(t, "Point", doc.Location.Type)
	assert.Equal(t, "hash", doc.Password)

	back := fromDonorDoc(doc)
	assert.Equal(t, donor.ID, back.ID)
	assert.Equal(t, donor.Location, back.Location)
	assert.Equal(t, []string(donor.Requests), []string(back.Requests))
	assert.Equal(t, donor.PasswordHash, back.PasswordHash)
}

func TestRequestDocAssignsResponseIDs(t *testing.T) {
	now := time.Now().UTC()
	donorID := primitive.NewObjectID().Hex()
	req := &models.BloodRequest{
		BaseModel: models.BaseModel{ID: primitive.NewObjectID().Hex()},
		Status:    models.RequestNotified,
		Responses: []models.DonorResponse{{DonorID: donorID, Status: models.ResponseNotified}},
	}

	doc := toRequestDoc(req, now)
	require.Len(t, doc.Responses, 1)
	assert.False(t, doc.Responses[0].ID.IsZero())
	assert.NotEmpty(t, req.Responses[0].ID)
	assert.Equal(t, req.ID, req.Responses[0].RequestID)

	back := fromRequestDoc(doc)
	assert.Equal(t, donorID, back.Responses[0].DonorID)
	assert.Empty(t, back.RequesterID)
}

func TestTranslateErrors(t *testing.T) {
	assert.NoError(t, translateGormError(nil))
	assert.ErrorIs(t, translateGormError(fmt.Errorf("wrap: %w", gorm.ErrRecordNotFound)), ErrNotFound)
	assert.ErrorIs(t, translateGormError(gorm.ErrDuplicatedKey), ErrDuplicate)

	other := errors.New("boom")
	assert.Equal(t, other, translateGormError(other))

	assert.ErrorIs(t, translateMongoError(mongo.ErrNoDocuments), ErrNotFound)
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, translateMongoError(dup), ErrDuplicate)
}

func TestValidUUID(t *testing.T) {
	assert.True(t, validUUID("3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
	assert.False(t, validUUID("64b7f0c2e4b0a1a2b3c4d5e6"))
}

func TestDocConversionKeepsEmptyCollections(t *testing.T) {
	donor := fromDonorDoc(donorDoc{ID: primitive.NewObjectID()})
	assert.NotNil(t, donor.Donations)
	assert.NotNil(t, donor.Requests)

	req := fromRequestDoc(requestDoc{ID: primitive.NewObjectID()})
	assert.NotNil(t, req.Responses)
	assert.Empty(t, req.Responses)
}
