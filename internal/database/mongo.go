package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/bloodlink/internal/store"
)

// ConnectMongo dials MongoDB, verifies the connection and ensures indexes.
func ConnectMongo(ctx context.Context, uri, dbName string, log logrus.FieldLogger) (*mongo.Client, *mongo.Database, error) {
	if uri == "" {
		return nil, nil, errors.New("mongodb connection URI is empty")
	}

	clientOptions := options.Client().ApplyURI(uri).
		SetMaxPoolSize(50).
		SetConnectTimeout(5 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	if err := EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}

	log.WithField("database", dbName).Info("mongodb connected")
	return client, db, nil
}

// CloseMongo disconnects the client.
func CloseMongo(ctx context.Context, client *mongo.Client) error {
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes both collections depend on. Creating an
// index that already exists with the same definition is a no-op, so this
// runs on every start. Errors are aggregated so every problem is visible.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	var problems []string

	for coll, models := range indexModels() {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			problems = append(problems, coll+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New("ensure indexes: " + strings.Join(problems, "; "))
	}
	return nil
}

func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		store.DonorsCollection: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}, Options: options.Index().SetName("location_2dsphere")},
			{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetName("phone_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "bloodType", Value: 1}}, Options: options.Index().SetName("bloodType_1")},
		},
		store.RequestsCollection: {
			{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetName("reference_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "contactPhone", Value: 1}, {Key: "bloodType", Value: 1}}, Options: options.Index().SetName("contact_bloodType")},
			{Keys: bson.D{{Key: "requester", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("requester_createdAt")},
			{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("status_1")},
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}, Options: options.Index().SetName("location_2dsphere")},
		},
	}
}
