package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/example/bloodlink/internal/store"
)

func TestIndexModelsGeoAndUnique(t *testing.T) {
	models := indexModels()

	donors := models[store.DonorsCollection]
	require.NotEmpty(t, donors)

	var geo, phone bool
	for _, m := range donors {
		keys := m.Keys.(bson.D)
		switch keys[0].Key {
		case "location":
			geo = keys[0].Value == "2dsphere"
		case "phone":
			phone = m.Options.Unique != nil && *m.Options.Unique
		}
	}
	assert.True(t, geo, "donors need a 2dsphere index for $geoNear")
	assert.True(t, phone, "phone must be unique")

	assert.Contains(t, models, store.RequestsCollection)
}

func TestEnsureDatabaseSkipsNonURLDSN(t *testing.T) {
	assert.NoError(t, ensureDatabase("host=localhost user=postgres dbname=bloodlink"))
	assert.NoError(t, ensureDatabase("postgres://localhost"))
}
