package appointments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/storage"
)

const legacyList = `[
  {"id":"a1","patient_id":"p1","doctor_id":"d1","center_id":"c1","status":"CONFIRMED","type":"ROUTINE",
   "date":"2025-03-01T09:00:00Z","proposedDate":"2025-02-27T09:00:00Z","reason":"checkup",
   "created_at":"2025-02-01T00:00:00Z"},
  {"id":"a2","patientId":"p2","doctorId":"d2","centerId":"c1","status":"PROPOSED_BY_DOCTOR","type":"TELEMEDICINE",
   "date":null,"proposedDate":"2025-03-02T10:00:00Z","reason":"rash"}
]`

func TestRepositoryMigratesLegacyList(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, CollectionKey, json.RawMessage(legacyList)))

	repo := NewRepository(store)
	items, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "p1", items[0].PatientID)
	assert.Equal(t, "d1", items[0].DoctorID)
	assert.Equal(t, "c1", items[0].CenterID)
	assert.Nil(t, items[0].ProposedDate, "stale proposal dropped")
	assert.Equal(t, 2025, items[0].CreatedAt.Year())

	assert.Equal(t, "p2", items[1].PatientID)
	require.NotNil(t, items[1].ProposedDate)
	assert.Nil(t, items[1].Date)

	n, err := repo.Collection().Rewrite(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw, err := store.Get(ctx, CollectionKey)
	require.NoError(t, err)
	var env struct {
		SchemaVersion int `json:"schemaVersion"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, SchemaVersion, env.SchemaVersion)
}

func TestRepositoryMutate(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(storage.NewMemoryStore())
	require.NoError(t, repo.Insert(ctx, models.Appointment{ID: "a1", Status: models.StatusRequested}))

	before, after, err := repo.Mutate(ctx, "a1", func(a models.Appointment) (models.Appointment, error) {
		a.Status = models.StatusCancelled
		return a, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequested, before.Status)
	assert.Equal(t, models.StatusCancelled, after.Status)

	_, _, err = repo.Mutate(ctx, "nope", func(a models.Appointment) (models.Appointment, error) {
		t.Fatal("callback must not run for a missing id")
		return a, nil
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, CollectionKey, json.RawMessage(`{"schemaVersion":9,"items":[]}`)))

	_, err := NewRepository(store).List(ctx)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, storage.ErrSchemaVersion)
}
