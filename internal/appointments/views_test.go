package appointments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/storage"
)

func seedViews(t *testing.T) *Views {
	t.Helper()
	ctx := context.Background()
	repo := NewRepository(storage.NewMemoryStore())
	for _, a := range []models.Appointment{
		{ID: "undated", PatientID: "p1", DoctorID: "d1", CenterID: "c1", Status: models.StatusRequested, Type: models.TypeTelemedicine},
		{ID: "late", PatientID: "p1", DoctorID: "d1", CenterID: "c1", Status: models.StatusConfirmed, Type: models.TypeRoutine, Date: at("2025-03-10T09:00")},
		{ID: "early", PatientID: "p2", DoctorID: "d1", CenterID: "c1", Status: models.StatusPending, Type: models.TypePhysical, Date: at("2025-03-01T09:00")},
		{ID: "er-2", PatientID: "p3", CenterID: "c1", Status: models.StatusWaitingForTriage, Type: models.TypeEmergency, Date: at("2025-02-20T10:05")},
		{ID: "er-1", PatientID: "p4", CenterID: "c1", Status: models.StatusWaitingForTriage, Type: models.TypeEmergency, Date: at("2025-02-20T10:00")},
		{ID: "done", PatientID: "p1", DoctorID: "d1", CenterID: "c1", Status: models.StatusCompleted, Type: models.TypeRoutine, Date: at("2025-01-10T09:00")},
		{ID: "other", PatientID: "p1", DoctorID: "d2", CenterID: "c2", Status: models.StatusConfirmed, Type: models.TypeRoutine, Date: at("2025-03-01T09:00")},
		{ID: "same-time", PatientID: "p5", DoctorID: "d1", CenterID: "c1", Status: models.StatusConfirmed, Type: models.TypeRoutine, Date: at("2025-03-01T09:00")},
		{ID: "proposed", PatientID: "p6", DoctorID: "d1", CenterID: "c1", Status: models.StatusProposedByDoctor, Type: models.TypeRoutine, ProposedDate: at("2025-03-05T11:00")},
		{ID: "by-patient", PatientID: "p7", DoctorID: "d1", CenterID: "c1", Status: models.StatusRequestedByPatient, Type: models.TypeRoutine, Date: at("2025-03-03T08:00")},
		{ID: "accepted", PatientID: "p8", DoctorID: "d1", CenterID: "c1", Status: models.StatusConfirmedByPatient, Type: models.TypeRoutine, Date: at("2025-03-04T08:00")},
		{ID: "attending", PatientID: "p9", DoctorID: "d1", CenterID: "c1", Status: models.StatusInProgress, Type: models.TypeTelemedicine, Date: at("2025-02-28T15:00")},
	} {
		require.NoError(t, repo.Insert(ctx, a))
	}
	return NewViews(repo)
}

func ids(items []models.Appointment) []string {
	out := make([]string, 0, len(items))
	for _, a := range items {
		out = append(out, a.ID)
	}
	return out
}

func TestViews(t *testing.T) {
	ctx := context.Background()
	v := seedViews(t)

	agenda, err := v.ByCenterAndStatusClass(ctx, "c1", ClassActiveAgenda)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "same-time", "accepted", "late", "proposed"}, ids(agenda))

	requests, err := v.ByCenterAndStatusClass(ctx, "c1", ClassRequests)
	require.NoError(t, err)
	assert.Equal(t, []string{"by-patient", "undated"}, ids(requests))

	attending, err := v.ByCenterAndStatusClass(ctx, "c1", ClassInProgress)
	require.NoError(t, err)
	assert.Equal(t, []string{"attending"}, ids(attending))

	queue, err := v.EmergencyQueue(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"er-1", "er-2"}, ids(queue))

	mine, err := v.ByPatient(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"done", "other", "late", "undated"}, ids(mine))

	doctor, err := v.DoctorAgenda(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"attending", "early", "same-time", "by-patient", "accepted", "late", "undated", "proposed"}, ids(doctor))

	all, err := v.ByCenter(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, ids(all))

	_, err = v.ByCenterAndStatusClass(ctx, "c1", StatusClass("archive"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStatusClassMembership(t *testing.T) {
	cases := map[StatusClass][]models.AppointmentStatus{
		ClassEmergencyQueue: {models.StatusWaitingForTriage},
		ClassRequests:       {models.StatusRequested, models.StatusRequestedByPatient},
		ClassActiveAgenda: {
			models.StatusConfirmed,
			models.StatusConfirmedByPatient,
			models.StatusPending,
			models.StatusProposedByDoctor,
		},
		ClassInProgress: {models.StatusInProgress},
	}
	for class, want := range cases {
		assert.ElementsMatch(t, want, class.Statuses(), string(class))
	}
}

func TestParseStatusClass(t *testing.T) {
	c, ok := ParseStatusClass("emergency-queue")
	assert.True(t, ok)
	assert.Equal(t, []models.AppointmentStatus{models.StatusWaitingForTriage}, c.Statuses())

	_, ok = ParseStatusClass("everything")
	assert.False(t, ok)
}
