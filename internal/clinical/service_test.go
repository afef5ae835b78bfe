package clinical

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := NewService(storage.NewMemoryStore(), nil)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var tick int
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return s
}

func soap(appointmentID, patientID string) NoteRequest {
	return NoteRequest{
		AppointmentID: appointmentID,
		PatientID:     patientID,
		DoctorID:      "doc-1",
		Subjective:    "headache for three days",
		Objective:     "BP 120/80",
		Assessment:    "tension headache",
		Plan:          "rest, ibuprofen",
	}
}

func TestSOAPNotes(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	filed, err := s.HasNoteFor(ctx, "appt-1")
	require.NoError(t, err)
	assert.False(t, filed)

	first, err := s.CreateSOAPNote(ctx, soap("appt-1", "pat-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	second, err := s.CreateSOAPNote(ctx, soap("appt-2", "pat-1"))
	require.NoError(t, err)
	_, err = s.CreateSOAPNote(ctx, soap("appt-3", "pat-2"))
	require.NoError(t, err)

	filed, err = s.HasNoteFor(ctx, "appt-1")
	require.NoError(t, err)
	assert.True(t, filed)

	history, err := s.PatientHistory(ctx, "pat-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID, "newest first")
	assert.Equal(t, first.ID, history[1].ID)
}

func TestSOAPNoteValidation(t *testing.T) {
	req := soap("appt-1", "pat-1")
	req.Assessment = ""

	_, err := newTestService(t).CreateSOAPNote(context.Background(), req)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Assessment")
}

func TestPrescriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	p, err := s.CreatePrescription(ctx, PrescriptionRequest{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Medications: []models.Medication{
			{Name: "Amoxicilina", Dosage: "500mg", Frequency: "cada 8 horas", Duration: "7 dias"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PrescriptionPending, p.Status)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{8}$`), p.ValidationCode)

	found, err := s.ValidatePrescription(ctx, " "+p.ValidationCode+" ")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	dispensed, err := s.Dispense(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrescriptionDispensed, dispensed.Status)
	require.NotNil(t, dispensed.DispensedAt)

	_, err = s.Dispense(ctx, p.ID)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.ValidatePrescription(ctx, p.ValidationCode)
	assert.ErrorIs(t, err, ErrNotFound, "dispensed prescriptions no longer validate")
	_, err = s.Dispense(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrescriptionValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	_, err := s.CreatePrescription(ctx, PrescriptionRequest{PatientID: "pat-1", DoctorID: "doc-1"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.CreatePrescription(ctx, PrescriptionRequest{
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		Medications: []models.Medication{{Name: "Paracetamol", Dosage: "1g"}},
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Frequency")
}

func TestLabOrders(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	_, err := s.CreateLabOrder(ctx, LabOrderRequest{PatientID: "pat-1", DoctorID: "doc-1", CenterID: "c1"})
	assert.ErrorIs(t, err, ErrValidation)

	o, err := s.CreateLabOrder(ctx, LabOrderRequest{
		PatientID: "pat-1", DoctorID: "doc-1", CenterID: "c1",
		Tests: []string{"Hemograma", "Glucosa"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.LabOrderReceived, o.Status)
	_, err = s.CreateLabOrder(ctx, LabOrderRequest{PatientID: "pat-2", DoctorID: "doc-2", CenterID: "c2", Tests: []string{"Orina"}})
	require.NoError(t, err)

	c1, err := s.ListLabOrders(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, c1, 1)
	all, err := s.ListLabOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	processing, err := s.StartLabOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LabOrderProcessing, processing.Status)

	_, err = s.CompleteLabOrder(ctx, o.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	done, err := s.CompleteLabOrder(ctx, o.ID, "https://files.sacs.example/results/1.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.LabOrderCompleted, done.Status)
	assert.Equal(t, "https://files.sacs.example/results/1.pdf", done.ResultsURL)

	_, err = s.CompleteLabOrder(ctx, o.ID, "https://files.sacs.example/results/2.pdf")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.StartLabOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
