package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sacs-telemedicina-hub/internal/models"
)

func TestExportAppointments(t *testing.T) {
	date := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	data, err := ExportAppointments([]models.Appointment{
		{ID: "a1", PatientID: "p1", DoctorID: "u2", CenterID: "c1", Type: models.TypeRoutine,
			Status: models.StatusConfirmedByPatient, Date: &date, Reason: "Chequeo anual", CreatedAt: date},
		{ID: "a2", PatientID: "p2", CenterID: "c1", Type: models.TypeEmergency,
			Status: models.StatusWaitingForTriage, Reason: "dolor de pecho"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{appointmentsSheet}, f.GetSheetList())
	rows, err := f.GetRows(appointmentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, appointmentHeaders, rows[0])
	assert.Equal(t, "a1", rows[1][0])
	assert.Equal(t, "CONFIRMED_BY_PATIENT", rows[1][5])
	assert.Equal(t, "2025-03-02 10:00", rows[1][6])
	assert.Equal(t, "", rows[2][6])
	assert.Equal(t, "dolor de pecho", rows[2][8])
}

func TestExportEmpty(t *testing.T) {
	data, err := ExportAppointments(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(appointmentsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
