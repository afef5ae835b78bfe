package clinical

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/models"
)

// NoteRequest is a SOAP note as filed by the attending doctor.
type NoteRequest struct {
	AppointmentID string `validate:"required"`
	PatientID     string `validate:"required"`
	DoctorID      string `validate:"required"`
	Subjective    string `validate:"required"`
	Objective     string `validate:"required"`
	Assessment    string `validate:"required"`
	Plan          string `validate:"required"`
}

// CreateSOAPNote files a note for an appointment.
func (s *Service) CreateSOAPNote(ctx context.Context, req NoteRequest) (models.MedicalRecord, error) {
	if err := s.check(req); err != nil {
		return models.MedicalRecord{}, err
	}
	rec := models.MedicalRecord{
		AppointmentID: req.AppointmentID,
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		Subjective:    req.Subjective,
		Objective:     req.Objective,
		Assessment:    req.Assessment,
		Plan:          req.Plan,
	}
	rec.Stamp(s.now())

	err := s.notes.Update(ctx, func(items []models.MedicalRecord) ([]models.MedicalRecord, error) {
		return append(items, rec), nil
	})
	if err != nil {
		return models.MedicalRecord{}, err
	}
	s.logger.Info("medical record filed",
		zap.String("record_id", rec.ID),
		zap.String("appointment_id", rec.AppointmentID))
	return rec, nil
}

// PatientHistory returns a patient's notes, newest first.
func (s *Service) PatientHistory(ctx context.Context, patientID string) ([]models.MedicalRecord, error) {
	items, err := s.notes.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.MedicalRecord, 0)
	for _, rec := range items {
		if rec.PatientID == patientID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// HasNoteFor reports whether any note references the appointment.
func (s *Service) HasNoteFor(ctx context.Context, appointmentID string) (bool, error) {
	items, err := s.notes.Load(ctx)
	if err != nil {
		return false, err
	}
	for _, rec := range items {
		if rec.AppointmentID == appointmentID {
			return true, nil
		}
	}
	return false, nil
}
