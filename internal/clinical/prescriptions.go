package clinical

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/models"
)

type PrescriptionRequest struct {
	PatientID       string              `validate:"required"`
	DoctorID        string              `validate:"required"`
	MedicalRecordID string
	Medications     []models.Medication `validate:"required,min=1,dive"`
}

// newValidationCode returns the 8 character code printed on a prescription.
func newValidationCode() string {
	return strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
}

// CreatePrescription issues a PENDING prescription with a fresh validation code.
func (s *Service) CreatePrescription(ctx context.Context, req PrescriptionRequest) (models.Prescription, error) {
	if err := s.check(req); err != nil {
		return models.Prescription{}, err
	}
	p := models.Prescription{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		MedicalRecordID: req.MedicalRecordID,
		Medications:     append([]models.Medication(nil), req.Medications...),
		Status:          models.PrescriptionPending,
	}
	p.Stamp(s.now())

	err := s.prescriptions.Update(ctx, func(items []models.Prescription) ([]models.Prescription, error) {
		used := make(map[string]bool, len(items))
		for _, it := range items {
			used[it.ValidationCode] = true
		}
		code := newValidationCode()
		for used[code] {
			code = newValidationCode()
		}
		p.ValidationCode = code
		return append(items, p), nil
	})
	if err != nil {
		return models.Prescription{}, err
	}
	s.logger.Info("prescription issued",
		zap.String("prescription_id", p.ID),
		zap.String("patient_id", p.PatientID),
		zap.Int("medications", len(p.Medications)))
	return p, nil
}

// ValidatePrescription finds the pending prescription carrying code.
func (s *Service) ValidatePrescription(ctx context.Context, code string) (models.Prescription, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	items, err := s.prescriptions.Load(ctx)
	if err != nil {
		return models.Prescription{}, err
	}
	for _, p := range items {
		if p.ValidationCode == code && p.Status == models.PrescriptionPending {
			return p, nil
		}
	}
	return models.Prescription{}, fmt.Errorf("%w: no pending prescription with code %s", ErrNotFound, code)
}

// Dispense marks a pending prescription as handed out.
func (s *Service) Dispense(ctx context.Context, id string) (models.Prescription, error) {
	var out models.Prescription
	err := s.prescriptions.Update(ctx, func(items []models.Prescription) ([]models.Prescription, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if items[i].Status != models.PrescriptionPending {
				return nil, fmt.Errorf("%w: prescription %s is %s", ErrConflict, id, items[i].Status)
			}
			now := s.now()
			items[i].Status = models.PrescriptionDispensed
			items[i].DispensedAt = &now
			items[i].UpdatedAt = now
			out = items[i]
			return items, nil
		}
		return nil, fmt.Errorf("%w: prescription %s", ErrNotFound, id)
	})
	if err != nil {
		return models.Prescription{}, err
	}
	s.logger.Info("prescription dispensed", zap.String("prescription_id", id))
	return out, nil
}
