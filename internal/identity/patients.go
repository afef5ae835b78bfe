package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/models"
)

var (
	ErrPatientValidation = errors.New("patient validation failed")
	ErrPatientExists     = errors.New("patient already registered")
)

const (
	sourceRegistry = "SACS-SCI"
	sourceDirect   = "SACS-SCI (Direct)"
)

// PatientRequest is a patient registered by staff at their center.
type PatientRequest struct {
	CenterID     string `json:"center_id" validate:"required"`
	DocumentID   string `json:"document_id" validate:"required"`
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	BirthDate    string `json:"birth_date" validate:"required,datetime=2006-01-02"`
	Gender       string `json:"gender" validate:"omitempty,oneof=masculino femenino otro"`
	ConsentGiven bool   `json:"consent_given" validate:"required"`
	CreatedBy    string `json:"created_by"`
}

// PatientRegistrar creates the patient in the central registry and returns its id.
type PatientRegistrar interface {
	RegisterPatient(ctx context.Context, req PatientRequest) (string, error)
}

// CreatePatient registers a patient. The central registry is tried first when
// configured; if it is unreachable the patient is stored locally only.
func (d *Directory) CreatePatient(ctx context.Context, req PatientRequest) (models.Patient, error) {
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.Gender == "" {
		req.Gender = "otro"
	}
	if err := d.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return models.Patient{}, fmt.Errorf("%w: missing or invalid: %s", ErrPatientValidation, strings.Join(fields, ", "))
		}
		return models.Patient{}, fmt.Errorf("%w: %v", ErrPatientValidation, err)
	}

	p := models.Patient{
		ID:           models.NewID(),
		CenterID:     req.CenterID,
		DocumentID:   req.DocumentID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		BirthDate:    req.BirthDate,
		Gender:       req.Gender,
		ConsentGiven: true,
		CreatedBy:    req.CreatedBy,
		SourceSystem: sourceDirect,
	}
	if d.registrar != nil {
		id, err := d.registrar.RegisterPatient(ctx, req)
		if err == nil && id != "" {
			p.ID = id
			p.SourceSystem = sourceRegistry
		} else {
			d.logger.Warn("patient registry unavailable, storing locally",
				zap.String("center_id", req.CenterID), zap.Error(err))
		}
	}

	err := d.patients.Update(ctx, func(items []models.Patient) ([]models.Patient, error) {
		for _, existing := range items {
			if existing.CenterID == p.CenterID && existing.DocumentID == p.DocumentID {
				return nil, fmt.Errorf("%w: document %s at center %s", ErrPatientExists, p.DocumentID, p.CenterID)
			}
		}
		return append(items, p), nil
	})
	if err != nil {
		return models.Patient{}, err
	}
	d.logger.Info("patient registered",
		zap.String("patient_id", p.ID),
		zap.String("center_id", p.CenterID),
		zap.String("source", p.SourceSystem))
	return p, nil
}

type registeredPatient struct {
	PatientID string `json:"patient_id"`
}

// RegisterPatient calls the create-patient function of the remote backend.
func (c *ProfileClient) RegisterPatient(ctx context.Context, req PatientRequest) (string, error) {
	var out registeredPatient
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post("/functions/v1/create-patient")
	if err != nil {
		return "", fmt.Errorf("failed to call create-patient: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create-patient error: status %d", resp.StatusCode())
	}
	if out.PatientID == "" {
		return "", errors.New("create-patient returned no patient_id")
	}
	return out.PatientID, nil
}
