package clinical

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/models"
)

type LabOrderRequest struct {
	PatientID     string   `validate:"required"`
	DoctorID      string   `validate:"required"`
	CenterID      string   `validate:"required"`
	Tests         []string `validate:"required,min=1,dive,required"`
	ClinicalNotes string
}

// CreateLabOrder registers a RECEIVED order for the lab.
func (s *Service) CreateLabOrder(ctx context.Context, req LabOrderRequest) (models.LabOrder, error) {
	if err := s.check(req); err != nil {
		return models.LabOrder{}, err
	}
	o := models.LabOrder{
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		CenterID:      req.CenterID,
		Tests:         append([]string(nil), req.Tests...),
		Status:        models.LabOrderReceived,
		ClinicalNotes: req.ClinicalNotes,
	}
	o.Stamp(s.now())

	err := s.labOrders.Update(ctx, func(items []models.LabOrder) ([]models.LabOrder, error) {
		return append(items, o), nil
	})
	if err != nil {
		return models.LabOrder{}, err
	}
	s.logger.Info("lab order received", zap.String("order_id", o.ID), zap.Strings("tests", o.Tests))
	return o, nil
}

// ListLabOrders returns the orders of a center, or every order when centerID is empty.
func (s *Service) ListLabOrders(ctx context.Context, centerID string) ([]models.LabOrder, error) {
	items, err := s.labOrders.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.LabOrder, 0, len(items))
	for _, o := range items {
		if centerID == "" || o.CenterID == centerID {
			out = append(out, o)
		}
	}
	return out, nil
}

// StartLabOrder moves a received order into processing.
func (s *Service) StartLabOrder(ctx context.Context, id string) (models.LabOrder, error) {
	return s.updateLabOrder(ctx, id, func(o *models.LabOrder) error {
		if o.Status != models.LabOrderReceived {
			return fmt.Errorf("%w: lab order %s is %s", ErrConflict, id, o.Status)
		}
		o.Status = models.LabOrderProcessing
		return nil
	})
}

type labResult struct {
	ResultsURL string `validate:"required,url"`
}

// CompleteLabOrder attaches the results document and closes the order.
func (s *Service) CompleteLabOrder(ctx context.Context, id, resultsURL string) (models.LabOrder, error) {
	if err := s.check(labResult{ResultsURL: resultsURL}); err != nil {
		return models.LabOrder{}, err
	}
	return s.updateLabOrder(ctx, id, func(o *models.LabOrder) error {
		if o.Status == models.LabOrderCompleted || o.Status == models.LabOrderCancelled {
			return fmt.Errorf("%w: lab order %s is %s", ErrConflict, id, o.Status)
		}
		o.Status = models.LabOrderCompleted
		o.ResultsURL = resultsURL
		return nil
	})
}

func (s *Service) updateLabOrder(ctx context.Context, id string, fn func(*models.LabOrder) error) (models.LabOrder, error) {
	var out models.LabOrder
	err := s.labOrders.Update(ctx, func(items []models.LabOrder) ([]models.LabOrder, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if err := fn(&items[i]); err != nil {
				return nil, err
			}
			items[i].UpdatedAt = s.now()
			out = items[i]
			return items, nil
		}
		return nil, fmt.Errorf("%w: lab order %s", ErrNotFound, id)
	})
	if err != nil {
		return models.LabOrder{}, err
	}
	s.logger.Info("lab order updated", zap.String("order_id", id), zap.String("status", string(out.Status)))
	return out, nil
}
