// Package clinical keeps the records produced during an encounter: SOAP notes,
// prescriptions redeemed at the pharmacy and lab orders.
package clinical

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/storage"
)

const (
	NotesKey         = "sacs_medical_records"
	PrescriptionsKey = "sacs_prescriptions"
	LabOrdersKey     = "sacs_lab_orders"
)

var (
	ErrNotFound   = errors.New("clinical record not found")
	ErrValidation = errors.New("clinical record validation failed")
	ErrConflict   = errors.New("clinical record is not in the required state")
)

// Service files and updates clinical records.
type Service struct {
	notes         *storage.Collection[models.MedicalRecord]
	prescriptions *storage.Collection[models.Prescription]
	labOrders     *storage.Collection[models.LabOrder]
	validate      *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

func NewService(store storage.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		notes:         storage.NewCollection[models.MedicalRecord](store, NotesKey, 1, nil),
		prescriptions: storage.NewCollection[models.Prescription](store, PrescriptionsKey, 1, nil),
		labOrders:     storage.NewCollection[models.LabOrder](store, LabOrdersKey, 1, nil),
		validate:      validator.New(),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Collections lists the documents owned by the service for schema rewrites.
func (s *Service) Collections() []storage.Rewriter {
	return []storage.Rewriter{s.notes, s.prescriptions, s.labOrders}
}

func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace())
	}
	return fmt.Errorf("%w: missing or invalid %s", ErrValidation, strings.Join(fields, ", "))
}
