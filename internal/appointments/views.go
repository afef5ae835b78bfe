package appointments

import (
	"context"
	"fmt"
	"sort"

	"sacs-telemedicina-hub/internal/models"
)

// StatusClass groups statuses the way the center dashboards display them.
type StatusClass string

const (
	ClassEmergencyQueue StatusClass = "emergency-queue"
	ClassRequests       StatusClass = "requests"
	ClassActiveAgenda   StatusClass = "active-agenda"
	// ClassInProgress is the consultations currently being attended.
	ClassInProgress StatusClass = "in-progress"
)

var classStatuses = map[StatusClass][]models.AppointmentStatus{
	ClassEmergencyQueue: {models.StatusWaitingForTriage},
	ClassRequests: {
		models.StatusRequested,
		models.StatusRequestedByPatient,
	},
	ClassActiveAgenda: {
		models.StatusConfirmed,
		models.StatusConfirmedByPatient,
		models.StatusPending,
		models.StatusProposedByDoctor,
	},
	ClassInProgress: {models.StatusInProgress},
}

// ParseStatusClass accepts the dashboard names of the status classes.
func ParseStatusClass(s string) (StatusClass, bool) {
	c := StatusClass(s)
	_, ok := classStatuses[c]
	return c, ok
}

func (c StatusClass) Statuses() []models.AppointmentStatus {
	return classStatuses[c]
}

// Views answers read-only queries over the appointment list.
type Views struct {
	repo *Repository
}

func NewViews(repo *Repository) *Views {
	return &Views{repo: repo}
}

// ByCenterAndStatusClass lists a center's appointments in one status class.
func (v *Views) ByCenterAndStatusClass(ctx context.Context, centerID string, class StatusClass) ([]models.Appointment, error) {
	statuses, ok := classStatuses[class]
	if !ok {
		return nil, fmt.Errorf("%w: unknown status class %q", ErrValidation, class)
	}
	return v.filter(ctx, func(a models.Appointment) bool {
		return a.CenterID == centerID && statusIn(a.Status, statuses)
	})
}

// ByCenter lists every appointment of a center regardless of status.
func (v *Views) ByCenter(ctx context.Context, centerID string) ([]models.Appointment, error) {
	return v.filter(ctx, func(a models.Appointment) bool {
		return a.CenterID == centerID
	})
}

func (v *Views) ByPatient(ctx context.Context, patientID string) ([]models.Appointment, error) {
	return v.filter(ctx, func(a models.Appointment) bool {
		return a.PatientID == patientID
	})
}

// DoctorAgenda lists a doctor's non-terminal appointments.
func (v *Views) DoctorAgenda(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	return v.filter(ctx, func(a models.Appointment) bool {
		return a.DoctorID == doctorID && !a.Status.IsTerminal()
	})
}

// EmergencyQueue lists waiting emergencies in arrival order.
func (v *Views) EmergencyQueue(ctx context.Context, centerID string) ([]models.Appointment, error) {
	return v.ByCenterAndStatusClass(ctx, centerID, ClassEmergencyQueue)
}

func (v *Views) filter(ctx context.Context, keep func(models.Appointment) bool) ([]models.Appointment, error) {
	items, err := v.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Appointment, 0, len(items))
	for _, a := range items {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	SortByDate(out)
	return out, nil
}

// SortByDate orders by date ascending with undated appointments last. Ties
// keep their stored order.
func SortByDate(items []models.Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Date, items[j].Date
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
