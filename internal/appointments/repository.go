package appointments

import (
	"context"
	"encoding/json"
	"errors"

	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/storage"
)

const (
	// CollectionKey is the storage key of the appointment list.
	CollectionKey = "sacs_appointments"
	// SchemaVersion is the envelope version written by this build.
	SchemaVersion = 2
)

// Repository loads and stores the appointment list as one document.
type Repository struct {
	items *storage.Collection[models.Appointment]
}

func NewRepository(store storage.Store) *Repository {
	return &Repository{
		items: storage.NewCollection[models.Appointment](store, CollectionKey, SchemaVersion, map[int]storage.Migration{
			1: migrateLegacyList,
		}),
	}
}

// Collection exposes the underlying document for seeding and schema rewrites.
func (r *Repository) Collection() *storage.Collection[models.Appointment] {
	return r.items
}

// List returns every stored appointment in insertion order.
func (r *Repository) List(ctx context.Context) ([]models.Appointment, error) {
	items, err := r.items.Load(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	return items, nil
}

func (r *Repository) Get(ctx context.Context, id string) (models.Appointment, error) {
	items, err := r.List(ctx)
	if err != nil {
		return models.Appointment{}, err
	}
	for _, a := range items {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Appointment{}, ErrNotFound
}

// Insert appends a new appointment.
func (r *Repository) Insert(ctx context.Context, a models.Appointment) error {
	err := r.items.Update(ctx, func(items []models.Appointment) ([]models.Appointment, error) {
		return append(items, a), nil
	})
	if err != nil {
		return persistence(err)
	}
	return nil
}

// Mutate replaces the appointment id with the result of fn. Errors returned by
// fn are passed through and leave the store untouched.
func (r *Repository) Mutate(ctx context.Context, id string, fn func(models.Appointment) (models.Appointment, error)) (before, after models.Appointment, err error) {
	var fnErr error
	err = r.items.Update(ctx, func(items []models.Appointment) ([]models.Appointment, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			before = items[i].Clone()
			next, err := fn(items[i])
			if err != nil {
				fnErr = err
				return nil, err
			}
			after = next
			items[i] = next
			return items, nil
		}
		fnErr = ErrNotFound
		return nil, ErrNotFound
	})
	switch {
	case err == nil:
		return before, after, nil
	case fnErr != nil:
		return before, models.Appointment{}, fnErr
	default:
		return before, models.Appointment{}, persistence(err)
	}
}

// legacyAppointment is the version 1 record shape, written with snake_case keys.
type legacyAppointment struct {
	ID                 string                   `json:"id"`
	PatientID          string                   `json:"patient_id"`
	DoctorID           string                   `json:"doctor_id"`
	CenterID           string                   `json:"center_id"`
	Status             models.AppointmentStatus `json:"status"`
	Type               models.AppointmentType   `json:"type"`
	Date               json.RawMessage          `json:"date"`
	ProposedDate       json.RawMessage          `json:"proposedDate"`
	Reason             string                   `json:"reason"`
	PatientNotes       string                   `json:"patientNotes"`
	DoctorNotes        string                   `json:"doctorNotes"`
	TeleconsultationID string                   `json:"teleconsultationId"`
	CreatedAt          json.RawMessage          `json:"created_at"`
	UpdatedAt          json.RawMessage          `json:"updated_at"`

	// Some version 1 writers already used camelCase.
	PatientIDCamel string          `json:"patientId"`
	DoctorIDCamel  string          `json:"doctorId"`
	CenterIDCamel  string          `json:"centerId"`
	CreatedAtCamel json.RawMessage `json:"createdAt"`
	UpdatedAtCamel json.RawMessage `json:"updatedAt"`
}

func firstOf(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// migrateLegacyList renames the snake_case keys and drops proposal dates that
// outlived their proposal.
func migrateLegacyList(raw json.RawMessage) (json.RawMessage, error) {
	var legacy []legacyAppointment
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, err
	}

	out := make([]map[string]json.RawMessage, 0, len(legacy))
	for _, l := range legacy {
		if l.ID == "" {
			return nil, errors.New("legacy appointment without id")
		}
		rec := map[string]json.RawMessage{}
		put := func(k string, v any) error {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			rec[k] = b
			return nil
		}
		for k, v := range map[string]any{
			"id":                 l.ID,
			"patientId":          firstOf(l.PatientID, l.PatientIDCamel),
			"doctorId":           firstOf(l.DoctorID, l.DoctorIDCamel),
			"centerId":           firstOf(l.CenterID, l.CenterIDCamel),
			"status":             l.Status,
			"type":               l.Type,
			"reason":             l.Reason,
			"patientNotes":       l.PatientNotes,
			"doctorNotes":        l.DoctorNotes,
			"teleconsultationId": l.TeleconsultationID,
		} {
			if err := put(k, v); err != nil {
				return nil, err
			}
		}
		rec["date"] = orNull(l.Date)
		rec["proposedDate"] = json.RawMessage("null")
		if l.Status == models.StatusProposedByDoctor {
			rec["proposedDate"] = orNull(l.ProposedDate)
		}
		if created := firstRaw(l.CreatedAt, l.CreatedAtCamel); created != nil {
			rec["createdAt"] = created
		}
		if updated := firstRaw(l.UpdatedAt, l.UpdatedAtCamel); updated != nil {
			rec["updatedAt"] = updated
		}
		out = append(out, rec)
	}
	return json.Marshal(out)
}

func firstRaw(a, b json.RawMessage) json.RawMessage {
	switch {
	case len(a) > 0 && string(a) != "null":
		return a
	case len(b) > 0 && string(b) != "null":
		return b
	}
	return nil
}

func orNull(v json.RawMessage) json.RawMessage {
	if len(v) == 0 {
		return json.RawMessage("null")
	}
	return v
}
