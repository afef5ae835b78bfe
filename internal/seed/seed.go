// Package seed writes the demo accounts, patients and appointments of a fresh hub.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/appointments"
	"sacs-telemedicina-hub/internal/identity"
	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/storage"
)

// DemoCenterID is the center every fixture belongs to.
const DemoCenterID = "c1"

type demoUser struct {
	id, email, password, name string
	role                      models.Role
	patientID                 string
}

var demoUsers = []demoUser{
	{"u1", "admin@sacs.com", "SACS.Admin.V3!!", "Admin General", models.RoleSuperAdmin, ""},
	{"u2", "doctor@sacs.com", "SACS.Doctor.V3!!", "Dr. Roberto Meza", models.RoleDoctor, ""},
	{"u3", "lab@sacs.com", "SACS.Lab.V3!!", "Lic. Elena Solís", models.RoleLabTech, ""},
	{"u4", "pharma@sacs.com", "SACS.Pharma.V3!!", "Farm. Carlos Dávila", models.RolePharmacist, ""},
	{"u5", "patient@sacs.com", "SACS.Patient.V3!!", "Juan Pérez", models.RolePatient, "p1"},
}

// Users returns the demo accounts with hashed passwords.
func Users(now time.Time) ([]models.User, error) {
	out := make([]models.User, 0, len(demoUsers))
	for _, d := range demoUsers {
		u := models.User{
			Email:     d.email,
			FullName:  d.name,
			Role:      d.role,
			CenterID:  DemoCenterID,
			PatientID: d.patientID,
		}
		u.ID = d.id
		u.Stamp(now)
		if err := u.SetPassword(d.password); err != nil {
			return nil, fmt.Errorf("hashing password for %s: %w", d.email, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func Patients() []models.Patient {
	return []models.Patient{
		{ID: "p1", CenterID: DemoCenterID, DocumentID: "0801-1990-12345", FirstName: "Juan", LastName: "Pérez",
			BirthDate: "1990-05-15", Gender: "masculino", SourceSystem: "SACS-LOCAL"},
		{ID: "p2", CenterID: DemoCenterID, DocumentID: "0501-1985-54321", FirstName: "María", LastName: "López",
			BirthDate: "1985-11-20", Gender: "femenino", SourceSystem: "SACS-LOCAL"},
	}
}

// Appointments returns one booked virtual visit and two appointments under negotiation.
// The patient request carries the date the patient asked for.
func Appointments(now time.Time) []models.Appointment {
	today := now
	tomorrow := now.Add(24 * time.Hour)
	desired := now.Add(72 * time.Hour)
	return []models.Appointment{
		{ID: "a1", PatientID: "p1", DoctorID: "u2", CenterID: DemoCenterID, Status: models.StatusPending,
			Type: models.TypeVirtual, Date: &today, Reason: "Control Hipertensión", CreatedAt: now, UpdatedAt: now},
		{ID: "neg1", PatientID: "p1", DoctorID: "u2", CenterID: DemoCenterID, Status: models.StatusRequestedByPatient,
			Type: models.TypeRoutine, Date: &desired, Reason: "Chequeo anual", PatientNotes: "Preferiblemente en la mañana",
			CreatedAt: now, UpdatedAt: now},
		{ID: "neg2", PatientID: "p2", DoctorID: "u2", CenterID: DemoCenterID, Status: models.StatusProposedByDoctor,
			Type: models.TypeRoutine, ProposedDate: &tomorrow, Reason: "Revisión de laboratorio",
			DoctorNotes: "Tengo espacio mañana a esta hora", CreatedAt: now, UpdatedAt: now},
	}
}

// Run writes the fixtures unless accounts already exist. It reports whether
// anything was written.
func Run(ctx context.Context, dir *identity.Directory, repo *appointments.Repository, now time.Time, logger *zap.Logger) (bool, error) {
	exists, err := dir.Users().Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("checking existing users: %w", err)
	}
	if exists {
		logger.Info("seed skipped, users already present")
		return false, nil
	}

	users, err := Users(now)
	if err != nil {
		return false, err
	}
	if err := saveIfMissing(ctx, dir.Patients(), Patients(), logger); err != nil {
		return false, fmt.Errorf("seeding patients: %w", err)
	}
	if err := saveIfMissing(ctx, repo.Collection(), Appointments(now), logger); err != nil {
		return false, fmt.Errorf("seeding appointments: %w", err)
	}
	// Users last: their presence marks the seed as complete.
	if err := dir.Users().Save(ctx, users); err != nil {
		return false, fmt.Errorf("seeding users: %w", err)
	}
	logger.Info("seed data written",
		zap.Int("users", len(users)),
		zap.Int("appointments", len(Appointments(now))))
	return true, nil
}

// saveIfMissing writes items only when the collection has never been stored.
func saveIfMissing[T any](ctx context.Context, coll *storage.Collection[T], items []T, logger *zap.Logger) error {
	exists, err := coll.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		logger.Info("seed kept existing collection", zap.String("key", coll.Key()))
		return nil
	}
	return coll.Save(ctx, items)
}
