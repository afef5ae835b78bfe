// Package identity resolves who is calling: local accounts checked with bcrypt
// and, when configured, the remote profile service.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/storage"
)

const (
	UsersKey    = "sacs_users"
	PatientsKey = "sacs_patients"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// Directory is the local account and patient registry.
type Directory struct {
	users     *storage.Collection[models.User]
	patients  *storage.Collection[models.Patient]
	registrar PatientRegistrar
	validate  *validator.Validate
	logger    *zap.Logger
}

type DirectoryOption func(*Directory)

// WithRegistrar sends new patients to the central registry before they are stored locally.
func WithRegistrar(r PatientRegistrar) DirectoryOption {
	return func(d *Directory) { d.registrar = r }
}

func WithDirectoryLogger(l *zap.Logger) DirectoryOption {
	return func(d *Directory) { d.logger = l }
}

func NewDirectory(store storage.Store, opts ...DirectoryOption) *Directory {
	d := &Directory{
		users:    storage.NewCollection[models.User](store, UsersKey, 1, nil),
		patients: storage.NewCollection[models.Patient](store, PatientsKey, 1, nil),
		validate: validator.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Users exposes the account document for seeding.
func (d *Directory) Users() *storage.Collection[models.User] {
	return d.users
}

// Patients exposes the patient document for seeding.
func (d *Directory) Patients() *storage.Collection[models.Patient] {
	return d.patients
}

// Authenticate returns the account matching email and password.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	u, err := d.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if !u.CheckPassword(password) {
		return models.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return d.findUser(ctx, func(u models.User) bool {
		return strings.ToLower(u.Email) == email
	})
}

func (d *Directory) FindByID(ctx context.Context, id string) (models.User, error) {
	return d.findUser(ctx, func(u models.User) bool {
		return u.ID == id
	})
}

// ListPatients returns the patients registered at a center, or all of them
// when centerID is empty.
func (d *Directory) ListPatients(ctx context.Context, centerID string) ([]models.Patient, error) {
	items, err := d.patients.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Patient, 0, len(items))
	for _, p := range items {
		if centerID == "" || p.CenterID == centerID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListUsers returns the accounts holding role at a center. Empty filters match everything.
func (d *Directory) ListUsers(ctx context.Context, role models.Role, centerID string) ([]models.UserSanitized, error) {
	items, err := d.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserSanitized, 0)
	for _, u := range items {
		if role != "" && u.Role != role {
			continue
		}
		if centerID != "" && u.CenterID != centerID {
			continue
		}
		out = append(out, u.Sanitize())
	}
	return out, nil
}

func (d *Directory) findUser(ctx context.Context, match func(models.User) bool) (models.User, error) {
	items, err := d.users.Load(ctx)
	if err != nil {
		return models.User{}, err
	}
	for _, u := range items {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}
