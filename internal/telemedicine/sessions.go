// Package telemedicine tracks the video rooms opened for remote appointments.
// Media transport lives with the video provider; only the session record is kept here.
package telemedicine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/storage"
)

const SessionsKey = "sacs_telemed_sessions"

var (
	ErrSessionNotFound = errors.New("teleconsultation session not found")
	ErrSessionClosed   = errors.New("teleconsultation session already completed")
)

type Service struct {
	sessions *storage.Collection[models.TeleconsultationSession]
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store storage.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: storage.NewCollection[models.TeleconsultationSession](store, SessionsKey, 1, nil),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Collection() storage.Rewriter {
	return s.sessions
}

// Initialize opens a WAITING session for an appointment.
func (s *Service) Initialize(ctx context.Context, appointmentID, doctorID, patientID string) (models.TeleconsultationSession, error) {
	sess := models.TeleconsultationSession{
		ID:            models.NewID(),
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
		PatientID:     patientID,
		StartTime:     s.now(),
		Status:        models.SessionWaiting,
	}
	err := s.sessions.Update(ctx, func(items []models.TeleconsultationSession) ([]models.TeleconsultationSession, error) {
		return append(items, sess), nil
	})
	if err != nil {
		return models.TeleconsultationSession{}, err
	}
	s.logger.Info("teleconsultation session initialized",
		zap.String("session_id", sess.ID),
		zap.String("appointment_id", appointmentID))
	return sess, nil
}

// IssueSession opens a session for a confirmed appointment and returns its id.
func (s *Service) IssueSession(ctx context.Context, a models.Appointment) (string, error) {
	sess, err := s.Initialize(ctx, a.ID, a.DoctorID, a.PatientID)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// Join marks a participant as connected.
func (s *Service) Join(ctx context.Context, id string) (models.TeleconsultationSession, error) {
	return s.update(ctx, id, func(sess *models.TeleconsultationSession) error {
		if sess.Status == models.SessionCompleted {
			return fmt.Errorf("%w: %s", ErrSessionClosed, id)
		}
		sess.Status = models.SessionActive
		return nil
	})
}

// End closes the session and records its duration.
func (s *Service) End(ctx context.Context, id string) (models.TeleconsultationSession, error) {
	return s.update(ctx, id, func(sess *models.TeleconsultationSession) error {
		if sess.Status == models.SessionCompleted {
			return fmt.Errorf("%w: %s", ErrSessionClosed, id)
		}
		end := s.now()
		sess.Status = models.SessionCompleted
		sess.EndTime = &end
		sess.DurationSeconds = int64(end.Sub(sess.StartTime).Seconds())
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (models.TeleconsultationSession, error) {
	items, err := s.sessions.Load(ctx)
	if err != nil {
		return models.TeleconsultationSession{}, err
	}
	for _, sess := range items {
		if sess.ID == id {
			return sess, nil
		}
	}
	return models.TeleconsultationSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

func (s *Service) update(ctx context.Context, id string, fn func(*models.TeleconsultationSession) error) (models.TeleconsultationSession, error) {
	var out models.TeleconsultationSession
	err := s.sessions.Update(ctx, func(items []models.TeleconsultationSession) ([]models.TeleconsultationSession, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if err := fn(&items[i]); err != nil {
				return nil, err
			}
			out = items[i]
			return items, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	})
	if err != nil {
		return models.TeleconsultationSession{}, err
	}
	s.logger.Info("teleconsultation session updated",
		zap.String("session_id", id),
		zap.String("status", string(out.Status)))
	return out, nil
}
