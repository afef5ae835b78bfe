package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/models"
)

var engineTracer = otel.Tracer("sacs.internal.appointments.engine")

// Actor identifies who drives a transition. Role checks happen at the API
// boundary; the engine only records the actor on emitted events.
type Actor struct {
	ID   string
	Role models.Role
}

// SessionIssuer opens a teleconsultation session for a confirmed appointment.
type SessionIssuer interface {
	IssueSession(ctx context.Context, a models.Appointment) (string, error)
}

// NoteChecker reports whether a clinical note was filed for an appointment.
type NoteChecker interface {
	HasNoteFor(ctx context.Context, appointmentID string) (bool, error)
}

type randomSessions struct{}

func (randomSessions) IssueSession(context.Context, models.Appointment) (string, error) {
	return models.NewID(), nil
}

// TeleconsultationRequest is a patient asking for a remote consultation.
type TeleconsultationRequest struct {
	PatientID    string                 `validate:"required"`
	DoctorID     string                 `validate:"required"`
	CenterID     string                 `validate:"required"`
	Reason       string                 `validate:"required"`
	Type         models.AppointmentType `validate:"omitempty,oneof=VIRTUAL TELEMEDICINE"`
	PatientNotes string
}

// RoutineRequest is a patient asking for a scheduled visit on a desired date.
type RoutineRequest struct {
	PatientID    string                 `validate:"required"`
	DoctorID     string                 `validate:"required"`
	CenterID     string                 `validate:"required"`
	Reason       string                 `validate:"required"`
	DesiredDate  *time.Time             `validate:"required"`
	Type         models.AppointmentType `validate:"omitempty,oneof=ROUTINE PHYSICAL VIRTUAL TELEMEDICINE"`
	PatientNotes string
}

// EmergencyRequest enters a patient into the triage queue. DoctorID may be
// left empty; the attending doctor is then recorded on triage.
type EmergencyRequest struct {
	PatientID    string `validate:"required"`
	DoctorID     string
	CenterID     string `validate:"required"`
	Reason       string `validate:"required"`
	PatientNotes string
}

// BookingRequest is staff scheduling an appointment without negotiation.
type BookingRequest struct {
	PatientID   string                   `validate:"required"`
	DoctorID    string                   `validate:"required"`
	CenterID    string                   `validate:"required"`
	Reason      string                   `validate:"required"`
	Date        *time.Time               `validate:"required"`
	Type        models.AppointmentType   `validate:"required,oneof=VIRTUAL PHYSICAL TELEMEDICINE ROUTINE"`
	Status      models.AppointmentStatus `validate:"omitempty,oneof=PENDING CONFIRMED"`
	DoctorNotes string
}

// CounterProposal is a doctor offering another date.
type CounterProposal struct {
	Date        *time.Time `validate:"required"`
	DoctorNotes string
}

// Confirmation is the final date of a confirmed appointment.
type Confirmation struct {
	Date *time.Time `validate:"required"`
}

// Notes replaces the non-empty note fields.
type Notes struct {
	PatientNotes string
	DoctorNotes  string
}

// Engine applies lifecycle transitions atomically per appointment and
// publishes committed changes.
type Engine struct {
	repo       *Repository
	locks      *keyedMutex
	dispatcher *Dispatcher
	sessions   SessionIssuer
	notes      NoteChecker
	validate   *validator.Validate
	now        func() time.Time
	logger     *zap.Logger
	tracer     trace.Tracer
}

type Option func(*Engine)

func WithDispatcher(d *Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

func WithSessionIssuer(s SessionIssuer) Option {
	return func(e *Engine) { e.sessions = s }
}

func WithNoteChecker(n NoteChecker) Option {
	return func(e *Engine) { e.notes = n }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(repo *Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		locks:    newKeyedMutex(),
		sessions: randomSessions{},
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   zap.NewNop(),
		tracer:   engineTracer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Get returns one appointment.
func (e *Engine) Get(ctx context.Context, id string) (models.Appointment, error) {
	a, err := e.repo.Get(ctx, id)
	if err != nil {
		return models.Appointment{}, e.fail("get", id, err)
	}
	return a, nil
}

// RequestTeleconsultation creates a REQUESTED remote consultation.
func (e *Engine) RequestTeleconsultation(ctx context.Context, actor Actor, req TeleconsultationRequest) (models.Appointment, error) {
	t := TransitionRequestTeleconsultation
	if err := e.check(t, "", req); err != nil {
		return models.Appointment{}, err
	}
	typ := req.Type
	if typ == "" {
		typ = models.TypeTelemedicine
	}
	return e.create(ctx, t, actor, e.newAppointment(req.PatientID, req.DoctorID, req.CenterID, req.Reason,
		models.StatusRequested, typ, nil, req.PatientNotes, ""))
}

// RequestRoutine creates a REQUESTED_BY_PATIENT visit with the desired date.
func (e *Engine) RequestRoutine(ctx context.Context, actor Actor, req RoutineRequest) (models.Appointment, error) {
	t := TransitionRequestRoutine
	if err := e.check(t, "", req); err != nil {
		return models.Appointment{}, err
	}
	typ := req.Type
	if typ == "" {
		typ = models.TypeRoutine
	}
	return e.create(ctx, t, actor, e.newAppointment(req.PatientID, req.DoctorID, req.CenterID, req.Reason,
		models.StatusRequestedByPatient, typ, req.DesiredDate, req.PatientNotes, ""))
}

// RaiseEmergency creates a WAITING_FOR_TRIAGE appointment dated now.
func (e *Engine) RaiseEmergency(ctx context.Context, actor Actor, req EmergencyRequest) (models.Appointment, error) {
	t := TransitionRaiseEmergency
	if err := e.check(t, "", req); err != nil {
		return models.Appointment{}, err
	}
	a := e.newAppointment(req.PatientID, req.DoctorID, req.CenterID, req.Reason,
		models.StatusWaitingForTriage, models.TypeEmergency, nil, req.PatientNotes, "")
	arrived := a.CreatedAt
	a.Date = &arrived
	return e.create(ctx, t, actor, a)
}

// DirectBook creates a PENDING or CONFIRMED appointment on behalf of a patient.
func (e *Engine) DirectBook(ctx context.Context, actor Actor, req BookingRequest) (models.Appointment, error) {
	t := TransitionDirectBook
	if err := e.check(t, "", req); err != nil {
		return models.Appointment{}, err
	}
	status := req.Status
	if status == "" {
		status = models.StatusPending
	}
	return e.create(ctx, t, actor, e.newAppointment(req.PatientID, req.DoctorID, req.CenterID, req.Reason,
		status, req.Type, req.Date, "", req.DoctorNotes))
}

// CounterPropose moves a request to PROPOSED_BY_DOCTOR with the offered date.
func (e *Engine) CounterPropose(ctx context.Context, id string, actor Actor, p CounterProposal) (models.Appointment, error) {
	t := TransitionCounterPropose
	if err := e.check(t, id, p); err != nil {
		return models.Appointment{}, err
	}
	return e.transition(ctx, id, t, actor, Input{Date: p.Date, DoctorNotes: p.DoctorNotes})
}

// AcceptProposal adopts the proposed date as the appointment date.
func (e *Engine) AcceptProposal(ctx context.Context, id string, actor Actor) (models.Appointment, error) {
	return e.transition(ctx, id, TransitionAcceptProposal, actor, Input{})
}

// RejectProposal declines the doctor's proposal and cancels the appointment.
func (e *Engine) RejectProposal(ctx context.Context, id string, actor Actor) (models.Appointment, error) {
	return e.transition(ctx, id, TransitionRejectProposal, actor, Input{})
}

// Confirm fixes the date and moves the appointment to CONFIRMED.
func (e *Engine) Confirm(ctx context.Context, id string, actor Actor, c Confirmation) (models.Appointment, error) {
	t := TransitionConfirm
	if err := e.check(t, id, c); err != nil {
		return models.Appointment{}, err
	}
	return e.transition(ctx, id, t, actor, Input{Date: c.Date})
}

// AttendEmergency moves a triaged emergency into the consultation.
func (e *Engine) AttendEmergency(ctx context.Context, id string, actor Actor) (models.Appointment, error) {
	return e.transition(ctx, id, TransitionAttendEmergency, actor, Input{ActorID: actor.ID})
}

// StartSession issues a teleconsultation session and records its id. The
// issuer is called without holding the appointment lock; a concurrent start
// that commits first makes this one fail.
func (e *Engine) StartSession(ctx context.Context, id string, actor Actor) (models.Appointment, error) {
	t := TransitionStartSession
	cur, err := e.repo.Get(ctx, id)
	if err != nil {
		return models.Appointment{}, e.fail(t, id, err)
	}
	if _, err := Apply(t, cur, Input{SessionID: "pending"}, e.now()); err != nil {
		return models.Appointment{}, err
	}
	sessionID, err := e.sessions.IssueSession(ctx, cur)
	if err != nil {
		return models.Appointment{}, &TransitionError{
			AppointmentID: id,
			Transition:    t,
			Status:        cur.Status,
			Reason:        "session could not be opened",
			Err:           fmt.Errorf("%w: %w", ErrPersistence, err),
		}
	}
	return e.transition(ctx, id, t, actor, Input{SessionID: sessionID})
}

// Complete closes the encounter. Appointments that never went IN_PROGRESS can
// only be completed once a clinical note exists.
func (e *Engine) Complete(ctx context.Context, id string, actor Actor) (models.Appointment, error) {
	t := TransitionComplete
	var filed bool
	if e.notes != nil {
		var err error
		if filed, err = e.notes.HasNoteFor(ctx, id); err != nil {
			return models.Appointment{}, &TransitionError{
				AppointmentID: id,
				Transition:    t,
				Reason:        "clinical notes unavailable",
				Err:           fmt.Errorf("%w: %w", ErrPersistence, err),
			}
		}
	}
	return e.transition(ctx, id, t, actor, Input{NoteFiled: filed})
}

// Cancel ends any non-terminal appointment.
func (e *Engine) Cancel(ctx context.Context, id string, actor Actor) (models.Appointment, error) {
	return e.transition(ctx, id, TransitionCancel, actor, Input{})
}

// Annotate updates free-text notes without changing the status.
func (e *Engine) Annotate(ctx context.Context, id string, actor Actor, n Notes) (models.Appointment, error) {
	return e.transition(ctx, id, TransitionAnnotate, actor, Input{PatientNotes: n.PatientNotes, DoctorNotes: n.DoctorNotes})
}

func (e *Engine) newAppointment(patientID, doctorID, centerID, reason string, status models.AppointmentStatus,
	typ models.AppointmentType, date *time.Time, patientNotes, doctorNotes string) models.Appointment {
	now := e.now()
	a := models.Appointment{
		ID:           models.NewID(),
		PatientID:    patientID,
		DoctorID:     doctorID,
		CenterID:     centerID,
		Status:       status,
		Type:         typ,
		Reason:       reason,
		PatientNotes: patientNotes,
		DoctorNotes:  doctorNotes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if date != nil {
		d := *date
		a.Date = &d
	}
	return a
}

func (e *Engine) create(ctx context.Context, t Transition, actor Actor, a models.Appointment) (models.Appointment, error) {
	ctx, span := e.tracer.Start(ctx, "appointments."+string(t))
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", a.ID),
		attribute.String("appointment.type", string(a.Type)),
	)

	if err := e.repo.Insert(ctx, a); err != nil {
		err = e.fail(t, a.ID, err)
		span.RecordError(err)
		return models.Appointment{}, err
	}
	e.logger.Info("appointment created",
		zap.String("appointment_id", a.ID),
		zap.String("status", string(a.Status)),
		zap.String("type", string(a.Type)),
		zap.String("actor_id", actor.ID))
	e.publish(t, actor, nil, a)
	return a.Clone(), nil
}

func (e *Engine) transition(ctx context.Context, id string, t Transition, actor Actor, in Input) (models.Appointment, error) {
	ctx, span := e.tracer.Start(ctx, "appointments."+string(t))
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id))

	unlock := e.locks.Lock(id)
	defer unlock()

	before, after, err := e.repo.Mutate(ctx, id, func(cur models.Appointment) (models.Appointment, error) {
		return Apply(t, cur, in, e.now())
	})
	if err != nil {
		err = e.fail(t, id, err)
		span.RecordError(err)
		return models.Appointment{}, err
	}
	span.SetAttributes(attribute.String("appointment.status", string(after.Status)))

	e.logger.Info("appointment transition",
		zap.String("appointment_id", id),
		zap.String("transition", string(t)),
		zap.String("from", string(before.Status)),
		zap.String("to", string(after.Status)),
		zap.String("actor_id", actor.ID))
	e.publish(t, actor, &before, after)
	return after.Clone(), nil
}

func (e *Engine) publish(t Transition, actor Actor, before *models.Appointment, after models.Appointment) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.Publish(Event{
		Transition: t,
		Actor:      actor,
		Previous:   before,
		Current:    after.Clone(),
		OccurredAt: e.now(),
	})
}

func (e *Engine) check(t Transition, id string, req any) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &TransitionError{AppointmentID: id, Transition: t, Err: ErrValidation, Reason: err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return invalidPayload(t, models.Appointment{ID: id}, fields...)
}

// fail attaches the transition context to err.
func (e *Engine) fail(t Transition, id string, err error) error {
	var te *TransitionError
	if errors.As(err, &te) {
		if te.AppointmentID == "" {
			te.AppointmentID = id
		}
		return te
	}
	if errors.Is(err, ErrNotFound) {
		return &TransitionError{AppointmentID: id, Transition: t, Err: ErrNotFound}
	}
	e.logger.Error("appointment store failure",
		zap.String("appointment_id", id),
		zap.String("transition", string(t)),
		zap.Error(err))
	return &TransitionError{AppointmentID: id, Transition: t, Err: persistence(err)}
}
