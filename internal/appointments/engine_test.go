package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/storage"
)

var (
	patient = Actor{ID: "pat-1", Role: models.RolePatient}
	doctor  = Actor{ID: "doc-1", Role: models.RoleDoctor}
	staff   = Actor{ID: "staff-1", Role: models.RoleStaff}
)

func at(s string) *time.Time {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return &t
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// flakyStore fails writes while failing is set.
type flakyStore struct {
	storage.Store
	failing atomic.Bool
}

func (s *flakyStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if s.failing.Load() {
		return &storage.OpError{Op: "set", Key: key, Err: errors.New("disk full")}
	}
	return s.Store.Set(ctx, key, value)
}

type stubNotes map[string]bool

func (n stubNotes) HasNoteFor(_ context.Context, id string) (bool, error) {
	return n[id], nil
}

type countingIssuer struct {
	calls atomic.Int32
	err   error
}

func (c *countingIssuer) IssueSession(_ context.Context, a models.Appointment) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return "sess-" + a.ID, nil
}

func setupEngine(t *testing.T, opts ...Option) (*Engine, *flakyStore) {
	t.Helper()
	store := &flakyStore{Store: storage.NewMemoryStore()}
	clock := &fixedClock{now: time.Date(2025, 2, 20, 8, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewEngine(NewRepository(store), opts...), store
}

func routineRequest() RoutineRequest {
	return RoutineRequest{
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		CenterID:    "center-1",
		Reason:      "checkup",
		DesiredDate: at("2025-03-01T09:00"),
	}
}

func rawDocument(t *testing.T, s storage.Store) json.RawMessage {
	t.Helper()
	raw, err := s.Get(context.Background(), CollectionKey)
	require.NoError(t, err)
	return raw
}

func TestNegotiationScenario(t *testing.T) {
	ctx := context.Background()
	engine, _ := setupEngine(t)

	created, err := engine.RequestRoutine(ctx, patient, routineRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequestedByPatient, created.Status)
	assert.Equal(t, models.TypeRoutine, created.Type)
	require.NotNil(t, created.Date)
	assert.True(t, created.Date.Equal(*at("2025-03-01T09:00")))
	assert.Nil(t, created.ProposedDate)

	proposed, err := engine.CounterPropose(ctx, created.ID, doctor, CounterProposal{Date: at("2025-03-02T10:00")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProposedByDoctor, proposed.Status)
	require.NotNil(t, proposed.ProposedDate)
	assert.True(t, proposed.ProposedDate.Equal(*at("2025-03-02T10:00")))
	assert.True(t, proposed.Date.Equal(*at("2025-03-01T09:00")), "date is unchanged by a proposal")

	accepted, err := engine.AcceptProposal(ctx, created.ID, patient)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmedByPatient, accepted.Status)
	require.NotNil(t, accepted.Date)
	assert.True(t, accepted.Date.Equal(*at("2025-03-02T10:00")))
	assert.Nil(t, accepted.ProposedDate)

	stored, err := engine.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, accepted, stored)
}

func TestEmergencyScenario(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)

	em, err := engine.RaiseEmergency(ctx, patient, EmergencyRequest{
		PatientID: "pat-1",
		CenterID:  "center-1",
		Reason:    "chest pain",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingForTriage, em.Status)
	assert.Equal(t, models.TypeEmergency, em.Type)
	require.NotNil(t, em.Date)
	assert.Equal(t, em.CreatedAt, *em.Date)

	attended, err := engine.AttendEmergency(ctx, em.ID, doctor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, attended.Status)
	assert.Equal(t, "doc-1", attended.DoctorID)

	before := rawDocument(t, store)
	_, err = engine.AttendEmergency(ctx, em.ID, doctor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, before, rawDocument(t, store))

	completed, err := engine.Complete(ctx, em.ID, doctor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)

	_, err = engine.Cancel(ctx, em.ID, staff)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.StatusCompleted, te.Status)
	assert.Equal(t, TransitionCancel, te.Transition)
	assert.Equal(t, em.ID, te.AppointmentID)
}

func TestEmergencyRejectsNegotiation(t *testing.T) {
	ctx := context.Background()
	engine, _ := setupEngine(t)

	em, err := engine.RaiseEmergency(ctx, patient, EmergencyRequest{PatientID: "pat-1", CenterID: "center-1", Reason: "fall"})
	require.NoError(t, err)

	_, err = engine.CounterPropose(ctx, em.ID, doctor, CounterProposal{Date: at("2025-03-02T10:00")})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = engine.Confirm(ctx, em.ID, staff, Confirmation{Date: at("2025-03-02T10:00")})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = engine.DirectBook(ctx, staff, BookingRequest{
		PatientID: "pat-1", DoctorID: "doc-1", CenterID: "center-1", Reason: "x",
		Date: at("2025-03-02T10:00"), Type: models.TypeEmergency,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTerminalRecordsAreFrozen(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)

	a, err := engine.RequestRoutine(ctx, patient, routineRequest())
	require.NoError(t, err)
	_, err = engine.Cancel(ctx, a.ID, staff)
	require.NoError(t, err)

	before := rawDocument(t, store)
	attempts := []func() error{
		func() error { _, err := engine.CounterPropose(ctx, a.ID, doctor, CounterProposal{Date: at("2025-03-05T10:00")}); return err },
		func() error { _, err := engine.AcceptProposal(ctx, a.ID, patient); return err },
		func() error { _, err := engine.RejectProposal(ctx, a.ID, patient); return err },
		func() error { _, err := engine.Confirm(ctx, a.ID, staff, Confirmation{Date: at("2025-03-05T10:00")}); return err },
		func() error { _, err := engine.AttendEmergency(ctx, a.ID, doctor); return err },
		func() error { _, err := engine.StartSession(ctx, a.ID, doctor); return err },
		func() error { _, err := engine.Complete(ctx, a.ID, doctor); return err },
		func() error { _, err := engine.Cancel(ctx, a.ID, staff); return err },
		func() error { _, err := engine.Annotate(ctx, a.ID, doctor, Notes{DoctorNotes: "late"}); return err },
	}
	for _, attempt := range attempts {
		assert.ErrorIs(t, attempt(), ErrInvalidTransition)
	}
	assert.Equal(t, before, rawDocument(t, store))
}

func TestConfirmRequiresDate(t *testing.T) {
	ctx := context.Background()
	engine, _ := setupEngine(t)

	a, err := engine.RequestTeleconsultation(ctx, patient, TeleconsultationRequest{
		PatientID: "pat-1", DoctorID: "doc-1", CenterID: "center-1", Reason: "rash",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequested, a.Status)
	assert.Equal(t, models.TypeTelemedicine, a.Type)
	assert.Nil(t, a.Date)

	_, err = engine.Confirm(ctx, a.ID, staff, Confirmation{})
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []string{"Date"}, te.Fields)

	confirmed, err := engine.Confirm(ctx, a.ID, staff, Confirmation{Date: at("2025-03-03T11:00")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.True(t, confirmed.Date.Equal(*at("2025-03-03T11:00")))
}

func TestCreationValidation(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)

	req := routineRequest()
	req.DesiredDate = nil
	_, err := engine.RequestRoutine(ctx, patient, req)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = engine.RequestTeleconsultation(ctx, patient, TeleconsultationRequest{PatientID: "pat-1"})
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.ElementsMatch(t, []string{"DoctorID", "CenterID", "Reason"}, te.Fields)

	_, err = engine.RequestTeleconsultation(ctx, patient, TeleconsultationRequest{
		PatientID: "pat-1", DoctorID: "doc-1", CenterID: "center-1", Reason: "x", Type: models.TypePhysical,
	})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Nil(t, rawDocument(t, store), "rejected requests write nothing")
}

func TestRejectProposalCancels(t *testing.T) {
	ctx := context.Background()
	engine, _ := setupEngine(t)

	a, err := engine.RequestRoutine(ctx, patient, routineRequest())
	require.NoError(t, err)
	_, err = engine.AcceptProposal(ctx, a.ID, patient)
	assert.ErrorIs(t, err, ErrInvalidTransition, "nothing proposed yet")

	_, err = engine.CounterPropose(ctx, a.ID, doctor, CounterProposal{Date: at("2025-03-02T10:00"), DoctorNotes: "morning only"})
	require.NoError(t, err)
	rejected, err := engine.RejectProposal(ctx, a.ID, patient)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, rejected.Status)
	assert.Nil(t, rejected.ProposedDate)
	assert.Equal(t, "morning only", rejected.DoctorNotes)
}

func TestDirectBookAndSession(t *testing.T) {
	ctx := context.Background()
	issuer := &countingIssuer{}
	engine, _ := setupEngine(t, WithSessionIssuer(issuer))

	a, err := engine.DirectBook(ctx, staff, BookingRequest{
		PatientID: "pat-1", DoctorID: "doc-1", CenterID: "center-1", Reason: "follow-up",
		Date: at("2025-03-04T15:00"), Type: models.TypeVirtual,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, a.Status)

	started, err := engine.StartSession(ctx, a.ID, doctor)
	require.NoError(t, err)
	assert.Equal(t, "sess-"+a.ID, started.TeleconsultationID)
	assert.Equal(t, models.StatusPending, started.Status)

	_, err = engine.StartSession(ctx, a.ID, doctor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.EqualValues(t, 1, issuer.calls.Load(), "a started session is not issued twice")

	physical, err := engine.DirectBook(ctx, staff, BookingRequest{
		PatientID: "pat-1", DoctorID: "doc-1", CenterID: "center-1", Reason: "x-ray",
		Date: at("2025-03-04T16:00"), Type: models.TypePhysical, Status: models.StatusConfirmed,
	})
	require.NoError(t, err)
	_, err = engine.StartSession(ctx, physical.ID, doctor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.EqualValues(t, 1, issuer.calls.Load())
}

func TestStartSessionIssuerFailure(t *testing.T) {
	ctx := context.Background()
	engine, _ := setupEngine(t, WithSessionIssuer(&countingIssuer{err: errors.New("video provider down")}))

	a, err := engine.DirectBook(ctx, staff, BookingRequest{
		PatientID: "pat-1", DoctorID: "doc-1", CenterID: "center-1", Reason: "x",
		Date: at("2025-03-04T15:00"), Type: models.TypeTelemedicine, Status: models.StatusConfirmed,
	})
	require.NoError(t, err)

	_, err = engine.StartSession(ctx, a.ID, doctor)
	assert.ErrorIs(t, err, ErrPersistence)

	stored, err := engine.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.TeleconsultationID)
}

func TestCompleteWithClinicalNote(t *testing.T) {
	ctx := context.Background()
	notes := stubNotes{}
	engine, _ := setupEngine(t, WithNoteChecker(notes))

	a, err := engine.DirectBook(ctx, staff, BookingRequest{
		PatientID: "pat-1", DoctorID: "doc-1", CenterID: "center-1", Reason: "x",
		Date: at("2025-03-04T15:00"), Type: models.TypePhysical, Status: models.StatusConfirmed,
	})
	require.NoError(t, err)

	_, err = engine.Complete(ctx, a.ID, doctor)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	notes[a.ID] = true
	done, err := engine.Complete(ctx, a.ID, doctor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
}

func TestAnnotate(t *testing.T) {
	ctx := context.Background()
	engine, _ := setupEngine(t)

	a, err := engine.RequestRoutine(ctx, patient, routineRequest())
	require.NoError(t, err)

	_, err = engine.Annotate(ctx, a.ID, doctor, Notes{})
	assert.ErrorIs(t, err, ErrValidation)

	annotated, err := engine.Annotate(ctx, a.ID, doctor, Notes{DoctorNotes: "bring previous results"})
	require.NoError(t, err)
	assert.Equal(t, a.Status, annotated.Status)
	assert.Equal(t, "bring previous results", annotated.DoctorNotes)
	assert.True(t, annotated.UpdatedAt.After(a.UpdatedAt))
}

func TestUnknownAppointment(t *testing.T) {
	engine, _ := setupEngine(t)

	_, err := engine.Cancel(context.Background(), "missing", staff)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "missing", te.AppointmentID)

	_, err = engine.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistenceFailureLeavesRecord(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)

	a, err := engine.RequestRoutine(ctx, patient, routineRequest())
	require.NoError(t, err)

	store.failing.Store(true)
	_, err = engine.Cancel(ctx, a.ID, staff)
	assert.ErrorIs(t, err, ErrPersistence)
	var opErr *storage.OpError
	assert.ErrorAs(t, err, &opErr)

	_, err = engine.RequestRoutine(ctx, patient, routineRequest())
	assert.ErrorIs(t, err, ErrPersistence)

	store.failing.Store(false)
	stored, err := engine.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequestedByPatient, stored.Status)
}

func TestConcurrentTransitionsOnOneAppointment(t *testing.T) {
	ctx := context.Background()
	engine, _ := setupEngine(t)

	a, err := engine.RequestTeleconsultation(ctx, patient, TeleconsultationRequest{
		PatientID: "pat-1", DoctorID: "doc-1", CenterID: "center-1", Reason: "fever",
	})
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = engine.Cancel(ctx, a.ID, staff)
			} else {
				_, err = engine.Confirm(ctx, a.ID, staff, Confirmation{Date: at("2025-03-03T11:00")})
			}
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrInvalidTransition):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	stored, err := engine.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status, "cancel always wins eventually")
	assert.GreaterOrEqual(t, succeeded.Load(), int32(1))
	assert.Equal(t, int32(workers), succeeded.Load()+rejected.Load())
	assert.Zero(t, engine.locks.size())
}

func TestConcurrentCreationsKeepEveryRecord(t *testing.T) {
	ctx := context.Background()
	engine, _ := setupEngine(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.RequestRoutine(ctx, patient, routineRequest())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := engine.repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 20)
}

func TestEngineEmitsEvents(t *testing.T) {
	ctx := context.Background()
	var (
		mu     sync.Mutex
		events []Event
	)
	d := NewDispatcher(nil, 8, HookFunc(func(_ context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		return nil
	}))
	engine, _ := setupEngine(t, WithDispatcher(d))

	a, err := engine.RequestRoutine(ctx, patient, routineRequest())
	require.NoError(t, err)
	_, err = engine.Cancel(ctx, a.ID, staff)
	require.NoError(t, err)
	_, err = engine.Cancel(ctx, a.ID, staff)
	require.Error(t, err)
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2, "failed transitions emit nothing")
	assert.Equal(t, TransitionRequestRoutine, events[0].Transition)
	assert.Nil(t, events[0].Previous)
	assert.Equal(t, TransitionCancel, events[1].Transition)
	require.NotNil(t, events[1].Previous)
	assert.Equal(t, models.StatusRequestedByPatient, events[1].Previous.Status)
	assert.Equal(t, models.StatusCancelled, events[1].Current.Status)
	assert.Equal(t, staff, events[1].Actor)
}
