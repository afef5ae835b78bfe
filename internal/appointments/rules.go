package appointments

import (
	"time"

	"sacs-telemedicina-hub/internal/models"
)

// Transition names one operation of the appointment state machine.
type Transition string

const (
	TransitionRequestTeleconsultation Transition = "request_teleconsultation"
	TransitionRequestRoutine          Transition = "request_routine"
	TransitionRaiseEmergency          Transition = "raise_emergency"
	TransitionDirectBook              Transition = "direct_book"
	TransitionCounterPropose          Transition = "counter_propose"
	TransitionAcceptProposal          Transition = "accept_proposal"
	TransitionRejectProposal          Transition = "reject_proposal"
	TransitionConfirm                 Transition = "confirm"
	TransitionAttendEmergency         Transition = "attend_emergency"
	TransitionStartSession            Transition = "start_session"
	TransitionComplete                Transition = "complete"
	TransitionCancel                  Transition = "cancel"
	TransitionAnnotate                Transition = "annotate"
)

// Input is the already validated payload of a transition. Fields not used by
// a transition are ignored.
type Input struct {
	Date         *time.Time
	SessionID    string
	NoteFiled    bool
	ActorID      string
	PatientNotes string
	DoctorNotes  string
}

var (
	requestStatuses     = []models.AppointmentStatus{models.StatusRequested, models.StatusRequestedByPatient}
	confirmableStatuses = []models.AppointmentStatus{models.StatusRequested, models.StatusRequestedByPatient, models.StatusPending}
	sessionStatuses     = []models.AppointmentStatus{models.StatusConfirmed, models.StatusConfirmedByPatient, models.StatusPending, models.StatusInProgress}
	noteCloseStatuses   = []models.AppointmentStatus{models.StatusConfirmed, models.StatusConfirmedByPatient, models.StatusPending}
)

func statusIn(s models.AppointmentStatus, set []models.AppointmentStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Apply validates one transition against cur and returns the resulting record.
// It performs no I/O; cur is never modified.
func Apply(t Transition, cur models.Appointment, in Input, now time.Time) (models.Appointment, error) {
	if cur.Status.IsTerminal() {
		return cur, invalid(t, cur, "appointment is already %s", cur.Status)
	}

	next := cur.Clone()
	switch t {
	case TransitionCounterPropose:
		if cur.IsEmergency() {
			return cur, invalid(t, cur, "emergency appointments bypass negotiation")
		}
		if !statusIn(cur.Status, requestStatuses) {
			return cur, invalid(t, cur, "only requested appointments can receive a proposal")
		}
		if in.Date == nil {
			return cur, invalidPayload(t, cur, "Date")
		}
		d := *in.Date
		next.Status = models.StatusProposedByDoctor
		next.ProposedDate = &d
		if in.DoctorNotes != "" {
			next.DoctorNotes = in.DoctorNotes
		}

	case TransitionAcceptProposal:
		if cur.Status != models.StatusProposedByDoctor {
			return cur, invalid(t, cur, "there is no proposal to accept")
		}
		if cur.ProposedDate == nil {
			return cur, invalid(t, cur, "proposal has no date")
		}
		next.Status = models.StatusConfirmedByPatient
		next.Date = next.ProposedDate
		next.ProposedDate = nil

	case TransitionRejectProposal:
		if cur.Status != models.StatusProposedByDoctor {
			return cur, invalid(t, cur, "there is no proposal to reject")
		}
		next.Status = models.StatusCancelled
		next.ProposedDate = nil

	case TransitionConfirm:
		if !statusIn(cur.Status, confirmableStatuses) {
			return cur, invalid(t, cur, "appointment cannot be confirmed directly")
		}
		if in.Date == nil {
			return cur, invalidPayload(t, cur, "Date")
		}
		d := *in.Date
		next.Status = models.StatusConfirmed
		next.Date = &d

	case TransitionAttendEmergency:
		if cur.Status != models.StatusWaitingForTriage {
			return cur, invalid(t, cur, "appointment is not waiting for triage")
		}
		next.Status = models.StatusInProgress
		if next.DoctorID == "" {
			next.DoctorID = in.ActorID
		}

	case TransitionStartSession:
		if !cur.Type.SupportsVideo() {
			return cur, invalid(t, cur, "%s appointments have no video session", cur.Type)
		}
		if !statusIn(cur.Status, sessionStatuses) {
			return cur, invalid(t, cur, "appointment is not confirmed")
		}
		if cur.TeleconsultationID != "" {
			return cur, invalid(t, cur, "session %s already started", cur.TeleconsultationID)
		}
		if in.SessionID == "" {
			return cur, invalidPayload(t, cur, "SessionID")
		}
		next.TeleconsultationID = in.SessionID

	case TransitionComplete:
		switch {
		case cur.Status == models.StatusInProgress:
		case in.NoteFiled && statusIn(cur.Status, noteCloseStatuses):
		default:
			return cur, invalid(t, cur, "encounter is not in progress and has no clinical note")
		}
		next.Status = models.StatusCompleted

	case TransitionCancel:
		next.Status = models.StatusCancelled
		next.ProposedDate = nil

	case TransitionAnnotate:
		if in.PatientNotes == "" && in.DoctorNotes == "" {
			return cur, invalidPayload(t, cur, "PatientNotes", "DoctorNotes")
		}
		if in.PatientNotes != "" {
			next.PatientNotes = in.PatientNotes
		}
		if in.DoctorNotes != "" {
			next.DoctorNotes = in.DoctorNotes
		}

	default:
		return cur, invalid(t, cur, "unknown transition")
	}

	next.UpdatedAt = now
	return next, nil
}
