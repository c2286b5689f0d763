package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrCancelled is returned when the operator chooses -1 on the review
	// screen. Nothing is committed.
	ErrCancelled = errors.New("intake cancelled by operator")
	// ErrInputClosed is returned when the prompt source is exhausted.
	ErrInputClosed = errors.New("operator input closed")
	// ErrTooManyAttempts is returned when a retry cap is configured and a
	// field was answered invalidly that many times in a row.
	ErrTooManyAttempts = errors.New("too many invalid attempts")
)

// ComplaintSender hands a freshly entered chief complaint off for coding.
// Delivery is fire-and-forget: the session never learns whether it worked.
type ComplaintSender interface {
	SendChiefComplaint(ctx context.Context, complaint string)
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the clock used for age calculation and commit time.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithMaxAttempts bounds how many invalid answers a single prompt accepts
// before the session gives up. Zero, the default, means no bound.
func WithMaxAttempts(n int) Option {
	return func(s *Session) { s.maxAttempts = n }
}

// WithLogger attaches a structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session drives one guided intake: a fixed sequence of field prompts, then
// a review screen on which fields can be edited until the operator submits
// or cancels.
type Session struct {
	ID          uuid.UUID
	prompter    Prompter
	out         io.Writer
	sender      ComplaintSender
	registry    *Registry
	now         func() time.Time
	maxAttempts int
	logger      zerolog.Logger
}

// NewSession creates a session. Committed records are appended to registry.
func NewSession(p Prompter, out io.Writer, sender ComplaintSender, registry *Registry, opts ...Option) *Session {
	s := &Session{
		ID:       uuid.New(),
		prompter: p,
		out:      out,
		sender:   sender,
		registry: registry,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run captures every field, then loops on the review screen. It returns the
// committed record, or ErrCancelled, ErrInputClosed, ErrTooManyAttempts or
// ctx.Err() once ctx is done. Nothing is committed after ctx is done.
func (s *Session) Run(ctx context.Context) (PatientIntakeRecord, error) {
	rec, err := s.Capture(ctx)
	if err != nil {
		return PatientIntakeRecord{}, err
	}
	return s.Review(ctx, rec)
}

// Capture prompts for each field in order. The chief complaint is sent for
// coding as soon as it is entered, before any later field is asked for.
func (s *Session) Capture(ctx context.Context) (*PatientIntakeRecord, error) {
	rec := &PatientIntakeRecord{SessionID: s.ID}

	steps := []func(context.Context, *PatientIntakeRecord) error{
		s.promptName,
		s.promptDateOfBirth,
		func(ctx context.Context, r *PatientIntakeRecord) error {
			if err := s.promptChiefComplaint(ctx, r); err != nil {
				return err
			}
			s.sender.SendChiefComplaint(ctx, r.ChiefComplaint)
			s.logger.Info().Str("session_id", s.ID.String()).Msg("chief complaint handed off")
			return nil
		},
		s.vitalStep(VitalHeartRate),
		s.vitalStep(VitalBloodPressure),
		s.vitalStep(VitalRespiratoryRate),
		s.vitalStep(VitalOxygenSaturation),
		s.vitalStep(VitalTemperature),
		s.promptETA,
		s.promptLevelOfService,
	}
	for _, step := range steps {
		if err := step(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Review shows rec and applies edits until the operator submits or cancels.
func (s *Session) Review(ctx context.Context, rec *PatientIntakeRecord) (PatientIntakeRecord, error) {
	for {
		s.Display(rec)
		sel, err := prompt(ctx, s, "\nEnter the number of the field you want to edit (1-6, 0 to submit, -1 to cancel): ", ParseReviewSelector)
		if err != nil {
			return PatientIntakeRecord{}, err
		}
		if err := ctx.Err(); err != nil {
			return PatientIntakeRecord{}, err
		}

		switch sel {
		case SelectSubmit:
			now := s.now()
			rec.CommittedAt = &now
			committed := s.registry.Commit(*rec)
			fmt.Fprintln(s.out, "\nPatient information has been sent to the hospital.")
			s.logger.Info().
				Str("session_id", s.ID.String()).
				Int("committed", s.registry.Len()).
				Msg("intake committed")
			return committed, nil
		case SelectCancel:
			fmt.Fprintln(s.out, "\nInput canceled. Exiting...")
			s.logger.Info().Str("session_id", s.ID.String()).Msg("intake cancelled")
			return PatientIntakeRecord{}, ErrCancelled
		case SelectName:
			err = s.promptName(ctx, rec)
		case SelectDateOfBirth:
			err = s.promptDateOfBirth(ctx, rec)
		case SelectChiefComplaint:
			err = s.promptChiefComplaint(ctx, rec)
		case SelectVitals:
			err = s.editVitals(ctx, rec)
		case SelectETA:
			err = s.promptETA(ctx, rec)
		case SelectLevelOfService:
			err = s.promptLevelOfService(ctx, rec)
		default:
			err = fmt.Errorf("unhandled review selector %d", sel)
		}
		if err != nil {
			return PatientIntakeRecord{}, err
		}
	}
}

func (s *Session) editVitals(ctx context.Context, rec *PatientIntakeRecord) error {
	fmt.Fprintln(s.out, "\nVitals Edit Options:")
	for _, v := range VitalFields {
		fmt.Fprintf(s.out, "%s. %s\n", v, v.Label())
	}
	fmt.Fprintf(s.out, "%s. %s\n", VitalsDone, VitalsDone.Label())
	fmt.Fprintf(s.out, "%s. %s\n", VitalsBack, VitalsBack.Label())

	sel, err := prompt(ctx, s, "\nEnter the letter of the vitals field you want to edit (a-e, 0 to return, -1 to cancel): ", ParseVitalSelector)
	if err != nil {
		return err
	}
	if sel == VitalsDone || sel == VitalsBack {
		return nil
	}
	return s.promptVital(ctx, rec, sel)
}

func (s *Session) vitalStep(v VitalSelector) func(context.Context, *PatientIntakeRecord) error {
	return func(ctx context.Context, r *PatientIntakeRecord) error { return s.promptVital(ctx, r, v) }
}

func (s *Session) promptName(ctx context.Context, rec *PatientIntakeRecord) error {
	name, err := s.prompter.Prompt(ctx, "Enter Full Name: ")
	if err != nil {
		return err
	}
	rec.Name = name
	return nil
}

func (s *Session) promptDateOfBirth(ctx context.Context, rec *PatientIntakeRecord) error {
	dob, err := prompt(ctx, s, "Enter Date of Birth (YYYY-MM-DD): ", ParseDateOfBirth)
	if err != nil {
		return err
	}
	rec.SetDateOfBirth(dob, s.now())
	return nil
}

func (s *Session) promptChiefComplaint(ctx context.Context, rec *PatientIntakeRecord) error {
	cc, err := s.prompter.Prompt(ctx, "Enter Chief Complaints: ")
	if err != nil {
		return err
	}
	rec.ChiefComplaint = cc
	return nil
}

func (s *Session) promptVital(ctx context.Context, rec *PatientIntakeRecord, v VitalSelector) error {
	label := "Enter " + v.Label() + ": "
	var err error
	switch v {
	case VitalHeartRate:
		rec.Vitals.HeartRate, err = promptKeep(ctx, s, label, ParseInteger, rec.Vitals.HeartRate)
	case VitalBloodPressure:
		rec.Vitals.BloodPressure, err = promptKeep(ctx, s, label, ParseBloodPressure, rec.Vitals.BloodPressure)
	case VitalRespiratoryRate:
		rec.Vitals.RespiratoryRate, err = promptKeep(ctx, s, label, ParseInteger, rec.Vitals.RespiratoryRate)
	case VitalOxygenSaturation:
		rec.Vitals.OxygenSaturation, err = promptKeep(ctx, s, label, ParseInteger, rec.Vitals.OxygenSaturation)
	case VitalTemperature:
		rec.Vitals.Temperature, err = promptKeep(ctx, s, label, ParseTemperature, rec.Vitals.Temperature)
	default:
		err = fmt.Errorf("unhandled vital selector %q", v)
	}
	return err
}

func (s *Session) promptETA(ctx context.Context, rec *PatientIntakeRecord) error {
	eta, err := prompt(ctx, s, "Enter ETA (minutes): ", ParseInteger)
	if err != nil {
		return err
	}
	rec.ETAMinutes = eta
	return nil
}

func (s *Session) promptLevelOfService(ctx context.Context, rec *PatientIntakeRecord) error {
	los, err := prompt(ctx, s, fmt.Sprintf("Enter Level of Service (Choose from %s): ", levelList()), ParseLevelOfService)
	if err != nil {
		return err
	}
	rec.LevelOfService = los
	return nil
}

// Display prints the review screen.
func (s *Session) Display(rec *PatientIntakeRecord) {
	fmt.Fprintln(s.out, "\nEntered Information:")
	fmt.Fprintln(s.out, "1. Name:", rec.Name)
	fmt.Fprintln(s.out, "2. Date of Birth:", rec.DateOfBirth())
	fmt.Fprintln(s.out, "   Age:", rec.Age())
	fmt.Fprintln(s.out, "3. Chief Complaints:", rec.ChiefComplaint)
	fmt.Fprintln(s.out, "4. Vitals:")
	fmt.Fprintf(s.out, "   %s: %d\n", VitalHeartRate.Label(), rec.Vitals.HeartRate)
	fmt.Fprintf(s.out, "   %s: %s\n", VitalBloodPressure.Label(), rec.Vitals.BloodPressure)
	fmt.Fprintf(s.out, "   %s: %d\n", VitalRespiratoryRate.Label(), rec.Vitals.RespiratoryRate)
	fmt.Fprintf(s.out, "   %s: %d\n", VitalOxygenSaturation.Label(), rec.Vitals.OxygenSaturation)
	fmt.Fprintf(s.out, "   %s: %s\n", VitalTemperature.Label(), formatTemperature(rec.Vitals.Temperature))
	fmt.Fprintln(s.out, "5. ETA:", rec.ETAMinutes, "minutes")
	fmt.Fprintln(s.out, "6. Level of Service (LOS):", rec.LevelOfService)
}

func formatTemperature(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.ContainsAny(s, ".nN") {
		return s
	}
	return s + ".0"
}

// prompt asks label until parse accepts the answer, printing each
// validation message in between.
func prompt[T any](ctx context.Context, s *Session, label string, parse func(string) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		raw, err := s.prompter.Prompt(ctx, label)
		if err != nil {
			return zero, err
		}
		v, err := parse(raw)
		if err == nil {
			return v, nil
		}
		fmt.Fprintln(s.out, err.Error())

		field := "input"
		var verr *ValidationError
		if errors.As(err, &verr) {
			field = verr.Field
		}
		s.logger.Debug().Str("field", field).Int("attempt", attempt).Msg("invalid input")
		if s.maxAttempts > 0 && attempt >= s.maxAttempts {
			return zero, fmt.Errorf("%s after %d tries: %w", field, attempt, ErrTooManyAttempts)
		}
	}
}

// promptKeep is prompt for fields that already hold a value; on failure the
// current value is returned so the record is left untouched.
func promptKeep[T any](ctx context.Context, s *Session, label string, parse func(string) (T, error), current T) (T, error) {
	v, err := prompt(ctx, s, label, parse)
	if err != nil {
		return current, err
	}
	return v, nil
}
