package intake

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// scriptedPrompter answers prompts from a fixed list and records every
// label it was shown. When cancel is set it is called right after the
// cancelAt-th answer is handed out.
type scriptedPrompter struct {
	answers  []string
	labels   []string
	cancel   context.CancelFunc
	cancelAt int
}

func (p *scriptedPrompter) Prompt(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.labels = append(p.labels, label)
	if len(p.answers) == 0 {
		return "", ErrInputClosed
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	if p.cancel != nil && len(p.labels) == p.cancelAt {
		p.cancel()
	}
	return a, nil
}

// recordingSender remembers each complaint along with how many prompts had
// been answered when it was sent.
type recordingSender struct {
	p     *scriptedPrompter
	sent  []string
	atPos []int
}

func (s *recordingSender) SendChiefComplaint(_ context.Context, complaint string) {
	s.sent = append(s.sent, complaint)
	s.atPos = append(s.atPos, len(s.p.labels))
}

var fixedNow = date(2024, 3, 10)

func linearAnswers() []string {
	return []string{
		"Jane Doe",   // name
		"2000-03-15", // dob
		"chest pain", // chief complaint
		"88",         // hr
		"120/80",     // bp
		"16",         // rr
		"98",         // o2
		"98.6",       // temperature
		"12",         // eta
		"als",        // los
	}
}

func newTestSession(answers ...string) (*Session, *scriptedPrompter, *recordingSender, *Registry, *bytes.Buffer) {
	p := &scriptedPrompter{answers: answers}
	sender := &recordingSender{p: p}
	reg := NewRegistry()
	out := &bytes.Buffer{}
	s := NewSession(p, out, sender, reg, WithClock(func() time.Time { return fixedNow }))
	return s, p, sender, reg, out
}

func TestSession_SubmitCommitsRecord(t *testing.T) {
	s, _, sender, reg, out := newTestSession(append(linearAnswers(), "0")...)

	rec, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 committed record, got %d", reg.Len())
	}
	if rec.Name != "Jane Doe" {
		t.Errorf("expected name Jane Doe, got %q", rec.Name)
	}
	if rec.DateOfBirth() != "2000-03-15" {
		t.Errorf("expected dob 2000-03-15, got %q", rec.DateOfBirth())
	}
	if rec.Age() != 23 {
		t.Errorf("expected age 23, got %d", rec.Age())
	}
	if rec.ChiefComplaint != "chest pain" {
		t.Errorf("expected chief complaint, got %q", rec.ChiefComplaint)
	}
	want := Vitals{HeartRate: 88, BloodPressure: "120/80", RespiratoryRate: 16, OxygenSaturation: 98, Temperature: 98.6}
	if rec.Vitals != want {
		t.Errorf("expected vitals %+v, got %+v", want, rec.Vitals)
	}
	if rec.ETAMinutes != 12 {
		t.Errorf("expected eta 12, got %d", rec.ETAMinutes)
	}
	if rec.LevelOfService != LevelALS {
		t.Errorf("expected LOS ALS, got %q", rec.LevelOfService)
	}
	if rec.CommittedAt == nil || !rec.CommittedAt.Equal(fixedNow) {
		t.Errorf("expected CommittedAt %v, got %v", fixedNow, rec.CommittedAt)
	}
	if rec.SessionID != s.ID {
		t.Error("expected record to carry the session id")
	}
	if len(sender.sent) != 1 || sender.sent[0] != "chest pain" {
		t.Errorf("expected one complaint sent, got %v", sender.sent)
	}
	if !strings.Contains(out.String(), "Patient information has been sent to the hospital.") {
		t.Error("expected submit confirmation on output")
	}
}

func TestSession_PublishesAtFirstEntry(t *testing.T) {
	s, p, sender, _, _ := newTestSession(append(linearAnswers(), "0")...)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.atPos) != 1 {
		t.Fatalf("expected exactly one send, got %d", len(sender.atPos))
	}
	// name, dob, complaint have been prompted; heart rate has not.
	if sender.atPos[0] != 3 {
		t.Errorf("expected send right after the third prompt, got after %d", sender.atPos[0])
	}
	if !strings.HasPrefix(p.labels[2], "Enter Chief Complaints") {
		t.Errorf("expected third prompt to be the chief complaint, got %q", p.labels[2])
	}
}

func TestSession_CancelStillLeavesPublishedComplaint(t *testing.T) {
	s, _, sender, reg, out := newTestSession(append(linearAnswers(), "-1")...)

	_, err := s.Run(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("expected nothing committed, got %d", reg.Len())
	}
	if len(sender.sent) != 1 {
		t.Errorf("expected the complaint to have been sent before cancel, got %v", sender.sent)
	}
	if !strings.Contains(out.String(), "Input canceled. Exiting...") {
		t.Error("expected cancel notice on output")
	}
}

func TestSession_EditCyclesThenSubmitAppendsOnce(t *testing.T) {
	answers := append(linearAnswers(),
		"1", "John Roe", // edit name
		"3", "abdominal pain", // edit complaint
		"5", "-4", // negative ETA is accepted
		"6", "cct", // edit LOS
		"0",
	)
	s, _, sender, reg, _ := newTestSession(answers...)

	rec, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected exactly one committed record, got %d", reg.Len())
	}
	if rec.Name != "John Roe" || rec.ChiefComplaint != "abdominal pain" || rec.ETAMinutes != -4 || rec.LevelOfService != LevelCCT {
		t.Errorf("edits not applied: %+v", rec)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "chest pain" {
		t.Errorf("editing the complaint must not publish again, got %v", sender.sent)
	}
}

func TestSession_EditDateOfBirthRecomputesAge(t *testing.T) {
	answers := append(linearAnswers(), "2", "not-a-date", "1990-01-01", "0")
	s, _, _, _, out := newTestSession(answers...)

	rec, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.DateOfBirth() != "1990-01-01" {
		t.Errorf("expected new dob, got %q", rec.DateOfBirth())
	}
	if rec.Age() != 34 {
		t.Errorf("expected age 34, got %d", rec.Age())
	}
	if !strings.Contains(out.String(), "Invalid date format") {
		t.Error("expected invalid date message")
	}
}

func TestSession_EditVitals(t *testing.T) {
	answers := append(linearAnswers(),
		"4", "b", "130/", "140/90", // bp retried once
		"4", "e", "", // blank temperature means 0
		"4", "a", "-5", // negative heart rate passes
		"4", "z", "0", // bad sub-selector, then return to review
		"0",
	)
	s, _, _, _, out := newTestSession(answers...)

	rec, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Vitals.BloodPressure != "140/90" {
		t.Errorf("expected bp 140/90, got %q", rec.Vitals.BloodPressure)
	}
	if rec.Vitals.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", rec.Vitals.Temperature)
	}
	if rec.Vitals.HeartRate != -5 {
		t.Errorf("expected heart rate -5, got %d", rec.Vitals.HeartRate)
	}
	if rec.Vitals.RespiratoryRate != 16 || rec.Vitals.OxygenSaturation != 98 {
		t.Errorf("untouched vitals changed: %+v", rec.Vitals)
	}
	if !strings.Contains(out.String(), "Invalid input format. Please enter Blood Pressure") {
		t.Error("expected bp validation message")
	}
	if !strings.Contains(out.String(), "Vitals Edit Options:") {
		t.Error("expected vitals menu")
	}
}

func TestSession_VitalsSubmenuSentinelsReturnToReview(t *testing.T) {
	answers := append(linearAnswers(), "4", "-1", "4", "0", "0")
	s, _, _, reg, _ := newTestSession(answers...)

	rec, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("expected submit from the review screen to commit, got %d", reg.Len())
	}
	if rec.Vitals.HeartRate != 88 {
		t.Errorf("expected vitals unchanged, got %+v", rec.Vitals)
	}
}

func TestSession_InvalidSelectorReprompts(t *testing.T) {
	answers := append(linearAnswers(), "9", "edit", "-2", "0")
	s, p, _, reg, _ := newTestSession(answers...)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("expected commit after invalid selectors, got %d", reg.Len())
	}
	reviewPrompts := 0
	for _, l := range p.labels {
		if strings.Contains(l, "field you want to edit") {
			reviewPrompts++
		}
	}
	if reviewPrompts != 4 {
		t.Errorf("expected 4 review prompts, got %d", reviewPrompts)
	}
}

func TestSession_LinearRetriesUntilValid(t *testing.T) {
	answers := []string{
		"Jane Doe",
		"03/15/2000", "2000-03-15",
		"fever",
		"fast", "110",
		"120-80", "120/80",
		"16",
		"ninety", "97",
		"hot", "",
		"soon", "5",
		"xyz", "bls",
		"0",
	}
	s, _, _, _, _ := newTestSession(answers...)

	rec, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Vitals.HeartRate != 110 || rec.Vitals.OxygenSaturation != 97 || rec.ETAMinutes != 5 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.LevelOfService != LevelBLS {
		t.Errorf("expected BLS, got %q", rec.LevelOfService)
	}
}

func TestSession_InputClosed(t *testing.T) {
	s, _, sender, reg, _ := newTestSession("Jane Doe", "2000-03-15", "cough")

	_, err := s.Run(context.Background())
	if !errors.Is(err, ErrInputClosed) {
		t.Fatalf("expected ErrInputClosed, got %v", err)
	}
	if reg.Len() != 0 {
		t.Error("expected nothing committed")
	}
	if len(sender.sent) != 1 {
		t.Errorf("expected complaint already sent, got %v", sender.sent)
	}
}

func TestSession_MaxAttempts(t *testing.T) {
	p := &scriptedPrompter{answers: []string{"Jane", "bad", "worse", "2000-01-01"}}
	sender := &recordingSender{p: p}
	s := NewSession(p, &bytes.Buffer{}, sender, NewRegistry(), WithMaxAttempts(2))

	_, err := s.Run(context.Background())
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Error("expected nothing sent before the complaint prompt")
	}
}

func TestSession_DisplayListsEveryField(t *testing.T) {
	s, _, _, _, out := newTestSession()
	rec := &PatientIntakeRecord{Name: "Jane", ChiefComplaint: "cough", ETAMinutes: 7, LevelOfService: LevelALS}
	rec.SetDateOfBirth(date(2000, 3, 15), fixedNow)
	rec.Vitals = Vitals{HeartRate: 80, BloodPressure: "110/70", RespiratoryRate: 14, OxygenSaturation: 99}

	s.Display(rec)

	for _, want := range []string{
		"1. Name: Jane",
		"2. Date of Birth: 2000-03-15",
		"   Age: 23",
		"3. Chief Complaints: cough",
		"   Heart Rate (bpm): 80",
		"   Blood Pressure (systolic/diastolic): 110/70",
		"   Respiratory Rate (breaths/min): 14",
		"   O2 Saturation (%): 99",
		"   Temperature (Fahrenheit): 0.0",
		"5. ETA: 7 minutes",
		"6. Level of Service (LOS): ALS",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected display to contain %q\n%s", want, out.String())
		}
	}
}

func TestConsolePrompter(t *testing.T) {
	in := strings.NewReader("first\r\nsecond\nlast")
	out := &bytes.Buffer{}
	p := NewConsolePrompter(in, out)

	for _, want := range []string{"first", "second", "last"} {
		got, err := p.Prompt(context.Background(), "> ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
	if _, err := p.Prompt(context.Background(), "> "); !errors.Is(err, ErrInputClosed) {
		t.Errorf("expected ErrInputClosed, got %v", err)
	}
	if out.String() != "> > > > " {
		t.Errorf("expected labels echoed, got %q", out.String())
	}
}

func TestSession_CancelledContextPromptsNothing(t *testing.T) {
	s, p, sender, reg, _ := newTestSession(append(linearAnswers(), "0")...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(p.labels) != 0 || len(sender.sent) != 0 || reg.Len() != 0 {
		t.Errorf("expected no prompts, sends or commits; got %d prompts, %v sent, %d committed",
			len(p.labels), sender.sent, reg.Len())
	}
}

func TestSession_CancelledAtSubmitCommitsNothing(t *testing.T) {
	s, p, sender, reg, out := newTestSession(append(linearAnswers(), "0")...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.cancel = cancel
	p.cancelAt = len(linearAnswers()) + 1

	_, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("expected nothing committed, got %d", reg.Len())
	}
	if len(sender.sent) != 1 {
		t.Errorf("expected the complaint sent before cancellation, got %v", sender.sent)
	}
	if strings.Contains(out.String(), "Patient information has been sent to the hospital.") {
		t.Error("expected no submit confirmation after cancellation")
	}
}

func TestSession_CancelledMidCaptureStops(t *testing.T) {
	s, p, sender, _, _ := newTestSession(linearAnswers()...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.cancel = cancel
	p.cancelAt = 2

	_, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(p.labels) != 2 {
		t.Errorf("expected prompting to stop after 2 labels, got %d", len(p.labels))
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected no complaint sent, got %v", sender.sent)
	}
}

func TestConsolePrompter_CancelUnblocksPendingRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := NewConsolePrompter(pr, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := p.Prompt(ctx, "> ")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not return after cancellation")
	}
}

func TestConsolePrompter_CancelledContextSkipsLabel(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewConsolePrompter(strings.NewReader("answer\n"), out)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Prompt(ctx, "> "); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no label written, got %q", out.String())
	}
}
