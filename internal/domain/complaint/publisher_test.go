package complaint

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/queue"
)

var _ intake.ComplaintSender = (*Publisher)(nil)

func TestPublisher_SendChiefComplaint(t *testing.T) {
	broker := queue.NewMemoryBroker(zerolog.Nop())
	var out bytes.Buffer
	p := NewPublisher(broker, "chief_complaints_queue", &out, zerolog.Nop())

	p.SendChiefComplaint(context.Background(), "chest pain")

	if broker.Len("chief_complaints_queue") != 1 {
		t.Fatalf("expected 1 queued message, got %d", broker.Len("chief_complaints_queue"))
	}
	if out.String() != "Chief complaint 'chest pain' sent to chief_complaints_queue\n" {
		t.Errorf("unexpected output %q", out.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got Message
	_ = broker.Consume(ctx, "chief_complaints_queue", func(_ context.Context, body []byte) error {
		got, _ = DecodeMessage(body)
		cancel()
		return nil
	})
	if got.ChiefComplaint != "chest pain" {
		t.Errorf("expected round-tripped complaint, got %q", got.ChiefComplaint)
	}
}

func TestPublisher_FailureIsSilentToCaller(t *testing.T) {
	var out bytes.Buffer
	p := NewPublisher(&brokerStub{publishErr: errors.New("broker unreachable")}, "q", &out, zerolog.Nop())

	p.SendChiefComplaint(context.Background(), "headache")

	if out.Len() != 0 {
		t.Errorf("expected no confirmation on failure, got %q", out.String())
	}
}

func TestPublisher_ClosedBroker(t *testing.T) {
	broker := queue.NewMemoryBroker(zerolog.Nop())
	_ = broker.Close()
	var out bytes.Buffer
	p := NewPublisher(broker, "q", &out, zerolog.Nop())

	p.SendChiefComplaint(context.Background(), "headache")

	if out.Len() != 0 {
		t.Errorf("expected no confirmation, got %q", out.String())
	}
}
