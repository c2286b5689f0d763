package complaint

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/queue"
)

// Publisher sends each chief complaint to the coding queue as soon as the
// operator enters it. Failures are logged and swallowed so the form keeps
// going.
type Publisher struct {
	broker    queue.Broker
	queueName string
	out       io.Writer
	logger    zerolog.Logger
}

// NewPublisher creates a Publisher. Confirmation lines go to out.
func NewPublisher(broker queue.Broker, queueName string, out io.Writer, logger zerolog.Logger) *Publisher {
	return &Publisher{broker: broker, queueName: queueName, out: out, logger: logger}
}

// SendChiefComplaint publishes {"chief_complaint": complaint}.
func (p *Publisher) SendChiefComplaint(ctx context.Context, complaint string) {
	body, err := Message{ChiefComplaint: complaint}.Encode()
	if err != nil {
		p.logger.Warn().Err(err).Msg("chief complaint not sent")
		return
	}
	if err := p.broker.Publish(ctx, p.queueName, body); err != nil {
		p.logger.Warn().Err(err).Str("queue", p.queueName).Msg("chief complaint not sent")
		return
	}
	p.logger.Debug().Str("queue", p.queueName).Int("bytes", len(body)).Msg("chief complaint published")
	fmt.Fprintf(p.out, "Chief complaint '%s' sent to %s\n", complaint, p.queueName)
}
