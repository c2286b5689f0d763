package complaint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/terminology"
	"github.com/ehr/intake/internal/platform/queue"
)

// Coder turns complaint text into a coding result.
type Coder interface {
	Code(ctx context.Context, complaint string) terminology.Result
}

// Consumer drains the coding queue, codes each complaint and reports the
// result. Messages are handled one at a time in arrival order.
type Consumer struct {
	broker    queue.Broker
	queueName string
	coder     Coder
	repo      OutcomeRepository
	out       io.Writer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewConsumer creates a Consumer. Operator-facing report lines go to out.
func NewConsumer(broker queue.Broker, queueName string, coder Coder, repo OutcomeRepository, out io.Writer, logger zerolog.Logger) *Consumer {
	return &Consumer{
		broker:    broker,
		queueName: queueName,
		coder:     coder,
		repo:      repo,
		out:       out,
		logger:    logger,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled or the broker goes away. Cancellation is
// a normal stop and returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, " [*] Waiting for Chief Complaints. To exit press CTRL+C")
	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	err := c.broker.Consume(ctx, c.queueName, c.Handle)
	if ctx.Err() != nil {
		fmt.Fprintln(c.out, "Interrupted")
		c.logger.Info().Msg("consumer stopped")
		return nil
	}
	if errors.Is(err, queue.ErrClosed) {
		return fmt.Errorf("consume %s: %w", c.queueName, err)
	}
	return err
}

// Handle is the queue.JobHandler for the coding queue. It never fails: every
// message ends as a recorded outcome.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	c.Process(ctx, body)
	return nil
}

// Process decodes, codes, reports and records a single message.
func (c *Consumer) Process(ctx context.Context, body []byte) *CodingOutcome {
	start := c.now()

	var res terminology.Result
	msg, err := DecodeMessage(body)
	if err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(body)).Msg("malformed chief complaint message")
		fmt.Fprintf(c.out, "Error decoding message: %v\n", err)
		res = terminology.Result{Err: err}
	} else {
		res = c.coder.Code(ctx, msg.ChiefComplaint)
		c.report(res)
	}

	outcome := NewOutcome(res, start, c.now().Sub(start))
	if err := c.repo.Create(ctx, outcome); err != nil {
		c.logger.Error().Err(err).Str("complaint", outcome.ChiefComplaint).Msg("record coding outcome")
	}
	return outcome
}

func (c *Consumer) report(res terminology.Result) {
	switch res.Status() {
	case terminology.StatusCoded:
		fmt.Fprintf(c.out, " [x] Received Chief Complaint: %s\n", res.Complaint)
		fmt.Fprintf(c.out, " [x] Corresponding ICD-10 Code: %s (%s)\n", res.Candidate.Code, res.Candidate.Display)
	case terminology.StatusEmpty:
		fmt.Fprintf(c.out, " [x] No result found for '%s'\n", res.Complaint)
		fmt.Fprintf(c.out, " [x] Failed to retrieve the ICD-10 code for '%s'\n", res.Complaint)
	case terminology.StatusError:
		fmt.Fprintf(c.out, "Error during API request: %v\n", res.Err)
		fmt.Fprintf(c.out, " [x] Failed to retrieve the ICD-10 code for '%s'\n", res.Complaint)
	}
}
