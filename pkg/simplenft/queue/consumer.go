package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-nft/pkg/simplenft"
)

// DefaultMaxRetries is the retry ceiling when none is configured
const DefaultMaxRetries = 3

// Outcome tells the broker boundary how to settle a delivery
type Outcome int

const (
	// Ack removes the message
	Ack Outcome = iota
	// RejectRequeue rejects so that dead-letter routing redelivers it
	// with an incremented x-death count
	RejectRequeue
	// RejectDrop removes a message that can never succeed
	RejectDrop
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case RejectRequeue:
		return "reject_requeue"
	case RejectDrop:
		return "reject_drop"
	default:
		return "unknown"
	}
}

// Processor runs the enrichment pipeline
type Processor interface {
	Process(ctx context.Context, nft *simplenft.Nft, settings simplenft.ProcessSettings) (simplenft.ProcessStatus, error)
}

// Recorder observes settled messages
type Recorder interface {
	Settled(outcome Outcome, reason string)
}

// Reasons passed to Recorder
const (
	ReasonProcessed    = "processed"
	ReasonFailed       = "failed"
	ReasonMaxRetries   = "max_retries"
	ReasonInvalid      = "invalid"
	ReasonHandlerPanic = "panic"
)

// Consumer turns deliveries into outcomes. It never retries in process.
type Consumer struct {
	processor  Processor
	maxRetries int
	recorder   Recorder
	logger     *slog.Logger
}

// Option configures the consumer
type Option func(*Consumer)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithRecorder reports outcomes, for metrics
func WithRecorder(recorder Recorder) Option {
	return func(c *Consumer) {
		c.recorder = recorder
	}
}

// NewConsumer creates a consumer. A maxRetries of zero or less uses
// DefaultMaxRetries.
func NewConsumer(processor Processor, maxRetries int, opts ...Option) *Consumer {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	c := &Consumer{
		processor:  processor,
		maxRetries: maxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxRetries returns the retry ceiling
func (c *Consumer) MaxRetries() int {
	return c.maxRetries
}

// Handle processes one delivery
func (c *Consumer) Handle(ctx context.Context, msg Message) (outcome Outcome) {
	attempt := Attempt(msg.Headers)
	logger := c.logger.With("correlation_id", uuid.NewString(), "attempt", attempt)

	payload, err := DecodeMessage(msg.Body)
	if err != nil {
		logger.Warn("dropping undecodable message", "error", err)
		return c.settle(RejectDrop, ReasonInvalid)
	}
	logger = logger.With("identifier", payload.Identifier)

	if attempt >= c.maxRetries {
		logger.Warn("nft reached maximum number of retries, removed from retry exchange",
			"max_retries", c.maxRetries, "error", simplenft.ErrPermanentDrop)
		return c.settle(Ack, ReasonMaxRetries)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing nft", "panic", r)
			outcome = c.settle(RejectRequeue, ReasonHandlerPanic)
		}
	}()

	logger.Info("consumer start")
	start := time.Now()

	if _, err := c.processor.Process(ctx, &payload.Nft, payload.Settings); err != nil {
		level := slog.LevelError
		if errors.Is(err, context.Canceled) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "unexpected error when processing nft", "error", err)
		return c.settle(RejectRequeue, ReasonFailed)
	}

	logger.Info("consumer end", "elapsed", time.Since(start))
	return c.settle(Ack, ReasonProcessed)
}

func (c *Consumer) settle(outcome Outcome, reason string) Outcome {
	if c.recorder != nil {
		c.recorder.Settled(outcome, reason)
	}
	return outcome
}
