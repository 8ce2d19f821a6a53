package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
)

// TemplateStore is the persistence the generator needs.
type TemplateStore interface {
	// ListDueTemplates returns active templates that are not past their end
	// date at asOf and whose elapsed-day gate is open. An empty userID means
	// every user.
	ListDueTemplates(ctx context.Context, asOf core.Date, userID string) ([]core.RecurringTemplate, error)
	// AppendOccurrence inserts the occurrence dated on and advances the
	// watermark from tpl.LastGeneratedDate to on, atomically. It returns
	// core.ErrWatermarkMoved when the stored watermark no longer matches.
	AppendOccurrence(ctx context.Context, tpl core.RecurringTemplate, on core.Date) (core.Transaction, error)
}

// EventPublisher announces stored transactions. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.TransactionEvent) error
}

type GeneratorConfig struct {
	Overflow core.OverflowPolicy
	// Location decides which calendar day "today" is. Nil means UTC.
	Location *time.Location
}

// Generator materializes transactions from recurring templates. Each run
// produces at most one occurrence per template.
type Generator struct {
	store     TemplateStore
	publisher EventPublisher
	clock     Clock
	overflow  core.OverflowPolicy
	loc       *time.Location
	logger    *log.Logger
}

func NewGenerator(store TemplateStore, publisher EventPublisher, clock Clock, cfg GeneratorConfig) *Generator {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.Overflow == "" {
		cfg.Overflow = core.OverflowClamp
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Generator{
		store:     store,
		publisher: publisher,
		clock:     clock,
		overflow:  cfg.Overflow,
		loc:       cfg.Location,
		logger:    log.WithComponent(log.ComponentRecurring),
	}
}

// Report summarizes one sweep.
type Report struct {
	ExecutionID string
	AsOf        core.Date
	Checked     int
	Generated   int
	Skipped     int
	Failed      int

	errs []error
}

// Err joins the per-template failures of the sweep, or returns nil.
func (r Report) Err() error {
	return errors.Join(r.errs...)
}

// Run sweeps the templates of every user.
func (g *Generator) Run(ctx context.Context) (Report, error) {
	return g.RunForUser(ctx, "")
}

// RunForUser sweeps one user's templates; an empty userID means all users.
// The returned error is set only when the templates could not be listed or
// ctx ended; per-template failures are counted in the report.
func (g *Generator) RunForUser(ctx context.Context, userID string) (Report, error) {
	start := time.Now()
	report := Report{
		ExecutionID: uuid.NewString(),
		AsOf:        core.DateOf(g.clock.Now(), g.loc),
	}
	logger := g.logger.With(log.FieldExecutionID, report.ExecutionID)

	logger.InfoContext(ctx, "Starting recurring transaction generation",
		log.FieldOperation, log.OpGenerate,
		log.FieldAsOf, report.AsOf.String(),
		log.FieldUserID, userID)

	templates, err := g.store.ListDueTemplates(ctx, report.AsOf, userID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list due recurring templates", log.FieldError, err)
		return report, fmt.Errorf("list due templates: %w", err)
	}

	for _, tpl := range templates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		txn, err := g.generate(ctx, tpl, report.AsOf)
		switch {
		case errors.Is(err, errNotYet), errors.Is(err, core.ErrWatermarkMoved):
			report.Skipped++
			logger.DebugContext(ctx, "Recurring template skipped",
				log.FieldTemplateID, tpl.ID,
				"reason", err.Error())
		case err != nil:
			report.Failed++
			report.errs = append(report.errs, fmt.Errorf("template %s: %w", tpl.ID, err))
			fields := log.NewFields().
				WithOperation(log.OpGenerate).
				WithTemplate(tpl.ID, tpl.UserID, string(tpl.Pattern), tpl.LastGeneratedDate.String()).
				WithError(err)
			logger.ErrorContext(ctx, "Failed to generate recurring transaction", fields.ToSlice()...)
		default:
			report.Generated++
			logger.InfoContext(ctx, "Generated recurring transaction",
				log.FieldTemplateID, tpl.ID,
				log.FieldTransactionID, txn.ID,
				log.FieldNextDate, txn.Date.String())
			g.publish(ctx, txn)
		}
	}

	logger.InfoContext(ctx, "Recurring transaction generation complete",
		log.FieldChecked, report.Checked,
		log.FieldGenerated, report.Generated,
		log.FieldSkipped, report.Skipped,
		log.FieldFailed, report.Failed,
		log.FieldDuration, time.Since(start).Milliseconds())

	return report, nil
}

var errNotYet = errors.New("next occurrence not reached")

func (g *Generator) generate(ctx context.Context, tpl core.RecurringTemplate, today core.Date) (core.Transaction, error) {
	due, err := IsDue(tpl, today)
	if err != nil {
		return core.Transaction{}, err
	}
	if !due {
		return core.Transaction{}, errNotYet
	}

	next, err := tpl.NextFor(g.overflow)
	if err != nil {
		return core.Transaction{}, err
	}
	if next.After(today) {
		return core.Transaction{}, fmt.Errorf("%w: %s", errNotYet, next)
	}
	if tpl.EndDate != nil && next.After(*tpl.EndDate) {
		return core.Transaction{}, fmt.Errorf("%w: %s is past end date %s", errNotYet, next, tpl.EndDate)
	}

	return g.store.AppendOccurrence(ctx, tpl, next)
}

func (g *Generator) publish(ctx context.Context, txn core.Transaction) {
	if g.publisher == nil {
		return
	}
	if err := g.publisher.Publish(ctx, amqp.NewTransactionEvent(txn.ID, txn.UserID, amqp.ActionCreated)); err != nil {
		g.logger.WarnContext(ctx, "Failed to publish transaction event",
			log.FieldTransactionID, txn.ID,
			log.FieldError, err)
	}
}
