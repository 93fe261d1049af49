package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowhook/flowhook/pkg/eventbus"
	"github.com/flowhook/flowhook/pkg/events"
	"github.com/flowhook/flowhook/pkg/persistence"
)

const schedulerPollInterval = 1 * time.Minute

// Scheduler fires schedule-style triggers. It polls the recurring task rows
// once a minute and fires every trigger whose cron expression has come due,
// so tasks added or removed by reconciliation are picked up without any
// coordination with the API process.
type Scheduler struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	ticker      *time.Ticker
	done        chan bool
	started     bool
	mu          sync.Mutex
	nextDue     map[string]time.Time
}

func NewScheduler(logger *slog.Logger, persistence persistence.Persistence, publisher eventbus.EventPublisher) *Scheduler {
	return &Scheduler{
		logger:      logger.With("module", "scheduler"),
		persistence: persistence,
		publisher:   publisher,
		nextDue:     make(map[string]time.Time),
	}
}

// CronExpression extracts the cadence from trigger input.
func CronExpression(input map[string]any) (string, error) {
	for _, key := range []string{"cron", "cron_expression"} {
		if value, ok := input[key].(string); ok && value != "" {
			return value, nil
		}
	}

	return "", fmt.Errorf("trigger input has no cron expression")
}

// Start begins the polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info("Starting schedule poller", "interval", schedulerPollInterval)

	s.ticker = time.NewTicker(schedulerPollInterval)
	s.done = make(chan bool)
	s.started = true

	go s.poll(ctx)

	return nil
}

// Stop halts the polling loop.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping schedule poller")

	s.ticker.Stop()

	select {
	case s.done <- true:
	default:
	}

	s.started = false

	return nil
}

func (s *Scheduler) poll(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.processDue(ctx)
		}
	}
}

// processDue fires every recurring task whose schedule has come due and
// advances its next due time. Tasks seen for the first time are armed for
// their next occurrence instead of firing immediately.
func (s *Scheduler) processDue(ctx context.Context) {
	now := time.Now().UTC()

	tasks, err := s.persistence.RecurringTaskRepository().GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to load recurring tasks", "error", err)

		return
	}

	live := make(map[string]bool, len(tasks))

	for _, task := range tasks {
		live[task.TriggerID] = true

		trigger, err := s.persistence.TriggerRepository().GetByID(ctx, task.TriggerID)
		if err != nil {
			s.logger.Error("Recurring task points at unresolvable trigger",
				"trigger_id", task.TriggerID, "error", err)

			continue
		}

		expr, err := CronExpression(trigger.Input)
		if err != nil {
			s.logger.Error("Recurring trigger has no usable cron expression",
				"trigger_id", trigger.ID, "error", err)

			continue
		}

		schedule, err := cron.ParseStandard(expr)
		if err != nil {
			s.logger.Error("Invalid cron expression on recurring trigger",
				"trigger_id", trigger.ID, "cron", expr, "error", err)

			continue
		}

		due, armed := s.nextDue[task.TriggerID]
		if !armed {
			s.nextDue[task.TriggerID] = schedule.Next(now)

			continue
		}

		if now.Before(due) {
			continue
		}

		providerType := ""
		if provider, perr := s.persistence.ProviderRepository().GetByID(ctx, trigger.ProviderID); perr == nil {
			providerType = provider.Type
		}

		s.fire(ctx, trigger.WorkflowID, trigger.ID, providerType, trigger.TriggerType, expr, now)
		s.nextDue[task.TriggerID] = schedule.Next(now)
	}

	// Forget state for tasks removed by reconciliation.
	for triggerID := range s.nextDue {
		if !live[triggerID] {
			delete(s.nextDue, triggerID)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, workflowID, triggerID, providerType, triggerType, expr string, now time.Time) {
	event := events.TriggerFired{
		BaseEvent:    events.NewBaseEvent(events.TriggerFiredEvent, workflowID),
		TriggerID:    triggerID,
		ProviderType: providerType,
		TriggerType:  triggerType,
		TriggerData: map[string]any{
			"fired_at": now.Format(time.RFC3339),
			"cron":     expr,
		},
	}

	if err := s.publisher.Publish(ctx, workflowID, event); err != nil {
		s.logger.Error("Failed to publish schedule firing",
			"trigger_id", triggerID, "error", err)

		return
	}

	s.logger.Info("Schedule fired", "trigger_id", triggerID, "workflow_id", workflowID, "cron", expr)
}
