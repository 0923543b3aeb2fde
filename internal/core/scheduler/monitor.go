package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Nzyazin/currency-tracker/internal/core/logger"
	"github.com/Nzyazin/currency-tracker/internal/core/metrics"
	"github.com/Nzyazin/currency-tracker/internal/core/models"
)

// DefaultMonitorInterval is how often tracked entities are polled for changes.
const DefaultMonitorInterval = time.Minute

// Trackable is an entity with a test-and-clear change flag.
type Trackable interface {
	WasUpdated() bool
	Snapshot() models.Values
}

// ChangeEvent is emitted once per observed change of a tracked entity.
type ChangeEvent struct {
	ID         uuid.UUID
	Entity     string
	Values     models.Values
	ObservedAt time.Time
}

type tracked struct {
	name   string
	entity Trackable
}

// ChangeMonitor polls tracked entities and reports the ones that changed.
// It never mutates them beyond consuming their change flag.
type ChangeMonitor struct {
	entities []tracked
	interval time.Duration
	log      logger.Logger
	metrics  *metrics.Metrics
}

func NewChangeMonitor(interval time.Duration, log logger.Logger, m *metrics.Metrics) *ChangeMonitor {
	return &ChangeMonitor{
		interval: interval,
		log:      log,
		metrics:  m,
	}
}

// Track registers an entity under name. Entities are polled in registration order.
// Must be called before Run.
func (c *ChangeMonitor) Track(name string, entity Trackable) {
	c.entities = append(c.entities, tracked{name: name, entity: entity})
}

func (c *ChangeMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.Info("Start change monitor", logger.IntField("entities", len(c.entities)))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Stopping change monitor")
			return nil
		case <-ticker.C:
			c.Poll()
		}
	}
}

// Poll checks every entity once and returns the emitted events.
func (c *ChangeMonitor) Poll() []ChangeEvent {
	var events []ChangeEvent
	for _, t := range c.entities {
		if !t.entity.WasUpdated() {
			continue
		}
		event := ChangeEvent{
			ID:         uuid.New(),
			Entity:     t.name,
			Values:     t.entity.Snapshot(),
			ObservedAt: time.Now(),
		}
		c.metrics.ChangeObserved(t.name)
		c.log.Info(t.name+" updated",
			logger.StringField("event_id", event.ID.String()),
			logger.StringField("entity", event.Entity),
			logger.StringField("values", event.Values.String()),
		)
		events = append(events, event)
	}
	return events
}
