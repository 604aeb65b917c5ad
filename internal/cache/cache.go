package cache

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"dailysales/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

type registered struct {
	name  string
	cache Cleaner
}

// Manager sweeps registered caches on a cron schedule.
type Manager struct {
	cron     *cron.Cron
	schedule string
	caches   []registered
	logger   *log.Logger
}

// NewManager creates a manager for schedule ("@every 1m", "*/5 * * * *", ...).
func NewManager(schedule string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Manager{
		cron:     cron.New(),
		schedule: schedule,
		logger:   logger.WithComponent(log.ComponentCache),
	}
}

// ValidateSchedule reports whether schedule can be parsed by the manager.
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(name string, cache Cleaner) {
	m.caches = append(m.caches, registered{name: name, cache: cache})
}

// Sweep cleans every registered cache once and returns the number of removed entries.
func (m *Manager) Sweep() int {
	total := 0
	for _, r := range m.caches {
		n := r.cache.CleanExpired()
		if n > 0 {
			m.logger.Debug("Expired cache entries removed",
				"cache", r.name,
				"removed", n,
				log.FieldOperation, log.OpReap)
		}
		total += n
	}
	return total
}

// Run schedules sweeps and blocks until ctx is done, then waits for a running sweep to finish.
func (m *Manager) Run(ctx context.Context) error {
	if _, err := m.cron.AddFunc(m.schedule, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("schedule cache cleanup: %w", err)
	}
	m.cron.Start()
	m.logger.InfoContext(ctx, "Cache cleanup scheduled", "schedule", m.schedule, "caches", len(m.caches))

	<-ctx.Done()
	<-m.cron.Stop().Done()
	return nil
}
