package health

import (
	"sync"
	"time"

	"github.com/AntoinePinto/docu-talk/pkg/logger"
)

// Status classifies a probed component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Component is the last observed state of one probe.
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check probes one dependency and reports its state.
type Check func() (Status, string, error)

// Checker runs registered probes on a fixed period and keeps the latest
// result per component. Only components registered as critical can take the
// whole service unhealthy; a degraded sample store, for instance, does not.
type Checker struct {
	mu       sync.RWMutex
	checks   map[string]Check
	latest   map[string]*Component
	critical map[string]bool
	period   time.Duration
	log      *logger.Logger
}

// NewChecker builds a checker that will probe every period once started.
func NewChecker(log *logger.Logger, period time.Duration) *Checker {
	return &Checker{
		checks:   make(map[string]Check),
		latest:   make(map[string]*Component),
		critical: make(map[string]bool),
		period:   period,
		log:      log,
	}
}

// RegisterCheck adds a non-critical probe under name.
func (c *Checker) RegisterCheck(name string, check Check) {
	c.register(name, check, false)
}

// RegisterDatabaseCheck adds the database probe. The database is critical:
// when it is down the service reports unhealthy.
func (c *Checker) RegisterDatabaseCheck(ping func() error) {
	c.register("database", func() (Status, string, error) {
		if err := ping(); err != nil {
			return StatusDown, "Database unreachable", err
		}
		return StatusUp, "Database connection is established", nil
	}, true)
}

func (c *Checker) register(name string, check Check, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
	c.critical[name] = critical
	c.latest[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Description: "Not checked yet",
	}
}

// RunChecks probes every registered component once.
func (c *Checker) RunChecks() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, check := range c.checks {
		status, description, err := check()
		comp := c.latest[name]
		comp.Status = status
		comp.Description = description
		comp.LastChecked = time.Now()
		comp.Error = ""
		if err != nil {
			comp.Error = err.Error()
			c.log.Error("Health check failed", "component", name, "status", string(status), "error", err.Error())
		}
	}
}

// Start probes once immediately, then on every period, until process exit.
func (c *Checker) Start() {
	go func() {
		c.RunChecks()
		ticker := time.NewTicker(c.period)
		defer ticker.Stop()
		for range ticker.C {
			c.RunChecks()
		}
	}()
}

// GetStatus returns a snapshot of every component's latest state.
func (c *Checker) GetStatus() map[string]*Component {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*Component, len(c.latest))
	for name, comp := range c.latest {
		cp := *comp
		out[name] = &cp
	}
	return out
}

// IsSystemHealthy reports false when any critical component is down.
func (c *Checker) IsSystemHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, comp := range c.latest {
		if c.critical[name] && comp.Status == StatusDown {
			return false
		}
	}
	return true
}
