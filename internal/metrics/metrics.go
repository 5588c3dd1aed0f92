package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Database query types tracked by the collector.
const (
	DBQueryTypeSelect = "select"
	DBQueryTypeInsert = "insert"
	DBQueryTypeUpdate = "update"
	DBQueryTypeDelete = "delete"
)

// TimerMetric captures timing information
type TimerMetric struct {
	Count         int64   `json:"count"`
	TotalTimeMs   int64   `json:"total_time_ms"`
	AverageTimeMs float64 `json:"average_time_ms"`
	MinTimeMs     int64   `json:"min_time_ms"`
	MaxTimeMs     int64   `json:"max_time_ms"`
}

// ErrorRateMetric captures error rates
type ErrorRateMetric struct {
	Total     int64   `json:"total"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

type timerState struct {
	count       int64
	totalTimeMs int64
	minTimeMs   int64
	maxTimeMs   int64
}

type errState struct {
	total  int64
	errors int64
}

// Collector is an in-process metrics collector. Counters, gauges and timers
// are created lazily and updated with atomics.
type Collector struct {
	mu           sync.RWMutex
	counters     map[string]*int64
	gauges       map[string]*int64
	timers       map[string]*timerState
	errorRates   map[string]*errState
	healthChecks map[string]*int64
	startTime    time.Time
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		counters:     make(map[string]*int64),
		gauges:       make(map[string]*int64),
		timers:       make(map[string]*timerState),
		errorRates:   make(map[string]*errState),
		healthChecks: make(map[string]*int64),
		startTime:    time.Now(),
	}
}

var (
	defaultCollector *Collector
	defaultOnce      sync.Once
)

// Default returns the global metrics collector instance
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector()
	})
	return defaultCollector
}

// IncrementCounter increments a counter by 1
func (c *Collector) IncrementCounter(name string) {
	c.IncrementCounterBy(name, 1)
}

// IncrementCounterBy increments a counter by the specified value
func (c *Collector) IncrementCounterBy(name string, value int64) {
	c.mu.RLock()
	counter, exists := c.counters[name]
	c.mu.RUnlock()

	if !exists {
		c.mu.Lock()
		// Check again to avoid race conditions
		if counter, exists = c.counters[name]; !exists {
			var v int64
			counter = &v
			c.counters[name] = counter
		}
		c.mu.Unlock()
	}

	atomic.AddInt64(counter, value)
}

// SetGauge sets a gauge to a specific value
func (c *Collector) SetGauge(name string, value int64) {
	c.mu.RLock()
	gauge, exists := c.gauges[name]
	c.mu.RUnlock()

	if !exists {
		c.mu.Lock()
		if gauge, exists = c.gauges[name]; !exists {
			var v int64
			gauge = &v
			c.gauges[name] = gauge
		}
		c.mu.Unlock()
	}

	atomic.StoreInt64(gauge, value)
}

// RecordTimer records a timing measurement
func (c *Collector) RecordTimer(name string, durationMs int64) {
	c.mu.RLock()
	timer, exists := c.timers[name]
	c.mu.RUnlock()

	if !exists {
		c.mu.Lock()
		if timer, exists = c.timers[name]; !exists {
			timer = &timerState{minTimeMs: 1<<63 - 1}
			c.timers[name] = timer
		}
		c.mu.Unlock()
	}

	atomic.AddInt64(&timer.count, 1)
	atomic.AddInt64(&timer.totalTimeMs, durationMs)

	// Update min if smaller
	for {
		currentMin := atomic.LoadInt64(&timer.minTimeMs)
		if durationMs >= currentMin {
			break
		}
		if atomic.CompareAndSwapInt64(&timer.minTimeMs, currentMin, durationMs) {
			break
		}
	}

	// Update max if larger
	for {
		currentMax := atomic.LoadInt64(&timer.maxTimeMs)
		if durationMs <= currentMax {
			break
		}
		if atomic.CompareAndSwapInt64(&timer.maxTimeMs, currentMax, durationMs) {
			break
		}
	}
}

// RecordSuccess records a successful operation for error rate tracking
func (c *Collector) RecordSuccess(name string) {
	c.recordErrorRate(name, false)
}

// RecordError records an error for error rate tracking
func (c *Collector) RecordError(name string) {
	c.recordErrorRate(name, true)
}

func (c *Collector) recordErrorRate(name string, isError bool) {
	c.mu.RLock()
	rate, exists := c.errorRates[name]
	c.mu.RUnlock()

	if !exists {
		c.mu.Lock()
		if rate, exists = c.errorRates[name]; !exists {
			rate = &errState{}
			c.errorRates[name] = rate
		}
		c.mu.Unlock()
	}

	atomic.AddInt64(&rate.total, 1)
	if isError {
		atomic.AddInt64(&rate.errors, 1)
	}
}

// SetHealth sets the health status of a component
func (c *Collector) SetHealth(component string, isHealthy bool) {
	var value int64
	if isHealthy {
		value = 1
	}

	c.mu.RLock()
	health, exists := c.healthChecks[component]
	c.mu.RUnlock()

	if !exists {
		c.mu.Lock()
		if health, exists = c.healthChecks[component]; !exists {
			var v int64
			health = &v
			c.healthChecks[component] = health
		}
		c.mu.Unlock()
	}

	atomic.StoreInt64(health, value)
}

// RecordDatabaseQuery records metrics for a database query
func (c *Collector) RecordDatabaseQuery(queryType string, success bool, latency time.Duration) {
	c.IncrementCounter("db.queries." + queryType)
	c.RecordTimer("db.query_time."+queryType, latency.Milliseconds())
	if success {
		c.RecordSuccess("db.queries")
	} else {
		c.RecordError("db.queries")
	}
}

// RecordHTTPRequest records metrics for an HTTP request
func (c *Collector) RecordHTTPRequest(path string, statusCode int, latency time.Duration) {
	c.IncrementCounter("http.requests")
	c.RecordTimer("http.request_time", latency.Milliseconds())
	if statusCode >= 500 {
		c.RecordError("http.requests")
	} else {
		c.RecordSuccess("http.requests")
	}
}

// RecordStatusTransition counts an order moving to a new status.
func (c *Collector) RecordStatusTransition(to string) {
	c.IncrementCounter("orders.transitions." + to)
}

// RecordStockMovement counts a stock ledger entry by movement type.
func (c *Collector) RecordStockMovement(movementType string) {
	c.IncrementCounter("stock.movements." + movementType)
}

// RecordPayment counts a registered payment by method.
func (c *Collector) RecordPayment(method string) {
	c.IncrementCounter("payments." + method)
}

// GetCounters returns all counters
func (c *Collector) GetCounters() map[string]int64 {
	out := make(map[string]int64)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, counter := range c.counters {
		out[name] = atomic.LoadInt64(counter)
	}
	return out
}

// GetGauges returns all gauges
func (c *Collector) GetGauges() map[string]int64 {
	out := make(map[string]int64)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, gauge := range c.gauges {
		out[name] = atomic.LoadInt64(gauge)
	}
	return out
}

// GetTimers returns all timers
func (c *Collector) GetTimers() map[string]TimerMetric {
	out := make(map[string]TimerMetric)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, timer := range c.timers {
		count := atomic.LoadInt64(&timer.count)
		total := atomic.LoadInt64(&timer.totalTimeMs)

		var average float64
		if count > 0 {
			average = float64(total) / float64(count)
		}

		out[name] = TimerMetric{
			Count:         count,
			TotalTimeMs:   total,
			AverageTimeMs: average,
			MinTimeMs:     atomic.LoadInt64(&timer.minTimeMs),
			MaxTimeMs:     atomic.LoadInt64(&timer.maxTimeMs),
		}
	}
	return out
}

// GetErrorRates returns all error rates
func (c *Collector) GetErrorRates() map[string]ErrorRateMetric {
	out := make(map[string]ErrorRateMetric)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, er := range c.errorRates {
		total := atomic.LoadInt64(&er.total)
		errs := atomic.LoadInt64(&er.errors)

		var rate float64
		if total > 0 {
			rate = float64(errs) / float64(total) * 100.0
		}

		out[name] = ErrorRateMetric{
			Total:     total,
			Errors:    errs,
			ErrorRate: rate,
		}
	}
	return out
}

// GetHealthChecks returns all health checks
func (c *Collector) GetHealthChecks() map[string]bool {
	out := make(map[string]bool)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, health := range c.healthChecks {
		out[name] = atomic.LoadInt64(health) > 0
	}
	return out
}

// GetUptimeSeconds returns the service uptime in seconds
func (c *Collector) GetUptimeSeconds() int64 {
	return int64(time.Since(c.startTime).Seconds())
}

// GetAllMetrics returns all metrics in a structured format
func (c *Collector) GetAllMetrics() map[string]interface{} {
	return map[string]interface{}{
		"uptime_seconds": c.GetUptimeSeconds(),
		"counters":       c.GetCounters(),
		"gauges":         c.GetGauges(),
		"timers":         c.GetTimers(),
		"error_rates":    c.GetErrorRates(),
		"health_checks":  c.GetHealthChecks(),
	}
}
