package consumer

import "time"

// SuperviseOptions configures the supervisor loop (§4.6/§6).
type SuperviseOptions struct {
	// Blocking runs the supervisor on the caller's goroutine when true;
	// otherwise Supervise starts it detached and returns immediately.
	Blocking bool

	// PollingTime is the tick interval. Default: 1s.
	PollingTime time.Duration

	// StuckTime is how long a running handler task may go before the
	// supervisor considers it stuck. Default: 60s.
	StuckTime time.Duration

	// StuckLimit is the fatal ceiling on cumulative released-stuck tasks.
	// Default: Config.MaxHandlers.
	StuckLimit int
}

// Supervise runs the supervisor loop: each tick it revives dead fetchers,
// scans the handlers registry for stuck tasks and releases them, enforces
// the stuck ceiling, and checks for shutdown. If opts.Blocking is false it
// runs detached and any terminal error is logged rather than returned.
func (c *Consumer[M]) Supervise(opts SuperviseOptions) error {
	if opts.PollingTime <= 0 {
		opts.PollingTime = time.Second
	}
	if opts.StuckTime <= 0 {
		opts.StuckTime = 60 * time.Second
	}
	if opts.StuckLimit <= 0 {
		opts.StuckLimit = c.maxHandlers
	}

	if opts.Blocking {
		return c.runSupervisorLoop(opts)
	}

	go func() {
		if err := c.runSupervisorLoop(opts); err != nil {
			if c.sup != nil && c.sup.Logger != nil {
				c.sup.Logger.Error("consumer: supervisor terminated fatally", "error", err)
			}
		}
	}()
	return nil
}

// runSupervisorLoop is the tick loop itself. Call Supervise exactly once
// per Consumer; it closes supervisorExited on exit, which would panic on a
// second close.
func (c *Consumer[M]) runSupervisorLoop(opts SuperviseOptions) error {
	defer close(c.supervisorExited)

	for {
		c.reviveDeadFetchers()

		if err := c.detectStuckHandlers(opts.StuckTime, opts.StuckLimit); err != nil {
			return err
		}

		if c.shuttingDown.Load() {
			return nil
		}

		time.Sleep(opts.PollingTime)
	}
}

// reviveDeadFetchers implements §4.6(a): any fetcher whose run loop has
// returned is replaced in-place by a fresh one with identical parameters.
func (c *Consumer[M]) reviveDeadFetchers() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, f := range c.fetchers {
		if f.alive() {
			continue
		}
		replacement := c.newFetcherLocked()
		c.fetchers[i] = replacement
		go replacement.run()

		if c.sup != nil && c.sup.Metrics != nil {
			c.sup.Metrics.IncRevivedWorkers()
		}
	}
}

// detectStuckHandlers implements §4.6(b)/(c): scan the registry for
// running tasks older than stuckTime, release them, and fail fatally once
// the cumulative stuck count exceeds stuckLimit.
func (c *Consumer[M]) detectStuckHandlers(stuckTime time.Duration, stuckLimit int) error {
	now := time.Now()

	for _, entry := range c.registry.snapshot() {
		if !entry.task.Running() {
			continue
		}
		if now.Sub(entry.submitted) < stuckTime {
			continue
		}
		if !c.pool.Release(entry.task) {
			// Pool could not free the slot; try again next tick.
			continue
		}
		c.stuck.add(entry.task)
		if c.sup != nil && c.sup.Metrics != nil {
			c.sup.Metrics.IncStuckHandlers()
		}
	}

	if c.stuck.len() > stuckLimit {
		return ErrStuckCeiling
	}
	return nil
}
