// Package scheduler runs one periodic driver goroutine per running timer.
package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

// TickFunc is called once per interval by a driver. run identifies the driver
// so the callee can ignore ticks from a driver that has since been replaced.
type TickFunc func(run uint64)

type driver struct {
	run  uint64
	stop chan struct{}
	done chan struct{}
}

type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	drivers  map[string]*driver
	nextRun  uint64
	logger   *slog.Logger
}

func New(interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		interval: interval,
		drivers:  make(map[string]*driver),
		logger:   logger,
	}
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start launches a driver for id and returns its run token. A driver already
// running for id is stopped first.
func (s *Scheduler) Start(id string, tick TickFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.drivers[id]; ok {
		close(d.stop)
	}

	s.nextRun++
	d := &driver{
		run:  s.nextRun,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.drivers[id] = d

	go s.drive(id, d, tick)

	s.logger.Debug("driver started", "timer_id", id, "run", d.run)
	return d.run
}

func (s *Scheduler) drive(id string, d *driver, tick TickFunc) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(d.done)

	for {
		select {
		case <-d.stop:
			s.logger.Debug("driver stopped", "timer_id", id, "run", d.run)
			return
		case <-ticker.C:
			// A stop that raced with this tick wins.
			select {
			case <-d.stop:
				return
			default:
			}
			tick(d.run)
		}
	}
}

// Stop signals the driver for id to exit. It does not wait, so it is safe to
// call from inside a tick.
func (s *Scheduler) Stop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(id)
}

// StopRun stops the driver for id only if it is still the driver identified by run.
func (s *Scheduler) StopRun(id string, run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.drivers[id]; ok && d.run == run {
		s.stopLocked(id)
	}
}

func (s *Scheduler) stopLocked(id string) {
	d, ok := s.drivers[id]
	if !ok {
		return
	}
	close(d.stop)
	delete(s.drivers, id)
}

// StopAll stops every driver and waits for them to exit. It must not be
// called from inside a tick.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	stopped := make([]*driver, 0, len(s.drivers))
	for id, d := range s.drivers {
		close(d.stop)
		stopped = append(stopped, d)
		delete(s.drivers, id)
	}
	s.mu.Unlock()

	for _, d := range stopped {
		<-d.done
	}
}

func (s *Scheduler) IsActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.drivers[id]
	return ok
}

func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.drivers))
	for id := range s.drivers {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.drivers)
}
