package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// HourlySpec fires at minute zero of every hour.
const HourlySpec = "0 * * * *"

// Scheduler fires the orchestrator at the top of every hour.
type Scheduler struct {
	orch *Orchestrator
	log  *zap.Logger
	c    *cron.Cron
	now  func() time.Time

	mu      sync.Mutex
	pending []int // hours stamped at fire time, oldest first
}

// New creates a Scheduler. Ticks never overlap: a tick that overruns the hour
// delays the next one instead of being cancelled by it.
func New(orch *Orchestrator, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cl := cronLogger{log: log}
	s := &Scheduler{orch: orch, log: log, now: time.Now}
	// stamp sits outside the delay so a tick held back past the hour still
	// checks the hour it was fired for.
	s.c = cron.New(
		cron.WithLocation(orch.Location()),
		cron.WithChain(cron.Recover(cl), s.stamp, cron.DelayIfStillRunning(cl)),
	)
	if _, err := s.c.AddFunc(HourlySpec, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.c.Start()
	s.log.Info("scheduler started", zap.String("spec", HourlySpec), zap.String("tz", s.orch.Location().String()))
}

// Stop halts future ticks and waits for a running one, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop().Done()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stamp records the hour a fire belongs to before the job waits its turn.
func (s *Scheduler) stamp(j cron.Job) cron.Job {
	return cron.FuncJob(func() {
		hour := s.now().In(s.orch.Location()).Hour()
		s.mu.Lock()
		s.pending = append(s.pending, hour)
		s.mu.Unlock()
		j.Run()
	})
}

// nextHour pops the oldest stamped hour, or the current hour when nothing was stamped.
func (s *Scheduler) nextHour() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return s.now().In(s.orch.Location()).Hour()
	}
	hour := s.pending[0]
	s.pending = s.pending[1:]
	return hour
}

func (s *Scheduler) run() {
	hour := s.nextHour()
	started := time.Now()
	rep := s.orch.Tick(context.Background(), hour)
	s.log.Info("tick finished",
		zap.Int("hour", rep.Hour),
		zap.Int("checked", len(rep.Checked)),
		zap.Int("alerted", len(rep.Alerted)),
		zap.Int("failed", len(rep.Failures)),
		zap.Duration("took", time.Since(started)),
	)
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct{ log *zap.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().With(zap.Error(err)).Errorw(msg, keysAndValues...)
}
