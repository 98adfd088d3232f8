package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Bottswana/BullyBot/internal/datasource"
	"github.com/Bottswana/BullyBot/internal/domain"
	"github.com/Bottswana/BullyBot/internal/store"
)

// Directory lists configured users and their per-module data-source config.
type Directory interface {
	Users() []string
	Module(user, module string) (datasource.Config, bool)
}

// Resolver builds an adapter for a config, or nil when it cannot.
type Resolver interface {
	Resolve(cfg datasource.Config) datasource.Adapter
}

// Subscriptions is the read side of the notification registry.
type Subscriptions interface {
	Snapshot() []store.Entry
}

// Sender delivers an alert to the notification chat.
// telegram.Router implements this.
type Sender interface {
	SendAlert(ctx context.Context, chatID int64, alert domain.Alert) error
}

// Stage names where a user's check failed.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageDownload Stage = "download"
	StageDispatch Stage = "dispatch"
)

// Failure is one user's failed check.
type Failure struct {
	User  string
	Stage Stage
	Err   error
}

// Report summarizes one tick.
type Report struct {
	Hour     int
	Checked  []string // users whose data was evaluated, in directory order
	Alerted  []string
	Failures []Failure
}

// Options configures an Orchestrator.
type Options struct {
	Module       string
	ChatID       int64
	Directory    Directory
	Resolver     Resolver
	Subs         Subscriptions
	Sender       Sender
	Log          *zap.Logger
	Location     *time.Location
	FetchTimeout time.Duration
	Workers      int
	Now          func() time.Time
}

// Orchestrator runs the hourly check for every subscribed user.
type Orchestrator struct {
	module       string
	chatID       int64
	dir          Directory
	resolver     Resolver
	subs         Subscriptions
	sender       Sender
	log          *zap.Logger
	loc          *time.Location
	fetchTimeout time.Duration
	workers      int
	now          func() time.Time
}

// NewOrchestrator creates an Orchestrator. Workers below 1 means sequential.
func NewOrchestrator(o Options) *Orchestrator {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = datasource.DefaultTimeout
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Orchestrator{
		module:       o.Module,
		chatID:       o.ChatID,
		dir:          o.Directory,
		resolver:     o.Resolver,
		subs:         o.Subs,
		sender:       o.Sender,
		log:          o.Log,
		loc:          o.Location,
		fetchTimeout: o.FetchTimeout,
		workers:      o.Workers,
		now:          o.Now,
	}
}

// Location is the zone ticks are evaluated in.
func (o *Orchestrator) Location() *time.Location { return o.loc }

type outcome struct {
	checked bool
	alerted bool
	failure *Failure
}

// Tick checks every user subscribed at hour. One user's failure never stops the others.
func (o *Orchestrator) Tick(ctx context.Context, hour int) Report {
	rep := Report{Hour: hour}
	if err := domain.ValidateHour(hour); err != nil {
		o.log.Error("tick skipped", zap.Int("hour", hour), zap.Error(err))
		return rep
	}

	subscribed := make(map[string]bool)
	for _, e := range o.subs.Snapshot() {
		if e.Hour == hour {
			subscribed[strings.ToLower(e.User)] = true
		}
	}

	var due []string
	for _, u := range o.dir.Users() {
		if subscribed[strings.ToLower(u)] {
			due = append(due, u)
		}
	}
	if len(due) == 0 {
		return rep
	}

	results := make([]outcome, len(due))
	if o.workers == 1 {
		for i, u := range due {
			results[i] = o.checkUser(ctx, u)
		}
	} else {
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < o.workers && w < len(due); w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					results[i] = o.checkUser(ctx, due[i])
				}
			}()
		}
		for i := range due {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	}

	for i, res := range results {
		if res.checked {
			rep.Checked = append(rep.Checked, due[i])
		}
		if res.alerted {
			rep.Alerted = append(rep.Alerted, due[i])
		}
		if res.failure != nil {
			rep.Failures = append(rep.Failures, *res.failure)
		}
	}
	return rep
}

func (o *Orchestrator) checkUser(ctx context.Context, user string) (res outcome) {
	defer func() {
		if p := recover(); p != nil {
			res = outcome{failure: o.fail(user, StageDownload, fmt.Errorf("panic: %v", p))}
		}
	}()

	cfg, ok := o.dir.Module(user, o.module)
	if !ok {
		o.log.Debug("module not enabled for user", zap.String("user", user), zap.String("module", o.module))
		return outcome{}
	}

	adapter := o.resolver.Resolve(cfg)
	if adapter == nil {
		return outcome{failure: o.fail(user, StageResolve,
			fmt.Errorf("%w: no usable data source %q", domain.ErrConfiguration, cfg.AdapterID))}
	}

	fctx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	snap, err := adapter.Download(fctx)
	cancel()
	if err != nil {
		return outcome{failure: o.fail(user, StageDownload, err)}
	}

	tier := domain.Decide(snap, o.now().In(o.loc))
	if tier == domain.TierNone {
		o.log.Debug("goal met", zap.String("user", user))
		return outcome{checked: true}
	}

	alert := domain.Alert{User: user, Tier: tier, Snapshot: snap}
	if err := o.sender.SendAlert(ctx, o.chatID, alert); err != nil {
		return outcome{checked: true, failure: o.fail(user, StageDispatch, fmt.Errorf("%w: %v", domain.ErrDispatch, err))}
	}
	o.log.Info("alert sent", zap.String("user", user), zap.String("tier", tier.String()))
	return outcome{checked: true, alerted: true}
}

func (o *Orchestrator) fail(user string, stage Stage, err error) *Failure {
	o.log.Error("user check failed",
		zap.String("user", user),
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	return &Failure{User: user, Stage: stage, Err: err}
}
