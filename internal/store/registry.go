package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Bottswana/BullyBot/internal/domain"
)

// Entry is a single (user, hour) subscription.
type Entry struct {
	User string
	Hour int
}

// Persister is the durable side of the registry.
type Persister interface {
	Read(ctx context.Context) ([]Record, error)
	Write(ctx context.Context, recs []Record) error
}

// Registry is the process-wide set of notification subscriptions for one module.
// All reads and writes go through mu; persistence happens after every mutation.
type Registry struct {
	module string
	store  Persister
	log    *zap.Logger

	mu      sync.Mutex
	entries []Entry
	// foreign holds records for other modules sharing the file; they are written back untouched.
	foreign []Record

	// writeMu orders flushes so an older snapshot never lands after a newer one.
	writeMu sync.Mutex

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewRegistry creates an empty registry. Call Load before accepting mutations.
func NewRegistry(module string, store Persister, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		module: module,
		store:  store,
		log:    log,
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
}

// Module returns the module name this registry tracks.
func (r *Registry) Module() string { return r.module }

// Load replaces the in-memory entries with the persisted ones.
// A missing file is an empty registry; a corrupt one is an error.
func (r *Registry) Load(ctx context.Context) error {
	recs, err := r.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("%w: load notifications: %v", domain.ErrPersistence, err)
	}

	var (
		entries []Entry
		foreign []Record
	)
	seen := make(map[Entry]struct{}) // keyed by lower-cased user
	for _, rec := range recs {
		if len(rec.TriggerHours) == 0 {
			continue
		}
		if !strings.EqualFold(rec.Module, r.module) {
			foreign = append(foreign, rec)
			continue
		}
		for _, h := range rec.TriggerHours {
			if err := domain.ValidateHour(h); err != nil {
				r.log.Warn("skipping persisted hour", zap.String("user", rec.User), zap.Error(err))
				continue
			}
			key := Entry{User: strings.ToLower(rec.User), Hour: h}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, Entry{User: rec.User, Hour: h})
		}
	}

	r.mu.Lock()
	r.entries = entries
	r.foreign = foreign
	r.mu.Unlock()

	r.log.Info("notifications loaded", zap.String("module", r.module), zap.Int("entries", len(entries)))
	return nil
}

// Add subscribes user at hour. Adding an existing pair is a no-op and returns false.
func (r *Registry) Add(user string, hour int) (bool, error) {
	if err := domain.ValidateHour(hour); err != nil {
		return false, err
	}
	r.mu.Lock()
	if r.indexLocked(user, hour) >= 0 {
		r.mu.Unlock()
		return false, nil
	}
	r.entries = append(r.entries, Entry{User: user, Hour: hour})
	r.mu.Unlock()

	r.scheduleFlush()
	return true, nil
}

// Remove unsubscribes user at hour. Removing a missing pair is a no-op and returns false.
func (r *Registry) Remove(user string, hour int) (bool, error) {
	if err := domain.ValidateHour(hour); err != nil {
		return false, err
	}
	r.mu.Lock()
	i := r.indexLocked(user, hour)
	if i < 0 {
		r.mu.Unlock()
		return false, nil
	}
	r.entries = slices.Delete(r.entries, i, i+1)
	r.mu.Unlock()

	r.scheduleFlush()
	return true, nil
}

// HoursFor returns the user's hours in ascending order.
func (r *Registry) HoursFor(user string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var hours []int
	for _, e := range r.entries {
		if strings.EqualFold(e.User, user) {
			hours = append(hours, e.Hour)
		}
	}
	sort.Ints(hours)
	return hours
}

// IsSubscribed reports whether (user, hour) is registered.
func (r *Registry) IsSubscribed(user string, hour int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(user, hour) >= 0
}

// Snapshot returns a copy of all entries taken under the lock.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

// Flush writes the current entries synchronously.
func (r *Registry) Flush(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	recs := r.records()
	if err := r.store.Write(ctx, recs); err != nil {
		return fmt.Errorf("%w: write notifications: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Start runs the background flusher until Close.
func (r *Registry) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.done = make(chan struct{})
		go r.flushLoop(ctx)
	})
}

// Close stops the flusher and performs a final synchronous flush.
func (r *Registry) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stop)
		if r.done != nil {
			<-r.done
		}
		err = r.Flush(ctx)
	})
	return err
}

func (r *Registry) flushLoop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		case <-r.kick:
			if err := r.Flush(ctx); err != nil {
				r.log.Error("notification flush failed", zap.Error(err))
			}
		}
	}
}

// scheduleFlush coalesces flush requests; a pending kick covers later mutations too.
func (r *Registry) scheduleFlush() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Registry) indexLocked(user string, hour int) int {
	for i, e := range r.entries {
		if e.Hour == hour && strings.EqualFold(e.User, user) {
			return i
		}
	}
	return -1
}

// records regroups entries into one record per user, users and hours sorted,
// followed by the records of other modules.
func (r *Registry) records() []Record {
	r.mu.Lock()
	// Users match case-insensitively; the first spelling seen is written back.
	byUser := make(map[string][]int)
	spelling := make(map[string]string)
	for _, e := range r.entries {
		key := strings.ToLower(e.User)
		if _, ok := spelling[key]; !ok {
			spelling[key] = e.User
		}
		byUser[key] = append(byUser[key], e.Hour)
	}
	foreign := slices.Clone(r.foreign)
	r.mu.Unlock()

	keys := make([]string, 0, len(byUser))
	for k := range byUser {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	recs := make([]Record, 0, len(keys))
	for _, k := range keys {
		hours := byUser[k]
		sort.Ints(hours)
		recs = append(recs, Record{Module: r.module, User: spelling[k], TriggerHours: hours})
	}
	return append(recs, foreign...)
}
