// Package app wires the ticksched daemon: config, logging, event bus,
// optional run-history storage, the scheduler core, and the driving loop
// that ticks it.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ticksched/internal/config"
	"ticksched/internal/eventbus"
	"ticksched/internal/observability/pprof"
	"ticksched/internal/schedule"
	"ticksched/internal/scheduler"
	"ticksched/internal/storage"
	logx "ticksched/pkg/logx"
)

// statsEvery is the cadence of the periodic snapshot log line.
const statsEvery = 30 * time.Second

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store storage.Store
	prof  *pprof.Server

	sched *scheduler.Scheduler

	tick          time.Duration
	finishPending bool

	defs []taskDef

	// resubmit carries definition indices from task callbacks (possibly on
	// worker goroutines) back to the driving loop, which is the only
	// goroutine allowed to call Submit.
	resubmit chan int

	// cfgUpdates hands reloaded configs to the driving loop; the scheduler
	// (Snapshot included) and the runtime fields above are driving-goroutine
	// only, so ApplyConfig never touches them directly.
	cfgUpdates chan *config.Config

	recorderUnsub func()
	recorderDone  chan struct{}
}

// taskDef is a fully parsed demo task definition.
type taskDef struct {
	label       string
	schedule    string // raw schedule string, kept for change detection
	spec        schedule.Spec
	synchronous bool
	repeat      bool
	busy        time.Duration
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))
	cfgm.SetValidator(func(ctx context.Context, cfg *config.Config) error {
		_, _, err := mapRuntime(cfg)
		return err
	})

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	defs, tick, err := mapRuntime(cfg)
	if err != nil {
		return nil, err
	}

	prof := pprof.NewServer(logSvc.Logger())
	prof.Apply(context.Background(), mapPprofConfig(cfg))

	sched := scheduler.New(scheduler.Config{
		Capacity: cfg.Scheduler.Capacity,
		Workers:  cfg.Scheduler.Workers,
	}, log.With(logx.String("comp", "scheduler")), bus)

	a := &App{
		cfgm:          cfgm,
		log:           log,
		logs:          logSvc,
		bus:           bus,
		store:         store,
		prof:          prof,
		sched:         sched,
		tick:          tick,
		finishPending: cfg.Scheduler.FinishPendingOnExit,
		defs:          defs,
		resubmit:      make(chan int, 256),
		cfgUpdates:    make(chan *config.Config, 1),
	}
	a.startRecorder()
	return a, nil
}

// mapRuntime parses the schedule/duration strings out of the raw config.
// It doubles as the hot-reload validator.
func mapRuntime(cfg *config.Config) ([]taskDef, time.Duration, error) {
	tick, err := config.ParseDurationOrDefault("scheduler.tick_interval", cfg.Scheduler.TickInterval, 250*time.Millisecond)
	if err != nil {
		return nil, 0, err
	}

	defs := make([]taskDef, 0, len(cfg.Tasks))
	for i, tc := range cfg.Tasks {
		label := strings.TrimSpace(tc.Label)
		if label == "" {
			label = fmt.Sprintf("task-%d", i)
		}
		spec, err := schedule.Parse(tc.Schedule)
		if err != nil {
			return nil, 0, fmt.Errorf("tasks[%d] (%s): %w", i, label, err)
		}
		busy, err := config.ParseDurationField(fmt.Sprintf("tasks[%d].busy", i), tc.Busy)
		if err != nil {
			return nil, 0, err
		}
		defs = append(defs, taskDef{
			label:       label,
			schedule:    strings.TrimSpace(tc.Schedule),
			spec:        spec,
			synchronous: tc.Synchronous,
			repeat:      tc.Repeat,
			busy:        busy,
		})
	}
	return defs, tick, nil
}

func mapPprofConfig(cfg *config.Config) pprof.Config {
	if cfg.Pprof == nil {
		return pprof.Config{}
	}
	return pprof.Config{
		Enabled:              cfg.Pprof.Enabled,
		Address:              cfg.Pprof.Address,
		BlockProfileRate:     cfg.Pprof.BlockProfileRate,
		MutexProfileFraction: cfg.Pprof.MutexProfileFraction,
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}

// ConfigManager exposes the manager so main can run Watch() and wire the
// hot-reload subscription.
func (a *App) ConfigManager() *config.Manager { return a.cfgm }

// ApplyConfig hands a reloaded config to the driving loop, which applies it
// between ticks. Safe to call from any goroutine; the scheduler and the
// runtime fields stay driving-goroutine only. If an earlier reload is still
// queued it is replaced by the newest.
func (a *App) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	select {
	case a.cfgUpdates <- cfg:
		return
	default:
	}
	select {
	case <-a.cfgUpdates:
	default:
	}
	select {
	case a.cfgUpdates <- cfg:
	default:
	}
}

// applyConfig applies the hot-reloadable subset of a new config: logging
// sinks/level, the pprof listener and the driving cadence. Capacity, workers
// and the task set are construction-time fixed; changing them requires a
// restart, which is logged rather than silently ignored. Driving goroutine
// only.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	a.prof.Apply(context.Background(), mapPprofConfig(cfg))

	snap := a.sched.Snapshot()
	if (cfg.Scheduler.Capacity != 0 && cfg.Scheduler.Capacity != snap.Capacity) ||
		cfg.Scheduler.Workers != snap.Workers {
		a.log.Warn("scheduler capacity/workers changed in config; restart required to apply",
			logx.Int("capacity", cfg.Scheduler.Capacity),
			logx.Int("workers", cfg.Scheduler.Workers))
	}

	if defs, tick, err := mapRuntime(cfg); err == nil {
		// Task set changes also need a restart; only the cadence is live.
		if !sameTaskSet(defs, a.defs) {
			a.log.Warn("task set changed in config; restart required to apply")
		}
		a.tick = tick
	}
	a.log.Info("config applied", logx.Duration("tick_interval", a.tick))
}

// sameTaskSet reports whether two parsed definition lists describe the same
// tasks. Compiled cron schedules aren't comparable, so the raw schedule
// string stands in for the spec.
func sameTaskSet(a, b []taskDef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].label != b[i].label ||
			a[i].schedule != b[i].schedule ||
			a[i].synchronous != b[i].synchronous ||
			a[i].repeat != b[i].repeat ||
			a[i].busy != b[i].busy {
			return false
		}
	}
	return true
}

// startRecorder subscribes to the bus and persists task lifecycle events.
// No store, no subscription.
func (a *App) startRecorder() {
	if a.store == nil {
		return
	}
	ch, unsub := a.bus.Subscribe(64)
	a.recorderUnsub = unsub
	a.recorderDone = make(chan struct{})

	go func() {
		defer close(a.recorderDone)
		for ev := range ch {
			rec, ok := recordFor(ev)
			if !ok {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := a.store.AppendRun(ctx, rec); err != nil {
				a.log.Debug("run record append failed", logx.Err(err))
			}
			cancel()
		}
	}()
}

func recordFor(ev eventbus.Event) (storage.RunRecord, bool) {
	switch ev.Type {
	case "task.fired":
		te, ok := ev.Data.(scheduler.TaskEvent)
		if !ok {
			return storage.RunRecord{}, false
		}
		return storage.RunRecord{At: ev.Time, Label: te.Label, Event: "fired", Mode: te.Mode}, true
	case "submit.rejected":
		te, ok := ev.Data.(scheduler.TaskEvent)
		if !ok {
			return storage.RunRecord{}, false
		}
		return storage.RunRecord{At: ev.Time, Label: te.Label, Event: "rejected", Detail: te.Reason}, true
	case "task.dropped":
		return storage.RunRecord{At: ev.Time, Event: "dropped"}, true
	default:
		return storage.RunRecord{}, false
	}
}

// submitDef submits one occurrence of a definition. Driving goroutine only.
func (a *App) submitDef(i int) {
	if i < 0 || i >= len(a.defs) {
		return
	}
	def := a.defs[i]
	delay := def.spec.Next(time.Now())

	err := a.sched.Submit(delay, scheduler.Task{
		Label:       def.label,
		Synchronous: def.synchronous,
		Run:         a.callbackFor(i),
	})
	if err != nil {
		a.log.Warn("submit failed", logx.String("task", def.label), logx.Err(err))
	}
}

// callbackFor builds the demo callback for definition i. The callback may
// run on a worker goroutine, so it never touches the scheduler directly;
// repeats go through the resubmit channel and are picked up by the driving
// loop.
func (a *App) callbackFor(i int) func() {
	def := a.defs[i]
	log := a.log.With(logx.String("task", def.label))
	return func() {
		if def.busy > 0 {
			time.Sleep(def.busy) // work simulation
		}
		log.Info("task ran", logx.Bool("sync", def.synchronous))
		if def.repeat {
			select {
			case a.resubmit <- i:
			default:
				log.Warn("resubmit queue full; repeating task lost")
			}
		}
	}
}

// Run is the driving loop. It owns the scheduler: submissions, ticks and
// termination all happen on this goroutine. Returns when ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	for i := range a.defs {
		a.submitDef(i)
	}

	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()
	stats := time.NewTicker(statsEvery)
	defer stats.Stop()

	a.log.Info("driving loop started",
		logx.Duration("tick_interval", a.tick),
		logx.Int("tasks", len(a.defs)))

	for {
		select {
		case <-ctx.Done():
			return a.shutdown()

		case i := <-a.resubmit:
			a.submitDef(i)

		case cfg := <-a.cfgUpdates:
			prev := a.tick
			a.applyConfig(cfg)
			if a.tick != prev {
				ticker.Reset(a.tick)
			}

		case <-stats.C:
			snap := a.sched.Snapshot()
			a.log.Debug("scheduler stats",
				logx.Int("pending", snap.Pending),
				logx.Int("free", snap.Free),
				logx.Int("queue_len", snap.QueueLen),
				logx.Uint64("fired_sync", snap.FiredSync),
				logx.Uint64("fired_async", snap.FiredAsync),
				logx.Uint64("rejected", snap.Rejected))

		case <-ticker.C:
			// Drain resubmissions before ticking so a repeat scheduled during
			// the previous tick is pending again by the time time advances.
			for {
				select {
				case i := <-a.resubmit:
					a.submitDef(i)
					continue
				default:
				}
				break
			}
			if err := a.sched.Tick(); err != nil {
				return err
			}
		}
	}
}

func (a *App) shutdown() error {
	snap := a.sched.Snapshot()
	a.log.Info("shutting down",
		logx.Bool("finish_pending", a.finishPending),
		logx.Int("pending", snap.Pending))

	err := a.sched.Terminate(a.finishPending)

	// Let the recorder drain what the final dispatch pass published.
	if a.recorderUnsub != nil {
		a.recorderUnsub()
		select {
		case <-a.recorderDone:
		case <-time.After(2 * time.Second):
		}
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.prof.Stop(context.Background())
	_ = a.logs.Close()
	return err
}
