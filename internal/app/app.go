package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"

	"konan/internal/broker"
	"konan/internal/config"
	"konan/internal/datasource"
	"konan/internal/eventbus"
	"konan/internal/filter"
	"konan/internal/metrics"
	"konan/internal/notify"
	rtsup "konan/internal/runtime/supervisor"
	"konan/internal/schedule"
	"konan/internal/storage"
	"konan/internal/strategy"
	logx "konan/pkg/logx"
)

const eventBuffer = 256

type Option func(*options)

type options struct {
	clock    schedule.WallClock
	fs       afero.Fs
	objects  datasource.ObjectStore
	notifier notify.Notifier
	noSync   bool
}

// WithClock drives the engine and the session filter from c.
func WithClock(c schedule.WallClock) Option { return func(o *options) { o.clock = c } }

// WithFs reads market data from fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithObjectStore replaces the S3 store built from the cloud section.
func WithObjectStore(s datasource.ObjectStore) Option { return func(o *options) { o.objects = s } }

// WithNotifier replaces the notifier built from the notify section.
func WithNotifier(n notify.Notifier) Option { return func(o *options) { o.notifier = n } }

// WithoutSync skips the cloud download before sessions.
func WithoutSync() Option { return func(o *options) { o.noSync = true } }

// App owns one trading session and everything around it: the cron trigger,
// the fire journal, metrics, alerts and config hot reload.
type App struct {
	cfgm *config.ConfigManager
	res  *config.Resolved
	root logx.Logger
	log  logx.Logger
	logs *logx.Service

	clock schedule.WallClock
	bus   *eventbus.MemBus
	store storage.Store
	mtr   *metrics.Metrics
	msrv  *metrics.Server

	notifMu  sync.RWMutex
	notifier notify.Notifier
	onFire   bool

	fs       afero.Fs
	objects  datasource.ObjectStore
	dataRoot string
	targets  []config.SyncConfig

	live    *filter.LiveFilter
	paper   *broker.Paper
	session *strategy.Session
	runner  *strategy.Runner

	sessMu sync.Mutex
	runID  atomic.Value // string

	sup   *rtsup.Supervisor
	cron  *cron.Cron
	unsub func()
}

// New loads cfgPath and builds every component. Nothing runs until Start
// or RunOnce.
func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	logs, root := logx.NewService(mapLogging(cfg))
	a := &App{
		cfgm:     cfgm,
		res:      res,
		root:     root,
		log:      root.With(logx.String("comp", "app")),
		logs:     logs,
		clock:    o.clock,
		bus:      eventbus.New(),
		mtr:      metrics.New(),
		fs:       o.fs,
		objects:  o.objects,
		dataRoot: strings.TrimSpace(cfg.Data.Root),
		targets:  syncTargets(cfg),
	}
	a.runID.Store("")
	if o.noSync {
		a.targets = nil
	}
	cfgm.SetLogger(root)
	if a.clock == nil {
		a.clock = schedule.SystemClock{}
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}
	a.msrv = metrics.NewServer(a.mtr, root)

	ok := false
	defer func() {
		if !ok {
			a.closeStore()
			_ = logs.Close()
		}
	}()

	if sc, enabled := mapStorage(cfg, res); enabled {
		if a.store, err = storage.Open(sc, root); err != nil {
			return nil, err
		}
		a.log.Info("journal enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	if o.notifier != nil {
		a.notifier, a.onFire = o.notifier, cfg.Notify != nil && cfg.Notify.OnFire
	} else if a.notifier, a.onFire, err = buildNotifier(cfg, root); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}

	if a.objects == nil {
		if a.objects, err = buildObjectStore(context.Background(), cfg); err != nil {
			return nil, fmt.Errorf("cloud: %w", err)
		}
	}

	universe, err := resolveUniverse(a.fs, cfg.Data)
	if err != nil {
		return nil, err
	}

	if res.Filter != nil {
		hist := &filter.HistoricalFilter{Filter: *res.Filter}
		a.live = hist.SpawnLive(a.clock.Now(), res.UpdateAt, res.Candidate, res.Whitelist)
	}
	a.paper = broker.NewPaper(mapPaper(cfg, res), root)
	loader := datasource.NewLoader(a.fs, datasource.Options{Partial: cfg.Data.Partial, Sample: cfg.Data.Sample}, root)

	a.session, err = strategy.NewSession(strategy.SessionConfig{
		Name:         res.Name,
		Universe:     universe,
		SymbolColumn: cfg.Data.SymbolColumn,
		PriceColumn:  cfg.Data.PriceColumn,
		Quantity:     res.Quantity,
		Plan:         SessionPlan(cfg),
	}, loader, a.live, a.paper, root)
	if err != nil {
		return nil, err
	}
	a.session.SetClock(func() time.Time { return a.clock.Now().In(res.Location) })

	eng := schedule.New(
		schedule.WithClock(a.clock),
		schedule.WithLocation(res.Location),
		schedule.WithObserver(schedule.ObserverFunc(a.observe)),
	)
	if a.runner, err = strategy.NewRunner(a.session, res.Engine, eng, root); err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

// resolveUniverse places the universe file under data.root/data.project
// when a root is configured. Missing directories are created so a cloud
// sync can fill them before the first session.
func resolveUniverse(fs afero.Fs, d config.DataConfig) (string, error) {
	root := strings.TrimSpace(d.Root)
	if root == "" {
		return d.Universe, nil
	}
	project := strings.TrimSpace(d.Project)
	if err := fs.MkdirAll(filepath.Join(root, project), 0o755); err != nil {
		return "", fmt.Errorf("data.root: %w", err)
	}
	repo, err := datasource.NewRepository(fs, root, project, d.Universe)
	if err != nil {
		return "", fmt.Errorf("data: %w", err)
	}
	return filepath.Join(repo.ProjectPath(), repo.File()), nil
}

func (a *App) Logger() logx.Logger                  { return a.log }
func (a *App) Config() *config.Config               { return a.cfgm.Get() }
func (a *App) Runner() *strategy.Runner             { return a.runner }
func (a *App) Paper() *broker.Paper                 { return a.paper }
func (a *App) Metrics() *metrics.Metrics            { return a.mtr }
func (a *App) Journal() storage.Store               { return a.store }
func (a *App) ObjectStore() datasource.ObjectStore { return a.objects }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// RunOnce executes one session immediately and returns when it ends. Used
// without Start, it delivers every observation to the journal, metrics and
// notifier before returning.
func (a *App) RunOnce(ctx context.Context) error {
	if a.sup != nil {
		return a.runSession(ctx)
	}
	events, unsub := a.bus.Subscribe(eventBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.fanout(ctx, events)
	}()
	err := a.runSession(ctx)
	unsub()
	<-done
	return err
}

// runSession re-arms the schedule and runs one session under a fresh run
// id. A second caller gets strategy.ErrAlreadyRunning.
func (a *App) runSession(ctx context.Context) error {
	if !a.sessMu.TryLock() {
		return strategy.ErrAlreadyRunning
	}
	defer a.sessMu.Unlock()

	now := a.clock.Now()
	if a.live != nil && a.live.Expired(now) {
		a.live.Renew(now)
		a.log.Info("filter renewed", logx.Time("born", now), logx.Duration("lifespan", a.live.Lifespan))
	}
	if err := a.SyncData(ctx); err != nil {
		return err
	}
	if !a.runner.Reset() {
		return strategy.ErrAlreadyRunning
	}
	a.runID.Store(uuid.NewString())
	return a.runner.Execute(ctx)
}

// SyncData downloads every cloud.sync object before a session. Relative
// paths resolve under data.root.
func (a *App) SyncData(ctx context.Context) error {
	if a.objects == nil || len(a.targets) == 0 {
		return nil
	}
	start := time.Now()
	for _, t := range a.targets {
		path := t.Path
		if !filepath.IsAbs(path) && a.dataRoot != "" {
			path = filepath.Join(a.dataRoot, path)
		}
		if err := datasource.Download(ctx, a.objects, a.fs, t.Key, path); err != nil {
			a.log.Error("cloud sync failed", logx.String("key", t.Key), logx.Err(err))
			return fmt.Errorf("cloud sync: %w", err)
		}
	}
	a.log.Info("cloud sync done", logx.Int("objects", len(a.targets)), logx.Duration("took", time.Since(start)))
	return nil
}

func (a *App) currentRun() string {
	id, _ := a.runID.Load().(string)
	return id
}

func (a *App) currentNotifier() (notify.Notifier, bool) {
	a.notifMu.RLock()
	defer a.notifMu.RUnlock()
	return a.notifier, a.onFire
}

func (a *App) setNotifier(n notify.Notifier, onFire bool) {
	a.notifMu.Lock()
	a.notifier, a.onFire = n, onFire
	a.notifMu.Unlock()
}

// Start registers the cron session trigger, the event fanout, the metrics
// server and config hot reload. It returns once they are running.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		// Reject a notify section we could not build instead of silently
		// muting alerts after the reload.
		_, _, err := buildNotifier(cfg, logx.Nop())
		return err
	})

	events, unsub := a.bus.Subscribe(eventBuffer)
	a.unsub = unsub
	a.sup.Go("events.fanout", func(c context.Context) error {
		a.fanout(c, events)
		return nil
	})

	cl := cronLogger{log: a.root.With(logx.String("comp", "cron"))}
	a.cron = cron.New(
		cron.WithLocation(a.res.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := a.cron.AddFunc(a.res.CronSpec, func() { a.trigger(a.sup.Context()) }); err != nil {
		a.sup.Cancel()
		return fmt.Errorf("session.cron: %w", err)
	}
	a.cron.Start()

	a.msrv.Reconfigure(a.sup.Context(), mapMetrics(a.cfgm.Get()))

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: apply only the newest config.
				for drained := false; !drained; {
					select {
					case newer, ok := <-sub:
						if ok && newer != nil {
							next = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	entries := a.cron.Entries()
	fields := []logx.Field{
		logx.String("strategy", a.session.Name()),
		logx.String("cron", a.res.CronSpec),
		logx.String("tz", a.res.Location.String()),
	}
	if len(entries) > 0 {
		fields = append(fields, logx.Time("next", entries[0].Next))
	}
	a.log.Info("app started", fields...)
	return nil
}

// trigger is the cron job body.
func (a *App) trigger(ctx context.Context) {
	err := a.runSession(ctx)
	var aerr *schedule.ActionError
	switch {
	case err == nil:
	case errors.Is(err, strategy.ErrAlreadyRunning):
		a.log.Info("session trigger skipped: already running")
	case errors.As(err, &aerr), errors.Is(err, context.Canceled):
		// The runner already logged the outcome.
	default:
		a.log.Error("session trigger failed", logx.Err(err))
	}
}

func (a *App) applyConfig(ctx context.Context, old, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(old, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogging(next))
	for _, s := range sections {
		switch s {
		case "metrics":
			a.msrv.Reconfigure(ctx, mapMetrics(next))
		case "notify":
			n, onFire, err := buildNotifier(next, a.root)
			if err != nil {
				a.log.Warn("invalid notify config; keeping previous", logx.Err(err))
				continue
			}
			a.setNotifier(n, onFire)
		case "logging":
		default:
			a.log.Warn("config section changed; restart required", logx.String("section", s))
		}
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
}

// Stop cancels a running session, flushes pending events and closes the
// journal. Each step is bounded by ctx.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	defer func() { _ = a.logs.Close() }()
	if a.sup == nil {
		a.closeStore()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	a.sup.Cancel()
	if a.cron != nil {
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
			a.log.Warn("session did not stop before deadline")
		}
	}
	a.msrv.Stop(ctx)
	if a.unsub != nil {
		a.unsub()
	}
	err := a.sup.Wait(ctx)
	a.closeStore()
	a.log.Info("stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("journal close failed", logx.Err(err))
	}
}
