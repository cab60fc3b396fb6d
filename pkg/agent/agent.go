// Package agent contains the daemon's refresh / merge / reconcile loop: the
// per-source updaters, the policy-driven config builder, and the manager
// that drives the device adapter.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jcodybaker/wgsync/pkg/config"
	"github.com/jcodybaker/wgsync/pkg/fileutil"
	"github.com/jcodybaker/wgsync/pkg/interfaces"
	"github.com/jcodybaker/wgsync/pkg/logging"
	"github.com/jcodybaker/wgsync/pkg/model"
	"github.com/jcodybaker/wgsync/pkg/proto"
)

// stateFileName inside the runtime directory holds the last applied desired
// state, so restarts do not re-push unchanged peers.
const stateFileName = "state.json"

// farFuture bounds the "no staged activation pending" case.
const farFuture = (1 << 20) * time.Second

// Agent owns the updater set, the config builder and the device; it drives
// the fetch → build → apply loop.
type Agent struct {
	options

	dev       *interfaces.Device
	global    *config.Global
	refresh   time.Duration
	sources   []*source
	current   *model.Config
	statePath string
	updater   updater
}

// New opens the interface, loads the persisted state, and initializes every
// configured source. A required source that cannot be fetched or loaded from
// cache fails startup.
func New(ifname string, cfg *config.Config, optionFuncs ...OptionFunc) (*Agent, error) {
	a := &Agent{options: defaultOptions()}
	for _, f := range optionFuncs {
		if err := f(&a.options); err != nil {
			return nil, err
		}
	}

	if cfg.RuntimeDirectory == "" {
		return nil, errors.New("runtime directory required")
	}
	a.statePath = filepath.Join(cfg.RuntimeDirectory, stateFileName)

	dev, err := interfaces.OpenDevice(ifname)
	if err != nil {
		return nil, err
	}
	a.dev = dev

	a.global = &cfg.Global
	a.refresh = time.Duration(cfg.RefreshSec) * time.Second
	a.current = model.NewConfig()
	a.updater = updater{
		ll:             a.ll,
		refresh:        a.refresh,
		cacheDirectory: cfg.CacheDirectory,
	}

	a.loadState()

	for i := range cfg.Sources {
		if err := a.addSource(cfg.Sources[i]); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// loadState seeds the "old" side of the first diff from the state file. Any
// failure is logged and treated as no prior state.
func (a *Agent) loadState() {
	data, found, err := fileutil.Load(a.statePath)
	if err != nil {
		a.ll.Errorf("Failed to read interface state: %v", err)
		return
	}
	if !found {
		return
	}
	c := model.NewConfig()
	if err := json.Unmarshal(data, c); err != nil {
		a.ll.Errorf("Failed to load interface state: %v", err)
		return
	}
	a.current = c
}

func (a *Agent) persistState(c *model.Config) {
	data, err := json.Marshal(c)
	if err == nil {
		err = fileutil.Update(a.statePath, data)
	}
	if err != nil {
		a.ll.Errorf("Failed to persist interface state: %v", err)
	}
}

func (a *Agent) addSource(cfg config.Source) error {
	s := &source{
		config:     cfg,
		data:       proto.Empty(),
		nextUpdate: time.Now(),
	}
	if err := a.initSource(s); err != nil {
		return err
	}
	a.sources = append(a.sources, s)
	return nil
}

// initSource tries one fetch, then the cache, then (for required sources)
// two more fetches before giving up.
func (a *Agent) initSource(s *source) error {
	if ok, _ := a.updater.update(s); ok {
		return nil
	}
	if a.updater.cacheLoad(s) {
		return nil
	}
	if !s.config.Required {
		return nil
	}
	if ok, _ := a.updater.update(s); ok {
		return nil
	}
	if ok, _ := a.updater.update(s); ok {
		return nil
	}
	return fmt.Errorf("failed to update required source [%s]", s.config.URL)
}

// makeConfig selects each source's active view (next once its activation time
// has passed, else current), runs the two-pass builder, and reports the
// earliest pending activation as the time the config must be rebuilt.
func (a *Agent) makeConfig(publicKey model.Key, ts time.Time) (*model.Config, []*Error, time.Time) {
	tCfg := ts.Add(farFuture)

	type pair struct {
		src  *source
		view *proto.SourceView
	}
	pairs := make([]pair, 0, len(a.sources))
	for _, src := range a.sources {
		view := &src.data.SourceView
		if next := src.data.Next; next != nil {
			if !ts.Before(next.UpdateAt.Time) {
				view = &next.SourceView
			} else if next.UpdateAt.Time.Before(tCfg) {
				tCfg = next.UpdateAt.Time
			}
		}
		pairs = append(pairs, pair{src: src, view: view})
	}

	b := newConfigBuilder(publicKey, a.global)
	for _, p := range pairs {
		for i := range p.view.Servers {
			b.addServer(&p.src.config, &p.view.Servers[i])
		}
	}
	for _, p := range pairs {
		for i := range p.view.RoadWarriors {
			b.addRoadWarrior(&p.src.config, &p.view.RoadWarriors[i])
		}
	}

	cfg, errs := b.build()
	return cfg, errs, tCfg
}

// refreshSources updates every slot whose deadline has passed and returns the
// earliest next-fetch instant, bounded by one full refresh period.
func (a *Agent) refreshSources() time.Time {
	now := time.Now()
	tRefresh := now.Add(a.refresh)

	for _, src := range a.sources {
		if !now.Before(src.nextUpdate) {
			_, now = a.updater.update(src)
		}
		if src.nextUpdate.Before(tRefresh) {
			tRefresh = src.nextUpdate
		}
	}
	return tRefresh
}

// Update runs one iteration: refresh due sources, rebuild the desired state,
// apply the diff if anything changed, and return the next wake time. An apply
// failure is fatal; the kernel and the daemon's last-applied snapshot may be
// out of sync in ways it cannot recover.
func (a *Agent) Update() (time.Time, error) {
	tRefresh := a.refreshSources()

	publicKey, err := a.dev.GetPublicKey()
	if err != nil {
		return time.Time{}, err
	}

	now := time.Now()
	cfg, errs, tCfgWall := a.makeConfig(publicKey, now)
	timeToCfg := tCfgWall.Sub(now)
	if timeToCfg < 0 {
		timeToCfg = 0
	}
	tCfg := now.Add(timeToCfg)

	if !cfg.Equal(a.current) {
		a.logConfigUpdate(errs)
		if err := a.dev.ApplyDiff(a.current, cfg); err != nil {
			return time.Time{}, err
		}
		a.persistState(cfg)
		a.current = cfg
	}

	switch {
	case tCfg.Before(tRefresh):
		a.ll.Infof("Next configuration update after %s", timeToCfg)
		return tCfg, nil
	case tRefresh.After(now):
		return tRefresh, nil
	default:
		a.ll.Warn("Next refresh immediately?")
		return now, nil
	}
}

func (a *Agent) logConfigUpdate(errs []*Error) {
	if len(errs) == 0 {
		logging.Notice(a.ll).Info("Applying configuration update")
		return
	}
	important := false
	for _, e := range errs {
		if e.Important {
			important = true
			break
		}
	}
	if important {
		a.ll.Warn("New update contains errors; applying anyway")
	} else {
		logging.Notice(a.ll).Info("New update contains errors; applying anyway")
	}
	for _, e := range errs {
		if e.Important {
			a.ll.Warn(e.Error())
		} else {
			logging.Notice(a.ll).Info(e.Error())
		}
	}
}

// Run drives the loop until ctx is done or an iteration fails.
func (a *Agent) Run(ctx context.Context) error {
	for {
		tm, err := a.Update()
		if err != nil {
			return err
		}
		if d := time.Until(tm); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
