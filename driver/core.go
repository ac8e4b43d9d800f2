// Package driver provides the building blocks instrument drivers are
// assembled from: the Core feature host, Subsystem and Channel for
// hierarchical drivers, the per-resource Registry and declarative Action
// validation.
//
// A concrete driver embeds Core, registers its features and binds itself:
//
//	type FunGen struct {
//	    *driver.Core
//	    ...
//	}
//
//	d := &FunGen{Core: driver.NewCore("fungen")}
//	d.Bind(d)
//	d.AddFeature(feature.Float("amplitude", feature.Getter("VOLT?"), ...))
//
// Bind tells the core which value implements the communication methods, so
// the feature pipeline dispatches to the outer driver.
package driver

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/feature"
	"github.com/LabPy/lantz-core/limits"
	"github.com/LabPy/lantz-core/logger"
)

// LimitsGetter computes a named limits validator from the current
// instrument state.
type LimitsGetter func(ctx context.Context) (limits.Validator, error)

// Core implements feature.Host and carries the state shared by all
// drivers: the communication lock, the feature and limits caches and the
// feature registry.
type Core struct {
	name     string
	mu       sync.Mutex
	useCache bool
	log      *zap.SugaredLogger

	host feature.Host

	feats map[string]*feature.Feature
	cache map[string]any

	// limitsMu guards the limits maps instead of mu: getters may query
	// the instrument, which takes mu.
	limitsMu    sync.Mutex
	limitsCache map[string]limits.Validator
	limitsFns   map[string]LimitsGetter

	subsystems map[string]*Subsystem
	channels   map[string]*ChannelContainer
}

// CoreOption configures a Core at construction.
type CoreOption func(*Core)

// WithoutCaching disables the feature value cache.
func WithoutCaching() CoreOption {
	return func(c *Core) { c.useCache = false }
}

// WithLogger attaches a logger. By default the global logger is used,
// named after the driver.
func WithLogger(log *zap.SugaredLogger) CoreOption {
	return func(c *Core) { c.log = log }
}

// NewCore builds a feature host.
func NewCore(name string, opts ...CoreOption) *Core {
	c := &Core{
		name:        name,
		useCache:    true,
		feats:       make(map[string]*feature.Feature),
		cache:       make(map[string]any),
		limitsCache: make(map[string]limits.Validator),
		limitsFns:   make(map[string]LimitsGetter),
		subsystems:  make(map[string]*Subsystem),
		channels:    make(map[string]*ChannelContainer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named(name)
	}
	c.host = c
	return c
}

// Bind attaches the outer driver so the feature pipeline dispatches
// communication calls to it instead of the bare core.
func (c *Core) Bind(h feature.Host) { c.host = h }

// Name implements feature.Host.
func (c *Core) Name() string { return c.name }

// Log returns the driver logger.
func (c *Core) Log() *zap.SugaredLogger { return c.log }

// Lock acquires the communication lock.
func (c *Core) Lock() { c.mu.Lock() }

// Unlock releases the communication lock.
func (c *Core) Unlock() { c.mu.Unlock() }

// UseCache implements feature.Host.
func (c *Core) UseCache() bool { return c.useCache }

// AddFeature registers a feature on the driver.
func (c *Core) AddFeature(f *feature.Feature) {
	c.feats[f.Name()] = f
}

// Feat returns a registered feature by name.
func (c *Core) Feat(name string) (*feature.Feature, error) {
	f, ok := c.feats[name]
	if !ok {
		return nil, errors.Newf("driver %s has no feature %q", c.name, name)
	}
	return f, nil
}

// Features returns the names of the registered features.
func (c *Core) Features() []string {
	names := make([]string, 0, len(c.feats))
	for n := range c.feats {
		names = append(names, n)
	}
	return names
}

// GetFeat reads a feature by name through the pipeline.
func (c *Core) GetFeat(ctx context.Context, name string) (any, error) {
	f, err := c.Feat(name)
	if err != nil {
		return nil, err
	}
	return f.Get(ctx, c.host)
}

// SetFeat writes a feature by name through the pipeline.
func (c *Core) SetFeat(ctx context.Context, name string, value any) error {
	f, err := c.Feat(name)
	if err != nil {
		return err
	}
	return f.Set(ctx, c.host, value)
}

// CachedValue implements feature.Host. Callers hold the lock.
func (c *Core) CachedValue(name string) (any, bool) {
	v, ok := c.cache[name]
	return v, ok
}

// StoreCache implements feature.Host. Callers hold the lock.
func (c *Core) StoreCache(name string, value any) {
	c.cache[name] = value
}

// DropCache implements feature.Host. Dotted names reach subsystems and
// channels: "output.enabled" drops the subsystem entry, and for channel
// containers the entry of every instantiated channel.
func (c *Core) DropCache(features ...string) {
	for _, name := range features {
		head, rest, nested := strings.Cut(name, ".")
		if !nested {
			delete(c.cache, name)
			continue
		}
		if ss, ok := c.subsystems[head]; ok {
			ss.DropCache(rest)
			continue
		}
		if cc, ok := c.channels[head]; ok {
			for _, ch := range cc.open() {
				ch.DropCache(rest)
			}
		}
	}
}

// ClearCache drops every cached feature value of the driver and of its
// subsystems and channels.
func (c *Core) ClearCache() {
	c.cache = make(map[string]any)
	for _, ss := range c.subsystems {
		ss.ClearCache()
	}
	for _, cc := range c.channels {
		for _, ch := range cc.open() {
			ch.ClearCache()
		}
	}
}

// CheckCache returns a snapshot of the cache. Subsystem caches appear
// under their name, channel caches under name and id.
func (c *Core) CheckCache() map[string]any {
	out := make(map[string]any, len(c.cache))
	for k, v := range c.cache {
		out[k] = v
	}
	for name, ss := range c.subsystems {
		out[name] = ss.CheckCache()
	}
	for name, cc := range c.channels {
		chans := make(map[any]any)
		for _, ch := range cc.open() {
			chans[ch.ID()] = ch.CheckCache()
		}
		out[name] = chans
	}
	return out
}

// RegisterLimits declares a named limits getter. The computed validator is
// cached until discarded.
func (c *Core) RegisterLimits(id string, fn LimitsGetter) {
	c.limitsMu.Lock()
	defer c.limitsMu.Unlock()
	c.limitsFns[id] = fn
}

// DeclaredLimits returns the ids of the registered limits getters.
func (c *Core) DeclaredLimits() []string {
	c.limitsMu.Lock()
	defer c.limitsMu.Unlock()
	ids := make([]string, 0, len(c.limitsFns))
	for id := range c.limitsFns {
		ids = append(ids, id)
	}
	return ids
}

// Limits implements feature.Host. The getter runs without any lock held
// so it may query the instrument.
func (c *Core) Limits(ctx context.Context, id string) (limits.Validator, error) {
	c.limitsMu.Lock()
	if v, ok := c.limitsCache[id]; ok {
		c.limitsMu.Unlock()
		return v, nil
	}
	fn, ok := c.limitsFns[id]
	c.limitsMu.Unlock()
	if !ok {
		return nil, errors.Newf("driver %s declares no limits %q", c.name, id)
	}
	v, err := fn(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "computing limits %q of %s", id, c.name)
	}
	c.limitsMu.Lock()
	c.limitsCache[id] = v
	c.limitsMu.Unlock()
	return v, nil
}

// DropLimits implements feature.Host.
func (c *Core) DropLimits(ids ...string) {
	c.limitsMu.Lock()
	defer c.limitsMu.Unlock()
	for _, id := range ids {
		delete(c.limitsCache, id)
	}
}

// DefaultGetFeature implements feature.Host. The bare core has no
// communication channel; backends override it.
func (c *Core) DefaultGetFeature(ctx context.Context, f *feature.Feature, cmd string) (string, error) {
	return "", errors.Wrapf(errors.ErrNotSupported,
		"driver %s defines no way to query features", c.name)
}

// DefaultSetFeature implements feature.Host. Backends override it.
func (c *Core) DefaultSetFeature(ctx context.Context, f *feature.Feature, cmd string, value any) (string, error) {
	return "", errors.Wrapf(errors.ErrNotSupported,
		"driver %s defines no way to set features", c.name)
}

// CheckOperation implements feature.Host. The default accepts every
// write; drivers with a way to verify (status byte, error queue) override
// it.
func (c *Core) CheckOperation(ctx context.Context, f *feature.Feature, value, iValue any, response string) error {
	return nil
}

// ReopenConnection implements feature.Host. Backends override it.
func (c *Core) ReopenConnection(ctx context.Context) error {
	return errors.Wrapf(errors.ErrNotSupported,
		"driver %s defines no way to reopen its connection", c.name)
}

// AddSubsystem registers a subsystem under the given name.
func (c *Core) AddSubsystem(name string, ss *Subsystem) {
	c.subsystems[name] = ss
}

// Subsystem returns a registered subsystem.
func (c *Core) Subsystem(name string) (*Subsystem, error) {
	ss, ok := c.subsystems[name]
	if !ok {
		return nil, errors.Newf("driver %s has no subsystem %q", c.name, name)
	}
	return ss, nil
}

// AddChannels registers a channel container under the given name.
func (c *Core) AddChannels(name string, cc *ChannelContainer) {
	c.channels[name] = cc
}

// Channels returns a registered channel container.
func (c *Core) Channels(name string) (*ChannelContainer, error) {
	cc, ok := c.channels[name]
	if !ok {
		return nil, errors.Newf("driver %s has no channels %q", c.name, name)
	}
	return cc, nil
}
