package driver

import (
	"context"

	"github.com/LabPy/lantz-core/feature"
)

// Subsystem splits a driver into hierarchical parts so feature names stay
// short ("output.enabled" instead of "output_enabled"). A subsystem owns
// its features and cache but shares the parent communication channel and
// lock.
type Subsystem struct {
	*Core
	parent feature.Host
}

// NewSubsystem builds a subsystem attached to a parent driver. The parent
// is usually the outer driver value, so communication dispatches through
// any overrides it defines.
func NewSubsystem(name string, parent feature.Host, opts ...CoreOption) *Subsystem {
	ss := &Subsystem{Core: NewCore(name, opts...), parent: parent}
	ss.Core.Bind(ss)
	return ss
}

// Parent returns the host this subsystem is attached to.
func (s *Subsystem) Parent() feature.Host { return s.parent }

// UseCache pipes to the parent: caching is enabled or disabled for a
// driver as a whole.
func (s *Subsystem) UseCache() bool { return s.parent.UseCache() }

// Lock acquires the parent lock: a driver and its subsystems share one
// communication channel.
func (s *Subsystem) Lock() { s.parent.Lock() }

// Unlock releases the parent lock.
func (s *Subsystem) Unlock() { s.parent.Unlock() }

// DefaultGetFeature pipes the query to the parent.
func (s *Subsystem) DefaultGetFeature(ctx context.Context, f *feature.Feature, cmd string) (string, error) {
	return s.parent.DefaultGetFeature(ctx, f, cmd)
}

// DefaultSetFeature pipes the write to the parent.
func (s *Subsystem) DefaultSetFeature(ctx context.Context, f *feature.Feature, cmd string, value any) (string, error) {
	return s.parent.DefaultSetFeature(ctx, f, cmd, value)
}

// CheckOperation pipes the check to the parent.
func (s *Subsystem) CheckOperation(ctx context.Context, f *feature.Feature, value, iValue any, response string) error {
	return s.parent.CheckOperation(ctx, f, value, iValue, response)
}

// ReopenConnection pipes the reopening to the parent.
func (s *Subsystem) ReopenConnection(ctx context.Context) error {
	return s.parent.ReopenConnection(ctx)
}
