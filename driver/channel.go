package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/feature"
)

// ChannelIDPlaceholder is substituted with the channel id in feature
// commands declared on channels: "SOUR{ch}:VOLT?" becomes "SOUR2:VOLT?"
// on the channel with id 2.
const ChannelIDPlaceholder = "{ch}"

// Channel exposes a part of an instrument that exists in several
// interchangeable instances (oscilloscope inputs, multiplexer ports...).
// Channels are subsystems with an id which is injected into the commands
// piped to the parent.
type Channel struct {
	*Subsystem
	id any
}

// ID returns the channel id.
func (c *Channel) ID() any { return c.id }

// DefaultGetFeature substitutes the id into the command and pipes the
// query to the parent.
func (c *Channel) DefaultGetFeature(ctx context.Context, f *feature.Feature, cmd string) (string, error) {
	return c.parent.DefaultGetFeature(ctx, f, c.substitute(cmd))
}

// DefaultSetFeature substitutes the id into the command and pipes the
// write to the parent.
func (c *Channel) DefaultSetFeature(ctx context.Context, f *feature.Feature, cmd string, value any) (string, error) {
	return c.parent.DefaultSetFeature(ctx, f, c.substitute(cmd), value)
}

func (c *Channel) substitute(cmd string) string {
	return strings.ReplaceAll(cmd, ChannelIDPlaceholder, fmt.Sprint(c.id))
}

// ListAvailable returns the ids of the channels an instrument exposes,
// either statically or by querying the instrument.
type ListAvailable func(ctx context.Context) ([]any, error)

// StaticChannels builds a ListAvailable from a fixed id list.
func StaticChannels(ids ...any) ListAvailable {
	return func(ctx context.Context) ([]any, error) { return ids, nil }
}

// ChannelContainer stores the channels of one kind a driver exposes.
// Channels are built lazily on first access and reused afterwards.
type ChannelContainer struct {
	name      string
	parent    feature.Host
	available ListAvailable
	configure func(ch *Channel)

	mu       sync.Mutex
	channels map[any]*Channel
}

// NewChannelContainer builds a container. configure is called once per
// new channel to register its features.
func NewChannelContainer(name string, parent feature.Host, available ListAvailable,
	configure func(ch *Channel)) *ChannelContainer {
	return &ChannelContainer{
		name:      name,
		parent:    parent,
		available: available,
		configure: configure,
		channels:  make(map[any]*Channel),
	}
}

// Available lists the channel ids the instrument exposes.
func (cc *ChannelContainer) Available(ctx context.Context) ([]any, error) {
	if cc.available == nil {
		return nil, errors.Newf("no way to identify the channels of %s", cc.name)
	}
	return cc.available(ctx)
}

// Channel returns the channel with the given id, building it on first
// access.
func (cc *ChannelContainer) Channel(id any) *Channel {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if ch, ok := cc.channels[id]; ok {
		return ch
	}
	ch := &Channel{
		Subsystem: NewSubsystem(fmt.Sprintf("%s[%v]", cc.name, id), cc.parent),
		id:        id,
	}
	ch.Core.Bind(ch)
	if cc.configure != nil {
		cc.configure(ch)
	}
	cc.channels[id] = ch
	return ch
}

// ForEach runs fn on every available channel, stopping on the first
// error.
func (cc *ChannelContainer) ForEach(ctx context.Context, fn func(ch *Channel) error) error {
	ids, err := cc.Available(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := fn(cc.Channel(id)); err != nil {
			return err
		}
	}
	return nil
}

// open returns the channels built so far.
func (cc *ChannelContainer) open() []*Channel {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	out := make([]*Channel, 0, len(cc.channels))
	for _, ch := range cc.channels {
		out = append(out, ch)
	}
	return out
}
