// Package fieldbus implements the pluggable field-bus manager: a
// compile-time registry of named MAC drivers and type-keyed
// application drivers, wired together into channels and dispatched
// via Sync/Fetch.
//
// Drivers register their constructors at init() time through
// RegisterMAC and RegisterApp, the same shape as database/sql.Register
// or image.RegisterFormat, in place of the original agent's
// dlopen-based module loading. MAC drivers are created eagerly, one
// per configured line, in configuration order; application drivers are
// created lazily, once per distinct type, the first time a channel
// references that type — mirroring the original manager's
// init-eagerly/addChannel-lazily lifecycle split.
package fieldbus

import (
	"fmt"

	"dloggcsv.dev/configtree"
	"dloggcsv.dev/logging"
	"dloggcsv.dev/value"
)

// MacDriver is the capability every registered MAC transport
// implements: advance its line's protocol state, and release its
// resources.
type MacDriver interface {
	Sync() error
	Close() error
}

// ChannelHandle is an opaque reference an AppDriver hands back from
// AddChannel and later receives from Fetch. Its concrete type is
// private to the driver that created it.
type ChannelHandle interface{}

// AppDriver is the capability every registered application driver
// implements: stage per-channel data after every MAC has synced,
// accept new channel registrations, and fetch a channel's current
// value.
type AppDriver interface {
	Sync() error
	AddChannel(name string, cfg configtree.Node) (ChannelHandle, error)
	Fetch(h ChannelHandle) (value.Value, error)
	Close() error
}

// MacFactory constructs a MacDriver from its configuration subtree.
type MacFactory func(name string, cfg configtree.Node) (MacDriver, error)

// AppFactory constructs an AppDriver given every currently registered
// MAC line, in registration order (so a line_id addresses macs[i] by
// index).
type AppFactory func(macs []MacDriver) (AppDriver, error)

var macFactories = map[string]MacFactory{}
var appFactories = map[string]AppFactory{}

// RegisterMAC makes a MAC driver factory available under driver. It
// panics if driver is already registered or f is nil, mirroring
// database/sql.Register's init()-time registration contract.
func RegisterMAC(driver string, f MacFactory) {
	if f == nil {
		panic("fieldbus: RegisterMAC factory is nil")
	}
	if _, dup := macFactories[driver]; dup {
		panic("fieldbus: RegisterMAC called twice for driver " + driver)
	}
	macFactories[driver] = f
}

// RegisterApp makes an application driver factory available under
// driver.
func RegisterApp(driver string, f AppFactory) {
	if f == nil {
		panic("fieldbus: RegisterApp factory is nil")
	}
	if _, dup := appFactories[driver]; dup {
		panic("fieldbus: RegisterApp called twice for driver " + driver)
	}
	appFactories[driver] = f
}

// Channel is one registered, densely numbered data point.
type Channel struct {
	ID       int
	Name     string
	typeName string
	handle   ChannelHandle
}

type macEntry struct {
	name   string
	driver MacDriver
}

type appEntry struct {
	typeName string
	driver   AppDriver
}

// Registry holds every configured MAC, lazily-created application
// driver, and channel, and drives the
// manager.sync -> mac.sync* -> app.sync* -> channel.fetch* control
// flow.
type Registry struct {
	macs     []macEntry
	macList  []MacDriver
	apps     []appEntry
	channels []Channel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) findMacIndex(name string) (int, bool) {
	for i, m := range r.macs {
		if m.name == name {
			return i, true
		}
	}
	return 0, false
}

func (r *Registry) findApp(typeName string) (AppDriver, bool) {
	for _, a := range r.apps {
		if a.typeName == typeName {
			return a.driver, true
		}
	}
	return nil, false
}

// AddMAC constructs and registers a MAC driver instance named name
// using the factory registered under driver. MAC lines are addressed
// by their 0-based registration order, matching line_id in a channel
// address.
func (r *Registry) AddMAC(name, driver string, cfg configtree.Node) error {
	if _, dup := r.findMacIndex(name); dup {
		return fmt.Errorf("fieldbus: mac %q already registered: %w", name, value.ErrConfig)
	}
	factory, ok := macFactories[driver]
	if !ok {
		return fmt.Errorf("fieldbus: unknown mac driver %q: %w", driver, value.ErrLoadModule)
	}
	d, err := factory(name, cfg)
	if err != nil {
		return fmt.Errorf("fieldbus: mac %q: %w", name, err)
	}
	r.macs = append(r.macs, macEntry{name: name, driver: d})
	r.macList = append(r.macList, d)
	return nil
}

// ensureApp returns the application driver for typeName, constructing
// it on first use. Construction failure never leaves a partial app
// entry behind.
func (r *Registry) ensureApp(typeName string) (AppDriver, error) {
	if d, ok := r.findApp(typeName); ok {
		return d, nil
	}
	factory, ok := appFactories[typeName]
	if !ok {
		return nil, fmt.Errorf("fieldbus: unknown app driver %q: %w", typeName, value.ErrLoadModule)
	}
	d, err := factory(r.macList)
	if err != nil {
		return nil, fmt.Errorf("fieldbus: app %q: %w", typeName, err)
	}
	r.apps = append(r.apps, appEntry{typeName: typeName, driver: d})
	return d, nil
}

// AddChannel registers a new densely numbered channel of the given
// type, lazily constructing that type's application driver if this is
// its first reference.
func (r *Registry) AddChannel(name, typeName string, cfg configtree.Node) error {
	app, err := r.ensureApp(typeName)
	if err != nil {
		return fmt.Errorf("fieldbus: channel %q: %w", name, err)
	}
	h, err := app.AddChannel(name, cfg)
	if err != nil {
		return fmt.Errorf("fieldbus: channel %q: %w", name, err)
	}
	r.channels = append(r.channels, Channel{
		ID:       len(r.channels),
		Name:     name,
		typeName: typeName,
		handle:   h,
	})
	return nil
}

// Channels returns every registered channel in registration order.
func (r *Registry) Channels() []Channel {
	return r.channels
}

// Sync advances every MAC line and then every application driver, in
// registration order, stopping at the first failure — a MAC's sync
// takes the wire snapshot every app sync depends on.
func (r *Registry) Sync() error {
	for _, m := range r.macs {
		if err := m.driver.Sync(); err != nil {
			return fmt.Errorf("fieldbus: mac %q: %w", m.name, err)
		}
	}
	for _, a := range r.apps {
		if err := a.driver.Sync(); err != nil {
			return fmt.Errorf("fieldbus: app %q: %w", a.typeName, err)
		}
	}
	return nil
}

// Fetch returns the current value of the channel at the given dense
// ID, which must be within [0, len(Channels())).
func (r *Registry) Fetch(id int) (value.Value, error) {
	ch := r.channels[id]
	app, ok := r.findApp(ch.typeName)
	if !ok {
		return value.Value{}, fmt.Errorf("fieldbus: channel %q: app %q vanished: %w", ch.Name, ch.typeName, value.ErrGeneric)
	}
	v, err := app.Fetch(ch.handle)
	if err != nil {
		return value.Value{}, fmt.Errorf("fieldbus: channel %q: %w", ch.Name, err)
	}
	return v, nil
}

// FetchAll fetches every registered channel in ID order. A channel
// whose fetch comes back as an Error-tagged Value is logged and left
// in place rather than treated as fatal, so one bad channel yields a
// NaN in its own CSV column instead of aborting the whole row.
func (r *Registry) FetchAll() ([]value.Value, error) {
	out := make([]value.Value, len(r.channels))
	for i := range r.channels {
		v, err := r.Fetch(i)
		if err != nil {
			return nil, err
		}
		if kind, isErr := v.ErrorKind(); isErr {
			logging.Warn().Str("channel", r.channels[i].Name).Str("error", kind.Error()).Msg("channel fetch failed")
		}
		out[i] = v
	}
	return out, nil
}

// Close releases every application driver, then every MAC, each in
// reverse registration order. It collects but does not stop at
// individual close failures, so one driver's failure to close does
// not leak the rest.
func (r *Registry) Close() error {
	var firstErr error
	for i := len(r.apps) - 1; i >= 0; i-- {
		a := r.apps[i]
		if err := a.driver.Close(); err != nil {
			logging.Warn().Err(err).Str("app", a.typeName).Msg("failed to close app driver")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	for i := len(r.macs) - 1; i >= 0; i-- {
		m := r.macs[i]
		if err := m.driver.Close(); err != nil {
			logging.Warn().Err(err).Str("mac", m.name).Msg("failed to close mac driver")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// LoadConfig builds a Registry from the root configuration tree's
// "mac" and "channel" lists. On any failure it closes every driver
// already constructed before returning, so a partially invalid
// configuration never leaves live drivers or open devices behind.
func LoadConfig(root configtree.Node) (*Registry, error) {
	r := NewRegistry()

	if macs, ok := root.Sub("mac"); ok {
		for _, m := range macs.Children() {
			name, _ := m.String("name")
			driver, ok := m.String("driver")
			if !ok {
				driver = name
			}
			if err := r.AddMAC(name, driver, m); err != nil {
				r.Close()
				return nil, err
			}
		}
	}

	if channels, ok := root.Sub("channel"); ok {
		for _, c := range channels.Children() {
			title, ok := c.String("title")
			if !ok {
				r.Close()
				return nil, fmt.Errorf("fieldbus: channel entry missing \"title\": %w", value.ErrConfig)
			}
			typeName, ok := c.String("type")
			if !ok {
				r.Close()
				return nil, fmt.Errorf("fieldbus: channel %q missing \"type\": %w", title, value.ErrConfig)
			}
			addr, ok := c.Sub("address")
			if !ok {
				r.Close()
				return nil, fmt.Errorf("fieldbus: channel %q missing \"address\": %w", title, value.ErrConfig)
			}
			if err := r.AddChannel(title, typeName, addr); err != nil {
				r.Close()
				return nil, err
			}
		}
	}

	return r, nil
}
