// Package localcache keeps a versioned snapshot of the loaded school on the device,
// used as an offline fallback.
package localcache

import (
	"context"
	"fmt"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

type Cache struct {
	slot   Slot
	key    string
	logger core.Logger
}

var _ school.LocalCache = (*Cache)(nil) // interface compliance check

func New(slot Slot, key string, logger core.Logger) *Cache {
	vala.BeginValidation().Validate(
		vala.IsNotNil(slot, "slot"),
		vala.StringNotEmpty(key, "key"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Cache{slot: slot, key: key, logger: logger}
}

// Open returns a badger backed cache at conf.Cache.Path, in memory when the path is empty.
func Open(conf *core.Config, logger core.Logger) (*Cache, error) {
	var (
		slot Slot
		err  error
	)
	if conf.Cache.Path == "" {
		slot = NewMemorySlot()
	} else if slot, err = OpenBadgerSlot(conf.Cache.Path); err != nil {
		return nil, errors.Wrap(err, "opening local cache")
	}
	return New(slot, conf.Cache.Key, logger), nil
}

// Load never fails: a missing, unreadable or unsupported snapshot is reported as no data.
func (c *Cache) Load(context.Context) (school.CachedState, bool) {
	raw, ok, err := c.slot.Get(c.key)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("reading local cache: %v", err), err)
		return school.CachedState{}, false
	}
	if !ok {
		return school.CachedState{}, false
	}
	state, err := Decode(raw)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("discarding local cache: %v", err), err)
		return school.CachedState{}, false
	}
	return state, true
}

func (c *Cache) Save(_ context.Context, state school.CachedState) error {
	raw, err := Encode(state)
	if err != nil {
		return err
	}
	return c.slot.Put(c.key, raw)
}

func (c *Cache) Clear(context.Context) error {
	return c.slot.Delete(c.key)
}

func (c *Cache) Close() error {
	return c.slot.Close()
}
