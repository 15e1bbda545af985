// Package deadletter implements the Dead-Letter Queue: a durable store
// mirror fronted by a bounded in-memory LRU, with retention-based purging
// and replay-back-into-the-Delivery-Queue semantics (spec §4.9).
package deadletter

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
	"github.com/sirupsen/logrus"
)

// Store is the durable side of the mirror. Satisfied by *store.SQLStore.
type Store interface {
	AddDeadLetterEntry(entry *model.DeadLetterEntry) error
	GetDeadLetterEntry(id string) (*model.DeadLetterEntry, error)
	ListDeadLetterEntries(request *model.ListDeadLetterRequest) ([]*model.DeadLetterEntry, error)
	RemoveDeadLetterEntry(id string) error
	UpdateDeadLetterRetry(id, outcome string) error
	ClearDeadLetterEntries() error
	PurgeExpiredDeadLetterEntries(olderThanMillis int64) (int64, error)
	CountDeadLetterEntries() (int64, error)
}

// DefaultRetentionDays is the retention window enforced by PurgeExpired
// (spec §4.9 "default 30").
const DefaultRetentionDays = 30

// DefaultCacheSize bounds the in-memory LRU mirror.
const DefaultCacheSize = 5000

// DeadLetter fronts the durable dead-letter store with a bounded LRU and
// enforces the retention/purge and replay contract.
type DeadLetter struct {
	store         Store
	cache         *lru.Cache[string, *model.DeadLetterEntry]
	retentionDays int
	totalPurged   int64
	logger        logrus.FieldLogger
}

// New constructs a DeadLetter fronting store with an LRU of cacheSize
// entries, evicting the oldest entry from the in-memory mirror (never
// from the durable store) once it fills.
func New(store Store, cacheSize, retentionDays int, logger logrus.FieldLogger) (*DeadLetter, error) {
	d := &DeadLetter{store: store, retentionDays: retentionDays, logger: logger.WithField("component", "deadletter")}
	cache, err := lru.NewWithEvict[string, *model.DeadLetterEntry](cacheSize, func(key string, value *model.DeadLetterEntry) {
		d.totalPurged++
		d.logger.WithField("entry", key).Debug("evicted dead-letter entry from in-memory mirror")
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct dead-letter LRU")
	}
	d.cache = cache
	return d, nil
}

// Hydrate preloads the most recent entries into the in-memory mirror at
// startup.
func (d *DeadLetter) Hydrate() error {
	entries, err := d.store.ListDeadLetterEntries(&model.ListDeadLetterRequest{Paging: model.AllPagesNotDeleted()})
	if err != nil {
		return errors.Wrap(err, "failed to hydrate dead-letter cache")
	}
	for _, entry := range entries {
		d.cache.Add(entry.ID, entry)
	}
	return nil
}

// Add durably records a dead-lettered delivery and mirrors it into the
// cache (spec §4.9 "add(delivery, reason)").
func (d *DeadLetter) Add(item *model.DeliveryItem, reason string) error {
	entry := model.NewDeadLetterEntry(item, reason)
	if err := d.store.AddDeadLetterEntry(entry); err != nil {
		return errors.Wrap(err, "failed to add dead-letter entry")
	}
	d.cache.Add(entry.ID, entry)
	return nil
}

// Get fetches a single entry, consulting the cache before the durable
// store.
func (d *DeadLetter) Get(id string) (*model.DeadLetterEntry, error) {
	if entry, ok := d.cache.Get(id); ok {
		return entry, nil
	}
	return d.store.GetDeadLetterEntry(id)
}

// List fetches entries matching the given filter from the durable store,
// which remains the system of record (spec §4.9 "list(filter)").
func (d *DeadLetter) List(request *model.ListDeadLetterRequest) ([]*model.DeadLetterEntry, error) {
	return d.store.ListDeadLetterEntries(request)
}

// Remove deletes a single entry from both the store and the cache (spec
// §4.9 "remove(entryId)").
func (d *DeadLetter) Remove(id string) error {
	if err := d.store.RemoveDeadLetterEntry(id); err != nil {
		return errors.Wrap(err, "failed to remove dead-letter entry")
	}
	d.cache.Remove(id)
	return nil
}

// Clear removes every entry (spec §4.9 "clear()").
func (d *DeadLetter) Clear() error {
	if err := d.store.ClearDeadLetterEntries(); err != nil {
		return errors.Wrap(err, "failed to clear dead-letter entries")
	}
	d.cache.Purge()
	return nil
}

// Retry produces the delivery item that should be re-enqueued for entry
// id, with attempts reset to zero and the retry annotation set, and
// removes the source entry so a successful replay isn't retried twice
// (spec §4.9 "retry(entryId) → Delivery"; on replay failure the caller is
// responsible for re-adding it via Add, which records the new failure
// independently).
func (d *DeadLetter) Retry(id string) (*model.DeliveryItem, error) {
	entry, err := d.Get(id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load dead-letter entry")
	}
	if entry == nil {
		return nil, model.NewNotFoundError("dead-letter entry %q not found", id)
	}
	retried := entry.ToRetryDelivery()
	if err := d.Remove(id); err != nil {
		return nil, err
	}
	return retried, nil
}

// RetryAll produces retry-ready delivery items for every entry matching
// filter (spec §4.9 "retryAll(filter)").
func (d *DeadLetter) RetryAll(filter *model.ListDeadLetterRequest) ([]*model.DeliveryItem, error) {
	entries, err := d.List(filter)
	if err != nil {
		return nil, err
	}
	items := make([]*model.DeliveryItem, 0, len(entries))
	for _, entry := range entries {
		retried, err := d.Retry(entry.ID)
		if err != nil {
			d.logger.WithError(err).WithField("entry", entry.ID).Error("failed to retry dead-letter entry")
			continue
		}
		items = append(items, retried)
	}
	return items, nil
}

// TotalPurged returns the running count of entries evicted from the
// in-memory mirror on overflow (spec §4.9 "totalPurged counter").
func (d *DeadLetter) TotalPurged() int64 {
	return d.totalPurged
}

// PurgeExpired removes entries older than the retention window from the
// durable store and mirrors the removal into the cache.
func (d *DeadLetter) PurgeExpired() (int64, error) {
	cutoff := model.GetMillis() - int64(d.retentionDays)*24*int64(time.Hour/time.Millisecond)
	count, err := d.store.PurgeExpiredDeadLetterEntries(cutoff)
	if err != nil {
		return 0, err
	}
	for _, key := range d.cache.Keys() {
		entry, ok := d.cache.Peek(key)
		if ok && entry.DeadLetteredAtMillis < cutoff {
			d.cache.Remove(key)
		}
	}
	return count, nil
}

// RunPurgeLoop runs PurgeExpired on an hourly tick until stop is closed.
func (d *DeadLetter) RunPurgeLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := d.PurgeExpired(); err != nil {
				d.logger.WithError(err).Error("failed to purge expired dead-letter entries")
			}
		}
	}
}
