// Package datasync implements the local-first data layer: record mutations
// write through to the local store immediately, then attempt the remote
// gateway, queueing failed remote operations for replay. Every mutation hands
// back a freshly assembled snapshot so callers never block on remote success.
package datasync

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/MansurAzad/cashbook/internal/domain"
	"github.com/MansurAzad/cashbook/internal/gateway"
	"github.com/MansurAzad/cashbook/internal/localstore"
)

const (
	keyPendingOps  = "pending_operations"
	keyUnsyncedIDs = "unsynced_ids"
)

// Service owns the record repositories, the pending-operation queue, the
// balance reconciler and the snapshot builder. Construct one at startup and
// pass it by reference; there is no package-level instance.
type Service struct {
	// mu serializes local read-modify-write sections. It is never held
	// across a remote call.
	mu sync.Mutex
	// drainMu serializes queue replay so overlapping drains cannot replay
	// the same operation twice.
	drainMu sync.Mutex
	store   *localstore.Store
	remote  gateway.Remote
	log     zerolog.Logger
	online  atomic.Bool
}

// New builds a Service over the given local store and remote gateway. remote
// may be nil for a purely local deployment; the service then behaves as
// permanently offline.
func New(store *localstore.Store, remote gateway.Remote, log zerolog.Logger) *Service {
	s := &Service{
		store:  store,
		remote: remote,
		log:    log,
	}
	s.online.Store(remote != nil)
	return s
}

// Online reports the current connectivity assumption.
func (s *Service) Online() bool {
	return s.online.Load() && s.remote != nil
}

// SetOnline records a connectivity transition. Going offline→online drains
// the pending-operation queue and refreshes the snapshot as a side effect;
// there is no periodic background sync.
func (s *Service) SetOnline(ctx context.Context, online bool) {
	prev := s.online.Swap(online)
	if prev == online {
		return
	}
	s.log.Info().Bool("online", online).Msg("Connectivity changed")
	if online && s.remote != nil {
		s.Drain(ctx)
		s.FetchData(ctx)
	}
}

// Settings reads the per-device settings record. Settings live outside the
// snapshot and are never synced remotely.
func (s *Service) Settings() domain.Settings {
	settings := domain.Settings{Currency: "USD", ThemeColor: "#3b82f6"}
	s.store.Get(string(domain.KindSettings), &settings)
	return settings
}

// SaveSettings persists the per-device settings record.
func (s *Service) SaveSettings(settings domain.Settings) {
	s.store.Set(string(domain.KindSettings), settings)
}

// ShoppingList reads the shopping-list collection.
func (s *Service) ShoppingList() []domain.ShoppingItem {
	items := []domain.ShoppingItem{}
	s.store.Get(string(domain.KindShopping), &items)
	return items
}

// SaveShoppingList persists the shopping-list collection.
func (s *Service) SaveShoppingList(items []domain.ShoppingItem) {
	s.store.Set(string(domain.KindShopping), items)
}

// unsynced-id registry: the set of record ids created locally and not yet
// confirmed by the remote gateway. Such records are never sent a remote
// update or delete; the queued ADD is what eventually syncs them.

func (s *Service) unsyncedIDs() map[string][]string {
	reg := map[string][]string{}
	s.store.Get(keyUnsyncedIDs, &reg)
	return reg
}

func (s *Service) markUnsynced(kind domain.Kind, id string) {
	reg := s.unsyncedIDs()
	reg[string(kind)] = append(reg[string(kind)], id)
	s.store.Set(keyUnsyncedIDs, reg)
}

func (s *Service) isUnsynced(kind domain.Kind, id string) bool {
	for _, known := range s.unsyncedIDs()[string(kind)] {
		if known == id {
			return true
		}
	}
	return false
}

// forgetUnsynced removes id from the registry, reporting whether it was
// present.
func (s *Service) forgetUnsynced(kind domain.Kind, id string) bool {
	reg := s.unsyncedIDs()
	ids := reg[string(kind)]
	for i, known := range ids {
		if known == id {
			reg[string(kind)] = append(ids[:i], ids[i+1:]...)
			s.store.Set(keyUnsyncedIDs, reg)
			return true
		}
	}
	return false
}

// clearUnsynced empties the registry for a kind, used after the remote copy
// of that collection has replaced the local one wholesale.
func (s *Service) clearUnsynced(kind domain.Kind) {
	reg := s.unsyncedIDs()
	if _, ok := reg[string(kind)]; !ok {
		return
	}
	delete(reg, string(kind))
	s.store.Set(keyUnsyncedIDs, reg)
}
