package datasync

import (
	"context"
	"sync"

	"github.com/MansurAzad/cashbook/internal/domain"
	"github.com/MansurAzad/cashbook/internal/gateway"
)

// FetchData assembles the full application snapshot: the local store is the
// baseline; while online the pending queue is drained first and every
// collection is then listed from the remote gateway in parallel. The remote
// result replaces the local copy wholesale only when every listing succeeds;
// a partial batch keeps the local baseline untouched. Full replace means no
// merge layer, at the cost of a window where an optimistic local write can be
// clobbered by a stale remote read until its queued operation has landed.
func (s *Service) FetchData(ctx context.Context) *domain.Snapshot {
	baseline := make(map[domain.Kind][]record, len(domain.SnapshotKinds))
	for _, kind := range domain.SnapshotKinds {
		baseline[kind] = s.collection(kind)
	}

	if s.Online() {
		s.Drain(ctx)
		if remote, err := s.listAll(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Remote refresh failed, serving local data")
		} else {
			s.mu.Lock()
			for kind, items := range remote {
				s.saveCollection(kind, items)
				s.clearUnsynced(kind)
				baseline[kind] = items
			}
			s.mu.Unlock()
		}
	}

	return s.buildSnapshot(baseline)
}

// listAll lists every snapshot collection from the remote gateway in
// parallel. Any single failure fails the whole batch.
func (s *Service) listAll(ctx context.Context) (map[domain.Kind][]record, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	out := make(map[domain.Kind][]record, len(domain.SnapshotKinds))

	for _, kind := range domain.SnapshotKinds {
		wg.Add(1)
		go func(kind domain.Kind) {
			defer wg.Done()
			objs, err := s.remote.List(ctx, kind, 0)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			items := make([]record, 0, len(objs))
			for _, obj := range objs {
				items = append(items, objectRecord(obj))
			}
			out[kind] = items
		}(kind)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// objectRecord converts a remote object into stored record form, making the
// server-assigned id authoritative.
func objectRecord(obj gateway.Object) record {
	rec := obj.Data
	if rec == nil {
		rec = record{}
	}
	if obj.ID != "" {
		rec["id"] = obj.ID
	}
	return rec
}

// buildSnapshot decodes the JSON-level collections into the typed snapshot,
// synthesizing the default category set when none exist.
func (s *Service) buildSnapshot(cols map[domain.Kind][]record) *domain.Snapshot {
	snap := &domain.Snapshot{
		Transactions: []domain.Transaction{},
		Budgets:      []domain.Budget{},
		Goals:        []domain.Goal{},
		Bills:        []domain.Bill{},
		Investments:  []domain.Investment{},
		Accounts:     []domain.Account{},
		Loans:        []domain.Loan{},
	}
	decodeCollection(cols[domain.KindTransaction], &snap.Transactions)
	decodeCollection(cols[domain.KindBudget], &snap.Budgets)
	decodeCollection(cols[domain.KindGoal], &snap.Goals)
	decodeCollection(cols[domain.KindBill], &snap.Bills)
	decodeCollection(cols[domain.KindInvestment], &snap.Investments)
	decodeCollection(cols[domain.KindAccount], &snap.Accounts)
	decodeCollection(cols[domain.KindLoan], &snap.Loans)

	categories := []domain.Category{}
	decodeCollection(cols[domain.KindCategory], &categories)
	if len(categories) == 0 {
		categories = domain.DefaultCategories()
	}
	snap.Categories = domain.SplitCategories(categories)

	return snap
}
