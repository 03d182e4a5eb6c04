package datasync

import (
	"context"

	"github.com/MansurAzad/cashbook/internal/domain"
)

// AddTransaction performs the transaction add and keeps the referenced
// account's balance consistent: the transaction write is made durable locally
// before the balance mutation, so a crash between the two leaves a
// conservatively stale balance rather than a phantom transaction.
func (s *Service) AddTransaction(ctx context.Context, tx domain.Transaction) (*domain.Snapshot, error) {
	if _, err := s.applyAdd(ctx, domain.KindTransaction, tx); err != nil {
		return nil, err
	}
	if tx.AccountID != "" {
		s.adjustBalance(ctx, tx.AccountID, tx.SignedAmount())
	}
	return s.FetchData(ctx), nil
}

// UpdateTransaction replaces the stored transaction under id with tx and
// reconciles balances. When the account linkage changed, the old effect is
// reversed on the old account and the new effect applied to the new one;
// when unchanged, a single combined delta is applied.
func (s *Service) UpdateTransaction(ctx context.Context, id string, tx domain.Transaction) (*domain.Snapshot, error) {
	old, found := s.findTransaction(id)

	fields, err := encodeRecord(tx)
	if err != nil {
		return nil, err
	}
	s.applyUpdate(ctx, domain.KindTransaction, id, fields, true)

	if found {
		switch {
		case old.AccountID == tx.AccountID && tx.AccountID != "":
			if delta := tx.SignedAmount() - old.SignedAmount(); delta != 0 {
				s.adjustBalance(ctx, tx.AccountID, delta)
			}
		case old.AccountID != tx.AccountID:
			if old.AccountID != "" {
				s.adjustBalance(ctx, old.AccountID, -old.SignedAmount())
			}
			if tx.AccountID != "" {
				s.adjustBalance(ctx, tx.AccountID, tx.SignedAmount())
			}
		}
	}
	return s.FetchData(ctx), nil
}

// DeleteTransaction looks the transaction up before removal, since the
// balance reversal needs its original amount, type and account, then deletes
// it and applies the inverse adjustment.
func (s *Service) DeleteTransaction(ctx context.Context, id string) *domain.Snapshot {
	old, found := s.findTransaction(id)

	s.applyDelete(ctx, domain.KindTransaction, id)

	if found && old.AccountID != "" {
		s.adjustBalance(ctx, old.AccountID, -old.SignedAmount())
	}
	return s.FetchData(ctx)
}

// findTransaction decodes the stored transaction under id.
func (s *Service) findTransaction(id string) (domain.Transaction, bool) {
	txs := []domain.Transaction{}
	decodeCollection(s.collection(domain.KindTransaction), &txs)
	for _, tx := range txs {
		if tx.ID == id {
			return tx, true
		}
	}
	return domain.Transaction{}, false
}

// adjustBalance applies a signed delta to the account's running balance. The
// read and the local write happen under one lock acquisition so no other
// mutation can interleave between them; the remote attempt follows after the
// lock is released.
func (s *Service) adjustBalance(ctx context.Context, accountID string, delta float64) {
	s.mu.Lock()
	items := s.collection(domain.KindAccount)
	var merged record
	for i, item := range items {
		if recordID(item) != accountID {
			continue
		}
		balance, _ := item["balance"].(float64)
		item["balance"] = balance + delta
		items[i] = item
		merged = item
		break
	}
	if merged != nil {
		s.saveCollection(domain.KindAccount, items)
	}
	s.mu.Unlock()

	if merged == nil {
		s.log.Warn().Str("account_id", accountID).Msg("Transaction references unknown account, balance not adjusted")
		return
	}

	s.syncRecord(ctx, domain.KindAccount, accountID, merged)
}
