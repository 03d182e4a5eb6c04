package datasync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MansurAzad/cashbook/internal/domain"
	"github.com/MansurAzad/cashbook/internal/gateway"
)

// record is the JSON-level form every collection entry is stored and synced
// in. Typed structs decode from it at snapshot boundaries.
type record = map[string]any

func recordID(r record) string {
	id, _ := r["id"].(string)
	return id
}

// clonePayload shallow-copies a record before it crosses the gateway
// boundary, so an implementation that annotates its argument cannot touch
// the stored copy.
func clonePayload(r record) record {
	out := make(record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// encodeRecord converts any value with JSON tags into its stored form.
func encodeRecord(v any) (record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var m record
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if m == nil {
		m = record{}
	}
	return m, nil
}

// decodeCollection round-trips a stored collection into a typed slice.
// Decode failures degrade to whatever partial state unmarshal produced;
// they are logged by the caller's store, not surfaced here.
func decodeCollection(items []record, out any) {
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	_ = json.Unmarshal(raw, out)
}

func (s *Service) collection(kind domain.Kind) []record {
	items := []record{}
	s.store.Get(string(kind), &items)
	return items
}

func (s *Service) saveCollection(kind domain.Kind, items []record) {
	s.store.Set(string(kind), items)
}

// Add creates a record of the given kind: immediate optimistic local write
// under a fresh id, then a remote create attempt, queueing an ADD operation
// on transient failure. The returned snapshot always contains the new record.
// The error return is reserved for payloads that cannot be encoded.
func (s *Service) Add(ctx context.Context, kind domain.Kind, data any) (*domain.Snapshot, error) {
	if _, err := s.applyAdd(ctx, kind, data); err != nil {
		return nil, err
	}
	return s.FetchData(ctx), nil
}

// Update merges data into the stored record for id, attempts the remote
// update when the record has been confirmed remotely, and queues an UPDATE
// operation on transient failure.
func (s *Service) Update(ctx context.Context, kind domain.Kind, id string, data any) (*domain.Snapshot, error) {
	fields, err := encodeRecord(data)
	if err != nil {
		return nil, err
	}
	s.applyUpdate(ctx, kind, id, fields, false)
	return s.FetchData(ctx), nil
}

// Delete removes the record locally, attempts the remote delete when the
// record has been confirmed remotely, and queues a DELETE operation on
// transient failure.
func (s *Service) Delete(ctx context.Context, kind domain.Kind, id string) *domain.Snapshot {
	s.applyDelete(ctx, kind, id)
	return s.FetchData(ctx)
}

// applyAdd performs the add without rebuilding a snapshot and returns the
// locally assigned id.
func (s *Service) applyAdd(ctx context.Context, kind domain.Kind, data any) (string, error) {
	rec, err := encodeRecord(data)
	if err != nil {
		return "", err
	}
	// The queued payload must not carry the local id: the eventual remote id
	// is unknown until the ADD lands.
	payload := record{}
	for k, v := range rec {
		if k != "id" {
			payload[k] = v
		}
	}

	id := domain.NewID()
	rec["id"] = id

	s.mu.Lock()
	items := append(s.collection(kind), rec)
	s.saveCollection(kind, items)
	s.markUnsynced(kind, id)
	s.mu.Unlock()

	if !s.Online() {
		s.enqueue(Operation{Type: opType("ADD", kind), Payload: payload})
		return id, nil
	}

	// The remote gets its own copy: the queued payload must stay exactly what
	// the caller wrote, whatever the gateway does to its argument.
	if _, err := s.remote.Create(ctx, kind, clonePayload(payload)); err != nil {
		if gateway.IsPermanent(err) {
			s.log.Warn().Err(err).Str("kind", string(kind)).Msg("Remote create permanently failed, dropping")
		} else {
			s.log.Warn().Err(err).Str("kind", string(kind)).Msg("Remote create failed, queueing")
			s.enqueue(Operation{Type: opType("ADD", kind), Payload: payload})
		}
	}
	return id, nil
}

// applyUpdate merges fields into the stored record under the service lock,
// then attempts or queues the remote update. With replace=false only the
// given fields change; with replace=true the stored record is replaced
// wholesale (keeping its id). Returns the resulting record and whether the
// id was found locally.
func (s *Service) applyUpdate(ctx context.Context, kind domain.Kind, id string, fields record, replace bool) (record, bool) {
	s.mu.Lock()
	items := s.collection(kind)
	var merged record
	for i, item := range items {
		if recordID(item) != id {
			continue
		}
		if replace {
			merged = record{}
		} else {
			merged = item
		}
		for k, v := range fields {
			merged[k] = v
		}
		merged["id"] = id
		items[i] = merged
		break
	}
	if merged != nil {
		s.saveCollection(kind, items)
	}
	s.mu.Unlock()

	found := merged != nil
	if merged == nil {
		// Nothing stored locally under this id; still attempt the remote
		// update with the caller's fields so a remotely-known record heals.
		merged = record{}
		for k, v := range fields {
			merged[k] = v
		}
		merged["id"] = id
	}

	s.syncRecord(ctx, kind, id, merged)
	return merged, found
}

// syncRecord pushes a locally-updated record to the remote gateway, queueing
// an UPDATE operation on transient failure. Records never confirmed remotely
// are skipped: there is no remote object to update yet, and changing them is
// a purely local affair until the next full refresh.
func (s *Service) syncRecord(ctx context.Context, kind domain.Kind, id string, rec record) {
	if s.isUnsynced(kind, id) {
		return
	}

	if !s.Online() {
		s.enqueue(Operation{Type: opType("UPDATE", kind), TargetID: id, Payload: rec})
		return
	}

	if _, err := s.remote.Update(ctx, kind, id, rec); err != nil {
		if gateway.IsPermanent(err) {
			s.log.Warn().Err(err).Str("kind", string(kind)).Str("id", id).Msg("Remote update permanently failed, dropping")
		} else {
			s.log.Warn().Err(err).Str("kind", string(kind)).Str("id", id).Msg("Remote update failed, queueing")
			s.enqueue(Operation{Type: opType("UPDATE", kind), TargetID: id, Payload: rec})
		}
	}
}

// applyDelete removes the record locally and attempts or queues the remote
// delete. Records that were never confirmed remotely are only removed
// locally.
func (s *Service) applyDelete(ctx context.Context, kind domain.Kind, id string) {
	s.mu.Lock()
	items := s.collection(kind)
	kept := items[:0]
	for _, item := range items {
		if recordID(item) != id {
			kept = append(kept, item)
		}
	}
	s.saveCollection(kind, kept)
	wasLocal := s.forgetUnsynced(kind, id)
	s.mu.Unlock()

	if wasLocal {
		return
	}

	if !s.Online() {
		s.enqueue(Operation{Type: opType("DELETE", kind), TargetID: id})
		return
	}

	if err := s.remote.Delete(ctx, kind, id); err != nil {
		if gateway.IsPermanent(err) {
			s.log.Warn().Err(err).Str("kind", string(kind)).Str("id", id).Msg("Remote delete permanently failed, dropping")
		} else {
			s.log.Warn().Err(err).Str("kind", string(kind)).Str("id", id).Msg("Remote delete failed, queueing")
			s.enqueue(Operation{Type: opType("DELETE", kind), TargetID: id})
		}
	}
}

// opType builds the queue tag for an action on a kind, e.g. ADD_TRANSACTION.
func opType(action string, kind domain.Kind) string {
	return action + "_" + strings.ToUpper(string(kind))
}

// parseOpType splits a queue tag back into its action and kind.
func parseOpType(tag string) (action string, kind domain.Kind, ok bool) {
	idx := strings.Index(tag, "_")
	if idx <= 0 || idx == len(tag)-1 {
		return "", "", false
	}
	return tag[:idx], domain.Kind(strings.ToLower(tag[idx+1:])), true
}
