package datasync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MansurAzad/cashbook/internal/gateway"
)

// Operation is a queued, not-yet-confirmed remote mutation intent. Ops are
// persisted in the local store and replayed in order when connectivity
// allows.
type Operation struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"` // <ACTION>_<KIND>, e.g. ADD_TRANSACTION
	TargetID  string         `json:"target_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// PendingOperations returns the current queue contents, oldest first.
func (s *Service) PendingOperations() []Operation {
	ops := []Operation{}
	s.store.Get(keyPendingOps, &ops)
	return ops
}

// enqueue appends op to the persisted queue, stamping it.
func (s *Service) enqueue(op Operation) {
	op.ID = uuid.New().String()
	op.Timestamp = time.Now().UTC()

	s.mu.Lock()
	ops := s.PendingOperations()
	ops = append(ops, op)
	s.store.Set(keyPendingOps, ops)
	s.mu.Unlock()

	s.log.Info().Str("op_id", op.ID).Str("type", op.Type).Int("queued", len(ops)).Msg("Queued pending operation")
}

// Drain makes a single pass over the queue, replaying each operation against
// the remote gateway. Succeeded and permanently-failed operations are
// dropped; transient failures are retained for the next pass. It is invoked
// on offline→online transitions and before every snapshot fetch while
// online. drainMu keeps overlapping drains from replaying the same op twice;
// operations enqueued while a replay is in flight survive the queue rewrite.
func (s *Service) Drain(ctx context.Context) {
	if s.remote == nil {
		return
	}
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	ops := s.PendingOperations()
	if len(ops) == 0 {
		return
	}

	var retained []Operation
	var succeeded, dropped int
	for _, op := range ops {
		err := s.replay(ctx, op)
		switch {
		case err == nil:
			succeeded++
		case gateway.IsPermanent(err):
			s.log.Warn().Err(err).Str("op_id", op.ID).Str("type", op.Type).Msg("Pending operation can never succeed, dropping")
			dropped++
		default:
			retained = append(retained, op)
		}
	}

	// The replay ran without the service lock, so the live queue may have
	// grown since the initial read. Keep everything this pass did not see.
	taken := make(map[string]bool, len(ops))
	for _, op := range ops {
		taken[op.ID] = true
	}
	s.mu.Lock()
	for _, op := range s.PendingOperations() {
		if !taken[op.ID] {
			retained = append(retained, op)
		}
	}
	if retained == nil {
		retained = []Operation{}
	}
	s.store.Set(keyPendingOps, retained)
	s.mu.Unlock()

	s.log.Info().
		Int("succeeded", succeeded).
		Int("dropped", dropped).
		Int("retained", len(retained)).
		Msg("Drained pending operations")
}

// replay executes one queued operation against the remote gateway.
func (s *Service) replay(ctx context.Context, op Operation) error {
	action, kind, ok := parseOpType(op.Type)
	if !ok {
		// Malformed tag: replaying will never work, drop it.
		return gateway.Permanent(errUnknownOp(op.Type))
	}
	switch action {
	case "ADD":
		_, err := s.remote.Create(ctx, kind, clonePayload(op.Payload))
		return err
	case "UPDATE":
		_, err := s.remote.Update(ctx, kind, op.TargetID, clonePayload(op.Payload))
		return err
	case "DELETE":
		return s.remote.Delete(ctx, kind, op.TargetID)
	default:
		return gateway.Permanent(errUnknownOp(op.Type))
	}
}

type errUnknownOp string

func (e errUnknownOp) Error() string { return "unknown pending operation type: " + string(e) }
