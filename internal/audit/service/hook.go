package service

import (
	"context"

	"chronicle/internal/audit/diff"
	"chronicle/internal/audit/recorder"
	id "chronicle/pkg/domain"
)

// Mutation describes one completed business mutation for the post-commit
// hook. OldState is nil for creates, NewState is nil for deletes; both set
// means an update.
type Mutation struct {
	Actor      Actor
	EntityType string
	EntityID   string
	EntityName string
	OldState   diff.Snapshot
	NewState   diff.Snapshot
	BatchID    *id.BatchID
}

// MutationHook is the single extension point business operations invoke
// after a successful mutation. Each operation has exactly one call site:
// commit, then hook.
type MutationHook func(ctx context.Context, m Mutation) (recorder.Ack, error)

// Hook returns the post-commit hook bound to this service. The action is
// inferred from which states are present, so a handler never picks the
// wrong Log* method.
func (s *Service) Hook() MutationHook {
	return func(ctx context.Context, m Mutation) (recorder.Ack, error) {
		var opts []LogOption
		if m.BatchID != nil {
			opts = append(opts, InBatch(*m.BatchID))
		}
		if m.EntityName != "" {
			opts = append(opts, WithEntityName(m.EntityName))
		}

		switch {
		case m.OldState == nil && m.NewState != nil:
			return s.LogCreate(ctx, m.Actor, m.EntityType, m.EntityID, m.NewState, opts...)
		case m.OldState != nil && m.NewState == nil:
			return s.LogDelete(ctx, m.Actor, m.EntityType, m.EntityID, m.OldState, opts...)
		default:
			return s.LogUpdate(ctx, m.Actor, m.EntityType, m.EntityID, m.OldState, m.NewState, opts...)
		}
	}
}
