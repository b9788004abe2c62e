// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package stream

import (
	"go.uber.org/zap"

	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// ContextFactory builds a fresh Context of a known Type for a newly
// successful activation.
type ContextFactory func() (Context, error)

// TableStreamer fans out table mutation notifications to every live
// streaming context and arbitrates activation of new ones, per spec.md
// §4.2. It implements table.Streamer so it can be attached directly to a
// PersistentTable.
type TableStreamer struct {
	log      *zap.Logger
	contexts []Context
}

// NewTableStreamer returns an empty streamer; log may be nil.
func NewTableStreamer(log *zap.Logger) *TableStreamer {
	return &TableStreamer{log: log}
}

// FindContext returns the first live context of the given type, or nil.
func (s *TableStreamer) FindContext(t Type) Context {
	for _, c := range s.contexts {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// Contexts returns every live context.
func (s *TableStreamer) Contexts() []Context { return s.contexts }

// Active reports whether any context of type t is currently attached.
func (s *TableStreamer) Active(t Type) bool { return s.FindContext(t) != nil }

// checkCoexistence applies the stream-type coexistence table from spec.md
// §4.2, using completionAware where a context's build-completeness or
// emptiness matters.
func (s *TableStreamer) checkCoexistence(t Type) error {
	switch t {
	case Snapshot:
		if s.Active(ElasticIndexBuild) {
			if ctx := s.FindContext(ElasticIndexBuild); ctx != nil {
				if ca, ok := ctx.(completionAware); !ok || !ca.Complete() {
					return tesserr.ActivationRejected.New("SNAPSHOT refused: elastic index build still running")
				}
			}
		}
	case ElasticIndexBuild:
		if s.Active(Snapshot) {
			return tesserr.ActivationRejected.New("ELASTIC_INDEX refused: snapshot active")
		}
	case ElasticIndexRead:
		ctx := s.FindContext(ElasticIndexBuild)
		if ctx == nil {
			return tesserr.ActivationRejected.New("ELASTIC_INDEX_READ refused: no elastic index present")
		}
		if ca, ok := ctx.(completionAware); !ok || !ca.Complete() {
			return tesserr.ActivationRejected.New("ELASTIC_INDEX_READ refused: elastic index not complete")
		}
	case ElasticIndexClear:
		ctx := s.FindContext(ElasticIndexBuild)
		if ctx != nil {
			if ca, ok := ctx.(completionAware); ok && !ca.Empty() {
				return tesserr.ActivationRejected.New("ELASTIC_INDEX_CLEAR refused: index still contains keys")
			}
		}
	case Recovery:
		// may coexist with everything.
	}
	return nil
}

// Activate resolves an activation request for streamType against every
// existing same-type context before falling back to create, per spec.md
// §4.2's merge/create/fail rule.
func (s *TableStreamer) Activate(streamType Type, predicates *StreamPredicateList, create ContextFactory) (tesserr.ActivationCode, error) {
	if err := s.checkCoexistence(streamType); err != nil {
		return tesserr.Failed, err
	}

	for _, c := range s.contexts {
		if c.Type() != streamType {
			continue
		}
		switch c.TryReactivate(predicates) {
		case tesserr.Succeeded:
			return tesserr.Succeeded, nil
		case tesserr.Failed:
			return tesserr.Failed, tesserr.Internal.New("activation of %s rejected by existing context", streamType)
		}
		// Unsupported: keep trying other same-type contexts, if any.
	}

	ctx, err := create()
	if err != nil {
		return tesserr.Failed, err
	}
	s.contexts = append(s.contexts, ctx)
	if s.log != nil {
		s.log.Debug("activated streaming context", zap.Stringer("type", streamType))
	}
	return tesserr.Succeeded, nil
}

// Deactivate removes every context of the given type, e.g. once drained.
func (s *TableStreamer) Deactivate(t Type) {
	out := s.contexts[:0]
	for _, c := range s.contexts {
		if c.Type() != t {
			out = append(out, c)
		}
	}
	s.contexts = out
}

// StreamMore drives every context of the given type, removing any that
// report done, and returns the maximum remaining-work hint across them. A
// completed elastic index build context stays attached, since its index is
// what ELASTIC_INDEX_READ and ELASTIC_INDEX_CLEAR activations check; it
// leaves through Deactivate.
func (s *TableStreamer) StreamMore(t Type, outputs []OutputSink) (remaining int64, err error) {
	kept := s.contexts[:0]
	for _, c := range s.contexts {
		if c.Type() != t {
			kept = append(kept, c)
			continue
		}
		r, done, streamErr := c.StreamMore(outputs)
		if streamErr != nil {
			return 0, streamErr
		}
		if r > remaining {
			remaining = r
		}
		if !done || c.Type() == ElasticIndexBuild {
			kept = append(kept, c)
		}
	}
	s.contexts = kept
	return remaining, nil
}

// OnInsert implements table.Streamer: fans out to every live context.
func (s *TableStreamer) OnInsert(t value.TableTuple) {
	for _, c := range s.contexts {
		c.OnInsert(t)
	}
}

// OnUpdate implements table.Streamer.
func (s *TableStreamer) OnUpdate(t value.TableTuple) {
	for _, c := range s.contexts {
		c.OnUpdate(t)
	}
}

// OnDelete implements table.Streamer: a delete may free only once every
// live context permits it (spec.md §4.2).
func (s *TableStreamer) OnDelete(t value.TableTuple) bool {
	allow := true
	for _, c := range s.contexts {
		if !c.OnDelete(t) {
			allow = false
		}
	}
	return allow
}

// OnTupleMoved implements table.Streamer.
func (s *TableStreamer) OnTupleMoved(src, dst value.Address, t value.TableTuple) {
	for _, c := range s.contexts {
		c.OnTupleMoved(src, dst, t)
	}
}

// OnBlockCompactedAway implements table.Streamer.
func (s *TableStreamer) OnBlockCompactedAway(id value.BlockID) {
	for _, c := range s.contexts {
		c.OnBlockCompactedAway(id)
	}
}

// CloneForTruncatedTable builds a fresh TableStreamer for a table created
// to replace this one (TRUNCATE TABLE's create-then-drop pattern), per
// spec.md §4.2's cloneForTruncatedTable. Only RECOVERY contexts carry
// forward: a truncate invalidates any in-progress snapshot or elastic
// index, since both are scoped to the old table's block set.
func (s *TableStreamer) CloneForTruncatedTable() *TableStreamer {
	clone := NewTableStreamer(s.log)
	for _, c := range s.contexts {
		if c.Type() == Recovery {
			clone.contexts = append(clone.contexts, c)
		}
	}
	return clone
}
