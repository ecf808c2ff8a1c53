package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/slackmgr/projectindex/store"
	"github.com/slackmgr/types"
	"golang.org/x/sync/errgroup"
)

// Entity is a logical entity that can be stored under an index policy.
type Entity interface {
	// Kind names the entity in logs and metrics ("project", "resource", ...).
	Kind() string

	// EncodeRecord returns the record body stored under p.
	EncodeRecord(p Policy) (json.RawMessage, error)
}

// Writer writes and deletes one logical entity across all of its index
// policies. Policies are grouped by partition and each group is submitted as
// one batch. Groups are submitted concurrently and are not atomic with one
// another.
type Writer struct {
	store  store.Store
	logger types.Logger
	opts   *Options
}

type partitionGroup struct {
	partition string
	policies  []Policy
	ops       []store.Op
}

// NewWriter creates a Writer on top of s.
func NewWriter(s store.Store, logger types.Logger, opts ...Option) (*Writer, error) {
	if s == nil {
		return nil, errors.New("store cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid index writer options: %w", err)
	}

	return &Writer{
		store:  s,
		logger: logger.WithField("component", "index_writer"),
		opts:   options,
	}, nil
}

// WriteAll stores e under every policy. Encoding errors are returned before
// anything is written. When some partitions were written and others failed
// the error is a *[PartialWriteError].
func (w *Writer) WriteAll(ctx context.Context, e Entity, policies []Policy, opts ...WriteOption) error {
	if len(policies) == 0 {
		return nil
	}

	wo := &writeOptions{}

	for _, o := range opts {
		o(wo)
	}

	groups := groupByPartition(policies)

	for _, g := range groups {
		for _, p := range g.policies {
			body, err := e.EncodeRecord(p)
			if err != nil {
				return fmt.Errorf("failed to encode %s for index %s: %w", e.Kind(), p.Name, err)
			}

			op := store.PutOp(store.Record{
				PartitionKey: p.PartitionKey,
				SortKey:      p.SortKey,
				Body:         body,
			})
			op.MustNotExist = wo.mustNotExist

			g.ops = append(g.ops, op)
		}
	}

	return w.submit(ctx, e.Kind(), "write", groups)
}

// DeleteAll removes the records under every policy. Deleting a record that
// does not exist is not an error.
func (w *Writer) DeleteAll(ctx context.Context, kind string, policies []Policy) error {
	if len(policies) == 0 {
		return nil
	}

	groups := groupByPartition(policies)

	for _, g := range groups {
		for _, p := range g.policies {
			g.ops = append(g.ops, store.DeleteOp(p.PartitionKey, p.SortKey))
		}
	}

	return w.submit(ctx, kind, "delete", groups)
}

func (w *Writer) submit(ctx context.Context, kind, op string, groups []*partitionGroup) error {
	errs := make([]error, len(groups))

	var g errgroup.Group
	g.SetLimit(w.opts.concurrency)

	for i, group := range groups {
		g.Go(func() error {
			errs[i] = w.submitGroup(ctx, kind, group)
			return nil
		})
	}

	_ = g.Wait()

	var written, failed []Policy
	var failures []error

	for i, group := range groups {
		if errs[i] != nil {
			failed = append(failed, group.policies...)
			failures = append(failures, errs[i])
			FanOutWrites.WithLabelValues(kind, op, "error").Inc()

			continue
		}

		written = append(written, group.policies...)
		FanOutWrites.WithLabelValues(kind, op, "ok").Inc()
	}

	if len(failures) == 0 {
		return nil
	}

	err := errors.Join(failures...)

	if len(written) == 0 {
		return fmt.Errorf("failed to %s %s index records: %w", op, kind, err)
	}

	partial := &PartialWriteError{
		Entity:  kind,
		Op:      op,
		Written: written,
		Failed:  failed,
		Err:     err,
	}

	PartialFailures.WithLabelValues(kind).Inc()

	w.logger.WithFields(map[string]any{
		"entity":  kind,
		"op":      op,
		"written": policyStrings(written),
		"failed":  policyStrings(failed),
	}).Error(partial.Error())

	return partial
}

func (w *Writer) submitGroup(ctx context.Context, kind string, group *partitionGroup) error {
	backoff := w.opts.initialBackoff

	for attempt := 0; ; attempt++ {
		err := w.store.BatchSubmit(ctx, group.ops)
		if err == nil {
			return nil
		}

		if !store.IsRetryable(err) || attempt == w.opts.maxRetries {
			return fmt.Errorf("failed to submit batch to partition %s: %w", group.partition, err)
		}

		Retries.WithLabelValues(kind).Inc()

		w.logger.WithFields(map[string]any{
			"partition": group.partition,
			"attempt":   attempt + 1,
		}).Debugf("Retrying batch after transient error: %v", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to submit batch to partition %s: %w", group.partition, errors.Join(store.ErrUnavailable, ctx.Err()))
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, w.opts.maxBackoff)
	}
}

func groupByPartition(policies []Policy) []*partitionGroup {
	var groups []*partitionGroup
	byPartition := make(map[string]*partitionGroup)

	for _, p := range policies {
		g, ok := byPartition[p.PartitionKey]
		if !ok {
			g = &partitionGroup{partition: p.PartitionKey}
			byPartition[p.PartitionKey] = g
			groups = append(groups, g)
		}

		g.policies = append(g.policies, p)
	}

	return groups
}

func policyStrings(policies []Policy) []string {
	out := make([]string, 0, len(policies))
	for _, p := range policies {
		out = append(out, p.String())
	}

	return out
}
