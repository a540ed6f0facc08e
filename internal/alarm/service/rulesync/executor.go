package rulesync

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/opseye/opseye/internal/alarm/service/ratelimit"
	"github.com/opseye/opseye/internal/alarm/service/vendorapi"
)

// SyncSummary aggregates the per-operation outcomes of one sync run. Failed
// counts operations that errored at the transport level and operations the
// vendor reported as failed; the two are indistinguishable in the summary.
type SyncSummary struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// SyncOptions carries the notification wiring applied to every rule written
// during a run.
type SyncOptions struct {
	ContactGroupIDs []string
	AlertMethods    []string
	Webhook         string
	Level           string
}

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// operation is one vendor call scheduled for a sync run. count is how many
// rules the call covers: 1 for create/update, len(ids) for the batched
// delete.
type operation struct {
	kind  string
	count int
	run   func(context.Context) (*vendorapi.OpResult, error)
}

type opOutcome struct {
	kind   string
	count  int
	status string
	err    error
}

// executeAll runs every operation concurrently, one goroutine per operation,
// each gated by the credential's rate-limit group. A failing operation is
// recorded and never aborts its siblings.
func executeAll(ctx context.Context, datasource string, limits *ratelimit.Registry, cred vendorapi.Credential, ops []operation) SyncSummary {
	outcomes := make([]opOutcome, len(ops))
	var wg sync.WaitGroup
	for i := range ops {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = executeOne(ctx, limits, cred, ops[i])
		}(i)
	}
	wg.Wait()

	var s SyncSummary
	s.Total = len(ops)
	for _, o := range outcomes {
		recordOperation(datasource, o.kind, o.status)
		if o.status != vendorapi.StatusOK {
			s.Failed++
			log.Warn().Str("datasource", datasource).Str("kind", o.kind).Err(o.err).Str("status", o.status).Msg("rule operation failed")
			continue
		}
		switch o.kind {
		case opCreate:
			s.Created += o.count
		case opUpdate:
			s.Updated += o.count
		case opDelete:
			s.Deleted += o.count
		}
	}
	return s
}

func executeOne(ctx context.Context, limits *ratelimit.Registry, cred vendorapi.Credential, op operation) opOutcome {
	out := opOutcome{kind: op.kind, count: op.count}
	err := limits.Do(ctx, cred, func(ctx context.Context) error {
		res, err := op.run(ctx)
		if err != nil {
			return err
		}
		if res != nil && res.Status == vendorapi.StatusFailed {
			out.status = vendorapi.StatusFailed
			return nil
		}
		out.status = vendorapi.StatusOK
		return nil
	})
	if err != nil {
		out.status = "error"
		out.err = err
	}
	return out
}
