package worker

import (
	"context"
	"errors"

	"prodsync/internal/domain"

	"github.com/rs/zerolog"
)

// Hooks is the real-time trigger: a master product write or delete is
// pushed to every target tenant immediately, outside any running batch
// job. Calls are synchronous and bounded only by the caller's context.
type Hooks struct {
	records    domain.RecordStore
	replicator domain.Replicator
	master     string
	targets    []string
	logger     *zerolog.Logger
}

func NewHooks(records domain.RecordStore, repl domain.Replicator, masterTenant string, targets []string, logger *zerolog.Logger) *Hooks {
	return &Hooks{
		records:    records,
		replicator: repl,
		master:     masterTenant,
		targets:    targets,
		logger:     logger,
	}
}

// OnProductSaved replicates one master product to every target tenant.
// A failing tenant does not stop the remaining ones; failures are joined
// into the returned error.
func (h *Hooks) OnProductSaved(ctx context.Context, productID int64) error {
	product, err := h.records.GetProduct(ctx, h.master, productID)
	if err != nil {
		return err
	}

	var errs []error
	for _, tenant := range h.targets {
		if _, err := h.replicator.Replicate(ctx, *product, tenant); err != nil {
			h.logger.Warn().Int64("product_id", productID).Str("tenant", tenant).Err(err).Msg("real-time replication failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OnProductDeleted removes every replica of the product from every
// target tenant.
func (h *Hooks) OnProductDeleted(ctx context.Context, productID int64) error {
	var errs []error
	for _, tenant := range h.targets {
		deleted, err := h.replicator.DeleteReplicas(ctx, productID, tenant)
		if err != nil {
			h.logger.Warn().Int64("product_id", productID).Str("tenant", tenant).Err(err).Msg("replica delete failed")
			errs = append(errs, err)
			continue
		}
		if deleted > 0 {
			h.logger.Info().Int64("product_id", productID).Str("tenant", tenant).Int("deleted", deleted).Msg("replicas removed")
		}
	}
	return errors.Join(errs...)
}
