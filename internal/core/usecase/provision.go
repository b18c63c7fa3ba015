package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
	"github.com/mkarpushin/jarvis-rag/internal/core/ports"
)

// ProvisionUseCase makes sure the remote index exists with the expected
// dimensionality and cosine metric. A dimension mismatch deletes and recreates
// the index; that data loss is the accepted contract. Readiness is polled with
// backoff instead of a fixed sleep.
type ProvisionUseCase struct {
	admin     ports.IndexAdmin
	indexName string
	dimension int
	log       *slog.Logger

	readyTimeout time.Duration
	pollInitial  time.Duration
	pollMax      time.Duration
}

func NewProvisionUseCase(
	admin ports.IndexAdmin,
	indexName string,
	dimension int,
	readyTimeout time.Duration,
	log *slog.Logger,
) *ProvisionUseCase {
	if log == nil {
		log = slog.Default()
	}
	if readyTimeout <= 0 {
		readyTimeout = 120 * time.Second
	}
	return &ProvisionUseCase{
		admin:        admin,
		indexName:    indexName,
		dimension:    dimension,
		log:          log,
		readyTimeout: readyTimeout,
		pollInitial:  time.Second,
		pollMax:      10 * time.Second,
	}
}

// Ensure is check-then-act and not atomic against concurrent provisioning;
// provisioning runs at most once per deployment.
func (uc *ProvisionUseCase) Ensure(ctx context.Context) error {
	infos, err := uc.admin.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}

	exists := false
	for _, info := range infos {
		if info.Name != uc.indexName {
			continue
		}
		if info.Dimension == uc.dimension {
			exists = true
			break
		}

		uc.log.Warn("index_dimension_mismatch",
			"index", uc.indexName,
			"have", info.Dimension,
			"want", uc.dimension,
		)
		if err := uc.admin.DeleteIndex(ctx, uc.indexName); err != nil {
			return fmt.Errorf("delete mismatched index: %w", err)
		}
		if err := uc.waitGone(ctx); err != nil {
			return err
		}
		break
	}

	if !exists {
		uc.log.Info("create_index", "index", uc.indexName, "dimension", uc.dimension)
		if err := uc.admin.CreateIndex(ctx, uc.indexName, uc.dimension); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return uc.waitReady(ctx)
}

func (uc *ProvisionUseCase) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(uc.readyTimeout)
	wait := uc.pollInitial

	for {
		info, err := uc.admin.DescribeIndex(ctx, uc.indexName)
		if err == nil && info.Ready {
			return nil
		}
		if err != nil && !domain.IsKind(err, domain.ErrNotFound) && !domain.IsKind(err, domain.ErrTemporary) {
			return fmt.Errorf("describe index: %w", err)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("index %s not ready after %s", uc.indexName, uc.readyTimeout)
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
		wait *= 2
		if wait > uc.pollMax {
			wait = uc.pollMax
		}
	}
}

func (uc *ProvisionUseCase) waitGone(ctx context.Context) error {
	deadline := time.Now().Add(uc.readyTimeout)
	wait := uc.pollInitial

	for {
		_, err := uc.admin.DescribeIndex(ctx, uc.indexName)
		if err != nil {
			if domain.IsKind(err, domain.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("describe index: %w", err)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("index %s still present after delete, waited %s", uc.indexName, uc.readyTimeout)
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
		wait *= 2
		if wait > uc.pollMax {
			wait = uc.pollMax
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
