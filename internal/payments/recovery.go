package payments

import (
	"context"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// SweepStranded fails payments left pending by a previous process that died
// before its settlement queue drained. Run once at startup, before the pool
// begins accepting work, so the sweep cannot race live settlements.
func SweepStranded(ctx context.Context, repo Repository, logg *logger.Logger) error {
	count, err := repo.FailStalePending(ctx, time.Now().UTC(), TechnicalErrorMessage)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sweep stranded payments")
	}
	if count > 0 {
		ctx = logg.WithField(ctx, "count", count)
		logg.Warn(ctx, "failed payments stranded by previous shutdown")
	}
	return nil
}
