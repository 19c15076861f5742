package scoring

import (
	"context"
	"log/slog"

	scoringservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/application"
	scoringoracle "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/infrastructure/oracle"
	scoringdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/infrastructure/repositories"
	"github.com/Black-And-White-Club/reverse-chorus/config"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
)

// Module represents the scoring module. It has no routes of its own; the
// round module calls into it.
type Module struct {
	Service *scoringservice.ScoringService
}

// NewModule creates the scoring module. Without an oracle URL every guess is
// graded with the fallback.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	db *bun.DB,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) *Module {
	logger.InfoContext(ctx, "Initializing scoring module")

	var oracle scoringservice.Oracle
	if cfg.Oracle.URL != "" {
		oracle = scoringoracle.NewClient(cfg.Oracle, logger)
	} else {
		logger.WarnContext(ctx, "No score oracle configured, using fallback scoring")
	}

	service := scoringservice.NewScoringService(scoringdb.NewRepository(db), oracle, logger, m, tracer)

	logger.InfoContext(ctx, "Scoring module initialized successfully")
	return &Module{Service: service}
}
