package load

import (
	"context"

	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/ETL/schema"
	"github.com/LilVoxy/budget_graph/ETL/utils"
)

// ConstraintInstaller объявляет ограничения уникальности для всех меток реестра
type ConstraintInstaller struct {
	store    graph.Store
	reporter report.Reporter
	logger   *utils.ETLLogger
	retry    RetryPolicy
}

// NewConstraintInstaller создает новый экземпляр ConstraintInstaller
func NewConstraintInstaller(store graph.Store, reporter report.Reporter, logger *utils.ETLLogger, retry RetryPolicy) *ConstraintInstaller {
	return &ConstraintInstaller{
		store:    store,
		reporter: reporter,
		logger:   logger,
		retry:    retry,
	}
}

// EnsureConstraints устанавливает ограничения по одному на метку.
// Уже существующие ограничения не считаются ошибкой. Первая неудача прекращает установку
func (c *ConstraintInstaller) EnsureConstraints(ctx context.Context, phase string, registry *schema.Registry) error {
	for i, con := range registry.Constraints() {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := report.BatchRange{Start: i, End: i + 1}
		_, err := c.retry.run(ctx, func(ctx context.Context) error {
			return c.store.EnsureConstraint(ctx, con.Label, con.Fields)
		}, func(attempt int, err error) {
			c.reporter.BatchRetried(phase, batch, attempt, err)
		})
		if err != nil {
			c.reporter.BatchFailed(phase, batch, err)
			return &ConstraintError{Label: con.Label, Err: err}
		}

		c.logger.Debug("Ограничение %s(%v) установлено", con.Label, con.Fields)
		c.reporter.BatchCompleted(phase, batch, report.Counts{Submitted: 1, Written: 1})
	}
	return nil
}
