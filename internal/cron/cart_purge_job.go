package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
)

const (
	cartPurgeJobName             = "cart-item-purge"
	defaultCartItemRetentionDays = 90
)

type cartItemPurger interface {
	PurgeTombstonedItemsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type CartPurgeJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    cartItemPurger
	Metrics       *metrics.MaintenanceMetrics
	RetentionDays int
}

// NewCartPurgeJob hard-deletes cart lines that were removed more than the
// retention window ago. Live lines are kept regardless of age.
func NewCartPurgeJob(params CartPurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultCartItemRetentionDays
	}
	return &cartPurgeJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		metrics:   params.Metrics,
		retention: time.Duration(days) * 24 * time.Hour,
		now:       time.Now,
	}, nil
}

type cartPurgeJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      cartItemPurger
	metrics   *metrics.MaintenanceMetrics
	retention time.Duration
	now       func() time.Time
}

func (j *cartPurgeJob) Name() string { return cartPurgeJobName }

func (j *cartPurgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var purged int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.PurgeTombstonedItemsBefore(ctx, tx, cutoff)
		purged = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("cart item purge: %w", err)
	}
	j.metrics.AddRowsDeleted(cartPurgeJobName, purged)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": purged,
	}), "maintenance.cart_items_purged")
	return nil
}
