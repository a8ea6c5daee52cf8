// Package backup exports the serialized state document into a local sqlite
// archive on a schedule, keeping a bounded number of snapshots.
package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type StateSnapshot struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	Document  []byte
}

type Archiver struct {
	log   *zap.Logger
	cfg   *config.Config
	db    *gorm.DB
	store *store.Store
}

func NewArchiver(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, st *store.Store, crontab *cron.Cron) (*Archiver, error) {
	a := &Archiver{log: log, cfg: cfg, store: st}
	if !cfg.Backup.Enabled {
		log.Sugar().Info("Backups are disabled, not starting schedule")
		return a, nil
	}

	db, err := gorm.Open(sqlite.Open(cfg.Backup.Path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open backup database: %w", err)
	}
	if err := db.AutoMigrate(&StateSnapshot{}); err != nil {
		return nil, fmt.Errorf("migrate backup database: %w", err)
	}
	a.db = db

	if _, err := crontab.AddFunc(fmt.Sprintf("@every %s", cfg.Backup.Interval), a.Run); err != nil {
		return nil, fmt.Errorf("schedule backup: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go a.Run()
			return nil
		},
	})

	log.Sugar().Infof("Backup schedule started (every %s)", cfg.Backup.Interval)
	return a, nil
}

func (a *Archiver) Run() {
	if a.db == nil {
		return
	}

	document, err := a.store.Snapshot()
	if err != nil {
		a.log.Sugar().Errorw("Backup failed", "err", err)
		return
	}
	if err := a.archive(document); err != nil {
		a.log.Sugar().Errorw("Backup failed", "err", err)
		return
	}
	a.log.Sugar().Info("State backup archived")
}

func (a *Archiver) archive(document []byte) error {
	if tx := a.db.Create(&StateSnapshot{Document: document}); tx.Error != nil {
		return tx.Error
	}
	return a.prune()
}

// prune deletes the oldest snapshots beyond the retention count.
func (a *Archiver) prune() error {
	var count int64
	if tx := a.db.Model(&StateSnapshot{}).Count(&count); tx.Error != nil {
		return tx.Error
	}

	excess := count - int64(a.cfg.Backup.Keep)
	if excess <= 0 {
		return nil
	}

	oldest := a.db.Model(&StateSnapshot{}).Select("id").Order("id asc").Limit(int(excess))
	tx := a.db.Where("id IN (?)", oldest).Delete(&StateSnapshot{})
	if tx.Error == nil && tx.RowsAffected > 0 {
		a.log.Sugar().Infof("Pruned %d old backups", tx.RowsAffected)
	}
	return tx.Error
}
