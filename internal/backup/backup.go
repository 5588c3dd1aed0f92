package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/garageroute/services/workshop/config"
	"example.com/garageroute/services/workshop/internal/models"
)

// Snapshot is a full JSON dump of the workshop data.
type Snapshot struct {
	CreatedAt    time.Time                `json:"created_at"`
	Customers    []models.Customer        `json:"customers"`
	Vehicles     []models.Vehicle         `json:"vehicles"`
	Orders       []models.ServiceOrder    `json:"orders"`
	Items        []models.ServiceItem     `json:"items"`
	Payments     []models.Payment         `json:"payments"`
	History      []models.StatusHistory   `json:"history"`
	Categories   []models.PartCategory    `json:"categories"`
	Suppliers    []models.Supplier        `json:"suppliers"`
	Parts        []models.Part            `json:"parts"`
	Movements    []models.StockMovement   `json:"movements"`
	Requisitions []models.PartRequisition `json:"requisitions"`
	Appointments []models.Appointment     `json:"appointments"`
}

// Service writes and restores database snapshots.
type Service struct {
	db  *gorm.DB
	cfg config.BackupConfig
}

// NewService creates a backup service
func NewService(db *gorm.DB, cfg config.BackupConfig) *Service {
	return &Service{db: db, cfg: cfg}
}

// Run dumps all tables to a timestamped JSON file in the backup directory
// and prunes snapshots older than the retention window. It returns the path
// of the file written.
func (s *Service) Run(ctx context.Context) (string, error) {
	snap := Snapshot{CreatedAt: time.Now().UTC()}

	steps := []struct {
		name string
		dest interface{}
	}{
		{"customers", &snap.Customers},
		{"vehicles", &snap.Vehicles},
		{"orders", &snap.Orders},
		{"items", &snap.Items},
		{"payments", &snap.Payments},
		{"history", &snap.History},
		{"categories", &snap.Categories},
		{"suppliers", &snap.Suppliers},
		{"parts", &snap.Parts},
		{"movements", &snap.Movements},
		{"requisitions", &snap.Requisitions},
		{"appointments", &snap.Appointments},
	}
	for _, step := range steps {
		if err := s.db.WithContext(ctx).Find(step.dest).Error; err != nil {
			return "", errors.Wrapf(err, "failed to dump %s", step.name)
		}
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create backup directory")
	}

	name := "workshop-" + snap.CreatedAt.Format("20060102-150405") + ".json"
	path := filepath.Join(s.cfg.Dir, name)

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal snapshot")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write snapshot")
	}

	if err := s.prune(); err != nil {
		log.Warn().Err(err).Msg("failed to prune old backups")
	}

	log.Info().Str("path", path).Msg("backup written")
	return path, nil
}

// Restore loads a snapshot file and upserts every row it contains.
func (s *Service) Restore(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read snapshot")
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.Wrap(err, "failed to parse snapshot")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Parents before children so foreign keys resolve
		if err := upsert(tx, snap.Customers); err != nil {
			return err
		}
		if err := upsert(tx, snap.Vehicles); err != nil {
			return err
		}
		if err := upsert(tx, snap.Categories); err != nil {
			return err
		}
		if err := upsert(tx, snap.Suppliers); err != nil {
			return err
		}
		if err := upsert(tx, snap.Parts); err != nil {
			return err
		}
		if err := upsert(tx, snap.Orders); err != nil {
			return err
		}
		if err := upsert(tx, snap.Items); err != nil {
			return err
		}
		if err := upsert(tx, snap.Payments); err != nil {
			return err
		}
		if err := upsert(tx, snap.History); err != nil {
			return err
		}
		if err := upsert(tx, snap.Movements); err != nil {
			return err
		}
		if err := upsert(tx, snap.Requisitions); err != nil {
			return err
		}
		return upsert(tx, snap.Appointments)
	})
}

func upsert[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).
		Session(&gorm.Session{FullSaveAssociations: false}).
		Omit(clause.Associations).
		CreateInBatches(&rows, 200).Error
}

// prune removes snapshot files older than the retention window
func (s *Service) prune() error {
	if s.cfg.RetentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "workshop-") || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.cfg.Dir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to remove old backup")
			} else {
				log.Info().Str("path", path).Msg("old backup removed")
			}
		}
	}
	return nil
}
