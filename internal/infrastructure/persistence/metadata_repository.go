package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	syncapp "github.com/tradeshelf/backend/internal/application/sync"
	"github.com/tradeshelf/backend/internal/domain/catalog"
)

// AppMetadataRepository reads the full catalog for snapshot export.
type AppMetadataRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAppMetadataRepository creates an AppMetadataRepository.
func NewAppMetadataRepository(db *gorm.DB, logger *zap.Logger) *AppMetadataRepository {
	return &AppMetadataRepository{db: db, logger: logger}
}

// CanonicalApps returns every apps row in identifier order. Rows come
// back as generic maps so the export carries whatever columns the schema
// holds.
func (r *AppMetadataRepository) CanonicalApps(ctx context.Context) ([]map[string]any, error) {
	var rows []map[string]any
	err := r.db.WithContext(ctx).
		Table(catalog.AppTable).
		Order(catalog.FieldID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read apps for export: %w", err)
	}

	r.logger.Debug("catalog read for export", zap.Int("rows", len(rows)))
	return rows, nil
}

// Ensure AppMetadataRepository implements the exporter's reader port.
var _ syncapp.MetadataReader = (*AppMetadataRepository)(nil)
