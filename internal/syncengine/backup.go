package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magadhlabs/lmsync/internal/blob"
	"github.com/magadhlabs/lmsync/internal/model"
	"go.uber.org/zap"
)

// Exporter builds downloadable backup documents from the local mirror and
// archives a copy in the configured blob store.
type Exporter struct {
	engine  *Engine
	archive blob.Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewExporter creates a backup exporter. archive may be nil to skip
// archiving.
func NewExporter(engine *Engine, archive blob.Store, logger *zap.Logger) *Exporter {
	return &Exporter{
		engine:  engine,
		archive: archive,
		logger:  logger,
		now:     time.Now,
	}
}

// Export snapshots all locally mirrored collections into one document. The
// importer side accepts this exact shape back.
func (x *Exporter) Export(ctx context.Context) (*model.Backup, error) {
	keys, err := x.engine.mirror.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate mirror: %w", err)
	}

	collections := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		value, err := x.engine.mirror.Load(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read mirrored %s: %w", key, err)
		}
		collections[key] = value
	}

	backup := &model.Backup{
		Collections: collections,
		ExportDate:  x.now().UTC(),
		Version:     model.BackupVersion,
	}

	if x.archive != nil {
		if err := x.archiveBackup(ctx, backup); err != nil {
			// The download still succeeds; archiving is best effort.
			x.logger.Warn("Backup archiving failed", zap.Error(err))
		}
	}

	return backup, nil
}

// Filename returns the download name for a backup document.
func (x *Exporter) Filename(b *model.Backup) string {
	return fmt.Sprintf("library_backup_%s.json", b.ExportDate.Format("2006-01-02"))
}

func (x *Exporter) archiveBackup(ctx context.Context, b *model.Backup) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}

	key := fmt.Sprintf("backups/%s/%s", b.ExportDate.Format("2006/01/02"), x.Filename(b))
	_, err = x.archive.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/json",
	})
	return err
}
