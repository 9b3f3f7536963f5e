package syncengine

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/magadhlabs/lmsync/internal/blob"
	"github.com/magadhlabs/lmsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExportSnapshotsMirror(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, te.mirror.Save(model.CollectionStudents, json.RawMessage(`[{"id":"s1"}]`)))
	require.NoError(t, te.mirror.Save(model.CollectionSettings, json.RawMessage(`{"openTime":"08:00"}`)))

	archive := blob.NewMemory()
	exporter := NewExporter(te.engine, archive, zap.NewNop())
	exporter.now = func() time.Time {
		return time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	}

	backup, err := exporter.Export(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.BackupVersion, backup.Version)
	assert.Equal(t, "2026-03-15T10:30:00Z", backup.ExportDate.Format(time.RFC3339))
	require.Len(t, backup.Collections, 2)
	assert.JSONEq(t, `[{"id":"s1"}]`, string(backup.Collections[model.CollectionStudents]))
	assert.JSONEq(t, `{"openTime":"08:00"}`, string(backup.Collections[model.CollectionSettings]))

	assert.Equal(t, "library_backup_2026-03-15.json", exporter.Filename(backup))

	// A copy landed in the archive under the dated key.
	_, rc, err := archive.Get(ctx, "backups/2026/03/15/library_backup_2026-03-15.json")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	var archived model.Backup
	require.NoError(t, json.Unmarshal(data, &archived))
	assert.Equal(t, model.BackupVersion, archived.Version)
}

func TestExportWithoutArchive(t *testing.T) {
	te := newTestEngine(t)
	require.NoError(t, te.mirror.Save(model.CollectionOwner, json.RawMessage(`{"name":"Admin"}`)))

	exporter := NewExporter(te.engine, nil, zap.NewNop())
	backup, err := exporter.Export(context.Background())
	require.NoError(t, err)
	assert.Len(t, backup.Collections, 1)
}

func TestExportEmptyMirror(t *testing.T) {
	te := newTestEngine(t)

	exporter := NewExporter(te.engine, nil, zap.NewNop())
	backup, err := exporter.Export(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backup.Collections)
	assert.Equal(t, model.BackupVersion, backup.Version)
}
