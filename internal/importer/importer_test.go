package importer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henboffman/lifecycle-tool-sub002/internal/database"
	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
	"github.com/henboffman/lifecycle-tool-sub002/pkg/logger"
)

func newTestImporter(t *testing.T) *Importer {
	t.Helper()

	db, err := database.NewMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewImporter(db, logger.NewMockLogger())
}

func TestBeginCompleteRoundTrip(t *testing.T) {
	imp := newTestImporter(t)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	content := []byte("ticket,close_code\nINC1,USER_ERROR\n")

	jobID, fingerprint, err := imp.Begin(ctx, "incidents", content)
	require.NoError(t, err)
	assert.Positive(t, jobID)
	assert.Len(t, fingerprint, 64)

	rec, err := imp.Complete(ctx, jobID, "incidents", fingerprint, "ops.admin",
		models.ImportCounters{New: 1}, now)
	require.NoError(t, err)
	assert.Positive(t, rec.ID)

	history, err := imp.History(ctx, "incidents", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Counters.New)
	assert.Equal(t, "ops.admin", history[0].ImportedBy)
}

func TestBeginRejectsDuplicateContent(t *testing.T) {
	imp := newTestImporter(t)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	content := []byte("same bytes")

	jobID, fingerprint, err := imp.Begin(ctx, "incidents", content)
	require.NoError(t, err)
	_, err = imp.Complete(ctx, jobID, "incidents", fingerprint, "", models.ImportCounters{New: 3}, now)
	require.NoError(t, err)

	_, _, err = imp.Begin(ctx, "incidents", content)
	require.ErrorIs(t, err, ErrDuplicateImport)

	// Same bytes for a different source are a fresh import.
	jobID, _, err = imp.Begin(ctx, "roles", content)
	require.NoError(t, err)
	assert.Positive(t, jobID)

	// Changed bytes for the original source are a fresh import too.
	_, _, err = imp.Begin(ctx, "incidents", []byte("different bytes"))
	require.NoError(t, err)
}

func TestBeginRejectsConcurrentImport(t *testing.T) {
	imp := newTestImporter(t)
	ctx := context.Background()

	_, _, err := imp.Begin(ctx, "incidents", []byte("batch one"))
	require.NoError(t, err)

	_, _, err = imp.Begin(ctx, "incidents", []byte("batch two"))
	require.ErrorIs(t, err, ErrImportInProgress)
}

func TestFailFreesTheGateWithoutRecording(t *testing.T) {
	imp := newTestImporter(t)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	content := []byte("will fail first")

	jobID, fingerprint, err := imp.Begin(ctx, "incidents", content)
	require.NoError(t, err)
	require.NoError(t, imp.Fail(ctx, jobID, "incidents", assert.AnError))

	// No record was written, so the identical content can be retried.
	jobID, fingerprint, err = imp.Begin(ctx, "incidents", content)
	require.NoError(t, err)

	_, err = imp.Complete(ctx, jobID, "incidents", fingerprint, "", models.ImportCounters{New: 5}, now)
	require.NoError(t, err)
}

func TestCheckDuplicateIsReadOnly(t *testing.T) {
	imp := newTestImporter(t)
	ctx := context.Background()
	content := []byte("peek")

	check, err := imp.CheckDuplicate(ctx, "incidents", content)
	require.NoError(t, err)
	assert.False(t, check.Duplicate)
	assert.Nil(t, check.Prior)

	// Checking does not acquire the gate.
	_, _, err = imp.Begin(ctx, "incidents", content)
	require.NoError(t, err)
}

func TestBeginRequiresSource(t *testing.T) {
	imp := newTestImporter(t)

	_, _, err := imp.Begin(context.Background(), "  ", []byte("x"))
	assert.Error(t, err)
}
