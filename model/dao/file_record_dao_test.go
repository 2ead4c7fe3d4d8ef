package dao

import (
	"errors"
	"testing"

	"evidence-vault/conf"
	"evidence-vault/database"
	"evidence-vault/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDAOEnv(t *testing.T) *FileRecordDAO {
	conf.Cfg = &conf.Config{}
	require.NoError(t, database.InitDatabase(database.DBTypePebble,
		&database.PebbleConfig{DataDir: t.TempDir()}))
	t.Cleanup(func() { database.DB.Close() })
	return NewFileRecordDAO()
}

func TestGetByFileIDStaysFreshAcrossUpdates(t *testing.T) {
	// Reads go through the cache layer; updates and deletes must never
	// leave a stale copy behind.
	fileDAO := newDAOEnv(t)

	record := &model.FileRecord{
		FileId:        "f1",
		OwnerAddress:  "owner-1",
		FileHash:      "digest-1",
		PinStatus:     model.PinStatusPinned,
		DurableStatus: model.DurableStatusQueued,
	}
	require.NoError(t, fileDAO.Create(record))

	loaded, err := fileDAO.GetByFileID("f1")
	require.NoError(t, err)
	assert.Equal(t, model.DurableStatusQueued, loaded.DurableStatus)

	loaded.DurableStatus = model.DurableStatusUploading
	require.NoError(t, fileDAO.Update(loaded))

	reloaded, err := fileDAO.GetByFileID("f1")
	require.NoError(t, err)
	assert.Equal(t, model.DurableStatusUploading, reloaded.DurableStatus)

	require.NoError(t, fileDAO.Delete("f1"))
	_, err = fileDAO.GetByFileID("f1")
	assert.True(t, errors.Is(err, database.ErrNotFound))
}
