package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	// Segunda execução não tem nada a fazer.
	require.NoError(t, Migrate(db))

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN
		('clients', 'instances', 'subscriptions', 'payments', 'reminders', 'outbox', 'sweep_state')`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	require.NoError(t, Rollback(db))
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'clients'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLiveSubscriptionIndex(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	_, err = db.Exec(`INSERT INTO clients (name, phone, plan, status, created_at) VALUES ('A', '+5511999998888', 'basico', 'trial', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	insert := `INSERT INTO subscriptions (client_id, plan, status, start_date, end_date, created_at, updated_at)
		VALUES (1, 'basico', ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	_, err = db.Exec(insert, "pending")
	require.NoError(t, err)
	_, err = db.Exec(insert, "active")
	assert.Error(t, err, "segunda assinatura viva deve violar o índice único")
	_, err = db.Exec(insert, "cancelled")
	assert.NoError(t, err)
}
