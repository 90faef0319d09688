package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/RoomChat/internal/domain/models"
	"github.com/qrave1/RoomChat/internal/infra/adapters/postgres/migrations"
)

func TestMigrateHelpDescribesAuditSchema(t *testing.T) {
	schema, err := migrations.MigrationsFS.ReadFile("00001_room_audit.sql")
	require.NoError(t, err)
	assert.Contains(t, string(schema), "room_audit")

	assert.Contains(t, migrateCmd.Long, "room_audit")

	actions := []models.AuditAction{
		models.AuditRoomCreated,
		models.AuditAdminTransferred,
		models.AuditJoinApproved,
		models.AuditJoinRejected,
		models.AuditUserKicked,
		models.AuditRoomTornDown,
	}
	for _, a := range actions {
		assert.Contains(t, migrateCmd.Long, string(a))
	}
}
