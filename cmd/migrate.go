package cmd

import (
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/qrave1/RoomChat/internal/application/config"
	"github.com/qrave1/RoomChat/internal/infra/adapters/postgres/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <goose-command> [args...]",
	Short: "Manage the room_audit moderation log schema",
	Long: `Applies or rolls back the Postgres schema of the room moderation log.

The log is a single append-only table, room_audit: one row per moderation
action with room_id, action, actor_id, target_id, a free-form detail and
created_at, indexed by (room_id, created_at DESC). Recorded actions are
room_created, admin_transferred, join_approved, join_rejected, user_kicked
and room_torn_down.

The table is only written when POSTGRES_ENABLED=true; rooms work without it.
Connection settings come from POSTGRES_URL or POSTGRES_HOST/PORT/USER/
PASSWORD/NAME/SSL. Any goose command is accepted.`,
	Example: `  roomchat migrate up
  roomchat migrate status
  roomchat migrate down-to 0`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.New()
		if err != nil {
			log.Fatalf("could not load config: %v", err)
		}

		goose.SetBaseFS(migrations.MigrationsFS)

		db, err := goose.OpenDBWithDriver("pgx", cfg.Postgres.DSN())
		if err != nil {
			log.Fatalf("goose: failed to open DB: %v", err)
		}

		defer func() {
			if err := db.Close(); err != nil {
				log.Fatalf("goose: failed to close DB: %v", err)
			}
		}()

		err = goose.RunContext(
			cmd.Context(),
			args[0],
			db,
			".",
			args[1:]...,
		)
		if err != nil {
			log.Fatalf("goose: %s failed: %v", args[0], err)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
