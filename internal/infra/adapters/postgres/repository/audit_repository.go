package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qrave1/RoomChat/internal/domain/models"
)

type AuditRepository interface {
	Record(ctx context.Context, event models.AuditEvent) error
	ListByRoom(ctx context.Context, roomID string, limit int) ([]models.AuditEvent, error)
}

type auditRepo struct {
	db *sqlx.DB
}

func NewAuditRepo(db *sqlx.DB) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Record(ctx context.Context, event models.AuditEvent) error {
	_, err := r.db.ExecContext(
		ctx,
		"INSERT INTO room_audit (room_id, action, actor_id, target_id, detail, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		event.RoomID,
		event.Action,
		event.ActorID,
		event.TargetID,
		event.Detail,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	return nil
}

// ListByRoom returns the newest events of the room first.
func (r *auditRepo) ListByRoom(ctx context.Context, roomID string, limit int) ([]models.AuditEvent, error) {
	var list []models.AuditEvent

	query := `
		SELECT id, room_id, action, actor_id, target_id, detail, created_at
		FROM room_audit
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &list, query, roomID, limit); err != nil {
		return nil, fmt.Errorf("select audit events: %w", err)
	}

	return list, nil
}
