package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftline/shop-api/internal/domain/audit"
)

const insertActivitySQL = `INSERT INTO activity_log
	(actor_user_id, action, target_type, target_id, details)
	VALUES ($1, $2, $3, $4, $5)`

var _ audit.Recorder = (*ActivityLog)(nil)

// ActivityLog implements audit.Recorder backed by PostgreSQL. Rows are only
// ever inserted; there is no update or delete path.
type ActivityLog struct {
	pool *pgxpool.Pool
}

// NewActivityLog returns an ActivityLog that uses the given pool.
func NewActivityLog(pool *pgxpool.Pool) *ActivityLog {
	return &ActivityLog{pool: pool}
}

// Record appends one audit entry.
func (l *ActivityLog) Record(ctx context.Context, e audit.Entry) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshaling audit details: %w", err)
	}

	_, err = l.pool.Exec(ctx, insertActivitySQL,
		e.ActorUserID, string(e.Action), e.TargetType, e.TargetID, payload)
	if err != nil {
		return fmt.Errorf("recording %s on %s %s: %w", e.Action, e.TargetType, e.TargetID, err)
	}
	return nil
}
