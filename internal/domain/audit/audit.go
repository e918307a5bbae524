// Package audit records the append-only activity trail behind every
// administrative mutation. Entries are never updated or deleted.
package audit

import (
	"context"
	"time"
)

// Action tags the kind of mutation an entry records.
type Action string

const (
	ActionOrderCreate  Action = "order_create"
	ActionOrderUpdate  Action = "order_update"
	ActionOrderDelete  Action = "order_delete"
	ActionCouponCreate Action = "coupon_create"
	ActionCouponUpdate Action = "coupon_update"
)

// Entry is one immutable audit record.
type Entry struct {
	ID          int64
	ActorUserID string
	Action      Action
	TargetType  string
	TargetID    string
	Details     map[string]any
	CreatedAt   time.Time
}

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}
