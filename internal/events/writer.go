package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types appended by the engine. External delivery (webhooks) reads
// these back from the event log.
const (
	TypeSpaceInit           = "space.init"
	TypeRewardCreated       = "reward.created"
	TypeRewardPublished     = "reward.published"
	TypeRewardUpdated       = "reward.updated"
	TypeRewardUsersSet      = "reward.users.set"
	TypeRewardStatusRolled  = "reward.status.rolled_up"
	TypeRewardClosedOut     = "reward.closed_out"
	TypeRewardPaid          = "reward.paid"
	TypeRewardLockChanged   = "reward.submissions.lock_changed"
	TypeApplicationCreated  = "reward.application.created"
	TypeApplicationUpdated  = "reward.application.updated"
	TypeApplicationReviewed = "reward.application.reviewed"
	TypeSubmissionApproved  = "reward.submission.approved"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, spaceID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,space_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(spaceID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
