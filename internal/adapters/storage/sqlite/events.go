package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/stageboard/internal/app"
	"github.com/evanschultz/stageboard/internal/domain"
)

// defaultEventLimit caps change-event listings when no limit is given.
const defaultEventLimit = 50

// ListChangeEvents lists the newest change events first.
func (r *Repository) ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, operation, section_id, stage, actor_id, actor_type, metadata_json, created_at
		FROM change_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			stageRaw    string
			actorType   string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.EntityType, &event.EntityID, &opRaw, &event.SectionID, &stageRaw, &event.ActorID, &actorType, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = normalizeChangeOperation(opRaw)
		event.ActorType = normalizeActorType(domain.ActorType(actorType))
		if stageRaw != "" {
			event.Stage = domain.Stage(stageRaw)
		}
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// newEvent builds a ledger entry attributed to the actor on ctx. Entries are stamped at
// write time so ledger order matches commit order.
func newEvent(ctx context.Context, entityType, entityID string, op domain.ChangeOperation, sectionID string, stage domain.Stage, metadata map[string]string) domain.ChangeEvent {
	actor := app.ActorFromContext(ctx)
	if metadata == nil {
		metadata = map[string]string{}
	}
	return domain.ChangeEvent{
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  op,
		SectionID:  sectionID,
		Stage:      stage,
		ActorID:    actor.ID,
		ActorType:  actor.Type,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}
}

// insertChangeEvent inserts a change-event ledger record.
func insertChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO change_events(entity_type, entity_id, operation, section_id, stage, actor_id, actor_type, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.EntityType,
		event.EntityID,
		string(event.Operation),
		event.SectionID,
		string(event.Stage),
		chooseActorID(event.ActorID, "stageboard-user"),
		string(normalizeActorType(event.ActorType)),
		string(metadataJSON),
		ts(normalizeEventTS(event.OccurredAt)),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// chooseActorID returns the first non-empty actor id or the default local actor.
func chooseActorID(candidates ...string) string {
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" {
			return candidate
		}
	}
	return "stageboard-user"
}

// normalizeActorType applies a default when actor type is unset or unsupported.
func normalizeActorType(actorType domain.ActorType) domain.ActorType {
	switch strings.TrimSpace(strings.ToLower(string(actorType))) {
	case string(domain.ActorTypeAgent):
		return domain.ActorTypeAgent
	case string(domain.ActorTypeSystem):
		return domain.ActorTypeSystem
	default:
		return domain.ActorTypeUser
	}
}

// normalizeChangeOperation canonicalizes persisted operation values.
func normalizeChangeOperation(raw string) domain.ChangeOperation {
	op := domain.ChangeOperation(strings.TrimSpace(strings.ToLower(raw)))
	switch op {
	case domain.ChangeOperationCreate,
		domain.ChangeOperationUpdate,
		domain.ChangeOperationMove,
		domain.ChangeOperationReorder,
		domain.ChangeOperationDelete,
		domain.ChangeOperationActivate,
		domain.ChangeOperationStructure:
		return op
	default:
		return domain.ChangeOperationUpdate
	}
}

// normalizeEventTS ensures event timestamps are always populated and UTC-normalized.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}
