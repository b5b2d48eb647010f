package domain

import "time"

// ChangeOperation describes a persisted board mutation.
type ChangeOperation string

// ChangeOperation values used by the activity ledger and change feed.
const (
	ChangeOperationCreate    ChangeOperation = "create"
	ChangeOperationUpdate    ChangeOperation = "update"
	ChangeOperationMove      ChangeOperation = "move"
	ChangeOperationReorder   ChangeOperation = "reorder"
	ChangeOperationDelete    ChangeOperation = "delete"
	ChangeOperationActivate  ChangeOperation = "activate"
	ChangeOperationStructure ChangeOperation = "structure"
)

// ActorType identifies who performed a mutation.
type ActorType string

// ActorType values.
const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAgent  ActorType = "agent"
	ActorTypeSystem ActorType = "system"
)

// ChangeEvent is one activity-ledger entry.
type ChangeEvent struct {
	ID         int64
	EntityType string
	EntityID   string
	Operation  ChangeOperation
	SectionID  string
	Stage      Stage
	ActorID    string
	ActorType  ActorType
	Metadata   map[string]string
	OccurredAt time.Time
}

// Entity types recorded in the ledger.
const (
	EntitySection        = "section"
	EntityCatalogItem    = "catalog_item"
	EntityScheduledTask  = "scheduled_task"
	EntityManualTask     = "manual_task"
	EntityCustomCategory = "custom_category"
	EntityCategory       = "catalog_category"
	EntityActivation     = "activation"
	EntitySegment        = "segment"
)
