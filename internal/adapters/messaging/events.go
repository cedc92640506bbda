package messaging

type KafkaEvent = string

const (
	CatalogCreatedEvent   = "catalog_created"
	CatalogActivatedEvent = "catalog_activated"
	SyncCompletedEvent    = "sync_completed"
)

// Топики
const (
	SyncTasksTopic     = "catalog.sync-tasks"
	CatalogEventsTopic = "catalog.events"
)
