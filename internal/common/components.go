package common

const (
	ComponentSyncer      = "syncer"
	ComponentSyncManager = "sync-manager"
	ComponentLedger      = "ledger"
	ComponentIndexer     = "indexer"
	ComponentRPC         = "rpc"
	ComponentAPI         = "api"
	ComponentMetrics     = "metrics"
	ComponentMaintenance = "maintenance"
)

var AllComponents = map[string]struct{}{
	ComponentSyncer:      {},
	ComponentSyncManager: {},
	ComponentLedger:      {},
	ComponentIndexer:     {},
	ComponentRPC:         {},
	ComponentAPI:         {},
	ComponentMetrics:     {},
	ComponentMaintenance: {},
}
