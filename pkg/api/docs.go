// Package api provides the REST API for querying derived ledger state
// @title P2P Ledger API
// @version 1.0
// @description REST API for querying tokenized products, fund managers and transaction history derived from on-chain events
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @basePath /api/v1
// @schemes http https
package api
