package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tokenbay/p2p-ledger/internal/ledger"
	"github.com/tokenbay/p2p-ledger/internal/logger"
	chainsync "github.com/tokenbay/p2p-ledger/internal/sync"
)

// SyncStatus reports sync progress for the health and stats endpoints.
type SyncStatus interface {
	GetState() (*chainsync.SyncState, error)
}

// Handler handles HTTP requests for the API.
type Handler struct {
	queries *ledger.Queries
	status  SyncStatus
	log     *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(queries *ledger.Queries, status SyncStatus, log *logger.Logger) *Handler {
	return &Handler{
		queries: queries,
		status:  status,
		log:     log,
	}
}

// ListProducts returns all tokenized products.
// @Summary List products
// @Description Get all tokenized products ordered by creation block
// @Tags Products
// @Produce json
// @Param limit query int false "Maximum number of products to return" default(50)
// @Param offset query int false "Number of products to skip" default(0)
// @Success 200 {array} ProductResponse "List of products"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /products [get]
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.queries.ListProducts(limit, offset)
	if err != nil {
		h.log.Errorw("failed to list products", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list products")

		return
	}

	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}

	respondJSON(w, http.StatusOK, out)
}

// GetProduct returns one product by its contract address.
// @Summary Get a product
// @Description Get one tokenized product by its contract address
// @Tags Products
// @Produce json
// @Param address path string true "Product contract address"
// @Success 200 {object} ProductResponse "Product"
// @Failure 404 {object} ErrorResponse "Product not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /products/{address} [get]
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	product, err := h.queries.GetProduct(address)
	if err != nil {
		h.log.Errorw("failed to get product", "address", address, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get product")

		return
	}

	if product == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("product '%s' not found", address))
		return
	}

	respondJSON(w, http.StatusOK, toProductResponse(product))
}

// ListProductHolders returns the current holders of a product token.
// @Summary List product holders
// @Description Get the current positive token balances for a product
// @Tags Products
// @Produce json
// @Param address path string true "Product contract address"
// @Param limit query int false "Maximum number of holders to return" default(50)
// @Param offset query int false "Number of holders to skip" default(0)
// @Success 200 {array} BalanceResponse "Holder balances"
// @Failure 404 {object} ErrorResponse "Product not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /products/{address}/holders [get]
func (h *Handler) ListProductHolders(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	limit, offset, err := parsePagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.queries.GetProduct(address)
	if err != nil {
		h.log.Errorw("failed to get product", "address", address, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get product")

		return
	}

	if product == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("product '%s' not found", address))
		return
	}

	holders, err := h.queries.ListProductHolders(product.ID, limit, offset)
	if err != nil {
		h.log.Errorw("failed to list holders", "product", product.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list holders")

		return
	}

	out := make([]BalanceResponse, 0, len(holders))
	for _, o := range holders {
		out = append(out, toBalanceResponse(o))
	}

	respondJSON(w, http.StatusOK, out)
}

// ListManagers returns all fund managers.
// @Summary List managers
// @Description Get all fund managers ordered by creation block
// @Tags Managers
// @Produce json
// @Param limit query int false "Maximum number of managers to return" default(50)
// @Param offset query int false "Number of managers to skip" default(0)
// @Success 200 {array} ManagerResponse "List of managers"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /managers [get]
func (h *Handler) ListManagers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	managers, err := h.queries.ListManagers(limit, offset)
	if err != nil {
		h.log.Errorw("failed to list managers", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list managers")

		return
	}

	out := make([]ManagerResponse, 0, len(managers))
	for _, m := range managers {
		out = append(out, toManagerResponse(m))
	}

	respondJSON(w, http.StatusOK, out)
}

// GetManager returns one fund manager by its contract address.
// @Summary Get a manager
// @Description Get one fund manager by its contract address
// @Tags Managers
// @Produce json
// @Param address path string true "Manager contract address"
// @Success 200 {object} ManagerResponse "Manager"
// @Failure 404 {object} ErrorResponse "Manager not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /managers/{address} [get]
func (h *Handler) GetManager(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	manager, err := h.queries.GetManager(address)
	if err != nil {
		h.log.Errorw("failed to get manager", "address", address, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get manager")

		return
	}

	if manager == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("manager '%s' not found", address))
		return
	}

	respondJSON(w, http.StatusOK, toManagerResponse(manager))
}

// ListManagerAllocations returns a manager's project token allocations.
// @Summary List manager allocations
// @Description Get a manager's current project token allocations
// @Tags Managers
// @Produce json
// @Param address path string true "Manager contract address"
// @Success 200 {array} AllocationResponse "Allocations"
// @Failure 404 {object} ErrorResponse "Manager not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /managers/{address}/allocations [get]
func (h *Handler) ListManagerAllocations(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	manager, err := h.queries.GetManager(address)
	if err != nil {
		h.log.Errorw("failed to get manager", "address", address, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get manager")

		return
	}

	if manager == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("manager '%s' not found", address))
		return
	}

	allocations, err := h.queries.ListManagerAllocations(manager.ID)
	if err != nil {
		h.log.Errorw("failed to list allocations", "manager", manager.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list allocations")

		return
	}

	out := make([]AllocationResponse, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, toAllocationResponse(a))
	}

	respondJSON(w, http.StatusOK, out)
}

// ListManagerBalances returns the user fund balances held with a manager.
// @Summary List manager fund balances
// @Description Get the current positive user fund balances for a manager
// @Tags Managers
// @Produce json
// @Param address path string true "Manager contract address"
// @Param limit query int false "Maximum number of balances to return" default(50)
// @Param offset query int false "Number of balances to skip" default(0)
// @Success 200 {array} BalanceResponse "Fund balances"
// @Failure 404 {object} ErrorResponse "Manager not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /managers/{address}/balances [get]
func (h *Handler) ListManagerBalances(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	limit, offset, err := parsePagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	manager, err := h.queries.GetManager(address)
	if err != nil {
		h.log.Errorw("failed to get manager", "address", address, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get manager")

		return
	}

	if manager == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("manager '%s' not found", address))
		return
	}

	balances, err := h.queries.ListFundBalances(manager.ID, limit, offset)
	if err != nil {
		h.log.Errorw("failed to list fund balances", "manager", manager.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list fund balances")

		return
	}

	out := make([]BalanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, toBalanceResponse(b))
	}

	respondJSON(w, http.StatusOK, out)
}

// ListTransactions returns the audit trail, newest first.
// @Summary List transactions
// @Description Get the transaction history with optional filtering by user, contract and type
// @Tags Transactions
// @Produce json
// @Param user query string false "Filter by user address"
// @Param contract query string false "Filter by contract address"
// @Param type query string false "Filter by transaction type" Enums(BUY, SELL, SWAP, DEPOSIT_FUND, WITHDRAW_FUND)
// @Param limit query int false "Maximum number of transactions to return" default(50)
// @Param offset query int false "Number of transactions to skip" default(0)
// @Success 200 {object} TransactionListResponse "Transactions with pagination info"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /transactions [get]
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := ledger.TransactionFilter{
		User:     r.URL.Query().Get("user"),
		Contract: r.URL.Query().Get("contract"),
		Type:     r.URL.Query().Get("type"),
		Limit:    limit,
		Offset:   offset,
	}

	transactions, err := h.queries.ListTransactions(filter)
	if err != nil {
		h.log.Errorw("failed to list transactions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list transactions")

		return
	}

	total, err := h.queries.CountTransactions(filter)
	if err != nil {
		h.log.Errorw("failed to count transactions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to count transactions")

		return
	}

	out := make([]TransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		out = append(out, toTransactionResponse(tx))
	}

	respondJSON(w, http.StatusOK, TransactionListResponse{
		Transactions: out,
		Pagination: PaginationResult{
			Total:   total,
			Limit:   filter.Limit,
			Offset:  filter.Offset,
			HasMore: int64(filter.Offset+len(out)) < total,
		},
	})
}

// GetStats returns counts across the derived tables.
// @Summary Get ledger statistics
// @Description Get row counts across the derived tables and the sync progress
// @Tags Stats
// @Produce json
// @Success 200 {object} StatsResponse "Ledger statistics"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.queries.GetStats()
	if err != nil {
		h.log.Errorw("failed to get stats", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get stats")

		return
	}

	resp := StatsResponse{
		Products:     stats.Products,
		Managers:     stats.Managers,
		Holders:      stats.Holders,
		Transactions: stats.Transactions,
	}

	if state, err := h.status.GetState(); err == nil && state != nil {
		resp.LastIndexedBlock = state.LastIndexedBlock
	}

	respondJSON(w, http.StatusOK, resp)
}

// Health returns the health status of the service.
// @Summary Health check
// @Description Check the service health and sync progress
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service health"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}

	state, err := h.status.GetState()
	if err != nil {
		resp.Status = "degraded"
	} else if state != nil {
		resp.LastIndexedBlock = state.LastIndexedBlock
		resp.SyncMode = state.Mode
	}

	respondJSON(w, http.StatusOK, resp)
}

// parsePagination parses the shared limit/offset query parameters.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("invalid limit: must be a positive integer")
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset: must be non-negative")
		}
	}

	return limit, offset, nil
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	// Encode first so failures can still produce a clean error status
	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(encoded)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
