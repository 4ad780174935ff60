package transport

import (
	"net/http"
	"time"

	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/middleware"
	"estoque-vendas/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// SaleLineRequest is one cart line of a checkout
type SaleLineRequest struct {
	ID    uuid.UUID       `json:"id"`
	Qty   int             `json:"qty" validate:"lte=2147483647"`
	Price decimal.Decimal `json:"price"`
}

// CreateSaleRequest represents the checkout payload sent by the PDV or the offline agent
type CreateSaleRequest struct {
	Items           []SaleLineRequest `json:"items" validate:"dive"`
	MetodoPagamento string            `json:"metodoPagamento" validate:"max=50"`
	OfflineID       string            `json:"offlineId,omitempty" validate:"max=100"`
}

// SaleHandler handles HTTP requests for sales
type SaleHandler struct {
	saleService service.SaleService
	logger      *zap.Logger
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(saleService service.SaleService, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{
		saleService: saleService,
		logger:      logger,
	}
}

// RegisterRoutes registers all sale routes
func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/sales", h.ListSales)
	r.Post("/api/sales", h.CreateSale)
}

// CreateSale records a sale. A replayed offline sale answers 200 with the stored sale.
func (h *SaleHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	lines := make([]domain.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.CartLine{
			ProductID: item.ID,
			Quantity:  item.Qty,
			UnitPrice: item.Price,
		})
	}

	result, err := h.saleService.RecordSale(r.Context(), service.RecordSaleInput{
		Lines:         lines,
		PaymentMethod: req.MetodoPagamento,
		OfflineID:     req.OfflineID,
	})
	if err != nil {
		respondError(w, h.logger, err, "Erro ao salvar venda")
		return
	}

	if result.Replayed {
		middleware.RespondWithJSON(w, http.StatusOK, result.Sale)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, result.Sale)
}

// ListSales lists sales newest first, filtered by date range and payment method
func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.SaleFilter{PaymentMethod: query.Get("paymentMethod")}

	if raw := query.Get("startDate"); raw != "" {
		start, _, err := parseSaleDate(raw)
		if err != nil {
			respondError(w, h.logger, domain.NewValidationError("Data inicial inválida"), "")
			return
		}
		filter.Start = &start
	}
	if raw := query.Get("endDate"); raw != "" {
		end, dateOnly, err := parseSaleDate(raw)
		if err != nil {
			respondError(w, h.logger, domain.NewValidationError("Data final inválida"), "")
			return
		}
		if dateOnly {
			end = endOfDay(end)
		}
		filter.End = &end
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		respondError(w, h.logger, domain.NewValidationError("Data final anterior à data inicial"), "")
		return
	}

	list, err := h.saleService.ListSales(r.Context(), filter)
	if err != nil {
		respondError(w, h.logger, err, "Erro ao buscar vendas")
		return
	}
	if list.Sales == nil {
		list.Sales = []*domain.Sale{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, list)
}

// parseSaleDate accepts YYYY-MM-DD (UTC) or RFC3339 and reports which one it got
func parseSaleDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}

// endOfDay is the last instant PostgreSQL can store on the same day
func endOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Microsecond)
}
