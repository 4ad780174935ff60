package transport

import (
	"errors"
	"io"
	"net/http"

	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/middleware"
	"estoque-vendas/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateComandaRequest represents the payload to open a comanda; the body is optional
type CreateComandaRequest struct {
	ClientName string `json:"clientName" validate:"max=255"`
}

// AddItemRequest represents the payload to add a product to a comanda
type AddItemRequest struct {
	ProductID  uuid.UUID `json:"productId" validate:"required"`
	Quantidade int       `json:"quantidade" validate:"required,lte=2147483647"`
}

// UpdateItemRequest represents the payload to change an item quantity
type UpdateItemRequest struct {
	ItemID     uuid.UUID `json:"itemId" validate:"required"`
	Quantidade int       `json:"quantidade" validate:"required,lte=2147483647"`
}

// RemoveItemRequest represents the payload to remove an item
type RemoveItemRequest struct {
	ItemID uuid.UUID `json:"itemId" validate:"required"`
}

// FinalizeRequest represents the optional finalize payload
type FinalizeRequest struct {
	MetodoPagamento string `json:"metodoPagamento" validate:"max=50"`
}

// FinalizeResponse confirms a finalized comanda and carries the sale it produced
type FinalizeResponse struct {
	Message string          `json:"message"`
	Comanda *domain.Comanda `json:"comanda"`
	Sale    *domain.Sale    `json:"sale"`
}

// ComandaHandler handles HTTP requests for comandas
type ComandaHandler struct {
	comandaService service.ComandaService
	logger         *zap.Logger
}

// NewComandaHandler creates a new ComandaHandler
func NewComandaHandler(comandaService service.ComandaService, logger *zap.Logger) *ComandaHandler {
	return &ComandaHandler{
		comandaService: comandaService,
		logger:         logger,
	}
}

// RegisterRoutes registers all comanda routes
func (h *ComandaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/comandas", h.ListOpen)
	r.Post("/api/comandas", h.Create)
	r.Get("/api/comandas/{id}", h.Get)
	r.Post("/api/comandas/{id}/items", h.AddItem)
	r.Put("/api/comandas/{id}/items", h.UpdateItem)
	r.Delete("/api/comandas/{id}/items", h.RemoveItem)
	r.Post("/api/comandas/{id}/finalize", h.Finalize)
}

// decodeOptional decodes a body that may be absent
func decodeOptional(r *http.Request, v interface{}) error {
	err := middleware.DecodeAndValidate(r, v)
	if errors.Is(err, io.EOF) {
		return middleware.ValidateRequest(v)
	}
	return err
}

// ListOpen lists open comandas, oldest first
func (h *ComandaHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	comandas, err := h.comandaService.ListOpen(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Erro ao listar comandas")
		return
	}
	if comandas == nil {
		comandas = []*domain.Comanda{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, comandas)
}

// Create opens a comanda
func (h *ComandaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateComandaRequest
	if err := decodeOptional(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	comanda, err := h.comandaService.Create(r.Context(), req.ClientName)
	if err != nil {
		respondError(w, h.logger, err, "Erro ao criar comanda")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, comanda)
}

// Get returns one comanda with its items, whatever its status
func (h *ComandaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	comanda, err := h.comandaService.Get(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "Erro ao buscar comanda")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, comanda)
}

// AddItem adds a product to an open comanda
func (h *ComandaHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req AddItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	item, err := h.comandaService.AddItem(r.Context(), id, req.ProductID, req.Quantidade)
	if err != nil {
		respondError(w, h.logger, err, "Erro ao adicionar item")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, item)
}

// UpdateItem changes the quantity of an item of an open comanda
func (h *ComandaHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	item, err := h.comandaService.UpdateItem(r.Context(), id, req.ItemID, req.Quantidade)
	if err != nil {
		respondError(w, h.logger, err, "Erro ao atualizar item")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, item)
}

// RemoveItem removes an item from an open comanda
func (h *ComandaHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req RemoveItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	if err := h.comandaService.RemoveItem(r.Context(), id, req.ItemID); err != nil {
		respondError(w, h.logger, err, "Erro ao remover item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Finalize converts the comanda into a sale
func (h *ComandaHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req FinalizeRequest
	if err := decodeOptional(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	result, err := h.comandaService.Finalize(r.Context(), id, req.MetodoPagamento)
	if err != nil {
		respondError(w, h.logger, err, "Erro ao finalizar comanda")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, FinalizeResponse{
		Message: "Comanda finalizada",
		Comanda: result.Comanda,
		Sale:    result.Sale,
	})
}
