package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/order"
)

type ProductPayload struct {
	ID    string  `json:"id" validate:"required"`
	Name  string  `json:"name"`
	Price float64 `json:"price" validate:"gte=0"`
	Image string  `json:"image"`
}

type CartItemRequest struct {
	Product       ProductPayload `json:"product"`
	Quantity      int            `json:"quantity" validate:"gte=1"`
	SelectedSize  string         `json:"selectedSize,omitempty"`
	SelectedColor string         `json:"selectedColor,omitempty"`
}

type CreatePaymentIntentRequest struct {
	Items           []CartItemRequest      `json:"items" validate:"dive"`
	UserID          string                 `json:"userId"`
	ShippingAddress *order.ShippingAddress `json:"shippingAddress,omitempty"`
}

type CreatePaymentIntentResponse struct {
	ClientSecret    string  `json:"clientSecret"`
	PaymentIntentID string  `json:"paymentIntentId"`
	Amount          float64 `json:"amount"`
}

type OrderStatusResponse struct {
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
	Currency string `json:"currency"`
}

type PaymentHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewPaymentHandler(service order.Service) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *PaymentHandler) RegisterRoutes(router chi.Router) {
	router.Post("/api/create-payment-intent", h.handleCreatePaymentIntent)
	router.Get("/api/order-status", h.handleOrderStatus)
}

func (h *PaymentHandler) handleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreatePaymentIntentRequest

	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil {
		log.Error().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload %v", err))
		return
	}

	if len(requestPayload.Items) == 0 {
		respondWithError(w, http.StatusBadRequest, "No items in cart")
		return
	}
	if requestPayload.UserID == "" {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	lines := make([]cart.Line, 0, len(requestPayload.Items))
	for _, it := range requestPayload.Items {
		lines = append(lines, cart.Line{
			Product: catalog.Product{
				ID:    it.Product.ID,
				Name:  it.Product.Name,
				Price: it.Product.Price,
				Image: it.Product.Image,
			},
			Quantity:      it.Quantity,
			SelectedSize:  it.SelectedSize,
			SelectedColor: it.SelectedColor,
		})
	}

	result, err := h.service.CreatePaymentIntent(r.Context(), order.CreateIntentInput{
		Items:           lines,
		UserID:          requestPayload.UserID,
		ShippingAddress: requestPayload.ShippingAddress,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create payment intent via service")

		statusCode := mapErrorToStatusCode(err)
		clientMessage := "Failed to create payment intent"
		switch {
		case errors.Is(err, order.ErrNoItems):
			clientMessage = "No items in cart"
		case errors.Is(err, order.ErrUnauthenticated):
			clientMessage = "User not authenticated"
		}
		respondWithError(w, statusCode, clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, CreatePaymentIntentResponse{
		ClientSecret:    result.ClientSecret,
		PaymentIntentID: result.PaymentIntentID,
		Amount:          result.Amount.InexactFloat64(),
	})
}

func (h *PaymentHandler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	paymentIntentID := r.URL.Query().Get("payment_intent")
	if paymentIntentID == "" {
		respondWithError(w, http.StatusBadRequest, "Payment intent ID is required")
		return
	}

	status, err := h.service.GetPaymentStatus(r.Context(), paymentIntentID)
	if err != nil {
		log.Error().Err(err).Str("payment_intent_id", paymentIntentID).Msg("Failed to fetch order status via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to fetch order status")
		return
	}

	respondWithJSON(w, http.StatusOK, OrderStatusResponse{
		Amount:   status.Amount,
		Status:   status.Status,
		Currency: status.Currency,
	})
}
