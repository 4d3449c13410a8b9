/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY OVER THE WIRE:
  Amounts travel as JSON numbers (two-decimal values). They are
  converted to decimal.Decimal at the handler boundary; nothing past
  dto.go touches float64.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain model these project
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/receivables-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ReceiptDTO represents a receipt in API responses.
type ReceiptDTO struct {
	ID                   string  `json:"id"`
	CustomerName         string  `json:"customer_name"`
	Total                float64 `json:"total"`
	AmountPaid           float64 `json:"amount_paid"`
	OldBalance           float64 `json:"old_balance"`
	ManualOldBalance     *bool   `json:"manual_old_balance,omitempty"`
	OldBalanceProvenance string  `json:"old_balance_provenance"`
	Balance              float64 `json:"balance"`
	Paid                 bool    `json:"paid"`
	CreatedAt            string  `json:"created_at,omitempty"`
	Date                 string  `json:"date,omitempty"`
}

// CreateReceiptRequest is the request to record a new receipt.
type CreateReceiptRequest struct {
	ID               string   `json:"id,omitempty"`
	CustomerName     string   `json:"customer_name"`
	Total            float64  `json:"total"`
	AmountPaid       float64  `json:"amount_paid"`
	OldBalance       float64  `json:"old_balance"`
	ManualOldBalance *bool    `json:"manual_old_balance,omitempty"`
	CreatedAt        string   `json:"created_at,omitempty"`
	Date             string   `json:"date,omitempty"`
}

// CustomerDTO is one row of the customer listing.
type CustomerDTO struct {
	Name         string  `json:"name"`
	TotalBalance float64 `json:"total_balance"`
	UnpaidCount  int     `json:"unpaid_count"`
}

// BalanceDTO represents a customer's cached balance snapshot.
type BalanceDTO struct {
	CustomerName string  `json:"customer_name"`
	TotalBalance float64 `json:"total_balance"`
	UnpaidCount  int     `json:"unpaid_count"`
	LastUpdated  string  `json:"last_updated,omitempty"`
	Cached       bool    `json:"cached"`
	InProgress   bool    `json:"in_progress"`
}

// PaymentRequest is the request to apply a payment to a receipt.
type PaymentRequest struct {
	ReceiptID string  `json:"receipt_id"`
	Amount    float64 `json:"amount"`
}

// AdjustmentDTO is one receipt touched by a payment cascade.
type AdjustmentDTO struct {
	ReceiptID      string  `json:"receipt_id"`
	BalanceBefore  float64 `json:"balance_before"`
	PaymentApplied float64 `json:"payment_applied"`
	BalanceAfter   float64 `json:"balance_after"`
	FullyPaid      bool    `json:"fully_paid"`
}

// PaymentResultDTO is the outcome of a payment cascade.
type PaymentResultDTO struct {
	ReceiptID            string          `json:"receipt_id"`
	Amount               float64         `json:"amount"`
	TotalApplied         float64         `json:"total_applied"`
	OverpaymentRemainder float64         `json:"overpayment_remainder"`
	HistoricalDebtCleared float64        `json:"historical_debt_cleared"`
	Adjustments          []AdjustmentDTO `json:"adjustments"`
	CustomerBalance      float64         `json:"customer_balance"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toReceiptDTO(r ledger.Receipt) ReceiptDTO {
	dto := ReceiptDTO{
		ID:                   string(r.ID),
		CustomerName:         r.CustomerName,
		Total:                r.Total.InexactFloat64(),
		AmountPaid:           r.AmountPaid.InexactFloat64(),
		OldBalance:           r.OldBalance.InexactFloat64(),
		ManualOldBalance:     r.ManualOldBalance,
		OldBalanceProvenance: r.OldBalanceProvenance().String(),
		Balance:              ledger.Balance(r).InexactFloat64(),
		Paid:                 ledger.IsPaid(r),
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	if !r.Date.IsZero() {
		dto.Date = r.Date.Format(time.RFC3339)
	}
	return dto
}

func toAdjustmentDTOs(adjustments []ledger.CascadeAdjustment) []AdjustmentDTO {
	dtos := make([]AdjustmentDTO, len(adjustments))
	for i, adj := range adjustments {
		dtos[i] = AdjustmentDTO{
			ReceiptID:      string(adj.ReceiptID),
			BalanceBefore:  adj.BalanceBefore.InexactFloat64(),
			PaymentApplied: adj.PaymentApplied.InexactFloat64(),
			BalanceAfter:   adj.BalanceAfter.InexactFloat64(),
			FullyPaid:      adj.FullyPaidAfter,
		}
	}
	return dtos
}

func (req CreateReceiptRequest) toReceipt(id ledger.ReceiptID) (ledger.Receipt, error) {
	r := ledger.Receipt{
		ID:               id,
		CustomerName:     req.CustomerName,
		Total:            decimal.NewFromFloat(req.Total),
		AmountPaid:       decimal.NewFromFloat(req.AmountPaid),
		OldBalance:       decimal.NewFromFloat(req.OldBalance),
		ManualOldBalance: req.ManualOldBalance,
	}

	if req.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			return r, err
		}
		r.CreatedAt = t
	}
	if req.Date != "" {
		t, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			return r, err
		}
		r.Date = t
	}
	return r, nil
}
