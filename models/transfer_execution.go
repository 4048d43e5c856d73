package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferExecution is the journal entry left by the token-movement collaborator.
// Writing the same IdempotencyKey twice is a no-op.
// Table name: transfer_executions
type TransferExecution struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	IdempotencyKey      string          `gorm:"type:varchar(128);not null;uniqueIndex" json:"idempotency_key"`
	TransferID          *uint           `gorm:"index" json:"transfer_id,omitempty"`
	SourceEntityID      uint            `gorm:"not null;index" json:"source_entity_id"`
	DestinationEntityID uint            `gorm:"not null;index" json:"destination_entity_id"`
	Amount              decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"amount"`
	ExecutedAt          time.Time       `gorm:"not null" json:"executed_at"`
}

func (e *TransferExecution) Validate() error {
	if e.IdempotencyKey == "" {
		return invalidRecord("transfer_execution", "idempotency key is required")
	}
	if e.SourceEntityID == 0 || e.DestinationEntityID == 0 {
		return invalidRecord("transfer_execution", "source and destination are required")
	}
	if !e.Amount.IsPositive() {
		return invalidRecord("transfer_execution", "amount must be positive")
	}
	return nil
}
