// models/transfer.go
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransferState is the lifecycle state of a transfer.
//
//	pending   -> completed | cancelled   (destination accepts or declines)
//	requested -> completed | cancelled   (source fulfills, or originator cancels)
type TransferState string

const (
	TransferStatePending   TransferState = "pending"
	TransferStateRequested TransferState = "requested"
	TransferStateCompleted TransferState = "completed"
	TransferStateCancelled TransferState = "cancelled"
)

var TransferStates = []TransferState{
	TransferStatePending,
	TransferStateRequested,
	TransferStateCompleted,
	TransferStateCancelled,
}

func (s TransferState) Valid() bool {
	switch s {
	case TransferStatePending, TransferStateRequested, TransferStateCompleted, TransferStateCancelled:
		return true
	}
	return false
}

// ParseTransferState converts raw input into a known transfer state.
func ParseTransferState(raw string) (TransferState, bool) {
	s := TransferState(raw)
	return s, s.Valid()
}

// Open reports whether the transfer still awaits a decision.
func (s TransferState) Open() bool {
	switch s {
	case TransferStatePending, TransferStateRequested:
		return true
	case TransferStateCompleted, TransferStateCancelled:
		return false
	}
	return false
}

func (s TransferState) CanTransitionTo(next TransferState) bool {
	switch s {
	case TransferStatePending, TransferStateRequested:
		switch next {
		case TransferStateCompleted, TransferStateCancelled:
			return true
		case TransferStatePending, TransferStateRequested:
			return false
		}
	case TransferStateCompleted, TransferStateCancelled:
		return false
	}
	return false
}

// Transfer is a recorded token movement between two wallets that could not
// complete immediately.
// Table name: transfers
type Transfer struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	OriginatorEntityID  uint            `gorm:"not null;index" json:"originator_entity_id"`
	SourceEntityID      uint            `gorm:"not null;index" json:"source_entity_id"`
	DestinationEntityID uint            `gorm:"not null;index" json:"destination_entity_id"`
	Amount              decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"amount"`
	State               TransferState   `gorm:"type:varchar(32);not null;index" json:"state"`
	Version             int64           `gorm:"not null" json:"-"`
	ClosedAt            *time.Time      `json:"closed_at,omitempty"`
	CreatedAt           time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"index" json:"updated_at"`
}

func (t *Transfer) Validate() error {
	if !t.State.Valid() {
		return invalidRecord("transfer", fmt.Sprintf("unknown state %q", t.State))
	}
	if t.OriginatorEntityID == 0 || t.SourceEntityID == 0 || t.DestinationEntityID == 0 {
		return invalidRecord("transfer", "originator, source and destination are required")
	}
	if t.SourceEntityID == t.DestinationEntityID {
		return invalidRecord("transfer", "source and destination must differ")
	}
	if !t.Amount.IsPositive() {
		return invalidRecord("transfer", "amount must be positive")
	}
	return nil
}

// Transition moves the transfer to next and stamps ClosedAt when it leaves the open states.
func (t *Transfer) Transition(next TransferState, at time.Time) error {
	if !t.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: transfer %d is %s, cannot become %s", ErrInvalidTransition, t.ID, t.State, next)
	}
	t.State = next
	if !next.Open() {
		closed := at
		t.ClosedAt = &closed
	}
	return nil
}

// Involves reports whether the wallet is a party to the transfer.
func (t *Transfer) Involves(walletID uint) bool {
	return t.OriginatorEntityID == walletID || t.SourceEntityID == walletID || t.DestinationEntityID == walletID
}
