// models/trust_relationship.go
package models

import (
	"fmt"
	"time"
)

// TrustRequestType is the kind of permission a trust relationship grants.
type TrustRequestType string

const (
	TrustRequestSend   TrustRequestType = "send"
	TrustRequestManage TrustRequestType = "manage"
	TrustRequestDeduct TrustRequestType = "deduct"
)

// TrustRequestTypes lists every known request type.
var TrustRequestTypes = []TrustRequestType{
	TrustRequestSend,
	TrustRequestManage,
	TrustRequestDeduct,
}

func (t TrustRequestType) Valid() bool {
	switch t {
	case TrustRequestSend, TrustRequestManage, TrustRequestDeduct:
		return true
	}
	return false
}

// ParseTrustRequestType converts raw input into a known request type.
func ParseTrustRequestType(raw string) (TrustRequestType, bool) {
	t := TrustRequestType(raw)
	return t, t.Valid()
}

// TrustState is the lifecycle state of a trust relationship.
//
//	requested -> trusted
//	requested -> canceled_by_target
//	requested -> cancelled_by_originator
type TrustState string

const (
	TrustStateRequested             TrustState = "requested"
	TrustStateTrusted               TrustState = "trusted"
	TrustStateCanceledByTarget      TrustState = "canceled_by_target"
	TrustStateCancelledByOriginator TrustState = "cancelled_by_originator"
)

func (s TrustState) Valid() bool {
	switch s {
	case TrustStateRequested, TrustStateTrusted, TrustStateCanceledByTarget, TrustStateCancelledByOriginator:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave this state.
func (s TrustState) Terminal() bool {
	switch s {
	case TrustStateRequested:
		return false
	case TrustStateTrusted, TrustStateCanceledByTarget, TrustStateCancelledByOriginator:
		return true
	}
	return true
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s TrustState) CanTransitionTo(next TrustState) bool {
	switch s {
	case TrustStateRequested:
		switch next {
		case TrustStateTrusted, TrustStateCanceledByTarget, TrustStateCancelledByOriginator:
			return true
		case TrustStateRequested:
			return false
		}
	case TrustStateTrusted, TrustStateCanceledByTarget, TrustStateCancelledByOriginator:
		return false
	}
	return false
}

// Blocking reports whether a relationship in this state prevents a duplicate request
// for the same (originator, target, type).
func (s TrustState) Blocking() bool {
	switch s {
	case TrustStateRequested, TrustStateTrusted:
		return true
	case TrustStateCanceledByTarget, TrustStateCancelledByOriginator:
		return false
	}
	return false
}

// TrustRelationship is a directed, typed trust grant request between two wallets.
// Table name: trust_relationships
type TrustRelationship struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	RequestType        TrustRequestType `gorm:"type:varchar(32);not null;index" json:"request_type"`
	ActorEntityID      uint             `gorm:"not null;index" json:"actor_entity_id"`
	OriginatorEntityID uint             `gorm:"not null;index" json:"originator_entity_id"`
	TargetEntityID     uint             `gorm:"not null;index" json:"target_entity_id"`
	State              TrustState       `gorm:"type:varchar(32);not null;index" json:"state"`
	Version            int64            `gorm:"not null" json:"-"` // optimistic concurrency counter
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `gorm:"index" json:"updated_at"`
}

func (r *TrustRelationship) Validate() error {
	if !r.RequestType.Valid() {
		return invalidRecord("trust_relationship", fmt.Sprintf("unknown request_type %q", r.RequestType))
	}
	if !r.State.Valid() {
		return invalidRecord("trust_relationship", fmt.Sprintf("unknown state %q", r.State))
	}
	if r.ActorEntityID == 0 || r.OriginatorEntityID == 0 || r.TargetEntityID == 0 {
		return invalidRecord("trust_relationship", "actor, originator and target are required")
	}
	return nil
}

// Transition moves the relationship to next, refusing anything out of a terminal state.
func (r *TrustRelationship) Transition(next TrustState) error {
	if !r.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: trust relationship %d is %s, cannot become %s", ErrInvalidTransition, r.ID, r.State, next)
	}
	r.State = next
	return nil
}
