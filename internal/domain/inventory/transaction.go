package inventory

import (
	"github.com/google/uuid"

	"github.com/opsflow/backend/internal/domain/shared"
)

// TransactionReason classifies a stock mutation.
type TransactionReason string

const (
	ReasonSale          TransactionReason = "sale"
	ReasonRestock       TransactionReason = "restock"
	ReasonAdjustment    TransactionReason = "adjustment"
	ReasonReturn        TransactionReason = "return"
	ReasonDamage        TransactionReason = "damage"
	ReasonCorrection    TransactionReason = "correction"
	ReasonProcessingIn  TransactionReason = "processingIn"
	ReasonProcessingOut TransactionReason = "processingOut"
)

// adjustmentReasons are the reasons accepted by the adjust operation.
var adjustmentReasons = map[TransactionReason]bool{
	ReasonAdjustment: true,
	ReasonReturn:     true,
	ReasonDamage:     true,
	ReasonCorrection: true,
}

// ParseAdjustmentReason validates a reason for the adjust operation
func ParseAdjustmentReason(s string) (TransactionReason, error) {
	r := TransactionReason(s)
	if !adjustmentReasons[r] {
		return "", shared.NewDomainError("INVALID_INPUT", "invalid adjustment reason: "+s)
	}
	return r, nil
}

// Transaction is an append-only audit row written in the same atomic unit
// as the stock mutation it records.
type Transaction struct {
	shared.BaseEntity
	InventoryID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	Change            int               `gorm:"not null"`
	Reason            TransactionReason `gorm:"size:32;not null;index"`
	RelatedSaleID     *uuid.UUID        `gorm:"type:uuid"`
	RelatedOrderID    *uuid.UUID        `gorm:"type:uuid"`
	RelatedBatchID    *uuid.UUID        `gorm:"type:uuid"`
	PerformedByUserID uuid.UUID         `gorm:"type:uuid;not null"`
	Notes             string            `gorm:"type:text"`
}

// TableName returns the database table name
func (Transaction) TableName() string {
	return "inventory_transactions"
}

// NewTransaction creates an audit row for a stock mutation
func NewTransaction(inventoryID uuid.UUID, change int, reason TransactionReason, performedBy uuid.UUID, notes string) *Transaction {
	return &Transaction{
		BaseEntity:        shared.NewBaseEntity(),
		InventoryID:       inventoryID,
		Change:            change,
		Reason:            reason,
		PerformedByUserID: performedBy,
		Notes:             notes,
	}
}
