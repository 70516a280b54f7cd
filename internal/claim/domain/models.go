package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ClaimedTransaction records that an on-chain transfer has settled an invoice.
// A transfer is claimed at most once, and an invoice is settled by at most one transfer.
type ClaimedTransaction struct {
	TxID           string          `gorm:"primaryKey;column:tx_id" json:"tx_id"`
	InvoiceID      snowflake.ID    `gorm:"not null;uniqueIndex:ux_claimed_transactions_invoice" json:"invoice_id"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"amount"`
	BlockTimestamp int64           `gorm:"not null" json:"block_timestamp"`
	Payload        datatypes.JSON  `json:"payload,omitempty"`
	ClaimedAt      time.Time       `gorm:"not null" json:"claimed_at"`
}

func (ClaimedTransaction) TableName() string { return "claimed_transactions" }
