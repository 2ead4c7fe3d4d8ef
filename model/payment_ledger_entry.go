package model

import "time"

// PaymentLedgerEntry is an append-only record of a balance check, allowance
// setup or deal payment. Entries are never updated after creation; they form
// the audit trail of what was paid or committed, independent of FileRecord.
type PaymentLedgerEntry struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	TxRef     string        `gorm:"index;type:varchar(255)" json:"tx_ref"` // Transaction reference from the payment network
	Kind      string        `gorm:"type:varchar(30)" json:"kind"`          // balance_check/allowance/deal_payment
	Amount    float64       `json:"amount"`
	TokenKind string        `gorm:"type:varchar(20)" json:"token_kind"`
	Status    PaymentStatus `gorm:"type:varchar(20)" json:"status"`

	// Link to the migration this entry paid for
	FileId       string `gorm:"index;type:varchar(64)" json:"file_id"`
	OwnerAddress string `gorm:"index;type:varchar(255)" json:"owner_address"`
	PieceId      string `gorm:"type:varchar(255)" json:"piece_id"`
	DealId       string `gorm:"type:varchar(255)" json:"deal_id"`
	Memo         string `gorm:"type:text" json:"memo"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName sets custom table name
func (PaymentLedgerEntry) TableName() string {
	return "tb_payment_ledger_entry"
}
