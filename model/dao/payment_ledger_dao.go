package dao

import (
	"evidence-vault/database"
	"evidence-vault/model"
)

// PaymentLedgerDAO data access layer for the append-only payment ledger.
type PaymentLedgerDAO struct{}

// NewPaymentLedgerDAO creates a new DAO instance.
func NewPaymentLedgerDAO() *PaymentLedgerDAO {
	return &PaymentLedgerDAO{}
}

// Append records a new ledger entry. There is deliberately no Update.
func (dao *PaymentLedgerDAO) Append(entry *model.PaymentLedgerEntry) error {
	return database.DB.CreatePaymentEntry(entry)
}

// ListByFileID returns all entries linked to a file record, oldest first.
func (dao *PaymentLedgerDAO) ListByFileID(fileID string) ([]*model.PaymentLedgerEntry, error) {
	return database.DB.ListPaymentEntriesByFileID(fileID)
}
