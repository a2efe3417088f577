package repository

import "time"

// ReceiptSummary is one row of the receipts listing.
type ReceiptSummary struct {
	ID            string
	StoreName     string
	PurchaseDate  string
	PurchaseTime  string
	Total         string
	PaymentMethod string
	Items         int
	SourceFile    string
	ProcessedAt   time.Time
}
