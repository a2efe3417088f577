package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/codemarcinu/OCR/internal/database"
	"github.com/codemarcinu/OCR/internal/receipt"
)

var (
	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("receipt not found")
	// ErrDuplicate is returned by Save when a receipt with the same source
	// hash is already stored.
	ErrDuplicate = errors.New("receipt already imported")
)

// ReceiptRepo persists finalized receipts.
type ReceiptRepo struct {
	db *sql.DB
}

func NewReceiptRepo(db *sql.DB) *ReceiptRepo { return &ReceiptRepo{db: db} }

// Save writes d and all its child rows in one transaction and returns the
// new receipt id.
func (r *ReceiptRepo) Save(ctx context.Context, d *receipt.Draft) (string, error) {
	if d == nil {
		return "", errors.New("save receipt: nil draft")
	}
	id := uuid.NewString()
	processedAt := d.Metadata.ProcessedAt.UTC()
	if processedAt.IsZero() {
		processedAt = database.Now()
	}

	var (
		storeName, storeAddr, storeTax, storeHQ    any
		payTotal, payMethod, payChange             any
		cardNumber, cardType, cardPoints, cardDisc any
		receiptNo, registerNo, uniqueNo, fiscalNo  any
		cashierNo, cashierName                     any
	)
	if s := d.Store; s != nil {
		storeName, storeAddr, storeTax, storeHQ = s.Name, s.StreetAddress, s.TaxID, nullString(s.HeadOfficeAddress)
	}
	if p := d.Payment; p != nil {
		payTotal, payMethod, payChange = p.Total.String(), string(p.Method), moneyArg(p.Change)
	}
	if c := d.LoyaltyCard; c != nil {
		cardNumber, cardType, cardPoints, cardDisc = c.Number, c.CardType, moneyArg(c.Points), moneyArg(c.Discount)
	}
	if c := d.ControlNumbers; c != nil {
		receiptNo, registerNo = nullString(c.ReceiptNumber), nullString(c.RegisterNumber)
		uniqueNo, fiscalNo = nullString(c.UniqueNumber), nullString(c.FiscalNumber)
	}
	if c := d.Cashier; c != nil {
		cashierNo, cashierName = nullString(c.Number), nullString(c.FirstName)
	}

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO receipts(
		 id, store_name, store_address, store_tax_id, store_head_office,
		 purchase_date, purchase_time, payment_total, payment_method, payment_change,
		 loyalty_number, loyalty_type, loyalty_points, loyalty_discount,
		 receipt_number, register_number, unique_number, fiscal_number,
		 cashier_number, cashier_name,
		 source_file, source_hash, detected_store, store_confidence, model, text_length, processed_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
		`,
			id, storeName, storeAddr, storeTax, storeHQ,
			d.PurchaseDate, d.PurchaseTime, payTotal, payMethod, payChange,
			cardNumber, cardType, cardPoints, cardDisc,
			receiptNo, registerNo, uniqueNo, fiscalNo,
			cashierNo, cashierName,
			d.Metadata.SourceFile, nullString(d.Metadata.SourceHash), nullString(d.Metadata.DetectedStore), d.Metadata.StoreConfidence,
			nullString(d.Metadata.Model), d.Metadata.TextLength, processedAt)
		if isDuplicateHash(err) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}

		for i, p := range d.Products {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO receipt_items(
			 id, receipt_id, position, name, standardized_name, quantity, unit,
			 unit_price, unit_price_after_discount, discount_amount, total_price,
			 vat_rate, category, is_frozen)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
			`,
				uuid.NewString(), id, i, p.Name, nullString(p.StandardizedName), p.Quantity.String(), string(p.Unit),
				moneyArg(p.UnitPriceOriginal), moneyArg(p.UnitPriceAfterDiscount), moneyArg(p.DiscountAmount), p.TotalPrice.String(),
				nullString(string(p.VatRate)), nullString(p.Category), p.IsFrozen)
			if err != nil {
				return fmt.Errorf("insert item %d: %w", i, err)
			}
		}
		for i, disc := range d.Discounts {
			if _, err := tx.ExecContext(ctx, `INSERT INTO receipt_discounts(receipt_id, position, name, amount) VALUES(?, ?, ?, ?)`,
				id, i, disc.Name, disc.Amount.String()); err != nil {
				return fmt.Errorf("insert discount %d: %w", i, err)
			}
		}
		for i, v := range vatEntries(d) {
			if _, err := tx.ExecContext(ctx, `INSERT INTO receipt_vat(receipt_id, position, rate, percent, base, amount) VALUES(?, ?, ?, ?, ?, ?)`,
				id, i, string(v.Rate), v.Percent, v.BaseAmount.String(), v.VatAmount.String()); err != nil {
				return fmt.Errorf("insert vat %d: %w", i, err)
			}
		}
		for i, c := range d.Coupons {
			if _, err := tx.ExecContext(ctx, `INSERT INTO receipt_coupons(receipt_id, position, code, description, value, expires) VALUES(?, ?, ?, ?, ?, ?)`,
				id, i, c.Code, c.Description, c.Value.String(), nullString(c.ExpiryDate)); err != nil {
				return fmt.Errorf("insert coupon %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Get loads a saved receipt. The VAT summary comes back on the draft, not
// nested in the payment.
func (r *ReceiptRepo) Get(ctx context.Context, id string) (*receipt.Draft, error) {
	var (
		storeName, storeAddr, storeTax, storeHQ    sql.NullString
		payTotal, payMethod, payChange             sql.NullString
		cardNumber, cardType, cardPoints, cardDisc sql.NullString
		receiptNo, registerNo, uniqueNo, fiscalNo  sql.NullString
		cashierNo, cashierName                     sql.NullString
		hash, detected, model                      sql.NullString
		d                                          receipt.Draft
	)
	err := r.db.QueryRowContext(ctx, `
	SELECT store_name, store_address, store_tax_id, store_head_office,
	 purchase_date, purchase_time, payment_total, payment_method, payment_change,
	 loyalty_number, loyalty_type, loyalty_points, loyalty_discount,
	 receipt_number, register_number, unique_number, fiscal_number,
	 cashier_number, cashier_name,
	 source_file, source_hash, detected_store, store_confidence, model, text_length, processed_at
	FROM receipts WHERE id = ?`, id).Scan(
		&storeName, &storeAddr, &storeTax, &storeHQ,
		&d.PurchaseDate, &d.PurchaseTime, &payTotal, &payMethod, &payChange,
		&cardNumber, &cardType, &cardPoints, &cardDisc,
		&receiptNo, &registerNo, &uniqueNo, &fiscalNo,
		&cashierNo, &cashierName,
		&d.Metadata.SourceFile, &hash, &detected, &d.Metadata.StoreConfidence, &model, &d.Metadata.TextLength, &d.Metadata.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Metadata.SourceHash = hash.String
	d.Metadata.DetectedStore = detected.String
	d.Metadata.Model = model.String

	if storeName.Valid {
		d.Store = &receipt.Store{Name: storeName.String, StreetAddress: storeAddr.String, TaxID: storeTax.String, HeadOfficeAddress: storeHQ.String}
	}
	if payTotal.Valid {
		total, err := parseMoney(payTotal.String)
		if err != nil {
			return nil, err
		}
		change, err := parseOptionalMoney(payChange)
		if err != nil {
			return nil, err
		}
		d.Payment = &receipt.Payment{Method: receipt.PaymentMethod(payMethod.String), Total: total, Change: change}
	}
	if cardNumber.Valid {
		points, err := parseOptionalMoney(cardPoints)
		if err != nil {
			return nil, err
		}
		disc, err := parseOptionalMoney(cardDisc)
		if err != nil {
			return nil, err
		}
		d.LoyaltyCard = &receipt.LoyaltyCard{Number: cardNumber.String, CardType: cardType.String, Points: points, Discount: disc}
	}
	cn := receipt.ControlNumbers{
		ReceiptNumber:  receiptNo.String,
		RegisterNumber: registerNo.String,
		UniqueNumber:   uniqueNo.String,
		FiscalNumber:   fiscalNo.String,
	}
	if !cn.Empty() {
		d.ControlNumbers = &cn
	}
	if cashierNo.Valid || cashierName.Valid {
		d.Cashier = &receipt.Cashier{Number: cashierNo.String, FirstName: cashierName.String}
	}

	if d.Products, err = r.items(ctx, id); err != nil {
		return nil, err
	}
	if d.Discounts, err = r.discounts(ctx, id); err != nil {
		return nil, err
	}
	if d.VatSummary, err = r.vat(ctx, id); err != nil {
		return nil, err
	}
	if d.Coupons, err = r.coupons(ctx, id); err != nil {
		return nil, err
	}
	return &d, nil
}

// FindByHash returns the id of the receipt saved from a file with the given
// content hash, or "" when there is none.
func (r *ReceiptRepo) FindByHash(ctx context.Context, hash string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM receipts WHERE source_hash = ?`, hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// List returns receipts newest purchase first.
func (r *ReceiptRepo) List(ctx context.Context, limit int) ([]ReceiptSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT r.id, COALESCE(r.store_name, ''), r.purchase_date, r.purchase_time,
	 COALESCE(r.payment_total, ''), COALESCE(r.payment_method, ''),
	 (SELECT COUNT(*) FROM receipt_items i WHERE i.receipt_id = r.id),
	 r.source_file, r.processed_at
	FROM receipts r
	ORDER BY r.purchase_date DESC, r.purchase_time DESC, r.created_at DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReceiptSummary
	for rows.Next() {
		var s ReceiptSummary
		if err := rows.Scan(&s.ID, &s.StoreName, &s.PurchaseDate, &s.PurchaseTime, &s.Total, &s.PaymentMethod, &s.Items, &s.SourceFile, &s.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ReceiptRepo) items(ctx context.Context, id string) ([]receipt.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT name, standardized_name, quantity, unit, unit_price, unit_price_after_discount,
	 discount_amount, total_price, vat_rate, category, is_frozen
	FROM receipt_items WHERE receipt_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []receipt.Product
	for rows.Next() {
		var (
			p                              receipt.Product
			std, vat, category             sql.NullString
			qty, unit, total               string
			unitPrice, afterDisc, discount sql.NullString
		)
		if err := rows.Scan(&p.Name, &std, &qty, &unit, &unitPrice, &afterDisc, &discount, &total, &vat, &category, &p.IsFrozen); err != nil {
			return nil, err
		}
		q, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("item %q quantity: %w", p.Name, err)
		}
		p.Quantity = receipt.NewQuantity(q)
		if p.TotalPrice, err = parseMoney(total); err != nil {
			return nil, err
		}
		if p.UnitPriceOriginal, err = parseOptionalMoney(unitPrice); err != nil {
			return nil, err
		}
		if p.UnitPriceAfterDiscount, err = parseOptionalMoney(afterDisc); err != nil {
			return nil, err
		}
		if p.DiscountAmount, err = parseOptionalMoney(discount); err != nil {
			return nil, err
		}
		p.Unit = receipt.Unit(unit)
		p.StandardizedName = std.String
		p.VatRate = receipt.VatRate(vat.String)
		p.Category = category.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ReceiptRepo) discounts(ctx context.Context, id string) ([]receipt.Discount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, amount FROM receipt_discounts WHERE receipt_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []receipt.Discount
	for rows.Next() {
		var (
			disc   receipt.Discount
			amount string
		)
		if err := rows.Scan(&disc.Name, &amount); err != nil {
			return nil, err
		}
		if disc.Amount, err = parseMoney(amount); err != nil {
			return nil, err
		}
		out = append(out, disc)
	}
	return out, rows.Err()
}

func (r *ReceiptRepo) vat(ctx context.Context, id string) ([]receipt.VatEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT rate, percent, base, amount FROM receipt_vat WHERE receipt_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []receipt.VatEntry
	for rows.Next() {
		var (
			v            receipt.VatEntry
			base, amount string
		)
		if err := rows.Scan(&v.Rate, &v.Percent, &base, &amount); err != nil {
			return nil, err
		}
		if v.BaseAmount, err = parseMoney(base); err != nil {
			return nil, err
		}
		if v.VatAmount, err = parseMoney(amount); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *ReceiptRepo) coupons(ctx context.Context, id string) ([]receipt.Coupon, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, description, value, expires FROM receipt_coupons WHERE receipt_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []receipt.Coupon
	for rows.Next() {
		var (
			c       receipt.Coupon
			value   string
			expires sql.NullString
		)
		if err := rows.Scan(&c.Code, &c.Description, &value, &expires); err != nil {
			return nil, err
		}
		if c.Value, err = parseMoney(value); err != nil {
			return nil, err
		}
		c.ExpiryDate = expires.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// vatEntries prefers the top-level summary and falls back to the one nested
// in the payment.
func vatEntries(d *receipt.Draft) []receipt.VatEntry {
	if len(d.VatSummary) > 0 {
		return d.VatSummary
	}
	if d.Payment != nil {
		return d.Payment.VatSummary
	}
	return nil
}

func isDuplicateHash(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique && strings.Contains(se.Error(), "receipts.source_hash")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func moneyArg(m *receipt.Money) any {
	if m == nil {
		return nil
	}
	return m.String()
}

func parseMoney(s string) (receipt.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return receipt.Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return receipt.NewMoney(d), nil
}

func parseOptionalMoney(s sql.NullString) (*receipt.Money, error) {
	if !s.Valid {
		return nil, nil
	}
	m, err := parseMoney(s.String)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
