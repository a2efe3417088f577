package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/codemarcinu/OCR/internal/database/repository"
	"github.com/codemarcinu/OCR/internal/receipt"
)

// Catppuccin Mocha subset.
const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorRed      lipgloss.Color = "#f38ba8"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorSky      lipgloss.Color = "#89dceb"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSubtext0 lipgloss.Color = "#a6adc8"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	labelStyle  = lipgloss.NewStyle().Foreground(colorSubtext0)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorOverlay1)
	amountStyle = lipgloss.NewStyle().Foreground(colorGreen)
	frozenStyle = lipgloss.NewStyle().Foreground(colorSky)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// renderReceipt draws a boxed summary of d. id may be empty for records
// that were not stored.
func renderReceipt(d *receipt.Draft, id string) string {
	var b strings.Builder

	store := warnStyle.Render("(store removed)")
	if d.Store != nil {
		store = d.Store.Name
	}
	b.WriteString(titleStyle.Render(store))
	b.WriteString("  " + mutedStyle.Render(d.PurchaseDate+" "+d.PurchaseTime))
	b.WriteString("\n")
	if d.Store != nil {
		b.WriteString(labelStyle.Render(d.Store.StreetAddress+"  NIP "+d.Store.TaxID) + "\n")
	}
	if id != "" {
		b.WriteString(mutedStyle.Render("id "+id) + "\n")
	}
	b.WriteString("\n")

	if d.Products == nil {
		b.WriteString(warnStyle.Render("(products removed)") + "\n")
	}
	nameWidth := 0
	for _, p := range d.Products {
		nameWidth = max(nameWidth, lipgloss.Width(productLabel(p)))
	}
	for _, p := range d.Products {
		label := productLabel(p)
		line := label + strings.Repeat(" ", nameWidth-lipgloss.Width(label))
		line += fmt.Sprintf("  %s %-7s %s", p.Quantity, p.Unit, amountStyle.Render(p.TotalPrice.String()))
		if p.Category != "" {
			line += "  " + labelStyle.Render(p.Category)
		}
		if p.IsFrozen {
			line += " " + frozenStyle.Render("❄")
		}
		b.WriteString(line + "\n")
	}
	for _, disc := range d.Discounts {
		b.WriteString(labelStyle.Render("rabat "+disc.Name) + "  -" + disc.Amount.String() + "\n")
	}

	b.WriteString("\n")
	if d.Payment != nil {
		b.WriteString(labelStyle.Render("SUMA ") + amountStyle.Render(d.Payment.Total.String()+" PLN"))
		b.WriteString("  " + mutedStyle.Render(string(d.Payment.Method)))
		if d.Payment.Change != nil {
			b.WriteString("  " + labelStyle.Render("reszta ") + d.Payment.Change.String())
		}
		b.WriteString("\n")
	} else {
		b.WriteString(warnStyle.Render("(payment removed)") + "\n")
	}
	if c := d.LoyaltyCard; c != nil {
		b.WriteString(labelStyle.Render("karta ") + c.CardType + " " + c.Number + "\n")
	}
	if m := d.Metadata; m.SourceFile != "" {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%s  model %s  prób %d  %s", m.SourceFile, m.Model, m.Timings.Attempt, m.Timings.Total.Round(time.Millisecond))))
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func productLabel(p receipt.Product) string {
	if p.StandardizedName != "" && p.StandardizedName != p.Name {
		return p.StandardizedName + " " + mutedStyle.Render("("+p.Name+")")
	}
	return p.Name
}

func renderList(rows []repository.ReceiptSummary) string {
	if len(rows) == 0 {
		return mutedStyle.Render("no receipts stored")
	}
	var b strings.Builder
	for _, r := range rows {
		store := r.StoreName
		if store == "" {
			store = "?"
		}
		fmt.Fprintf(&b, "%s  %s %s  %-10s %s  %d items\n",
			mutedStyle.Render(r.ID), r.PurchaseDate, r.PurchaseTime, store,
			amountStyle.Render(r.Total), r.Items)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderError(path string, err error) string {
	if path == "" {
		return errorStyle.Render("✗") + " " + err.Error()
	}
	return errorStyle.Render("✗ "+path) + " " + err.Error()
}
