package receipt

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"travelbook/pkg/model"

	"github.com/phpdave11/gofpdf"
)

// FileName is the document name a booking's receipt is stored under.
func FileName(bookingID string) string {
	return fmt.Sprintf("receipt-%s.pdf", bookingID)
}

// Render builds a one-page A4 receipt for a paid booking.
func Render(booking *model.Booking, payment *model.Payment) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking receipt", false)
	pdf.SetCreator("travelbook", false)
	pdf.SetCreationDate(payment.CreatedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BOOKING RECEIPT")
	pdf.Ln(14)

	currency := strings.ToUpper(payment.Currency)

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range []string{
		"Booking ID   : " + booking.ID,
		"Payment ID   : " + payment.ID,
		"Reference    : " + payment.TxnRef,
		"Paid at      : " + payment.CreatedAt.UTC().Format(time.RFC1123),
		"Provider     : " + payment.Provider,
	} {
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(7)
	}
	pdf.Ln(4)

	search := booking.Search.SearchCriteria()
	if search.Origin != "" || search.Destination != "" {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, "Trip")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(0, 7, tr(fmt.Sprintf("%s -> %s", dash(search.Origin), dash(search.Destination))))
		pdf.Ln(7)
		if search.DepartDate != "" {
			pdf.Cell(0, 7, tr(fmt.Sprintf("Dates: %s / %s", search.DepartDate, dash(search.ReturnDate))))
			pdf.Ln(7)
		}
		pdf.Ln(3)
	}

	travelers := booking.Travelers.TravelerInfo().Travelers
	if len(travelers) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, "Travelers")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 12)
		for i, t := range travelers {
			pdf.Cell(0, 7, tr(fmt.Sprintf("%d. %s", i+1, dash(t.Name))))
			pdf.Ln(7)
		}
		pdf.Ln(3)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Charges")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)

	selection := booking.Selection.Selection()
	lineItem(pdf, tr(dash(selection.Title)), selection.Price, currency)

	addons := booking.Addons.AddonSet()
	names := make([]string, 0, len(addons))
	for name := range addons {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lineItem(pdf, tr("Add-on: "+name), addons[name], currency)
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 12)
	lineItem(pdf, "Total paid", payment.Amount, currency)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func lineItem(pdf *gofpdf.Fpdf, label string, amount float64, currency string) {
	pdf.CellFormat(130, 7, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, fmt.Sprintf("%.2f %s", amount, currency), "", 1, "R", false, 0, "")
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
