package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptData carries everything a payment receipt prints.
type ReceiptData struct {
	ReceiptNumber string
	CenterName    string
	CenterAddress string
	CenterPhone   string
	Footer        string
	StudentName   string
	CourseName    string
	ClassName     string
	Month         string
	Year          int
	SchoolYear    string
	Amount        float64
	LateFee       float64
	Method        string
	PaidAt        time.Time
	OperatorName  string
}

// ReceiptRenderer produces payment receipt PDFs.
type ReceiptRenderer struct{}

// NewReceiptRenderer constructs a receipt renderer.
func NewReceiptRenderer() *ReceiptRenderer {
	return &ReceiptRenderer{}
}

// Render lays out a single-page A5 receipt for the payment.
func (r *ReceiptRenderer) Render(data ReceiptData) ([]byte, error) {
	if data.ReceiptNumber == "" {
		return nil, fmt.Errorf("receipt number required")
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(data.CenterName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if data.CenterAddress != "" {
		pdf.CellFormat(0, 5, tr(data.CenterAddress), "", 1, "C", false, 0, "")
	}
	if data.CenterPhone != "" {
		pdf.CellFormat(0, 5, tr("Tel: "+data.CenterPhone), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("Recibo de Pagamento Nº %s", data.ReceiptNumber)), "T", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 10)
	rows := [][2]string{
		{"Aluno", data.StudentName},
		{"Curso", data.CourseName},
		{"Turma", data.ClassName},
		{"Mês", fmt.Sprintf("%s %d", data.Month, data.Year)},
		{"Ano Lectivo", data.SchoolYear},
		{"Forma de Pagamento", data.Method},
		{"Data", data.PaidAt.Format("02/01/2006")},
		{"Operador", data.OperatorName},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 6, tr(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	base := data.Amount - data.LateFee
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(45, 6, tr("Propina"), "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(formatKz(base)), "T", 1, "R", false, 0, "")
	if data.LateFee > 0 {
		pdf.CellFormat(45, 6, tr("Multa por atraso"), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(formatKz(data.LateFee)), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(45, 7, tr("Total"), "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 7, tr(formatKz(data.Amount)), "T", 1, "R", false, 0, "")

	if data.Footer != "" {
		pdf.Ln(8)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 4, tr(data.Footer), "", "C", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func formatKz(amount float64) string {
	return fmt.Sprintf("%.2f Kz", amount)
}
