// Package document renders the unsigned and signed PDF snapshots of an
// agreement. Rendering is a pure transformation of its inputs: the same
// snapshot, creator, and signature always produce byte-identical output,
// with the footer generation timestamp (taken from the injected clock) as
// the single varying field.
package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"consentra/dochash"
)

// Snapshot carries the agreement fields the renderer lays out. It is a copy,
// never a live entity; the renderer mutates nothing it is given.
type Snapshot struct {
	ID             string
	Title          string
	AgreementType  string
	Terms          string
	PaymentAmount  decimal.Decimal
	Jurisdiction   string
	RecipientName  string
	RecipientEmail string
	StartDate      time.Time
	EndDate        time.Time
	CreatedAt      time.Time
}

// translated maps the displayed text fields through the codepage translator
// so the cp1252 core fonts render non-ASCII characters correctly. The ID is
// left untouched; it is always ASCII and feeds the hash token.
func (s Snapshot) translated(tr func(string) string) Snapshot {
	s.Title = tr(s.Title)
	s.AgreementType = tr(s.AgreementType)
	s.Terms = tr(s.Terms)
	s.Jurisdiction = tr(s.Jurisdiction)
	s.RecipientName = tr(s.RecipientName)
	s.RecipientEmail = tr(s.RecipientEmail)
	return s
}

// Party identifies the agreement creator on the rendered document.
type Party struct {
	Name  string
	Email string
}

func (p Party) translated(tr func(string) string) Party {
	p.Name = tr(p.Name)
	p.Email = tr(p.Email)
	return p
}

// Signature carries the captured signature embedded into the signed variant.
type Signature struct {
	SignerName string
	Method     string
	Payload    string
	OriginIP   string
	SignedAt   time.Time
}

const (
	marginX      = 40.0
	lineHeight   = 12.0
	sigBoxWidth  = 220.0
	sigBoxHeight = 90.0
)

// Renderer produces PDF bytes for both document variants.
type Renderer struct {
	now func() time.Time
}

func NewRenderer() *Renderer {
	return &Renderer{now: time.Now}
}

// WithClock overrides the generation-timestamp source, primarily for tests
// that need byte-identical output across runs.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.now = now
	return r
}

// Unsigned renders the pre-signature document with a placeholder signature
// region.
func (r *Renderer) Unsigned(snap Snapshot, creator Party) ([]byte, error) {
	pdf, width := r.newDoc(snap.Title)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	snap = snap.translated(tr)
	creator = creator.translated(tr)

	y := header(pdf, width, 0)
	y = divider(pdf, width, y)

	y = labelValue(pdf, y, "Agreement Title:", snap.Title)
	y = labelMono(pdf, y, "Agreement ID:", snap.ID)
	y = labelValue(pdf, y, "Status:", "PENDING - Awaiting Signature")
	y = divider(pdf, width, y+6)

	y = parties(pdf, width, y, creator, snap)
	y = divider(pdf, width, y+6)

	y = terms(pdf, width, y, snap.Terms)
	y = divider(pdf, width, y+6)

	y = acknowledgment(pdf, width, y, snap.RecipientName)
	y = divider(pdf, width, y+6)

	y = paymentAndJurisdiction(pdf, width, y, snap)
	y = divider(pdf, width, y+6)

	// Placeholder signature region.
	y = sectionTitle(pdf, y, "Digital Signature")
	pdf.SetXY(marginX, y)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(136, 136, 136)
	pdf.CellFormat(width-2*marginX, lineHeight, "Awaiting Client Signature", "", 1, "L", false, 0, "")
	y = pdf.GetY() + 4

	pdf.SetDrawColor(204, 204, 204)
	pdf.SetLineWidth(1)
	pdf.Rect(marginX, y, sigBoxWidth, sigBoxHeight, "D")
	pdf.SetXY(marginX+10, y+sigBoxHeight/2-lineHeight/2)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(153, 153, 153)
	pdf.CellFormat(sigBoxWidth-20, lineHeight, "Client signature will appear here after signing", "", 0, "C", false, 0, "")
	y += sigBoxHeight + 16
	y = divider(pdf, width, y)

	y = sectionTitle(pdf, y, "Legal Statement")
	statement := fmt.Sprintf(
		"This agreement was created by %s (%s) and is awaiting digital signature from %s (%s).\n\n"+
			"Once signed, this document will be governed under applicable electronic transaction laws.\n\n"+
			"All agreement metadata will be captured server-side at the time of signing and embedded into this document as a permanent and tamper-resistant audit trail.",
		creator.Name, creator.Email, snap.RecipientName, snap.RecipientEmail)
	y = paragraph(pdf, width, y, statement)
	y = divider(pdf, width, y+6)

	pdf.SetXY(marginX, y)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(255, 152, 0)
	pdf.MultiCell(width-2*marginX, lineHeight+2,
		"This document will be legally binding under applicable electronic transaction laws upon digital signature.",
		"", "C", false)
	y = pdf.GetY() + 8

	r.footer(pdf, width, y, snap.ID)

	return output(pdf)
}

// Signed renders the final document embedding the captured signature and the
// derived tamper-evidence token.
func (r *Renderer) Signed(snap Snapshot, creator Party, sig Signature) ([]byte, error) {
	pdf, width := r.newDoc(snap.Title)
	// The token is derived from the raw values before any codepage
	// translation so it matches what verification recomputes.
	token := dochash.Token(snap.ID, sig.SignerName, sig.SignedAt)

	// The metadata table shows at most 40 characters of the title. Cap on
	// runes before codepage translation; the translated bytes are not UTF-8.
	if runes := []rune(snap.Title); len(runes) > 40 {
		snap.Title = string(runes[:40])
	}

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	snap = snap.translated(tr)
	creator = creator.translated(tr)
	sig.SignerName = tr(sig.SignerName)

	y := header(pdf, width, 0)

	y = metadataTable(pdf, width, y+6, snap, token)

	y = parties(pdf, width, y+10, creator, snap)
	y = terms(pdf, width, y+6, snap.Terms)
	y = acknowledgment(pdf, width, y+6, snap.RecipientName)

	y = sectionTitle(pdf, y+6, "Legal Statement")
	statement := fmt.Sprintf(
		"This agreement was created digitally by %s (%s).\n\n"+
			"It was sent to %s (%s). The recipient reviewed and digitally signed this agreement on %s from IP address %s.\n\n"+
			"This document is governed under applicable electronic transaction laws. All agreement metadata is captured server-side at the time of creation and signing and embedded into this document as a permanent and tamper-resistant audit trail.",
		creator.Name, creator.Email, snap.RecipientName, snap.RecipientEmail,
		formatDateTime(sig.SignedAt), sig.OriginIP)
	y = paragraph(pdf, width, y, statement)

	y = paymentAndJurisdiction(pdf, width, y+6, snap)

	y = r.signatureRegion(pdf, y+8, sig)

	y = sectionTitle(pdf, y+8, "FINAL LEGAL VALIDITY DECLARATION")
	y = paragraph(pdf, width, y,
		"This document has been digitally signed and is legally binding under applicable electronic transaction laws.")

	r.footer(pdf, width, y+6, snap.ID)

	return output(pdf)
}

func (r *Renderer) newDoc(title string) (*fpdf.Fpdf, float64) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	// Uncompressed content streams keep the embedded hash token and party
	// names searchable in the stored bytes.
	pdf.SetCompression(false)
	pdf.SetTitle(title, true)
	pdf.SetCreationDate(r.now().UTC())
	pdf.SetModificationDate(r.now().UTC())
	// fpdf emits resource dictionaries in map order unless catalog sorting
	// is on; reproducible output needs it alongside the fixed dates.
	pdf.SetCatalogSort(true)
	pdf.SetMargins(marginX, marginX, marginX)
	pdf.SetAutoPageBreak(true, marginX)
	pdf.AddPage()
	width, _ := pdf.GetPageSize()
	return pdf, width
}

func header(pdf *fpdf.Fpdf, width, _ float64) float64 {
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(width-2*marginX, 24, "DIGITAL AGREEMENT", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(width-2*marginX, 14, "Digital Consent & Agreement Tracker", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(width-2*marginX, 12, "(Electronically Generated & Signed Document)", "", 1, "C", false, 0, "")
	return pdf.GetY() + 6
}

func divider(pdf *fpdf.Fpdf, width, y float64) float64 {
	pdf.SetDrawColor(224, 224, 224)
	pdf.SetLineWidth(0.75)
	pdf.Line(marginX, y, width-marginX, y)
	return y + 10
}

func sectionTitle(pdf *fpdf.Fpdf, y float64, title string) float64 {
	pdf.SetXY(marginX, y)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 14, title, "", 1, "L", false, 0, "")
	return pdf.GetY() + 2
}

func labelValue(pdf *fpdf.Fpdf, y float64, label, value string) float64 {
	pdf.SetXY(marginX, y)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, lineHeight+1, label, "", 1, "L", false, 0, "")
	pdf.SetX(marginX)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(0, lineHeight, value, "", 1, "L", false, 0, "")
	return pdf.GetY() + 3
}

func labelMono(pdf *fpdf.Fpdf, y float64, label, value string) float64 {
	pdf.SetXY(marginX, y)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, lineHeight+1, label, "", 1, "L", false, 0, "")
	pdf.SetX(marginX)
	pdf.SetFont("Courier", "", 9)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(0, lineHeight, value, "", 1, "L", false, 0, "")
	return pdf.GetY() + 3
}

// metadataTable draws the three-row bordered table of the signed variant:
// title, agreement id, and the derived document hash.
func metadataTable(pdf *fpdf.Fpdf, width, y float64, snap Snapshot, token string) float64 {
	const rowHeight = 20.0
	const col1Width = 150.0
	tableWidth := width - 2*marginX

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(1)
	pdf.Rect(marginX, y, tableWidth, rowHeight*3, "D")
	pdf.Line(marginX, y+rowHeight, marginX+tableWidth, y+rowHeight)
	pdf.Line(marginX, y+rowHeight*2, marginX+tableWidth, y+rowHeight*2)
	pdf.Line(marginX+col1Width, y, marginX+col1Width, y+rowHeight*3)

	rows := []struct {
		label, value, font string
	}{
		{"Agreement Title:", snap.Title, "Helvetica"},
		{"Agreement ID:", snap.ID, "Courier"},
		{"Document Hash ID:", token, "Courier"},
	}
	for i, row := range rows {
		rowY := y + float64(i)*rowHeight + 5
		pdf.SetXY(marginX+5, rowY)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(col1Width-10, lineHeight, row.label, "", 0, "L", false, 0, "")
		pdf.SetXY(marginX+col1Width+5, rowY)
		pdf.SetFont(row.font, "", 9)
		pdf.SetTextColor(51, 51, 51)
		pdf.CellFormat(tableWidth-col1Width-10, lineHeight, row.value, "", 0, "L", false, 0, "")
	}

	return y + rowHeight*3 + 8
}

func parties(pdf *fpdf.Fpdf, width, y float64, creator Party, snap Snapshot) float64 {
	y = sectionTitle(pdf, y, "Parties to the Agreement")
	pdf.SetXY(marginX, y)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(0, lineHeight, fmt.Sprintf("Party A (Creator): %s <%s>", creator.Name, creator.Email), "", 1, "L", false, 0, "")
	pdf.SetX(marginX)
	pdf.CellFormat(0, lineHeight, fmt.Sprintf("Party B (Recipient): %s <%s>", snap.RecipientName, snap.RecipientEmail), "", 1, "L", false, 0, "")
	return pdf.GetY() + 3
}

func terms(pdf *fpdf.Fpdf, width, y float64, text string) float64 {
	y = sectionTitle(pdf, y, "Terms and Conditions")
	return paragraph(pdf, width, y, text)
}

func acknowledgment(pdf *fpdf.Fpdf, width, y float64, recipientName string) float64 {
	y = sectionTitle(pdf, y, "Acknowledgment & Consent")
	text := fmt.Sprintf(
		"I, %s, hereby acknowledge that I have read, understood, and agreed to all the terms and conditions stated in this agreement.\n\n"+
			"I understand that this agreement is executed electronically and that my digital signature constitutes a legally binding acceptance under applicable electronic transaction laws.",
		recipientName)
	return paragraph(pdf, width, y, text)
}

func paymentAndJurisdiction(pdf *fpdf.Fpdf, width, y float64, snap Snapshot) float64 {
	y = labelValue(pdf, y, "Payment Amount:", snap.PaymentAmount.StringFixed(2))
	y = labelValue(pdf, y, "Term:", fmt.Sprintf("%s through %s", formatDate(snap.StartDate), formatDate(snap.EndDate)))
	jurisdiction := snap.Jurisdiction
	if jurisdiction == "" {
		jurisdiction = "______________"
	}
	pdf.SetXY(marginX, y)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, lineHeight+1, "Jurisdiction", "", 1, "L", false, 0, "")
	pdf.SetX(marginX)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(0, lineHeight, "This agreement is governed by the laws of "+jurisdiction, "", 1, "L", false, 0, "")
	return pdf.GetY() + 3
}

func paragraph(pdf *fpdf.Fpdf, width, y float64, text string) float64 {
	pdf.SetXY(marginX, y)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(51, 51, 51)
	pdf.MultiCell(width-2*marginX, lineHeight, text, "", "L", false)
	return pdf.GetY() + 3
}

// signatureRegion draws the signature details on the left and the bordered
// signature box on the right, embedding the captured signature according to
// its method.
func (r *Renderer) signatureRegion(pdf *fpdf.Fpdf, y float64, sig Signature) float64 {
	boxX := 330.0
	boxY := y

	detail := func(label, value string) {
		pdf.SetX(marginX)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(boxX-marginX-10, lineHeight+1, label, "", 1, "L", false, 0, "")
		pdf.SetX(marginX)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(51, 51, 51)
		pdf.CellFormat(boxX-marginX-10, lineHeight, value, "", 1, "L", false, 0, "")
	}

	pdf.SetY(y)
	detail("Signed By:", sig.SignerName)
	detail("Signature Method:", methodLabel(sig.Method))
	detail("Signed On:", formatDateTime(sig.SignedAt))
	detail("IP Address:", sig.OriginIP)
	detailsBottom := pdf.GetY()

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(1)
	pdf.Rect(boxX, boxY, sigBoxWidth, sigBoxHeight, "D")

	switch sig.Method {
	case "typed":
		pdf.SetXY(boxX+10, boxY+sigBoxHeight/2-16)
		pdf.SetFont("Times", "I", 28)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(sigBoxWidth-20, 32, sig.SignerName, "", 0, "C", false, 0, "")
	case "drawn", "uploaded":
		if !embedSignatureImage(pdf, sig, boxX, boxY) {
			pdf.SetXY(boxX+10, boxY+sigBoxHeight/2-lineHeight/2)
			pdf.SetFont("Helvetica", "", 9)
			pdf.SetTextColor(102, 102, 102)
			pdf.CellFormat(sigBoxWidth-20, lineHeight, fmt.Sprintf("[%s Signature]", methodLabel(sig.Method)), "", 0, "C", false, 0, "")
		}
	}

	bottom := boxY + sigBoxHeight
	if detailsBottom > bottom {
		bottom = detailsBottom
	}
	return bottom + 10
}

// embedSignatureImage decodes the base64 payload and fits the image inside
// the signature box. It reports false when the payload cannot be decoded as
// an image, in which case the caller renders the textual fallback; a corrupt
// signature must never abort the whole document.
func embedSignatureImage(pdf *fpdf.Fpdf, sig Signature, boxX, boxY float64) bool {
	raw, err := decodeSignaturePayload(sig.Payload)
	if err != nil {
		return false
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return false
	}
	var imageType string
	switch format {
	case "png":
		imageType = "PNG"
	case "jpeg":
		imageType = "JPG"
	case "gif":
		imageType = "GIF"
	default:
		return false
	}

	maxW := sigBoxWidth - 10
	maxH := sigBoxHeight - 10
	scale := maxW / float64(cfg.Width)
	if h := float64(cfg.Height) * scale; h > maxH {
		scale = maxH / float64(cfg.Height)
	}
	w := float64(cfg.Width) * scale
	h := float64(cfg.Height) * scale

	opts := fpdf.ImageOptions{ImageType: imageType}
	name := "signature-" + sig.Method
	if info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(raw)); info == nil {
		// fpdf errors are sticky; clear so the textual fallback and the
		// rest of the document still render.
		pdf.ClearError()
		return false
	}
	pdf.ImageOptions(name, boxX+(sigBoxWidth-w)/2, boxY+(sigBoxHeight-h)/2, w, h, false, opts, 0, "")
	if pdf.Err() {
		pdf.ClearError()
		return false
	}
	return true
}

func decodeSignaturePayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		_, after, found := strings.Cut(payload, ",")
		if !found {
			return nil, fmt.Errorf("document: malformed data URI")
		}
		payload = after
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("document: decode signature payload: %w", err)
	}
	return raw, nil
}

func (r *Renderer) footer(pdf *fpdf.Fpdf, width, y float64, agreementID string) {
	pdf.SetXY(marginX, y)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(136, 136, 136)
	pdf.CellFormat(width-2*marginX, 10, fmt.Sprintf("Generated on %s", formatDateTime(r.now().UTC())), "", 1, "C", false, 0, "")
	pdf.SetX(marginX)
	pdf.CellFormat(width-2*marginX, 10, fmt.Sprintf("Agreement ID: %s", agreementID), "", 1, "C", false, 0, "")
	pdf.SetX(marginX)
	pdf.CellFormat(width-2*marginX, 10, "Digital Consent & Agreement Tracker", "", 1, "C", false, 0, "")
}

func methodLabel(method string) string {
	switch method {
	case "typed":
		return "Typed"
	case "drawn":
		return "Drawn"
	case "uploaded":
		return "Uploaded"
	default:
		return method
	}
}

func formatDate(t time.Time) string {
	return t.UTC().Format("January 2, 2006")
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format("January 2, 2006 at 15:04 MST")
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	if pdf.Err() {
		return nil, fmt.Errorf("document: render: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("document: write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
