package document

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"consentra/dochash"
)

func fixedClock() func() time.Time {
	at := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func sampleSnapshot() Snapshot {
	return Snapshot{
		ID:             "5f8b0c5e-0000-4000-8000-2b6c1a9f0001",
		Title:          "Freelance Web Development",
		AgreementType:  "Service Contract",
		Terms:          "The contractor will deliver the agreed scope of work.\n\nPayment is due within 30 days of invoice.",
		PaymentAmount:  decimal.RequireFromString("500.00"),
		Jurisdiction:   "California",
		RecipientName:  "Jane Doe",
		RecipientEmail: "jane@example.com",
		StartDate:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:      time.Date(2024, 12, 20, 8, 0, 0, 0, time.UTC),
	}
}

func sampleCreator() Party {
	return Party{Name: "Alex Creator", Email: "alex@example.com"}
}

func TestUnsigned_DeterministicBytes(t *testing.T) {
	r := NewRenderer().WithClock(fixedClock())

	first, err := r.Unsigned(sampleSnapshot(), sampleCreator())
	if err != nil {
		t.Fatalf("render unsigned: %v", err)
	}
	second, err := r.Unsigned(sampleSnapshot(), sampleCreator())
	if err != nil {
		t.Fatalf("render unsigned again: %v", err)
	}

	if len(first) == 0 {
		t.Fatal("expected non-empty PDF bytes")
	}
	if !bytes.Equal(first, second) {
		t.Fatal("expected byte-identical output for identical input and clock")
	}
	if !bytes.HasPrefix(first, []byte("%PDF")) {
		t.Fatalf("expected PDF header, got %q", first[:8])
	}
}

func TestUnsigned_ContainsAgreementFields(t *testing.T) {
	r := NewRenderer().WithClock(fixedClock())
	snap := sampleSnapshot()

	pdf, err := r.Unsigned(snap, sampleCreator())
	if err != nil {
		t.Fatalf("render unsigned: %v", err)
	}

	for _, want := range []string{snap.ID, snap.RecipientName, "Awaiting Client Signature", "Alex Creator"} {
		if !bytes.Contains(pdf, []byte(want)) {
			t.Errorf("unsigned PDF missing %q", want)
		}
	}
}

func TestSigned_EmbedsHashToken(t *testing.T) {
	r := NewRenderer().WithClock(fixedClock())
	snap := sampleSnapshot()
	sig := Signature{
		SignerName: "Jane Doe",
		Method:     "typed",
		Payload:    "Jane Doe",
		OriginIP:   "203.0.113.5",
		SignedAt:   time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}

	pdf, err := r.Signed(snap, sampleCreator(), sig)
	if err != nil {
		t.Fatalf("render signed: %v", err)
	}

	token := dochash.Token(snap.ID, sig.SignerName, sig.SignedAt)
	if !bytes.Contains(pdf, []byte(token)) {
		t.Fatalf("signed PDF missing hash token %q", token)
	}

	other := snap
	other.ID = "5f8b0c5e-0000-4000-8000-2b6c1a9f0002"
	otherToken := dochash.Token(other.ID, sig.SignerName, sig.SignedAt)
	if token == otherToken {
		t.Fatal("expected distinct tokens for distinct agreements")
	}
	if bytes.Contains(pdf, []byte(otherToken)) {
		t.Fatal("signed PDF contains another agreement's token")
	}
}

func TestSigned_DrawnSignatureEmbedsImage(t *testing.T) {
	r := NewRenderer().WithClock(fixedClock())
	sig := Signature{
		SignerName: "Jane Doe",
		Method:     "drawn",
		Payload:    "data:image/png;base64," + tinyPNGBase64(t),
		OriginIP:   "203.0.113.5",
		SignedAt:   time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}

	pdf, err := r.Signed(sampleSnapshot(), sampleCreator(), sig)
	if err != nil {
		t.Fatalf("render signed with drawn signature: %v", err)
	}
	if bytes.Contains(pdf, []byte("[Drawn Signature]")) {
		t.Fatal("valid image payload should not fall back to placeholder text")
	}
}

func TestSigned_MalformedPayloadFallsBackToPlaceholder(t *testing.T) {
	r := NewRenderer().WithClock(fixedClock())

	for _, payload := range []string{"not base64 at all!!!", "data:image/png;base64,AAAA", base64.StdEncoding.EncodeToString([]byte("plain text"))} {
		sig := Signature{
			SignerName: "Jane Doe",
			Method:     "uploaded",
			Payload:    payload,
			OriginIP:   "203.0.113.5",
			SignedAt:   time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		}

		pdf, err := r.Signed(sampleSnapshot(), sampleCreator(), sig)
		if err != nil {
			t.Fatalf("rendering must survive malformed payload %q: %v", payload, err)
		}
		if !bytes.Contains(pdf, []byte("[Uploaded Signature]")) {
			t.Errorf("expected textual placeholder for payload %q", payload)
		}
	}
}

// An image that stdlib DecodeConfig accepts but fpdf rejects must degrade to
// the placeholder text instead of poisoning the document with a sticky error.
func TestSigned_UnsupportedImageVariantFallsBackToPlaceholder(t *testing.T) {
	r := NewRenderer().WithClock(fixedClock())
	sig := Signature{
		SignerName: "Jane Doe",
		Method:     "drawn",
		Payload:    "data:image/png;base64," + interlacedPNGBase64(),
		OriginIP:   "203.0.113.5",
		SignedAt:   time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}

	pdf, err := r.Signed(sampleSnapshot(), sampleCreator(), sig)
	if err != nil {
		t.Fatalf("rendering must survive an unsupported image variant: %v", err)
	}
	if !bytes.Contains(pdf, []byte("[Drawn Signature]")) {
		t.Error("expected textual placeholder for unsupported image variant")
	}
	token := dochash.Token(sampleSnapshot().ID, sig.SignerName, sig.SignedAt)
	if !bytes.Contains(pdf, []byte(token)) {
		t.Error("signed PDF missing hash token after image fallback")
	}
}

func TestSigned_NonASCIINamesRenderInCorePage(t *testing.T) {
	r := NewRenderer().WithClock(fixedClock())
	snap := sampleSnapshot()
	snap.RecipientName = "José Müller"
	sig := Signature{
		SignerName: "José Müller",
		Method:     "typed",
		Payload:    "José Müller",
		OriginIP:   "203.0.113.5",
		SignedAt:   time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}

	pdf, err := r.Signed(snap, sampleCreator(), sig)
	if err != nil {
		t.Fatalf("render signed with non-ASCII names: %v", err)
	}
	if !bytes.Contains(pdf, []byte("Jos\xe9 M\xfcller")) {
		t.Error("expected codepage-translated signer name in PDF bytes")
	}
	if bytes.Contains(pdf, []byte("José")) {
		t.Error("raw UTF-8 text must not reach the core-font content stream")
	}

	// The token must still derive from the untranslated signer name.
	token := dochash.Token(snap.ID, "José Müller", sig.SignedAt)
	if !bytes.Contains(pdf, []byte(token)) {
		t.Error("signed PDF missing token derived from the raw signer name")
	}
}

func TestSigned_LongMultibyteTitleTruncatesOnRunes(t *testing.T) {
	r := NewRenderer().WithClock(fixedClock())
	snap := sampleSnapshot()
	snap.Title = strings.Repeat("é", 50)
	sig := Signature{
		SignerName: "Jane Doe",
		Method:     "typed",
		Payload:    "Jane Doe",
		OriginIP:   "203.0.113.5",
		SignedAt:   time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}

	pdf, err := r.Signed(snap, sampleCreator(), sig)
	if err != nil {
		t.Fatalf("render signed with long multibyte title: %v", err)
	}
	want := bytes.Repeat([]byte{0xe9}, 40)
	if !bytes.Contains(pdf, want) {
		t.Error("expected 40-rune truncated title in PDF bytes")
	}
	if bytes.Contains(pdf, bytes.Repeat([]byte{0xe9}, 41)) {
		t.Error("title exceeded the 40-rune limit")
	}
}

// interlacedPNGBase64 builds a minimal Adam7-interlaced PNG header. The
// stdlib config decoder accepts it, while the PDF library's PNG reader does
// not support interlacing.
func interlacedPNGBase64() string {
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	ihdr := []byte{
		0, 0, 0, 4, // width
		0, 0, 0, 2, // height
		8, 6, 0, 0, // bit depth, RGBA, compression, filter
		1, // Adam7 interlace
	}
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.WriteString("IHDR")
	buf.Write(ihdr)
	crc := crc32.NewIEEE()
	crc.Write([]byte("IHDR"))
	crc.Write(ihdr)
	binary.Write(&buf, binary.BigEndian, crc.Sum32())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func tinyPNGBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		img.Set(x, 0, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
