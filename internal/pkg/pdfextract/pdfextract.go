package pdfextract

import (
	"bytes"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText returns the plain text of the PDF read from r, cut to maxRunes
// when maxRunes > 0. A PDF without extractable text yields "" and nil.
func ExtractText(r io.Reader, maxRunes int) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(string(out))
	if maxRunes > 0 {
		if runes := []rune(text); len(runes) > maxRunes {
			text = string(runes[:maxRunes])
		}
	}
	return text, nil
}
