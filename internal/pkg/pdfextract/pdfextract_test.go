package pdfextract

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextEmptyInput(t *testing.T) {
	text, err := ExtractText(bytes.NewReader(nil), 10)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractTextRejectsNonPDF(t *testing.T) {
	_, err := ExtractText(bytes.NewReader([]byte("definitely not a pdf")), 10)
	assert.Error(t, err)
}
