package textlayer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractText_NotAPDF(t *testing.T) {
	e := New(testLogger())
	_, _, err := e.ExtractText(context.Background(), []byte("this is not a pdf"))
	assert.Error(t, err)
}

func TestExtractText_TruncatedPDF(t *testing.T) {
	e := New(testLogger())
	// a header alone has no xref table; the parser must fail or panic, and
	// panics are converted to errors
	_, _, err := e.ExtractText(context.Background(), []byte("%PDF-1.4\n"))
	assert.Error(t, err)
}

func TestExtractText_Empty(t *testing.T) {
	e := New(testLogger())
	_, _, err := e.ExtractText(context.Background(), nil)
	assert.Error(t, err)
}
