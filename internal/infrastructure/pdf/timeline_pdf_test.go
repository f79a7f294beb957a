package pdf_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/pdf"
)

func TestRenderProductTimeline_GeneraPDF(t *testing.T) {
	g := pdf.NewMarotoTimelineGenerator("tests")
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []entity.TimelineEntry{
		{EventID: 2, Type: entity.EventTypeDispatch, Description: "Despachado a la orden ORD-1", Quantity: 5, Direction: entity.DirectionOUT, Warehouse: "GGM_WH", Reference: "AWB-1", Timestamp: at},
		{EventID: 3, Type: entity.EventTypeReturn, Description: "Devolución de la orden ORD-1", Quantity: 2, Direction: entity.DirectionIN, Warehouse: "GGM_WH", Reference: "AWB-1", Timestamp: at.Add(time.Hour)},
	}

	doc, err := g.RenderProductTimeline(&entity.Product{Barcode: "2460-3499", Name: "Camiseta"}, "2460-3499", entries, at)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")), "debe ser un documento PDF")
}

func TestRenderProductTimeline_SinMovimientos(t *testing.T) {
	g := pdf.NewMarotoTimelineGenerator("")
	doc, err := g.RenderProductTimeline(nil, "X-1", nil, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, doc)
}
