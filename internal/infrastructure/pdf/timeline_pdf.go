// Package pdf genera la exportación en PDF de la línea de tiempo de un producto.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Nombre del producto + barcode │ Fecha de generación │
//	│  CÓDIGO DE BARRAS                                           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: movimientos / entradas / salidas / neto           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Fecha | Tipo | Descripción | Bodega | Cant | Ref    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: leyenda                                            │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"strconv"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/stockledger-api/internal/application/timeline"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

var _ timeline.PDFRenderer = (*MarotoTimelineGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorIn      = &props.Color{Red: 46, Green: 125, Blue: 50}
	colorOut     = &props.Color{Red: 198, Green: 40, Blue: 40}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoTimelineGenerator implementa timeline.PDFRenderer usando Maroto v2.
type MarotoTimelineGenerator struct {
	author string
}

// NewMarotoTimelineGenerator construye el generador. author aparece en los metadatos del PDF.
func NewMarotoTimelineGenerator(author string) *MarotoTimelineGenerator {
	return &MarotoTimelineGenerator{author: author}
}

// RenderProductTimeline genera el PDF y devuelve sus bytes.
func (g *MarotoTimelineGenerator) RenderProductTimeline(
	product *entity.Product,
	barcode string,
	entries []entity.TimelineEntry,
	generatedAt time.Time,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Línea de tiempo "+barcode, true).
		WithAuthor(nonEmpty(g.author, "stockledger"), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(product, barcode, generatedAt))
	m.AddRows(barcodeRow(barcode))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRow(entries))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableRows(entries)...)

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow())

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: nombre + barcode (izq) y fecha de generación (der).
func headerRow(product *entity.Product, barcode string, generatedAt time.Time) core.Row {
	name := barcode
	category := ""
	if product != nil {
		name = nonEmpty(product.Name, barcode)
		category = product.Category
	}
	return row.New(18).Add(
		col.New(8).Add(
			text.New(name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Barcode: "+barcode+"   |   Categoría: "+nonEmpty(category, "-"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(4).Add(
			text.New("LÍNEA DE TIEMPO DE MOVIMIENTOS", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("Generado: "+generatedAt.Format("02/01/2006 15:04 MST"), props.Text{
				Size: 8, Align: align.Right, Top: 9, Color: colorGray,
			}),
		),
	)
}

func barcodeRow(barcode string) core.Row {
	return row.New(16).Add(
		col.New(4).Add(code.NewBar(barcode, props.Barcode{Percent: 90})),
		col.New(8),
	)
}

// summaryRow: totales de entradas y salidas de los movimientos listados.
func summaryRow(entries []entity.TimelineEntry) core.Row {
	in, out := 0, 0
	for _, e := range entries {
		if e.Direction == entity.DirectionIN {
			in += e.Quantity
		} else {
			out += e.Quantity
		}
	}
	cell := func(label, value string, c *props.Color) core.Col {
		return col.New(3).Add(
			text.New(label, props.Text{Size: 7, Color: colorGray, Top: 1, Align: align.Center}),
			text.New(value, props.Text{Style: fontstyle.Bold, Size: 11, Color: c, Top: 5, Align: align.Center}),
		)
	}
	return row.New(14).Add(
		cell("Movimientos", strconv.Itoa(len(entries)), colorPrimary),
		cell("Entradas", strconv.Itoa(in), colorIn),
		cell("Salidas", strconv.Itoa(out), colorOut),
		cell("Neto", strconv.Itoa(in-out), colorPrimary),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Fecha", 2, align.Left),
		h("Tipo", 2, align.Left),
		h("Descripción", 4, align.Left),
		h("Bodega", 1, align.Center),
		h("Cant.", 1, align.Right),
		h("Referencia", 2, align.Left),
	)
}

// tableRows: una fila por entrada; las salidas en rojo con signo negativo.
func tableRows(entries []entity.TimelineEntry) []core.Row {
	if len(entries) == 0 {
		return []core.Row{row.New(8).Add(col.New(12).Add(
			text.New("Sin movimientos registrados.", props.Text{Size: 8, Color: colorGray, Top: 2, Align: align.Center}),
		))}
	}
	result := make([]core.Row, 0, len(entries))
	for _, e := range entries {
		qty, c := "+"+strconv.Itoa(e.Quantity), colorIn
		if e.Direction == entity.DirectionOUT {
			qty, c = "-"+strconv.Itoa(e.Quantity), colorOut
		}
		result = append(result, row.New(8).Add(
			col.New(2).Add(text.New(e.Timestamp.Format("02/01/2006 15:04"), props.Text{Size: 7, Top: 1, Left: 1})),
			col.New(2).Add(text.New(e.Type, props.Text{Size: 7, Top: 1, Left: 1})),
			col.New(4).Add(text.New(e.Description, props.Text{Size: 7, Top: 1, Left: 1})),
			col.New(1).Add(text.New(e.Warehouse, props.Text{Size: 7, Top: 1, Align: align.Center})),
			col.New(1).Add(text.New(qty, props.Text{Size: 7, Top: 1, Align: align.Right, Right: 1, Color: c, Style: fontstyle.Bold})),
			col.New(2).Add(text.New(e.Reference, props.Text{Size: 7, Top: 1, Left: 1})),
		))
	}
	return result
}

func footerRow() core.Row {
	return row.New(8).Add(col.New(12).Add(
		text.New(
			"Reconstruido a partir del ledger de movimientos. El saldo inicial no se lista como movimiento. "+
				"Esta exportación queda registrada en la auditoría.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	))
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
