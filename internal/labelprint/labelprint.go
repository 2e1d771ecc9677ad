package labelprint

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/fx"
)

var Module = fx.Module("labelprint",
	fx.Provide(New),
)

// Label is the printable view of one verified tag.
type Label struct {
	TagID        string
	LabelNumber  string
	ItemCode     string
	Quantity     string
	RackLocation string
	Result       string
	ChangeNotes  string
	VerifiedAt   string
	Actor        string
}

type Renderer interface {
	Render(ctx context.Context, label Label) (io.Reader, error)
}

var ErrEmptyLabel = errors.New("empty_label")

type PDFRenderer struct{}

func New() Renderer {
	return &PDFRenderer{}
}

// Render lays the label out on a 100x70mm page with a QR code of the label
// number, falling back to the tag id.
func (p *PDFRenderer) Render(ctx context.Context, label Label) (io.Reader, error) {
	if strings.TrimSpace(label.TagID) == "" {
		return nil, ErrEmptyLabel
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithDimensions(100, 70).
		WithLeftMargin(4).
		WithTopMargin(4).
		WithRightMargin(4).
		Build()

	m := maroto.New(cfg)

	qrValue := label.LabelNumber
	if strings.TrimSpace(qrValue) == "" {
		qrValue = label.TagID
	}

	m.AddRow(8,
		text.NewCol(12, label.LabelNumber, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(30,
		col.New(8).Add(
			text.New("Tag: "+label.TagID, props.Text{Size: 8, Top: 0}),
			text.New("Item: "+label.ItemCode, props.Text{Size: 8, Top: 5}),
			text.New("Qty: "+label.Quantity, props.Text{Size: 8, Top: 10}),
			text.New("Rack: "+orDash(label.RackLocation), props.Text{Size: 8, Top: 15}),
			text.New("Result: "+label.Result, props.Text{Size: 8, Top: 20, Style: fontstyle.Bold}),
		),
		code.NewQrCol(4, qrValue, props.Rect{
			Center:  true,
			Percent: 95,
		}),
	)

	if notes := strings.TrimSpace(label.ChangeNotes); notes != "" {
		m.AddRow(8,
			text.NewCol(12, notes, props.Text{Size: 7}),
		)
	}

	m.AddRow(6,
		text.NewCol(12, label.VerifiedAt+"  "+label.Actor, props.Text{Size: 6, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
