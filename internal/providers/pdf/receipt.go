package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptData is the pre-formatted content of a purchase receipt.
type ReceiptData struct {
	Issuer      string
	PurchaseID  string
	PurchasedAt string

	DatasetID   string
	DatasetName string
	ContentID   string

	Buyer        string
	Method       string
	Reference    string
	OrderID      string
	Amount       string
	Currency     string
	Confirmed    bool
	Verified     bool
	DownloadLink string
}

var ErrInvalidReceipt = errors.New("invalid_receipt_data")

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) (io.Reader, error) {
	if receipt.PurchaseID == "" || receipt.DatasetName == "" {
		return nil, ErrInvalidReceipt
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(25,
		text.NewCol(8, "Purchase receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, receipt.Issuer, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Receipt number: "+receipt.PurchaseID, props.Text{Top: 0}),
			text.New("Date: "+receipt.PurchasedAt, props.Text{Top: 4}),
			text.New("Status: "+status(receipt), props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Buyer", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(receipt.Buyer, props.Text{Top: 5, Size: 8, Align: align.Right}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, receipt.Amount+" "+receipt.Currency+" paid by "+receipt.Method, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(8, "Dataset", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(15,
		col.New(8).Add(
			text.New(receipt.DatasetName, props.Text{Size: 9}),
			text.New("Content: "+receipt.ContentID, props.Text{Size: 7, Top: 5}),
		),
		text.NewCol(4, receipt.Amount+" "+receipt.Currency, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(10,
		text.NewCol(3, "Payment reference", props.Text{Size: 8, Style: fontstyle.Bold}),
		text.NewCol(9, receipt.Reference, props.Text{Size: 8}),
	)
	if receipt.OrderID != "" {
		m.AddRow(10,
			text.NewCol(3, "Order", props.Text{Size: 8, Style: fontstyle.Bold}),
			text.NewCol(9, receipt.OrderID, props.Text{Size: 8}),
		)
	}
	if receipt.DownloadLink != "" {
		m.AddRow(10,
			text.NewCol(3, "Download", props.Text{Size: 8, Style: fontstyle.Bold}),
			text.NewCol(9, receipt.DownloadLink, props.Text{Size: 8}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func status(r ReceiptData) string {
	switch {
	case r.Confirmed && r.Verified:
		return "confirmed"
	case r.Confirmed:
		return "confirmed (unverified)"
	default:
		return "pending reconciliation"
	}
}
