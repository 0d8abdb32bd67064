package receipt

import (
	"errors"
	"fmt"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/beevik/etree"
)

// ContentType of documents produced by XMLRenderer
const ContentType = "application/xml"

const noDescription = "Not specified"

// ErrUnresolved is returned for transactions whose parties were not loaded
var ErrUnresolved = errors.New("transaction parties are not resolved")

// Renderer turns a transaction into a downloadable document
type Renderer interface {
	Render(t *models.Transaction) ([]byte, error)
	ContentType() string
}

// XMLRenderer builds receipts as XML documents
type XMLRenderer struct {
	indent int
}

// NewXMLRenderer creates a renderer with two-space indentation
func NewXMLRenderer() *XMLRenderer {
	return &XMLRenderer{indent: 2}
}

func (r *XMLRenderer) ContentType() string {
	return ContentType
}

// Render builds the receipt document
func (r *XMLRenderer) Render(t *models.Transaction) ([]byte, error) {
	if t == nil || !t.Resolved() {
		return nil, ErrUnresolved
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Receipt")
	root.CreateAttr("id", fmt.Sprintf("%d", t.ID))
	root.CreateElement("DateTime").SetText(t.CreatedAt.UTC().Format("2006-01-02 15:04:05"))

	party(root, "Sender", t.Sender)
	party(root, "Recipient", t.Recipient)

	desc := t.Description
	if desc == "" {
		desc = noDescription
	}
	root.CreateElement("Description").SetText(desc)

	total := root.CreateElement("TotalAmount")
	total.CreateAttr("currency", t.Sender.Currency)
	total.SetText(t.Amount.StringFixed(2))

	doc.Indent(r.indent)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to write receipt: %w", err)
	}
	return out, nil
}

func party(root *etree.Element, tag string, p *models.Party) {
	el := root.CreateElement(tag)
	el.CreateElement("Email").SetText(p.Email)
	el.CreateElement("AccountID").SetText(fmt.Sprintf("%d", p.AccountID))
}
