package receipt

import (
	"testing"
	"time"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXMLRendererRender(t *testing.T) {
	tr := &models.Transaction{
		ID:                 7,
		Amount:             decimal.RequireFromString("25.5"),
		CreatedAt:          time.Date(2026, 5, 4, 13, 2, 1, 0, time.UTC),
		SenderAccountID:    1,
		RecipientAccountID: 2,
		Sender:             &models.Party{AccountID: 1, UserID: 1, Email: "alice@example.com", Currency: "USD"},
		Recipient:          &models.Party{AccountID: 2, UserID: 2, Email: "bob@example.com", Currency: "USD"},
	}

	out, err := NewXMLRenderer().Render(tr)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	root := doc.SelectElement("Receipt")
	require.NotNil(t, root)

	assert.Equal(t, "7", root.SelectAttrValue("id", ""))
	assert.Equal(t, "2026-05-04 13:02:01", root.FindElement("DateTime").Text())
	assert.Equal(t, "alice@example.com", root.FindElement("Sender/Email").Text())
	assert.Equal(t, "2", root.FindElement("Recipient/AccountID").Text())
	assert.Equal(t, "Not specified", root.FindElement("Description").Text())

	total := root.FindElement("TotalAmount")
	assert.Equal(t, "25.50", total.Text())
	assert.Equal(t, "USD", total.SelectAttrValue("currency", ""))
}

func TestXMLRendererRejectsUnresolved(t *testing.T) {
	r := NewXMLRenderer()

	_, err := r.Render(nil)
	assert.ErrorIs(t, err, ErrUnresolved)

	_, err = r.Render(&models.Transaction{ID: 1, Sender: &models.Party{Email: "a@example.com"}})
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.Equal(t, "application/xml", r.ContentType())
}
