package notion

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/ledger"
)

// Property names of the ledger database.
const (
	PropMerchant      = "Merchant"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropCategory      = "Category"
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
)

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: s,
			},
		},
	}
}

// RowToProperties converts a ledger row into page properties. The empty
// credit and balance columns are not written.
func RowToProperties(r ledger.Row) notionapi.Properties {
	start := notionapi.Date(r.Date.In(time.UTC))

	props := notionapi.Properties{
		PropMerchant: notionapi.TitleProperty{
			Title: richText(r.Merchant),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: &start,
			},
		},
		PropAmount: notionapi.NumberProperty{
			Number: r.Amount.InexactFloat64(),
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(r.TransactionID),
		},
	}

	if r.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: r.Category,
			},
		}
	}

	if r.Description != "" {
		props[PropDescription] = notionapi.RichTextProperty{
			RichText: richText(r.Description),
		}
	}

	return props
}

// PageToEntry rebuilds a ledger entry from a queried page.
func PageToEntry(page notionapi.Page) (domain.LedgerEntry, error) {
	var entry domain.LedgerEntry

	if prop, ok := page.Properties[PropMerchant]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			entry.Merchant = plainText(title.Title)
		}
	}

	if prop, ok := page.Properties[PropDate]; ok {
		if dp, ok := prop.(*notionapi.DateProperty); ok && dp.Date != nil && dp.Date.Start != nil {
			entry.Date = civil.DateOf(time.Time(*dp.Date.Start))
		}
	}
	if !entry.Date.IsValid() {
		return domain.LedgerEntry{}, fmt.Errorf("PageToEntry: page %s has no date", page.ID)
	}

	prop, ok := page.Properties[PropAmount].(*notionapi.NumberProperty)
	if !ok {
		return domain.LedgerEntry{}, fmt.Errorf("PageToEntry: page %s has no amount", page.ID)
	}
	entry.Amount = decimal.NewFromFloat(prop.Number).Round(3)

	if prop, ok := page.Properties[PropDescription]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			entry.Description = plainText(rt.RichText)
		}
	}

	if prop, ok := page.Properties[PropTransactionID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			entry.TransactionID = plainText(rt.RichText)
		}
	}

	return entry, nil
}

func plainText(rt []notionapi.RichText) string {
	var s string
	for _, t := range rt {
		if t.PlainText != "" {
			s += t.PlainText
		} else if t.Text != nil {
			s += t.Text.Content
		}
	}
	return s
}
