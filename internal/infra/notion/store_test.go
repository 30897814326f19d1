package notion_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/infra/notion"
	"github.com/dvloznov/bankmail-ledger/internal/ledger"
)

// MockService is a function-field mock of notion.Service.
type MockService struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

func (m *MockService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, properties)
	}
	return &notionapi.Page{}, nil
}

func (m *MockService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.QueryDatabaseFunc != nil {
		return m.QueryDatabaseFunc(ctx, databaseID, req)
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

func text(s string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: s}}
}

func page(id, merchant string, day int, amount float64, txID string) notionapi.Page {
	start := notionapi.Date(time.Date(2024, 2, day, 0, 0, 0, 0, time.UTC))
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			notion.PropMerchant:      &notionapi.TitleProperty{Title: text(merchant)},
			notion.PropDate:          &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}},
			notion.PropAmount:        &notionapi.NumberProperty{Number: amount},
			notion.PropTransactionID: &notionapi.RichTextProperty{RichText: text(txID)},
		},
	}
}

func TestSnapshot_Paginates(t *testing.T) {
	var cursors []notionapi.Cursor
	svc := &MockService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			cursors = append(cursors, req.StartCursor)
			if req.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{page("p1", "SHELL", 1, 3.25, "id-1")},
					HasMore:    true,
					NextCursor: "next",
				}, nil
			}
			archived := page("p3", "OLD", 3, 1, "id-3")
			archived.Archived = true
			return &notionapi.DatabaseQueryResponse{
				Results: []notionapi.Page{page("p2", "LULU", 2, 45.75, "id-2"), archived},
			}, nil
		},
	}

	entries, err := notion.NewLedgerStore(svc, "db").Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(cursors) != 2 || cursors[1] != "next" {
		t.Errorf("cursors = %v", cursors)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[1].Merchant != "LULU" || entries[1].Date != (civil.Date{Year: 2024, Month: 2, Day: 2}) {
		t.Errorf("entry = %+v", entries[1])
	}
	if !entries[1].Amount.Equal(decimal.RequireFromString("45.75")) {
		t.Errorf("amount = %s", entries[1].Amount)
	}
}

func TestSnapshot_TransportError(t *testing.T) {
	svc := &MockService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, errors.New("503")
		},
	}
	_, err := notion.NewLedgerStore(svc, "db").Snapshot(context.Background())
	if !errors.Is(err, domain.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestAppend(t *testing.T) {
	var gotDB string
	var gotProps notionapi.Properties
	svc := &MockService{
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			gotDB, gotProps = databaseID, properties
			return &notionapi.Page{}, nil
		},
	}

	row := ledger.Row{
		Merchant:      "SHELL",
		Date:          civil.Date{Year: 2024, Month: 2, Day: 1},
		Amount:        decimal.RequireFromString("3.25"),
		Category:      "Bank Transaction",
		TransactionID: "id-1",
	}
	if err := notion.NewLedgerStore(svc, "db").Append(context.Background(), row); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if gotDB != "db" {
		t.Errorf("database = %q", gotDB)
	}
	if _, ok := gotProps[notion.PropDescription]; ok {
		t.Error("empty description should not be written")
	}
	sel, ok := gotProps[notion.PropCategory].(notionapi.SelectProperty)
	if !ok || sel.Select.Name != "Bank Transaction" {
		t.Errorf("category = %+v", gotProps[notion.PropCategory])
	}
	num, ok := gotProps[notion.PropAmount].(notionapi.NumberProperty)
	if !ok || num.Number != 3.25 {
		t.Errorf("amount = %+v", gotProps[notion.PropAmount])
	}
}

func TestAppend_TransportError(t *testing.T) {
	svc := &MockService{
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			return nil, errors.New("rate limited")
		},
	}
	err := notion.NewLedgerStore(svc, "db").Append(context.Background(), ledger.Row{TransactionID: "x"})
	if !errors.Is(err, domain.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestPageToEntry_MissingFields(t *testing.T) {
	p := page("p1", "SHELL", 1, 3, "id")
	delete(p.Properties, notion.PropAmount)
	if _, err := notion.PageToEntry(p); err == nil {
		t.Error("expected error for missing amount")
	}

	p = page("p1", "SHELL", 1, 3, "id")
	delete(p.Properties, notion.PropDate)
	if _, err := notion.PageToEntry(p); err == nil {
		t.Error("expected error for missing date")
	}
}
