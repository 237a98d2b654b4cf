package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmaraujo/hermes-sync/pkg/config"
	"github.com/dmaraujo/hermes-sync/pkg/model"
	"github.com/dmaraujo/hermes-sync/pkg/store"
)

// fakeMail serves a fixed mailbox and records fetches.
type fakeMail struct {
	messages []model.Message
	getErr   map[string]error
	gets     int
}

func (f *fakeMail) Search(ctx context.Context, query string) ([]model.MessageRef, error) {
	refs := make([]model.MessageRef, len(f.messages))
	for i, m := range f.messages {
		refs[i] = model.MessageRef{ID: m.ID}
	}
	return refs, nil
}

func (f *fakeMail) Get(ctx context.Context, id string) (model.Message, error) {
	f.gets++
	if err := f.getErr[id]; err != nil {
		return model.Message{}, err
	}
	for _, m := range f.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Message{}, fmt.Errorf("no such message %s", id)
}

type nopLogger struct{}

func (nopLogger) Logf(format string, args ...any) {}

func newTestPipeline(st store.Store, mail *fakeMail) *Pipeline {
	return New(st, mail, config.Default(), nopLogger{})
}

func TestIngestRecordsIncomeTransfer(t *testing.T) {
	received := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	mail := &fakeMail{messages: []model.Message{
		{ID: "m1", Subject: "Pix received from João", Snippet: "You received R$ 150,00", Received: received},
	}}
	st := store.NewMemory()
	p := newTestPipeline(st, mail)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	records, _ := st.ListRecords(context.Background())
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Kind != model.KindIncome {
		t.Errorf("Expected income, got %s", r.Kind)
	}
	if !r.Amount.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("Expected amount 150.00, got %s", r.Amount)
	}
	if r.Category != IncomeCategory {
		t.Errorf("Expected category %q, got %q", IncomeCategory, r.Category)
	}
	if r.Sprint != 2 {
		t.Errorf("Expected sprint 2 for day 14, got %d", r.Sprint)
	}
	if r.ExternalMessageID != "m1" {
		t.Errorf("Expected message id m1, got %s", r.ExternalMessageID)
	}

	memo, _ := st.Memo(context.Background())
	if !memo.Contains("m1") {
		t.Error("Expected m1 in the processed memo")
	}
}

func TestIngestIsIdempotentAcrossScans(t *testing.T) {
	mail := &fakeMail{messages: []model.Message{
		{ID: "m1", Subject: "Pix sent to market", Snippet: "R$ 42,50", Received: time.Now()},
	}}
	st := store.NewMemory()
	p := newTestPipeline(st, mail)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := p.Run(ctx); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}
	records, _ := st.ListRecords(ctx)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record after repeated scans, got %d", len(records))
	}
	if mail.gets != 1 {
		t.Errorf("Expected the message to be fetched once, got %d fetches", mail.gets)
	}
}

func TestIngestMemoSurvivesRecordRemoval(t *testing.T) {
	// A message already in the memo is never refetched, even when no
	// record for it exists anymore.
	st := store.NewMemory()
	ctx := context.Background()
	memo := model.ProcessedMemo{}
	memo.Add("m1")
	if err := st.PutMemo(ctx, memo); err != nil {
		t.Fatal(err)
	}
	mail := &fakeMail{messages: []model.Message{
		{ID: "m1", Subject: "Pix received", Snippet: "R$ 99,00", Received: time.Now()},
	}}
	p := newTestPipeline(st, mail)

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if mail.gets != 0 {
		t.Errorf("A memoized message must not be fetched, got %d fetches", mail.gets)
	}
	records, _ := st.ListRecords(ctx)
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestIngestDeduplicatesByTransferID(t *testing.T) {
	// Two institutions report the same transfer hours apart; the shared
	// end-to-end id collapses them.
	const e2e = "E12345678202506141030abcdefghijk"
	base := time.Date(2025, 6, 14, 10, 30, 0, 0, time.UTC)
	mail := &fakeMail{messages: []model.Message{
		{ID: "m1", Subject: "Pix received", Snippet: "R$ 150,00 " + e2e, Received: base},
		{ID: "m2", Subject: "Transfer confirmation", Snippet: "R$ 150,00 " + e2e, Received: base.Add(3 * time.Hour)},
	}}
	st := store.NewMemory()
	p := newTestPipeline(st, mail)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	records, _ := st.ListRecords(context.Background())
	if len(records) != 1 {
		t.Fatalf("Expected 1 record for a shared transfer id, got %d", len(records))
	}
	memo, _ := st.Memo(context.Background())
	if !memo.Contains("m2") {
		t.Error("The duplicate message must still be memoized")
	}
}

func TestIngestDeduplicatesByAmountWithinWindow(t *testing.T) {
	base := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	mail := &fakeMail{messages: []model.Message{
		{ID: "m1", Subject: "Pix received from bank A", Snippet: "R$ 150,00", Received: base},
		{ID: "m2", Subject: "Pix received from bank B", Snippet: "R$ 150,00", Received: base.Add(3 * time.Minute)},
	}}
	st := store.NewMemory()
	p := newTestPipeline(st, mail)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	records, _ := st.ListRecords(context.Background())
	if len(records) != 1 {
		t.Fatalf("Expected 1 record for the same amount within the window, got %d", len(records))
	}
}

func TestIngestKeepsDistinctAmounts(t *testing.T) {
	// A one-cent difference at the same instant is two transfers.
	base := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	mail := &fakeMail{messages: []model.Message{
		{ID: "m1", Subject: "Pix received from A", Snippet: "R$ 150,00", Received: base},
		{ID: "m2", Subject: "Pix received from B", Snippet: "R$ 150,01", Received: base},
	}}
	st := store.NewMemory()
	p := newTestPipeline(st, mail)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	records, _ := st.ListRecords(context.Background())
	if len(records) != 2 {
		t.Fatalf("Expected 2 records for distinct amounts, got %d", len(records))
	}
}

func TestIngestKeepsSameAmountOutsideWindow(t *testing.T) {
	base := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	mail := &fakeMail{messages: []model.Message{
		{ID: "m1", Subject: "Pix received from A", Snippet: "R$ 150,00", Received: base},
		{ID: "m2", Subject: "Pix received from B", Snippet: "R$ 150,00", Received: base.Add(10 * time.Minute)},
	}}
	st := store.NewMemory()
	p := newTestPipeline(st, mail)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	records, _ := st.ListRecords(context.Background())
	if len(records) != 2 {
		t.Fatalf("Expected 2 records outside the dedup window, got %d", len(records))
	}
}

func TestIngestFetchFailureSkipsOnlyThatMessage(t *testing.T) {
	base := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	mail := &fakeMail{
		messages: []model.Message{
			{ID: "m1", Subject: "Pix received", Snippet: "R$ 10,00", Received: base},
			{ID: "m2", Subject: "Pix received", Snippet: "R$ 20,00", Received: base},
		},
		getErr: map[string]error{"m1": fmt.Errorf("transient fetch failure")},
	}
	st := store.NewMemory()
	p := newTestPipeline(st, mail)

	ctx := context.Background()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("A single fetch failure must not fail the scan: %v", err)
	}
	records, _ := st.ListRecords(ctx)
	if len(records) != 1 || !records[0].Amount.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("Expected only m2 to be recorded, got %+v", records)
	}

	// The failed message stays unmemoized so the next scan retries it.
	memo, _ := st.Memo(ctx)
	if memo.Contains("m1") {
		t.Error("A fetch failure must not memoize the message")
	}
}

func TestIngestMemoizesUnparseableMessages(t *testing.T) {
	mail := &fakeMail{messages: []model.Message{
		{ID: "m1", Subject: "Pix tips and tricks newsletter", Snippet: "no amount here", Received: time.Now()},
	}}
	st := store.NewMemory()
	p := newTestPipeline(st, mail)

	ctx := context.Background()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	records, _ := st.ListRecords(ctx)
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
	memo, _ := st.Memo(ctx)
	if !memo.Contains("m1") {
		t.Error("An evaluated-but-unusable message must be memoized")
	}
}
