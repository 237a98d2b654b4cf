// Package ingest turns transfer-notification emails into financial
// records, exactly one per real transfer no matter how many times the
// mailbox is scanned or how many institutions report the same event.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmaraujo/hermes-sync/pkg/config"
	"github.com/dmaraujo/hermes-sync/pkg/model"
	"github.com/dmaraujo/hermes-sync/pkg/store"
)

// duplicateWindow is how far apart two deliveries of the same amount
// may land and still describe one transfer (duplicate notifications,
// multi-institution reporting).
const duplicateWindow = 5 * time.Minute

// MailAPI is the read-only mail surface the pipeline consumes.
type MailAPI interface {
	Search(ctx context.Context, query string) ([]model.MessageRef, error)
	Get(ctx context.Context, id string) (model.Message, error)
}

// Logger receives the pipeline's run-log lines.
type Logger interface {
	Logf(format string, args ...any)
}

// Pipeline scans mail for transfer notifications and persists
// deduplicated financial records plus the processed-message memo.
type Pipeline struct {
	store store.Store
	mail  MailAPI
	cfg   *config.Config
	log   Logger
}

// New wires an ingestion pipeline.
func New(st store.Store, mail MailAPI, cfg *config.Config, log Logger) *Pipeline {
	return &Pipeline{store: st, mail: mail, cfg: cfg, log: log}
}

// Run executes one scan. A failure on a single message is logged and
// skipped; the rest of the batch continues. The memo is persisted even
// when no record was written, so evaluated messages are never fetched
// again.
func (p *Pipeline) Run(ctx context.Context) error {
	memo, err := p.store.Memo(ctx)
	if err != nil {
		return err
	}
	records, err := p.store.ListRecords(ctx)
	if err != nil {
		return err
	}
	index := newDedupIndex(records)

	p.log.Logf("Scanning mail for transfer notifications...")
	refs, err := p.mail.Search(ctx, p.cfg.MailQuery)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		p.log.Logf("No transfer notifications matched the search.")
		return p.store.PutMemo(ctx, memo)
	}
	p.log.Logf("Found %d candidate messages. Analyzing...", len(refs))

	written := 0
	for _, ref := range refs {
		if memo.Contains(ref.ID) || index.hasMessage(ref.ID) {
			continue
		}

		msg, err := p.mail.Get(ctx, ref.ID)
		if err != nil {
			p.log.Logf("ERROR fetching message %s: %v", ref.ID, err)
			continue
		}

		tx, err := ExtractTransfer(msg, p.cfg.IncomeKeywords)
		if err != nil {
			// Evaluated but unusable; remember it so the next scan
			// does not refetch it.
			p.log.Logf("Skipping message: %v", err)
			memo.Add(ref.ID)
			continue
		}

		if reason, dup := index.findDuplicate(tx); dup {
			memo.Add(ref.ID)
			p.log.Logf("Duplicate (%s): %s (R$ %s)", reason, tx.Description, tx.Amount.StringFixed(2))
			continue
		}

		record := tx.Record(uuid.NewString())
		if err := p.store.AddRecord(ctx, &record); err != nil {
			return err
		}
		// Later messages in this batch must dedupe against it too.
		index.add(record)
		memo.Add(ref.ID)
		written++
		p.log.Logf("[PIX] %s (R$ %s)", msg.Subject, record.Amount.StringFixed(2))
	}

	if err := p.store.PutMemo(ctx, memo); err != nil {
		return err
	}
	p.log.Logf("Ingestion done: %d records written", written)
	return nil
}

// dedupIndex answers "have we seen this transfer before?" across all
// persisted records and everything written earlier in the same batch.
type dedupIndex struct {
	byTransfer map[string]bool
	byMessage  map[string]bool
	legacy     map[string]bool
	entries    []amountEntry
}

type amountEntry struct {
	amount decimal.Decimal
	date   time.Time
}

func newDedupIndex(records []model.FinancialRecord) *dedupIndex {
	idx := &dedupIndex{
		byTransfer: make(map[string]bool),
		byMessage:  make(map[string]bool),
		legacy:     make(map[string]bool),
	}
	for _, r := range records {
		idx.add(r)
	}
	return idx
}

func (idx *dedupIndex) add(r model.FinancialRecord) {
	if r.TransferID != "" {
		idx.byTransfer[r.TransferID] = true
	}
	if r.ExternalMessageID != "" {
		idx.byMessage[r.ExternalMessageID] = true
	}
	idx.legacy[legacyKey(r.Description, r.Amount)] = true
	idx.entries = append(idx.entries, amountEntry{amount: r.Amount, date: r.Date})
}

func (idx *dedupIndex) hasMessage(id string) bool {
	return idx.byMessage[id]
}

// findDuplicate applies the dedup strategies in priority order:
// transfer id, then amount within the time tolerance, then the exact
// description+amount legacy match.
func (idx *dedupIndex) findDuplicate(tx Transfer) (string, bool) {
	if tx.TransferID != "" && idx.byTransfer[tx.TransferID] {
		return "transfer id", true
	}
	for _, e := range idx.entries {
		if e.amount.Equal(tx.Amount) && absDuration(e.date.Sub(tx.Date)) <= duplicateWindow {
			return "amount within time window", true
		}
	}
	if idx.legacy[legacyKey(tx.Description, tx.Amount)] {
		return "description and amount", true
	}
	return "", false
}

func legacyKey(description string, amount decimal.Decimal) string {
	return description + "|" + amount.StringFixed(2)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
