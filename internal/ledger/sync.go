package ledger

import (
	"context"
	"fmt"

	"github.com/dvloznov/autobills/internal/domain"
	"github.com/dvloznov/autobills/internal/logger"
)

const (
	// defaultSplitDivider is how many ways each bill is split.
	defaultSplitDivider = 3

	// currencyPrefix is how the amount column renders in existing sheet
	// rows; candidates are compared against that rendering.
	currencyPrefix = "$"
)

// Synchronizer reconciles normalized transactions into the shared bills
// sheet and its dependent personal sheets. All sheets live in one
// spreadsheet and are assumed single-writer for the duration of a run.
type Synchronizer struct {
	store          SheetStore
	billsSheet     string
	personalSheets []string
	splitDivider   int
	dryRun         bool
}

// NewSynchronizer builds a Synchronizer over store. With dryRun set, Sync
// performs its reads and dedup but logs row appends instead of writing them.
func NewSynchronizer(store SheetStore, billsSheet string, personalSheets []string, dryRun bool) *Synchronizer {
	return &Synchronizer{
		store:          store,
		billsSheet:     billsSheet,
		personalSheets: personalSheets,
		splitDivider:   defaultSplitDivider,
		dryRun:         dryRun,
	}
}

// SyncResult summarises one reconciliation pass.
type SyncResult struct {
	Appended int
	Skipped  int
}

// Sync makes the ledger reflect exactly one row-set per newly observed
// transaction. Each sheet's insertion cursor is read once up front
// (rowCount+1, row 1 being the header) and advanced only in memory as rows
// are appended; the remote row counts are never re-read mid-run. Dedup is
// judged against the bills sheet's originally-read snapshot, so a
// transaction appearing twice in one input appends twice — matching how the
// portal reports genuinely repeated charges.
//
// Row writes are independent remote calls. A failure between the bills-row
// write and a personal-row write leaves the sheets inconsistent for that
// transaction; later runs will see the bills row as existing and will not
// backfill the personal rows. That gap is accepted and surfaces only in the
// returned error.
func (s *Synchronizer) Sync(ctx context.Context, txns []domain.Transaction) (SyncResult, error) {
	log := logger.FromContext(ctx)

	cursors := make(map[string]int, len(s.personalSheets)+1)

	for _, sheetName := range s.personalSheets {
		rows, err := s.store.ReadColumns(ctx, sheetName)
		if err != nil {
			return SyncResult{}, fmt.Errorf("read personal sheet: %w", err)
		}
		cursors[sheetName] = len(rows) + 1
	}

	existing, err := s.store.ReadColumns(ctx, s.billsSheet)
	if err != nil {
		return SyncResult{}, fmt.Errorf("read bills sheet: %w", err)
	}
	cursors[s.billsSheet] = len(existing) + 1

	var result SyncResult
	for _, t := range txns {
		candidate := t.Candidate()

		if containsEntry(existing, candidate) {
			log.Info().
				Str("date", candidate.Date).
				Str("description", candidate.Description).
				Str("amount", candidate.Amount).
				Msg("Already in bills sheet, skipping")
			result.Skipped++
			continue
		}

		if err := s.appendEntry(ctx, candidate, cursors); err != nil {
			return result, err
		}
		result.Appended++
	}

	return result, nil
}

// appendEntry writes one bills row plus one cross-referencing row per
// personal sheet, advancing the in-memory cursors as it goes. Presented to
// the caller as one logical step, though the storage layer gives no
// atomicity across the individual writes.
func (s *Synchronizer) appendEntry(ctx context.Context, candidate domain.CandidateEntry, cursors map[string]int) error {
	log := logger.FromContext(ctx)

	billsCursor := cursors[s.billsSheet]

	billsRow := []any{
		candidate.Date,
		candidate.Description,
		candidate.Amount,
		s.splitDivider,
		fmt.Sprintf("=C%d/D%d", billsCursor, billsCursor), // per-person split amount
		"Yes", // paid flag
		fmt.Sprintf("%s (Auto)", candidate.Date),
	}

	log.Info().
		Str("date", candidate.Date).
		Str("description", candidate.Description).
		Str("amount", candidate.Amount).
		Int("row", billsCursor).
		Bool("dry_run", s.dryRun).
		Msg("Appending bill")

	if err := s.writeRow(ctx, s.billsSheet, billsCursor, billsRow); err != nil {
		return fmt.Errorf("append bills row: %w", err)
	}

	for _, sheetName := range s.personalSheets {
		personalRow := []any{
			fmt.Sprintf("=%s!A%d", s.billsSheet, billsCursor), // bill date
			fmt.Sprintf("=%s!B%d", s.billsSheet, billsCursor), // bill description
			nil, // CR column, left for manual entry
			fmt.Sprintf("=%s!E%d", s.billsSheet, billsCursor), // DR, split amount
		}

		if err := s.writeRow(ctx, sheetName, cursors[sheetName], personalRow); err != nil {
			return fmt.Errorf("append personal row: %w", err)
		}
		cursors[sheetName]++
	}

	cursors[s.billsSheet]++
	return nil
}

func (s *Synchronizer) writeRow(ctx context.Context, sheetName string, cursor int, row []any) error {
	if s.dryRun {
		log := logger.FromContext(ctx)
		log.Info().
			Str("sheet", sheetName).
			Int("row", cursor).
			Msg("[DRY RUN] Would write row")
		return nil
	}
	return s.store.WriteRow(ctx, sheetName, fmt.Sprintf("A%d", cursor), row)
}

// containsEntry reports whether the originally-read snapshot already holds
// the candidate. Rows with fewer than three cells never match.
func containsEntry(rows [][]string, candidate domain.CandidateEntry) bool {
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		if row[0] == candidate.Date &&
			row[1] == candidate.Description &&
			row[2] == currencyPrefix+candidate.Amount {
			return true
		}
	}
	return false
}
