//go:build integration

package google

import (
	"context"
	"os"
	"slices"
	"testing"
	"time"
)

// Integration tests require a real spreadsheet shared with the service account.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_MirrorRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	cfg := Config{
		SpreadsheetID:   spreadsheetID,
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	// An id far above anything the ledger hands out.
	tx := sampleTx(time.Now().Unix())

	ref, err := client.AppendRow(ctx, tx)
	if err != nil {
		t.Fatalf("AppendRow() error = %v", err)
	}
	t.Logf("Mirrored transaction %d at %s", tx.ID, ref)

	ids, err := client.ListRowIDs(ctx)
	if err != nil {
		t.Fatalf("ListRowIDs() error = %v", err)
	}
	if !slices.Contains(ids, tx.ID) {
		t.Fatalf("transaction %d not found after append", tx.ID)
	}

	if err := client.DeleteRow(ctx, tx.ID); err != nil {
		t.Fatalf("DeleteRow() error = %v", err)
	}
	ids, _ = client.ListRowIDs(ctx)
	if slices.Contains(ids, tx.ID) {
		t.Errorf("transaction %d still mirrored after delete", tx.ID)
	}
}
