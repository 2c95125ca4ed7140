package bankdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadReadsAllSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "account_summary.json", `[{"accountId":"acc-1","accountStatus":"open"}]`)
	writeFile(t, dir, "statements.json", `[{"statementId":"st-1","interestCharged":42.5}]`)
	writeFile(t, dir, "transactions.json", `[{"transactionId":"tx-1","amount":55.2,"debitCreditIndicator":"1"}]`)
	writeFile(t, dir, "payments.json", `[{"paymentId":"pay-1","amount":500}]`)

	bundle, err := NewLoader(nil).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bundle.AccountSummary) != 1 || bundle.AccountSummary[0].AccountID != "acc-1" {
		t.Fatalf("unexpected account summary: %+v", bundle.AccountSummary)
	}
	if len(bundle.Statements) != 1 || bundle.Statements[0].InterestCharged == nil || *bundle.Statements[0].InterestCharged != 42.5 {
		t.Fatalf("unexpected statements: %+v", bundle.Statements)
	}
	if len(bundle.Transactions) != 1 || len(bundle.Payments) != 1 {
		t.Fatalf("unexpected record counts: %d tx, %d payments", len(bundle.Transactions), len(bundle.Payments))
	}
}

func TestLoadAccountSummaryHyphenFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "account-summary.json", `[{"accountId":"acc-2"}]`)

	bundle, err := NewLoader(nil).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bundle.AccountSummary) != 1 || bundle.AccountSummary[0].AccountID != "acc-2" {
		t.Fatalf("hyphenated filename must be picked up: %+v", bundle.AccountSummary)
	}
}

func TestLoadMissingFilesDegradeToEmpty(t *testing.T) {
	bundle, err := NewLoader(nil).Load(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("missing files must not error: %v", err)
	}
	if len(bundle.Transactions) != 0 || len(bundle.Statements) != 0 {
		t.Fatalf("expected empty bundle, got %+v", bundle)
	}
}

func TestLoadSkipsMalformedRecords(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "transactions.json", `[{"transactionId":"tx-ok","amount":10},{"transactionId":"tx-bad","amount":"not a number"}]`)

	bundle, err := NewLoader(nil).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bundle.Transactions) != 1 || bundle.Transactions[0].TransactionID != "tx-ok" {
		t.Fatalf("malformed record must be skipped, kept: %+v", bundle.Transactions)
	}
}

func TestLoadNonArrayFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "statements.json", `{"statementId":"st-1"}`)

	bundle, err := NewLoader(nil).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("non-array file must not error: %v", err)
	}
	if len(bundle.Statements) != 0 {
		t.Fatalf("expected empty statements, got %+v", bundle.Statements)
	}
}
