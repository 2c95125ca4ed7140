package corpus

import (
	"strings"
	"testing"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

func floatPtr(v float64) *float64 { return &v }

func testBundle() domain.Bundle {
	return domain.Bundle{
		AccountSummary: []domain.AccountSummary{
			{AccountID: "acc-1", AccountStatus: "open", CurrentBalance: floatPtr(1250.75)},
		},
		Statements: []domain.Statement{
			{StatementID: "st-aug", ClosingDateTime: "2024-08-31T00:00:00Z", InterestCharged: floatPtr(42.50), EndingBalance: floatPtr(1250.75)},
			{StatementID: "st-jul", ClosingDateTime: "2024-07-31T00:00:00Z", InterestCharged: floatPtr(10.00)},
		},
		Transactions: []domain.Transaction{
			{TransactionID: "tx-1", TransactionDateTime: "2024-08-03T10:00:00Z", DisplayTransactionType: "purchase", MerchantName: "Grocer", Amount: 55.20, DebitCreditIndicator: "1"},
			{TransactionID: "tx-2", TransactionDateTime: "2024-08-10T10:00:00Z", DisplayTransactionType: "purchase", MerchantName: "Grocer", Amount: 20.00, DebitCreditIndicator: "1"},
			{TransactionID: "tx-3", TransactionDateTime: "2024-08-12T10:00:00Z", DisplayTransactionType: "purchase", MerchantName: "Cafe", Amount: 60.00, DebitCreditIndicator: "1"},
			{TransactionID: "tx-int", TransactionDateTime: "2024-08-31T00:00:00Z", TransactionType: "INTEREST_CHARGED", Amount: 42.50, DebitCreditIndicator: "1"},
			{TransactionID: "tx-pay", TransactionDateTime: "2024-08-15T00:00:00Z", DisplayTransactionType: "payment", Amount: 500.00, DebitCreditIndicator: "1"},
		},
		Payments: []domain.Payment{
			{PaymentID: "pay-1", PaymentDateTime: "2024-08-15T00:00:00Z", Amount: floatPtr(500.00), Status: "posted"},
		},
	}
}

func findByText(t *testing.T, chunks []*domain.Chunk, fragment string) *domain.Chunk {
	t.Helper()
	for _, c := range chunks {
		if strings.Contains(c.Text, fragment) {
			return c
		}
	}
	t.Fatalf("no chunk containing %q", fragment)
	return nil
}

func TestBuildEmitsOneChunkPerRecordPlusSynthetics(t *testing.T) {
	b := NewBuilder(domain.DefaultRetrievalPolicy(), nil)
	chunks := b.Build(testBundle(), "")

	counts := map[domain.SourceKind]int{}
	for _, c := range chunks {
		counts[c.Source]++
	}
	if counts[domain.SourceAccount] != 1 || counts[domain.SourceStatement] != 2 ||
		counts[domain.SourceTransaction] != 5 || counts[domain.SourcePayment] != 1 {
		t.Fatalf("unexpected record chunk counts: %v", counts)
	}
	if counts[domain.SourceSchema] != 1 {
		t.Fatalf("expected exactly one schema chunk, got %d", counts[domain.SourceSchema])
	}
	if counts[domain.SourceAgreement] != 1 {
		t.Fatalf("expected fallback agreement chunk, got %d", counts[domain.SourceAgreement])
	}

	last := chunks[len(chunks)-1]
	if last.Source != domain.SourceSchema {
		t.Fatalf("schema chunk must be last, got %s", last.Source)
	}
}

func TestBuildRecordChunkCarriesHeaderAndFullJSON(t *testing.T) {
	b := NewBuilder(domain.DefaultRetrievalPolicy(), nil)
	chunks := b.Build(testBundle(), "")

	chunk := findByText(t, chunks, "STATEMENT id=st-aug")
	if !strings.Contains(chunk.Text, "ym=2024-08") {
		t.Fatalf("statement header missing ym: %q", chunk.Text)
	}
	if !strings.Contains(chunk.Text, "interestCharged=42.5") {
		t.Fatalf("statement header missing interest: %q", chunk.Text)
	}
	if !strings.Contains(chunk.Text, "\nJSON::{") {
		t.Fatalf("record chunk must embed full JSON: %q", chunk.Text)
	}
	if chunk.Meta.YM != "2024-08" || chunk.Meta.ID != "st-aug" {
		t.Fatalf("unexpected meta: %+v", chunk.Meta)
	}
}

func TestBuildTransactionMetaClassification(t *testing.T) {
	b := NewBuilder(domain.DefaultRetrievalPolicy(), nil)
	chunks := b.Build(testBundle(), "")

	spend := findByText(t, chunks, "TRANSACTION id=tx-1")
	if !spend.Meta.BoolExtra("spend_candidate") || !spend.Meta.BoolExtra("debit") {
		t.Fatalf("tx-1 should be a spend candidate: %+v", spend.Meta.Extra)
	}

	payment := findByText(t, chunks, "TRANSACTION id=tx-pay")
	if payment.Meta.BoolExtra("spend_candidate") {
		t.Fatal("payment-typed debit must not be a spend candidate")
	}

	interest := findByText(t, chunks, "TRANSACTION id=tx-int")
	if !interest.Meta.BoolExtra("interest") {
		t.Fatal("interest transaction must carry the interest flag")
	}
	if interest.Meta.BoolExtra("spend_candidate") {
		t.Fatal("interest transaction must not be a spend candidate")
	}
}

func TestBuildAggregates(t *testing.T) {
	b := NewBuilder(domain.DefaultRetrievalPolicy(), nil)
	chunks := b.Build(testBundle(), "")

	stmtAgg := findByText(t, chunks, "interest_from_statements_total=42.50")
	if stmtAgg.Meta.YM != "2024-08" || stmtAgg.Meta.StringExtra("metric") != "interest_from_statements_total" {
		t.Fatalf("unexpected statement aggregate meta: %+v", stmtAgg.Meta)
	}
	findByText(t, chunks, "interest_from_statements_total=10.00")
	findByText(t, chunks, "interest_from_interest_transactions_total=42.50")

	// Spend total: 55.20 + 20.00 + 60.00; payment and interest rows excluded.
	findByText(t, chunks, "spend_total=135.20")

	topAgg := findByText(t, chunks, "top_merchant=")
	if !strings.Contains(topAgg.Text, `top_merchant="Grocer"`) || !strings.Contains(topAgg.Text, "top_merchant_total=75.20") {
		t.Fatalf("expected Grocer as top merchant: %q", topAgg.Text)
	}
}

func TestBuildAgreementWindowsOverlap(t *testing.T) {
	b := NewBuilder(domain.DefaultRetrievalPolicy(), nil)
	long := strings.Repeat("interest accrues daily on unpaid balances ", 60)
	chunks := b.Build(domain.Bundle{}, long)

	var windows []string
	for _, c := range chunks {
		if c.Source == domain.SourceAgreement {
			windows = append(windows, c.Text)
		}
	}
	if len(windows) < 2 {
		t.Fatalf("expected multiple agreement windows, got %d", len(windows))
	}
	for _, w := range windows {
		if !strings.HasPrefix(w, "AGREEMENT: ") {
			t.Fatalf("window missing prefix: %q", w[:30])
		}
	}

	// Consecutive windows share their overlap region.
	first := strings.TrimPrefix(windows[0], "AGREEMENT: ")
	second := strings.TrimPrefix(windows[1], "AGREEMENT: ")
	tail := first[len(first)-50:]
	if !strings.Contains(second, tail) {
		t.Fatal("expected second window to repeat the first window's tail")
	}
}

func TestBuildDeterministicOrder(t *testing.T) {
	b := NewBuilder(domain.DefaultRetrievalPolicy(), nil)
	first := b.Build(testBundle(), "agreement text body")
	second := b.Build(testBundle(), "agreement text body")

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text || first[i].Source != second[i].Source {
			t.Fatalf("build not deterministic at index %d", i)
		}
	}
}

func TestWindowTextNormalizesWhitespace(t *testing.T) {
	windows := windowText("a\n\nb\t c   d", 100, 20)
	if len(windows) != 1 || windows[0] != "a b c d" {
		t.Fatalf("unexpected windows: %v", windows)
	}
	if got := windowText("   ", 100, 20); got != nil {
		t.Fatalf("expected nil for blank text, got %v", got)
	}
}
