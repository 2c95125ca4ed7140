package domain

import "testing"

func TestResolveTransactionDtISONeverUsesAuthDate(t *testing.T) {
	policy := DefaultRetrievalPolicy()

	tests := []struct {
		name string
		tx   Transaction
		want string
	}{
		{
			name: "transaction date preferred",
			tx: Transaction{
				TransactionDateTime: "2024-08-03T10:00:00Z",
				PostingDateTime:     "2024-08-05T00:00:00Z",
				AuthDateTime:        "2024-08-01T09:00:00Z",
			},
			want: "2024-08-03T10:00:00Z",
		},
		{
			name: "posting fallback",
			tx: Transaction{
				PostingDateTime: "2024-08-05T00:00:00Z",
				AuthDateTime:    "2024-08-01T09:00:00Z",
			},
			want: "2024-08-05T00:00:00Z",
		},
		{
			name: "auth date alone yields empty",
			tx: Transaction{
				AuthDateTime: "2024-08-01T09:00:00Z",
			},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.ResolveTransactionDtISO(tt.tx); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveStatementDtISOFallbackChain(t *testing.T) {
	policy := DefaultRetrievalPolicy()

	st := Statement{ClosingDateTime: "2024-08-31T00:00:00Z", OpeningDateTime: "2024-08-01T00:00:00Z"}
	if got := policy.ResolveStatementDtISO(st); got != "2024-08-31T00:00:00Z" {
		t.Fatalf("expected closing date, got %q", got)
	}
	st = Statement{OpeningDateTime: "2024-08-01T00:00:00Z", DueDate: "2024-09-15"}
	if got := policy.ResolveStatementDtISO(st); got != "2024-08-01T00:00:00Z" {
		t.Fatalf("expected opening date, got %q", got)
	}
	st = Statement{DueDate: "2024-09-15"}
	if got := policy.ResolveStatementDtISO(st); got != "2024-09-15" {
		t.Fatalf("expected due date, got %q", got)
	}
}

func TestParseISOTimeShapes(t *testing.T) {
	for _, s := range []string{
		"2024-08-03T10:00:00Z",
		"2024-08-03T10:00:00",
		"2024-08-03 10:00:00",
		"2024-08-03",
	} {
		if _, ok := ParseISOTime(s); !ok {
			t.Fatalf("expected %q to parse", s)
		}
	}
	if _, ok := ParseISOTime("not-a-date"); ok {
		t.Fatal("expected parse failure")
	}
	if _, ok := ParseISOTime(""); ok {
		t.Fatal("expected parse failure for empty input")
	}
}

func TestYMFromISO(t *testing.T) {
	if got := YMFromISO("2024-08-03T10:00:00Z"); got != "2024-08" {
		t.Fatalf("got %q", got)
	}
	if got := YMFromISO("garbage"); got != "" {
		t.Fatalf("expected empty ym, got %q", got)
	}
}

func TestIsSpendCandidateExclusions(t *testing.T) {
	policy := DefaultRetrievalPolicy()

	tests := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{"plain debit purchase", Transaction{DebitCreditIndicator: "1", DisplayTransactionType: "purchase"}, true},
		{"missing indicator counts as debit", Transaction{DisplayTransactionType: "purchase"}, true},
		{"credit never spend", Transaction{DebitCreditIndicator: "2", DisplayTransactionType: "purchase"}, false},
		{"payment excluded", Transaction{DebitCreditIndicator: "1", DisplayTransactionType: "Payment"}, false},
		{"refund excluded", Transaction{DebitCreditIndicator: "1", DisplayTransactionType: "refund"}, false},
		{"interest excluded", Transaction{DebitCreditIndicator: "1", DisplayTransactionType: "interest"}, false},
		{"fee reversal excluded", Transaction{DebitCreditIndicator: "1", DisplayTransactionType: "Fee Reversal"}, false},
		{"falls back to transactionType", Transaction{DebitCreditIndicator: "1", TransactionType: "PAYMENT"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.IsSpendCandidate(tt.tx); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasInterestFlag(t *testing.T) {
	if !HasInterestFlag(Transaction{TransactionType: "INTEREST_CHARGED"}) {
		t.Fatal("uppercase type should flag interest")
	}
	if !HasInterestFlag(Transaction{DisplayTransactionType: "interest_charged"}) {
		t.Fatal("display type should flag interest")
	}
	if !HasInterestFlag(Transaction{MerchantName: "Purchase Interest Charge"}) {
		t.Fatal("merchant name should flag interest")
	}
	if HasInterestFlag(Transaction{DisplayTransactionType: "purchase", MerchantName: "Grocer"}) {
		t.Fatal("plain purchase must not flag interest")
	}
}

func TestHasTimeframeMarker(t *testing.T) {
	policy := DefaultRetrievalPolicy()

	if !policy.HasTimeframeMarker("how much did I spend last month?") {
		t.Fatal("expected marker for 'month'")
	}
	if !policy.HasTimeframeMarker("spend since July") {
		t.Fatal("expected marker for 'since'")
	}
	if policy.HasTimeframeMarker("where did I spend the most") {
		t.Fatal("no timeframe named")
	}
	// Marker must match as a whole word, not a substring.
	if policy.HasTimeframeMarker("what is my monthly fee") {
		t.Fatal("'monthly' is not the marker 'month'")
	}
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		query string
		want  Intent
	}{
		{"Why was I charged interest this cycle?", IntentInterestWhy},
		{"why interest on my account", IntentInterestWhy},
		{"How much interest was charged in August?", IntentInterest},
		{"Where did I spend the most?", IntentSpend},
		{"top merchant for me", IntentSpend},
		{"What is my minimum amount due?", IntentGeneric},
	}
	for _, tt := range tests {
		if got := DetectIntent(tt.query); got != tt.want {
			t.Fatalf("DetectIntent(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}
