package domain

import (
	"strings"
	"time"
)

// RetrievalPolicy is the configurable business-rule table for retrieval.
// The historical source of this system carried diverging spend-exclusion
// lists and date-fallback chains; the defaults below are the strict variant,
// and any deployment that needs another one swaps the table, not the code.
type RetrievalPolicy struct {
	// SpendExcludeTypes holds normalized (lowercase) transaction types that
	// never count as spend even when the transaction is a debit.
	SpendExcludeTypes []string

	// TimeframeWords are the markers whose presence in a query means the
	// user named a timeframe, suppressing the current-month default window.
	TimeframeWords []string
}

func DefaultRetrievalPolicy() RetrievalPolicy {
	return RetrievalPolicy{
		SpendExcludeTypes: []string{"payment", "refund", "credit", "interest", "fee reversal"},
		TimeframeWords: []string{
			"month", "year", "week", "day", "today", "yesterday",
			"between", "since", "from", "to", "range",
		},
	}
}

// ParseISOTime parses the ISO-8601 shapes that occur in the banking records,
// including a trailing Z and date-only values. All results are UTC.
func ParseISOTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// YMFromISO derives the YYYY-MM bucket from an ISO timestamp, or "" when the
// timestamp cannot be parsed.
func YMFromISO(dtISO string) string {
	t, ok := ParseISOTime(dtISO)
	if !ok {
		return ""
	}
	return t.Format("2006-01")
}

// ResolveTransactionDtISO returns the canonical timestamp of a transaction:
// transactionDateTime, falling back to postingDateTime. authDateTime is never
// consulted; it must not drive windowing, freshness or "latest" answers.
func (p RetrievalPolicy) ResolveTransactionDtISO(tx Transaction) string {
	if strings.TrimSpace(tx.TransactionDateTime) != "" {
		return tx.TransactionDateTime
	}
	return tx.PostingDateTime
}

// ResolveStatementDtISO prefers the closing timestamp for statement bucketing.
func (p RetrievalPolicy) ResolveStatementDtISO(st Statement) string {
	for _, candidate := range []string{st.ClosingDateTime, st.OpeningDateTime, st.DueDate} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

func (p RetrievalPolicy) ResolvePaymentDtISO(pay Payment) string {
	if strings.TrimSpace(pay.PaymentDateTime) != "" {
		return pay.PaymentDateTime
	}
	return pay.ScheduledPaymentDateTime
}

// NormalizedType is the transaction type used for spend classification.
func NormalizedType(tx Transaction) string {
	t := tx.DisplayTransactionType
	if strings.TrimSpace(t) == "" {
		t = tx.TransactionType
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// IsDebit reports whether the transaction is an outflow. An absent indicator
// is treated as debit, matching the record producer's convention.
func IsDebit(tx Transaction) bool {
	ind := strings.TrimSpace(tx.DebitCreditIndicator)
	return ind == "" || ind == "1"
}

// IsSpendCandidate classifies a transaction as genuine spend: a debit whose
// normalized type is not excluded. Computed once at corpus build and stored
// in chunk meta so every later stage consumes the identical decision.
func (p RetrievalPolicy) IsSpendCandidate(tx Transaction) bool {
	if !IsDebit(tx) {
		return false
	}
	dtype := NormalizedType(tx)
	for _, excluded := range p.SpendExcludeTypes {
		if dtype == excluded {
			return false
		}
	}
	return true
}

// HasInterestFlag reports whether a transaction itself represents an
// interest charge.
func HasInterestFlag(tx Transaction) bool {
	if strings.Contains(strings.ToUpper(tx.TransactionType), "INTEREST") {
		return true
	}
	if strings.ToLower(strings.TrimSpace(tx.DisplayTransactionType)) == "interest_charged" {
		return true
	}
	return strings.Contains(strings.ToLower(tx.MerchantName), "interest")
}

// HasTimeframeMarker reports whether the query names any timeframe itself.
func (p RetrievalPolicy) HasTimeframeMarker(query string) bool {
	words := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		words[strings.Trim(w, ".,!?;:()[]\"'")] = struct{}{}
	}
	for _, marker := range p.TimeframeWords {
		if _, ok := words[marker]; ok {
			return true
		}
	}
	return false
}

// Intent is the coarse query class that drives window inference and the
// rule-chunk guarantee.
type Intent string

const (
	IntentSpend       Intent = "spend"
	IntentInterest    Intent = "interest"
	IntentInterestWhy Intent = "interest_why"
	IntentGeneric     Intent = "generic"
)

// DetectIntent classifies a question lexically. Explanatory interest intents
// win over plain interest facts; spend/top-merchant questions get the
// current-month default window when no timeframe is named.
func DetectIntent(query string) Intent {
	s := strings.ToLower(strings.TrimSpace(query))

	whyKeys := []string{
		"why was my interest", "why was i charged interest",
		"what caused the interest", "why interest",
		"transactions responsible for interest",
	}
	for _, k := range whyKeys {
		if strings.Contains(s, k) {
			return IntentInterestWhy
		}
	}
	if strings.Contains(s, "why") && strings.Contains(s, "interest") {
		return IntentInterestWhy
	}
	if strings.Contains(s, "interest") {
		return IntentInterest
	}

	spendKeys := []string{
		"where did i spend", "top merchant", "top merchants",
		"how much did i spend", "spend", "spent",
	}
	for _, k := range spendKeys {
		if strings.Contains(s, k) {
			return IntentSpend
		}
	}

	return IntentGeneric
}
