package corpus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

const (
	defaultWindowSize    = 1000
	defaultWindowOverlap = 200
)

// SchemaRuleText is the retrievable statement of field precedence and the
// date/spend policies, emitted as a schema chunk so the rules reach the
// generator as evidence rather than living only in a prompt.
const SchemaRuleText = "SCHEMA: STATEMENT{ym, interestCharged, endingBalance, minimumAmountDue, totalAmountDue}; " +
	"TRANSACTION{ym, amount, interestFlag, description, type}; " +
	"PAYMENT{ym, amount, status}; " +
	"PREFER: AGGREGATE.interest_from_statements_total > STATEMENT.interestCharged > TRANSACTION[interestFlag=true]. " +
	"DATE_POLICY: use transactionDateTime; fallback postingDateTime; ignore authDateTime. " +
	"SPEND_POLICY: only debit/outflow; exclude payment/refund/credit/interest/fee reversal."

// AgreementFallbackText grounds policy questions when the agreement PDF is
// missing or yields no text.
const AgreementFallbackText = "AGREEMENT: (text unavailable) RULE: the cardholder agreement could not be read; " +
	"answer policy questions from statement and transaction fields only and say the agreement text was not available."

// Builder turns one loaded data snapshot into the ordered chunk corpus.
// Output order is deterministic: source kind in fixed sequence, records in
// input order, aggregates by sorted key.
type Builder struct {
	policy        domain.RetrievalPolicy
	windowSize    int
	windowOverlap int
	logger        *slog.Logger
}

func NewBuilder(policy domain.RetrievalPolicy, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		policy:        policy,
		windowSize:    defaultWindowSize,
		windowOverlap: defaultWindowOverlap,
		logger:        logger,
	}
}

// Build renders every record into exactly one information-preserving chunk,
// synthesizes aggregate and schema chunks, and windows the agreement text.
// No truncation happens at build; caps are applied at context assembly.
func (b *Builder) Build(bundle domain.Bundle, agreementText string) []*domain.Chunk {
	chunks := make([]*domain.Chunk, 0,
		len(bundle.AccountSummary)+len(bundle.Statements)+len(bundle.Transactions)+len(bundle.Payments)+16)

	for _, acc := range bundle.AccountSummary {
		chunks = append(chunks, b.accountChunk(acc))
	}
	for _, st := range bundle.Statements {
		chunks = append(chunks, b.statementChunk(st))
	}
	for _, tx := range bundle.Transactions {
		chunks = append(chunks, b.transactionChunk(tx))
	}
	for _, pay := range bundle.Payments {
		chunks = append(chunks, b.paymentChunk(pay))
	}

	chunks = append(chunks, b.aggregateChunks(bundle)...)
	chunks = append(chunks, b.agreementChunks(agreementText)...)

	chunks = append(chunks, &domain.Chunk{
		Text:   SchemaRuleText,
		Source: domain.SourceSchema,
		Meta:   domain.ChunkMeta{Extra: map[string]any{"kind": "schema"}},
	})

	return chunks
}

func (b *Builder) accountChunk(acc domain.AccountSummary) *domain.Chunk {
	header := headerLine("ACCOUNT", acc.AccountID, "",
		kvNum("currentBalance", acc.CurrentBalance),
		kvNum("creditLimit", acc.CreditLimit),
		kvStr("accountStatus", acc.AccountStatus),
	)
	return &domain.Chunk{
		Text:   header + "\nJSON::" + compactJSON(acc),
		Source: domain.SourceAccount,
		Meta: domain.ChunkMeta{
			ID: acc.AccountID,
			Extra: map[string]any{
				"accountStatus": acc.AccountStatus,
			},
		},
	}
}

func (b *Builder) statementChunk(st domain.Statement) *domain.Chunk {
	dtISO := b.policy.ResolveStatementDtISO(st)
	ym := domain.YMFromISO(dtISO)
	header := headerLine("STATEMENT", st.StatementID, ym,
		kvNum("interestCharged", st.InterestCharged),
		kvNum("endingBalance", st.EndingBalance),
		kvNum("minimumAmountDue", st.MinimumAmountDue),
	)
	extra := map[string]any{
		"closingDateTime": st.ClosingDateTime,
		"openingDateTime": st.OpeningDateTime,
	}
	if st.InterestCharged != nil {
		extra["interestCharged"] = *st.InterestCharged
	}
	return &domain.Chunk{
		Text:   header + "\nJSON::" + compactJSON(st),
		Source: domain.SourceStatement,
		Meta: domain.ChunkMeta{
			ID:    st.StatementID,
			YM:    ym,
			DtISO: dtISO,
			Extra: extra,
		},
	}
}

func (b *Builder) transactionChunk(tx domain.Transaction) *domain.Chunk {
	dtISO := b.policy.ResolveTransactionDtISO(tx)
	ym := domain.YMFromISO(dtISO)
	interest := domain.HasInterestFlag(tx)

	parts := []string{kvFloat("amount", tx.Amount), kvStr("type", domain.NormalizedType(tx)), kvStr("merchant", tx.MerchantName)}
	if interest {
		parts = append(parts, "interestFlag=true")
	}
	header := headerLine("TRANSACTION", tx.TransactionID, ym, parts...)

	return &domain.Chunk{
		Text:   header + "\nJSON::" + compactJSON(tx),
		Source: domain.SourceTransaction,
		Meta: domain.ChunkMeta{
			ID:    tx.TransactionID,
			YM:    ym,
			DtISO: dtISO,
			Extra: map[string]any{
				"amount":          tx.Amount,
				"type":            domain.NormalizedType(tx),
				"merchant":        tx.MerchantName,
				"debit":           domain.IsDebit(tx),
				"interest":        interest,
				"spend_candidate": b.policy.IsSpendCandidate(tx),
			},
		},
	}
}

func (b *Builder) paymentChunk(pay domain.Payment) *domain.Chunk {
	dtISO := b.policy.ResolvePaymentDtISO(pay)
	ym := domain.YMFromISO(dtISO)
	header := headerLine("PAYMENT", pay.NaturalID(), ym,
		kvNum("amount", pay.Amount),
		kvStr("status", pay.EffectiveStatus()),
	)
	extra := map[string]any{"status": pay.EffectiveStatus()}
	if pay.Amount != nil {
		extra["amount"] = *pay.Amount
	}
	return &domain.Chunk{
		Text:   header + "\nJSON::" + compactJSON(pay),
		Source: domain.SourcePayment,
		Meta: domain.ChunkMeta{
			ID:    pay.NaturalID(),
			YM:    ym,
			DtISO: dtISO,
			Extra: extra,
		},
	}
}

// aggregateChunks precomputes the sums the generator must never re-derive
// from raw rows. The two interest totals stay independent: statement-stated
// is the source of truth, transaction-derived the cross-check.
func (b *Builder) aggregateChunks(bundle domain.Bundle) []*domain.Chunk {
	interestStmt := map[string]float64{}
	interestTx := map[string]float64{}
	spendTotal := map[string]float64{}
	merchantSpend := map[string]map[string]float64{}

	for _, st := range bundle.Statements {
		ym := domain.YMFromISO(b.policy.ResolveStatementDtISO(st))
		if ym == "" || st.InterestCharged == nil {
			continue
		}
		interestStmt[ym] += *st.InterestCharged
	}
	for _, tx := range bundle.Transactions {
		ym := domain.YMFromISO(b.policy.ResolveTransactionDtISO(tx))
		if ym == "" {
			continue
		}
		if domain.HasInterestFlag(tx) {
			interestTx[ym] += math.Abs(tx.Amount)
		}
		if b.policy.IsSpendCandidate(tx) {
			spendTotal[ym] += math.Abs(tx.Amount)
			merchant := strings.TrimSpace(tx.MerchantName)
			if merchant != "" {
				if merchantSpend[ym] == nil {
					merchantSpend[ym] = map[string]float64{}
				}
				merchantSpend[ym][merchant] += math.Abs(tx.Amount)
			}
		}
	}

	out := make([]*domain.Chunk, 0, len(interestStmt)+len(interestTx)+2*len(spendTotal))
	for _, ym := range sortedKeys(interestStmt) {
		out = append(out, aggregateChunk(ym, "interest_from_statements_total",
			fmt.Sprintf("AGGREGATE ym=%s interest_from_statements_total=%.2f (sum of statement interestCharged for ym)", ym, interestStmt[ym])))
	}
	for _, ym := range sortedKeys(interestTx) {
		out = append(out, aggregateChunk(ym, "interest_from_interest_transactions_total",
			fmt.Sprintf("AGGREGATE ym=%s interest_from_interest_transactions_total=%.2f (sum of INTEREST transactions for ym)", ym, interestTx[ym])))
	}
	for _, ym := range sortedKeys(spendTotal) {
		out = append(out, aggregateChunk(ym, "spend_total",
			fmt.Sprintf("AGGREGATE ym=%s spend_total=%.2f (sum of spend-candidate debits for ym)", ym, spendTotal[ym])))
	}
	for _, ym := range sortedKeys(merchantSpend) {
		merchant, total := topMerchant(merchantSpend[ym])
		out = append(out, aggregateChunk(ym, "top_merchant",
			fmt.Sprintf("AGGREGATE ym=%s top_merchant=%q top_merchant_total=%.2f (largest spend-candidate merchant sum for ym)", ym, merchant, total)))
	}
	return out
}

func (b *Builder) agreementChunks(agreementText string) []*domain.Chunk {
	windows := windowText(agreementText, b.windowSize, b.windowOverlap)
	if len(windows) == 0 {
		b.logger.Warn("agreement text unavailable, emitting fallback rule chunk")
		return []*domain.Chunk{{
			Text:   AgreementFallbackText,
			Source: domain.SourceAgreement,
			Meta:   domain.ChunkMeta{Extra: map[string]any{"file": "agreement.pdf", "fallback": true}},
		}}
	}

	out := make([]*domain.Chunk, 0, len(windows))
	for _, w := range windows {
		out = append(out, &domain.Chunk{
			Text:   "AGREEMENT: " + w,
			Source: domain.SourceAgreement,
			Meta:   domain.ChunkMeta{Extra: map[string]any{"file": "agreement.pdf"}},
		})
	}
	return out
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// windowText splits into fixed-size overlapping windows so no clause is lost
// across a boundary without partial duplication in the adjacent window.
func windowText(text string, size, overlap int) []string {
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = defaultWindowSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	runes := []rune(text)
	out := make([]string, 0, len(runes)/(size-overlap)+1)
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			out = append(out, window)
		}
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return out
}

func aggregateChunk(ym, metric, text string) *domain.Chunk {
	return &domain.Chunk{
		Text:   text,
		Source: domain.SourceAggregate,
		Meta: domain.ChunkMeta{
			YM:    ym,
			Extra: map[string]any{"metric": metric},
		},
	}
}

func topMerchant(spend map[string]float64) (string, float64) {
	best, bestTotal := "", 0.0
	for _, merchant := range sortedKeys(spend) {
		if spend[merchant] > bestTotal {
			best, bestTotal = merchant, spend[merchant]
		}
	}
	return best, bestTotal
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func headerLine(kind, id, ym string, extras ...string) string {
	parts := []string{kind}
	if id != "" {
		parts = append(parts, "id="+id)
	}
	if ym != "" {
		parts = append(parts, "ym="+ym)
	}
	for _, e := range extras {
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, " ")
}

func kvStr(key, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return key + "=" + value
}

func kvNum(key string, value *float64) string {
	if value == nil {
		return ""
	}
	return kvFloat(key, *value)
}

func kvFloat(key string, value float64) string {
	return key + "=" + strconv.FormatFloat(value, 'f', -1, 64)
}

func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
