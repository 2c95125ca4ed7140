package domain

// Typed banking records as found in the data directory. Optional numeric
// fields are pointers so that an absent field is distinguishable from zero.

type AccountSummary struct {
	AccountID          string   `json:"accountId"`
	AccountStatus      string   `json:"accountStatus,omitempty"`
	AccountNumberLast4 string   `json:"accountNumberLast4,omitempty"`
	CreditLimit        *float64 `json:"creditLimit,omitempty"`
	CurrentBalance     *float64 `json:"currentBalance,omitempty"`
	AvailableCredit    *float64 `json:"availableCredit,omitempty"`
	OpenedDate         string   `json:"openedDate,omitempty"`
	ClosedDate         string   `json:"closedDate,omitempty"`
}

type Statement struct {
	StatementID      string   `json:"statementId"`
	ClosingDateTime  string   `json:"closingDateTime,omitempty"`
	OpeningDateTime  string   `json:"openingDateTime,omitempty"`
	DueDate          string   `json:"dueDate,omitempty"`
	MinimumAmountDue *float64 `json:"minimumAmountDue,omitempty"`
	TotalAmountDue   *float64 `json:"totalAmountDue,omitempty"`
	EndingBalance    *float64 `json:"endingBalance,omitempty"`
	InterestCharged  *float64 `json:"interestCharged,omitempty"`
}

type Transaction struct {
	TransactionID          string  `json:"transactionId"`
	TransactionDateTime    string  `json:"transactionDateTime,omitempty"`
	PostingDateTime        string  `json:"postingDateTime,omitempty"`
	AuthDateTime           string  `json:"authDateTime,omitempty"`
	TransactionType        string  `json:"transactionType,omitempty"`
	DisplayTransactionType string  `json:"displayTransactionType,omitempty"`
	MerchantName           string  `json:"merchantName,omitempty"`
	Description            string  `json:"description,omitempty"`
	Amount                 float64 `json:"amount"`
	DebitCreditIndicator   string  `json:"debitCreditIndicator,omitempty"`
}

type Payment struct {
	PaymentID                string   `json:"paymentId,omitempty"`
	ScheduledPaymentID       string   `json:"scheduledPaymentId,omitempty"`
	PaymentDateTime          string   `json:"paymentDateTime,omitempty"`
	ScheduledPaymentDateTime string   `json:"scheduledPaymentDateTime,omitempty"`
	Amount                   *float64 `json:"amount,omitempty"`
	Status                   string   `json:"status,omitempty"`
	PaymentStatus            string   `json:"paymentStatus,omitempty"`
}

// Bundle is one loaded snapshot of the data directory. Missing source files
// degrade to empty slices, never to a load failure.
type Bundle struct {
	AccountSummary []AccountSummary
	Statements     []Statement
	Transactions   []Transaction
	Payments       []Payment
}

func (b Bundle) Empty() bool {
	return len(b.AccountSummary) == 0 &&
		len(b.Statements) == 0 &&
		len(b.Transactions) == 0 &&
		len(b.Payments) == 0
}

func (p Payment) EffectiveStatus() string {
	if p.Status != "" {
		return p.Status
	}
	return p.PaymentStatus
}

func (p Payment) NaturalID() string {
	if p.PaymentID != "" {
		return p.PaymentID
	}
	return p.ScheduledPaymentID
}
