package models

// PaymentStatus defines the possible states of a payment.
type PaymentStatus string

const (
	SCHEDULED PaymentStatus = "SCHEDULED"
	COMPLETED PaymentStatus = "COMPLETED"
	FAILED    PaymentStatus = "FAILED"
)

// Terminal reports whether no further distribution is permitted.
func (s PaymentStatus) Terminal() bool {
	return s == COMPLETED || s == FAILED
}

// TransferStatus records the result of a single distribution attempt.
type TransferStatus string

const (
	SUCCEEDED       TransferStatus = "SUCCEEDED"
	TRANSFER_FAILED TransferStatus = "FAILED"
)

// Payment is the persistent record of a recurring payment between a debtor and a creditor.
// Timestamps are unix seconds supplied by the ledger clock.
type Payment struct {
	Address            string        `json:"address" dynamodbav:"address"`
	IdempotencyKey     string        `json:"idempotency_key" dynamodbav:"idempotency_key"`
	Memo               string        `json:"memo" dynamodbav:"memo"`
	Debtor             string        `json:"debtor" dynamodbav:"debtor"`
	DebtorTokens       string        `json:"debtor_tokens" dynamodbav:"debtor_tokens"`
	Creditor           string        `json:"creditor" dynamodbav:"creditor"`
	CreditorTokens     string        `json:"creditor_tokens" dynamodbav:"creditor_tokens"`
	Currency           string        `json:"currency" dynamodbav:"currency"`
	Status             PaymentStatus `json:"status" dynamodbav:"status"`
	Amount             uint64        `json:"amount" dynamodbav:"amount"`
	RecurrenceInterval uint64        `json:"recurrence_interval" dynamodbav:"recurrence_interval"`
	NextTransferAt     uint64        `json:"next_transfer_at" dynamodbav:"next_transfer_at"`
	CompletedAt        uint64        `json:"completed_at" dynamodbav:"completed_at"`
	CreatedAt          uint64        `json:"created_at" dynamodbav:"created_at"`
	NumInstallments    uint64        `json:"num_installments" dynamodbav:"num_installments"`
	ExecutorFee        uint64        `json:"executor_fee" dynamodbav:"executor_fee"`
	ProtocolFee        uint64        `json:"protocol_fee" dynamodbav:"protocol_fee"`
	FeeReserve         uint64        `json:"fee_reserve" dynamodbav:"fee_reserve"`
	AuthoritySeed      []byte        `json:"authority_seed" dynamodbav:"authority_seed"`
	AuthorityScheme    string        `json:"authority_scheme" dynamodbav:"authority_scheme,omitempty"`
	Version            int64         `json:"version" dynamodbav:"version"`
}

// Wallet holds an identity's balance of the ledger's native settlement unit.
// Fees are paid from and to wallets.
type Wallet struct {
	Address string `json:"address" dynamodbav:"address"`
	Balance uint64 `json:"balance" dynamodbav:"balance"`
}

// TokenAccount holds a balance of one currency for one owner, plus at most one delegation.
type TokenAccount struct {
	Address         string `json:"address" dynamodbav:"address"`
	Owner           string `json:"owner" dynamodbav:"owner"`
	Currency        string `json:"currency" dynamodbav:"currency"`
	Balance         uint64 `json:"balance" dynamodbav:"balance"`
	Delegate        string `json:"delegate,omitempty" dynamodbav:"delegate,omitempty"`
	DelegatedAmount uint64 `json:"delegated_amount" dynamodbav:"delegated_amount"`
}

// Treasury is the handle to the protocol's fee accumulator.
type Treasury struct {
	Address string `json:"address"`
}

// TransferLogPartition is the GSI1PK every transfer log shares so the recent-logs index can
// return attempts across all payments.
const TransferLogPartition = "TRANSFER_LOGS"

// TransferLog is an append-only record of one distribution attempt.
type TransferLog struct {
	ID             string         `json:"id" dynamodbav:"id"`
	PaymentAddress string         `json:"payment_address" dynamodbav:"payment_address"`
	Executor       string         `json:"executor" dynamodbav:"executor"`
	Status         TransferStatus `json:"status" dynamodbav:"status"`
	Amount         uint64         `json:"amount" dynamodbav:"amount"`
	ExecutorFee    uint64         `json:"executor_fee" dynamodbav:"executor_fee"`
	ProtocolFee    uint64         `json:"protocol_fee" dynamodbav:"protocol_fee"`
	Reason         string         `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	Timestamp      uint64         `json:"timestamp" dynamodbav:"timestamp"`
	GSI1PK         string         `json:"-" dynamodbav:"gsi1pk"`
}
