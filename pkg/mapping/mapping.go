package mapping

import (
	"github.com/chris/recurring-payments/pkg/api"
	"github.com/chris/recurring-payments/pkg/ledger"
	"github.com/chris/recurring-payments/pkg/models"
	"github.com/chris/recurring-payments/pkg/payments"
)

// ToApiPayment converts a domain Payment model to an API Payment model.
func ToApiPayment(p *models.Payment) *api.Payment {
	return &api.Payment{
		Address:            p.Address,
		IdempotencyKey:     p.IdempotencyKey,
		Memo:               p.Memo,
		Debtor:             p.Debtor,
		DebtorTokens:       p.DebtorTokens,
		Creditor:           p.Creditor,
		CreditorTokens:     p.CreditorTokens,
		Currency:           p.Currency,
		Status:             api.PaymentStatus(p.Status),
		Amount:             p.Amount,
		RecurrenceInterval: p.RecurrenceInterval,
		NextTransferAt:     p.NextTransferAt,
		CompletedAt:        p.CompletedAt,
		CreatedAt:          p.CreatedAt,
		NumInstallments:    p.NumInstallments,
		ExecutorFee:        p.ExecutorFee,
		ProtocolFee:        p.ProtocolFee,
		FeeReserve:         p.FeeReserve,
		AuthorityScheme:    p.AuthorityScheme,
	}
}

// ToApiPayments converts a slice of domain payments.
func ToApiPayments(ps []models.Payment) []*api.Payment {
	out := make([]*api.Payment, len(ps))
	for i := range ps {
		out[i] = ToApiPayment(&ps[i])
	}
	return out
}

// ToCreatePaymentRequest converts an API NewPayment model to an engine request.
func ToCreatePaymentRequest(np *api.NewPayment) payments.CreatePaymentRequest {
	req := payments.CreatePaymentRequest{
		IdempotencyKey:     np.IdempotencyKey,
		Debtor:             np.Debtor,
		DebtorTokens:       np.DebtorTokens,
		Creditor:           np.Creditor,
		CreditorTokens:     np.CreditorTokens,
		Currency:           np.Currency,
		Amount:             np.Amount,
		RecurrenceInterval: np.RecurrenceInterval,
		NextTransferAt:     np.NextTransferAt,
		CompletedAt:        np.CompletedAt,
	}
	if np.Memo != nil {
		req.Memo = *np.Memo
	}
	return req
}

// ToApiDistribution converts the result of a distribution.
func ToApiDistribution(d *payments.Distribution) *api.Distribution {
	return &api.Distribution{
		Outcome:     api.DistributionOutcome(d.Outcome),
		Payment:     *ToApiPayment(d.Payment),
		TransferLog: *ToApiTransferLog(d.Log),
	}
}

// ToApiTransferLog converts a domain TransferLog model to an API TransferLog model.
func ToApiTransferLog(l *models.TransferLog) *api.TransferLog {
	out := &api.TransferLog{
		Id:             l.ID,
		PaymentAddress: l.PaymentAddress,
		Executor:       l.Executor,
		Status:         api.TransferLogStatus(l.Status),
		Amount:         l.Amount,
		ExecutorFee:    l.ExecutorFee,
		ProtocolFee:    l.ProtocolFee,
		Timestamp:      l.Timestamp,
	}
	if l.Reason != "" {
		reason := l.Reason
		out.Reason = &reason
	}
	return out
}

// ToApiTransferLogs converts a slice of domain transfer logs.
func ToApiTransferLogs(logs []models.TransferLog) []*api.TransferLog {
	out := make([]*api.TransferLog, len(logs))
	for i := range logs {
		out[i] = ToApiTransferLog(&logs[i])
	}
	return out
}

// ToApiWallet converts a domain Wallet model to an API Wallet model.
func ToApiWallet(w *models.Wallet) *api.Wallet {
	return &api.Wallet{
		Address: w.Address,
		Balance: w.Balance,
	}
}

// ToDomainNewWallet converts an API NewWallet model to a domain Wallet model.
func ToDomainNewWallet(nw *api.NewWallet) *models.Wallet {
	return &models.Wallet{
		Address: nw.Address,
		Balance: nw.Balance,
	}
}

// ToApiTokenAccount converts a domain TokenAccount model to an API TokenAccount model.
func ToApiTokenAccount(a *models.TokenAccount) *api.TokenAccount {
	out := &api.TokenAccount{
		Address:         a.Address,
		Owner:           a.Owner,
		Currency:        a.Currency,
		Balance:         a.Balance,
		DelegatedAmount: a.DelegatedAmount,
	}
	if a.Delegate != "" {
		delegate := a.Delegate
		out.Delegate = &delegate
	}
	return out
}

// ToDomainNewTokenAccount converts an API NewTokenAccount model to a domain TokenAccount model.
// Without an explicit address the account lands at the owner's derived address for the currency.
func ToDomainNewTokenAccount(na *api.NewTokenAccount) *models.TokenAccount {
	address := ledger.TokenAccountAddress(na.Owner, na.Currency)
	if na.Address != nil && *na.Address != "" {
		address = *na.Address
	}
	return &models.TokenAccount{
		Address:  address,
		Owner:    na.Owner,
		Currency: na.Currency,
		Balance:  na.Balance,
	}
}

// ToApiTreasury converts the treasury handle and its wallet, which is nil before initialization.
func ToApiTreasury(t models.Treasury, w *models.Wallet) *api.Treasury {
	out := &api.Treasury{Address: t.Address}
	if w != nil {
		out.Balance = w.Balance
		out.Initialized = true
	}
	return out
}
