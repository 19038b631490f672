package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/lock"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
	"github.com/josh-kwaku/btc-wallet-core/internal/metrics"
	"github.com/josh-kwaku/btc-wallet-core/internal/notification"
)

// executeViaIntraledger settles a send to an address owned by another wallet
// of this ledger. Nothing is broadcast and no fee is charged.
func (s *Service) executeViaIntraledger(ctx context.Context, builder ConversionStage, recipientAccount *domain.Account, memo string) error {
	log := logging.FromContext(ctx)

	flow, err := builder.WithoutMinerFee()
	if err != nil {
		return fmt.Errorf("executeViaIntraledger: %w", err)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("payment.settlement_method", string(domain.SettlementMethodIntraLedger)),
	)

	if flow.Recipient == nil || flow.Recipient.UserID == uuid.Nil {
		return fmt.Errorf("executeViaIntraledger: expected recipient details missing: %w", domain.ErrInvalidPaymentFlowState)
	}

	ratio, err := s.priceRatioForLimits(ctx, flow.PaymentAmounts())
	if err != nil {
		return fmt.Errorf("executeViaIntraledger: %w", err)
	}
	checkLimits := s.limits.CheckIntraledger
	if flow.IsTradeIntraAccount() {
		checkLimits = s.limits.CheckTradeIntraAccount
	}
	if err := checkLimits(ctx, flow.SenderWallet.AccountID, flow.UsdPaymentAmount, ratio); err != nil {
		return fmt.Errorf("executeViaIntraledger: %w", err)
	}

	var (
		journalID        uuid.UUID
		recipientDisplay domain.DisplayAmount
	)
	err = s.locks.LockWalletID(ctx, flow.SenderWallet.ID, func(ctx context.Context) error {
		senderDisplay, err := s.prices.DisplayPriceRatio(ctx, flow.SenderAccount.DisplayCurrency)
		if err != nil {
			return err
		}
		recipientDisplayRatio, err := s.prices.DisplayPriceRatio(ctx, recipientAccount.DisplayCurrency)
		if err != nil {
			return err
		}
		recipientDisplay = recipientDisplayRatio.ConvertFromWallet(flow.BtcPaymentAmount)

		debitMeta, creditMeta := intraledgerMetadata(flow, memo,
			senderDisplay.ConvertFromWallet(flow.BtcPaymentAmount),
			recipientDisplay,
		)

		balance, err := s.ledger.GetWalletBalance(ctx, flow.SenderWallet)
		if err != nil {
			return err
		}
		if err := flow.CheckBalanceForSend(balance); err != nil {
			return err
		}

		if err := lock.CheckHeld(ctx); err != nil {
			return err
		}

		journalID, err = s.ledger.RecordIntraledger(ctx, domain.RecordIntraledgerArgs{
			Amount:         flow.PaymentAmounts(),
			Sender:         flow.SenderWallet,
			Recipient:      flow.Recipient.Wallet,
			DebitMetadata:  debitMeta,
			CreditMetadata: creditMeta,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("executeViaIntraledger: %w", err)
	}

	log.Info("intraledger payment completed",
		"journal_id", journalID,
		"sender_wallet_id", flow.SenderWallet.ID,
		"recipient_wallet_id", flow.Recipient.Wallet.ID,
		"sats", flow.BtcPaymentAmount.Amount,
		"cents", flow.UsdPaymentAmount.Amount,
	)

	s.notifyRecipient(ctx, flow, recipientAccount, recipientDisplay)
	return nil
}

// intraledgerMetadata shapes the two sides of an intraledger journal. A move
// between wallets of one account is a trade and carries no usernames.
func intraledgerMetadata(flow PaymentFlow, memo string, senderDisplay, recipientDisplay domain.DisplayAmount) (debit, credit domain.LedgerMetadata) {
	recipientWalletID := flow.Recipient.Wallet.ID
	base := domain.LedgerMetadata{
		Type:              domain.LedgerTransactionTypeOnchainIntraLedger,
		SatsAmount:        flow.BtcPaymentAmount.Amount,
		CentsAmount:       flow.UsdPaymentAmount.Amount,
		MemoFromPayer:     memo,
		RecipientWalletID: &recipientWalletID,
		Address:           flow.Address,
		SendAll:           flow.SendAll,
	}

	debit, credit = base, base
	debit.DisplayAmount = senderDisplay.AmountInMinor
	debit.DisplayCurrency = senderDisplay.Currency

	if flow.IsTradeIntraAccount() {
		debit.Type = domain.LedgerTransactionTypeOnChainTradeIntraAccount
		credit = debit
		return debit, credit
	}

	debit.Username = flow.Recipient.Username
	credit.Username = flow.SenderAccount.Username
	credit.DisplayAmount = recipientDisplay.AmountInMinor
	credit.DisplayCurrency = recipientDisplay.Currency
	return debit, credit
}

// notifyRecipient runs after the commit. Failures are logged and counted
// but never change the payment result.
func (s *Service) notifyRecipient(ctx context.Context, flow PaymentFlow, recipientAccount *domain.Account, display domain.DisplayAmount) {
	log := logging.FromContext(ctx)
	if s.notifier == nil {
		return
	}

	user, err := s.users.GetByID(ctx, recipientAccount.UserID)
	if err != nil {
		metrics.IncBestEffortFailure("notify_recipient")
		log.Warn("recipient user lookup failed", "account_id", recipientAccount.ID, "error", err)
		return
	}

	err = s.notifier.IntraLedgerTxReceived(ctx, notification.IntraLedgerTxReceivedArgs{
		RecipientAccountID: recipientAccount.ID,
		RecipientWalletID:  flow.Recipient.Wallet.ID,
		Amount:             flow.PaymentAmounts().In(flow.Recipient.Wallet.Currency),
		DisplayAmount:      display,
		DeviceTokens:       user.DeviceTokens,
		Language:           user.Language,
	})
	if err != nil {
		metrics.IncBestEffortFailure("notify_recipient")
		log.Warn("intraledger receipt notification failed", "account_id", recipientAccount.ID, "error", err)
	}
}
