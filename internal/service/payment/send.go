package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
	"github.com/josh-kwaku/btc-wallet-core/internal/metrics"
	"github.com/josh-kwaku/btc-wallet-core/internal/onchain"
)

// PayOnChainRequest is a send from one of the account's wallets to a
// bitcoin address. TargetConfirmations of zero uses the configured default.
type PayOnChainRequest struct {
	SenderWalletID      uuid.UUID `validate:"required"`
	SenderAccount       domain.Account
	Address             string `validate:"required,max=128"`
	Amount              uint64
	TargetConfirmations int
	Memo                string `validate:"max=1024"`
}

type sendArgs struct {
	PayOnChainRequest
	amountCurrency domain.WalletCurrency
	sendAll        bool
}

// PayOnChainByWalletID sends Amount, expressed in amountCurrency, from the
// sender wallet. Addresses owned by another wallet of this ledger settle
// intraledger and never reach the chain.
func (s *Service) PayOnChainByWalletID(ctx context.Context, req PayOnChainRequest, amountCurrency domain.WalletCurrency) (domain.PaymentSendStatus, error) {
	status, err := s.payOnChain(ctx, sendArgs{PayOnChainRequest: req, amountCurrency: amountCurrency})
	if err != nil {
		return status, fmt.Errorf("PayOnChainByWalletID: %w", err)
	}
	return status, nil
}

func (s *Service) PayOnChainByWalletIDForBtcWallet(ctx context.Context, req PayOnChainRequest) (domain.PaymentSendStatus, error) {
	if err := s.validateWalletCurrency(ctx, req.SenderWalletID, domain.WalletCurrencyBTC); err != nil {
		return domain.PaymentSendStatusFailure, fmt.Errorf("PayOnChainByWalletIDForBtcWallet: %w", err)
	}
	status, err := s.payOnChain(ctx, sendArgs{PayOnChainRequest: req, amountCurrency: domain.WalletCurrencyBTC})
	if err != nil {
		return status, fmt.Errorf("PayOnChainByWalletIDForBtcWallet: %w", err)
	}
	return status, nil
}

// PayOnChainByWalletIDForUsdWallet takes Amount in cents.
func (s *Service) PayOnChainByWalletIDForUsdWallet(ctx context.Context, req PayOnChainRequest) (domain.PaymentSendStatus, error) {
	if err := s.validateWalletCurrency(ctx, req.SenderWalletID, domain.WalletCurrencyUSD); err != nil {
		return domain.PaymentSendStatusFailure, fmt.Errorf("PayOnChainByWalletIDForUsdWallet: %w", err)
	}
	status, err := s.payOnChain(ctx, sendArgs{PayOnChainRequest: req, amountCurrency: domain.WalletCurrencyUSD})
	if err != nil {
		return status, fmt.Errorf("PayOnChainByWalletIDForUsdWallet: %w", err)
	}
	return status, nil
}

// PayOnChainByWalletIDForUsdWalletAndBtcAmount takes Amount in sats and
// debits the USD wallet at the dealer's price.
func (s *Service) PayOnChainByWalletIDForUsdWalletAndBtcAmount(ctx context.Context, req PayOnChainRequest) (domain.PaymentSendStatus, error) {
	if err := s.validateWalletCurrency(ctx, req.SenderWalletID, domain.WalletCurrencyUSD); err != nil {
		return domain.PaymentSendStatusFailure, fmt.Errorf("PayOnChainByWalletIDForUsdWalletAndBtcAmount: %w", err)
	}
	status, err := s.payOnChain(ctx, sendArgs{PayOnChainRequest: req, amountCurrency: domain.WalletCurrencyBTC})
	if err != nil {
		return status, fmt.Errorf("PayOnChainByWalletIDForUsdWalletAndBtcAmount: %w", err)
	}
	return status, nil
}

// PayAllOnChainByWalletID empties the wallet. Amount is ignored and the fee
// comes out of the balance.
func (s *Service) PayAllOnChainByWalletID(ctx context.Context, req PayOnChainRequest) (domain.PaymentSendStatus, error) {
	status, err := s.payOnChain(ctx, sendArgs{PayOnChainRequest: req, sendAll: true})
	if err != nil {
		return status, fmt.Errorf("PayAllOnChainByWalletID: %w", err)
	}
	return status, nil
}

func (s *Service) validateWalletCurrency(ctx context.Context, walletID uuid.UUID, want domain.WalletCurrency) error {
	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return fmt.Errorf("validateWalletCurrency: %w", err)
	}
	if w.Currency != want {
		return fmt.Errorf("validateWalletCurrency: wallet is %s, expected %s: %w", w.Currency, want, domain.ErrInvalidCurrency)
	}
	return nil
}

func (s *Service) payOnChain(ctx context.Context, args sendArgs) (status domain.PaymentSendStatus, err error) {
	start := time.Now()
	settlement := domain.SettlementMethodOnChain

	ctx, span := tracer.Start(ctx, "payment.PayOnChain")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.ObservePayment(settlement, err, time.Since(start).Seconds())
	}()

	if err := s.validateRequest(args.PayOnChainRequest); err != nil {
		return domain.PaymentSendStatusFailure, err
	}

	log := logging.FromContext(ctx).With(
		"topic", "payment",
		"protocol", "onchain",
		"address", args.Address,
		"amount", args.Amount,
		"send_all", args.sendAll,
	)
	ctx = logging.WithLogger(ctx, log)

	senderWallet, err := s.wallets.GetByID(ctx, args.SenderWalletID)
	if err != nil {
		return domain.PaymentSendStatusFailure, fmt.Errorf("payOnChain: sender wallet: %w", err)
	}
	if args.sendAll {
		args.amountCurrency = senderWallet.Currency
	}

	address, err := onchain.ValidateAddress(args.Address, s.config.Network)
	if err != nil {
		return domain.PaymentSendStatusFailure, fmt.Errorf("payOnChain: %w", err)
	}
	confs := args.TargetConfirmations
	if confs == 0 {
		confs = s.config.DefaultTargetConfirmations
	}
	confs, err = onchain.CheckedToTargetConfs(confs)
	if err != nil {
		return domain.PaymentSendStatusFailure, fmt.Errorf("payOnChain: %w", err)
	}

	recipientWallet, err := s.wallets.FindByAddress(ctx, address)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.PaymentSendStatusFailure, fmt.Errorf("payOnChain: recipient lookup: %w", err)
	}

	span.SetAttributes(
		attribute.String("payment.sender_wallet_id", senderWallet.ID.String()),
		attribute.String("payment.amount_currency", string(args.amountCurrency)),
		attribute.Bool("payment.send_all", args.sendAll),
	)

	withSender := NewOnChainFlowBuilder(BuilderConfig{
		Network:       s.config.Network,
		DustThreshold: s.config.DustThreshold,
		SendAll:       args.sendAll,
		IsExternalAddress: func(context.Context) (bool, error) {
			return recipientWallet == nil, nil
		},
		Balance:   s.ledger.GetWalletBalance,
		Fees:      s.fees,
		Imbalance: s.imbalance,
	}).
		WithAddress(address).
		WithSenderWalletAndAccount(senderWallet.Descriptor(), args.SenderAccount)

	intraLedger, err := withSender.IsIntraLedger(ctx)
	if err != nil {
		return domain.PaymentSendStatusFailure, fmt.Errorf("payOnChain: %w", err)
	}

	amount := domain.WalletAmount{Amount: args.Amount, Currency: args.amountCurrency}

	if intraLedger {
		settlement = domain.SettlementMethodIntraLedger

		recipientAccount, err := s.accounts.GetByID(ctx, recipientWallet.AccountID)
		if err != nil {
			return domain.PaymentSendStatusFailure, fmt.Errorf("payOnChain: recipient account: %w", err)
		}
		builder := withSender.
			WithRecipientWallet(RecipientDetails{
				Wallet:   recipientWallet.Descriptor(),
				UserID:   recipientAccount.UserID,
				Username: recipientAccount.Username,
			}).
			WithAmount(ctx, amount).
			WithConversion(ctx, s.conversion())

		if err := s.executeViaIntraledger(ctx, builder, recipientAccount, args.Memo); err != nil {
			return domain.PaymentSendStatusFailure, fmt.Errorf("payOnChain: %w", err)
		}
		return domain.PaymentSendStatusSuccess, nil
	}

	builder := withSender.
		WithoutRecipientWallet().
		WithAmount(ctx, amount).
		WithConversion(ctx, s.conversion())

	if err := s.executeViaOnChain(ctx, builder, confs, args.Memo); err != nil {
		return domain.PaymentSendStatusFailure, fmt.Errorf("payOnChain: %w", err)
	}
	return domain.PaymentSendStatusSuccess, nil
}

func (s *Service) validateRequest(req PayOnChainRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("validateRequest: field %s failed %s: %w", verrs[0].Field(), verrs[0].Tag(), domain.ErrInvalidRequest)
		}
		return fmt.Errorf("validateRequest: %w", err)
	}
	return nil
}
