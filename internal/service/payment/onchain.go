package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/ccoveille/go-safecast"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/lock"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
	"github.com/josh-kwaku/btc-wallet-core/internal/metrics"
	"github.com/josh-kwaku/btc-wallet-core/internal/onchain"
)

// executeViaOnChain debits the sender and broadcasts the payout. The ledger
// entry is written first; if the wallet service refuses the payout for lack
// of funds or a CPFP ancestor limit the entry is reverted.
func (s *Service) executeViaOnChain(ctx context.Context, builder ConversionStage, confs int, memo string) error {
	log := logging.FromContext(ctx)

	sender, err := builder.SenderWalletDescriptor()
	if err != nil {
		return fmt.Errorf("executeViaOnChain: %w", err)
	}
	proposed, err := builder.ProposedAmounts()
	if err != nil {
		return fmt.Errorf("executeViaOnChain: %w", err)
	}

	ratio, err := s.priceRatioForLimits(ctx, proposed)
	if err != nil {
		return fmt.Errorf("executeViaOnChain: %w", err)
	}
	if err := s.limits.CheckWithdrawal(ctx, sender.AccountID, proposed.Usd, ratio); err != nil {
		return fmt.Errorf("executeViaOnChain: %w", err)
	}

	flow, err := s.minerFeeAndPaymentFlow(ctx, builder, proposed.Btc, confs)
	if err != nil {
		return fmt.Errorf("executeViaOnChain: %w", err)
	}

	available, err := s.chain.GetBalanceAmount(ctx)
	if err != nil {
		return fmt.Errorf("executeViaOnChain: onchain balance: %w", err)
	}
	if err := flow.CheckOnChainAvailableBalanceForSend(available); err != nil {
		return fmt.Errorf("executeViaOnChain: %w", err)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("payment.settlement_method", string(domain.SettlementMethodOnChain)),
		satsAttr("payment.sats", flow.BtcPaymentAmount),
		satsAttr("payment.miner_fee_sats", flow.BtcMinerFee),
		satsAttr("payment.protocol_fee_sats", flow.BtcProtocolAndBankFee),
	)

	var (
		journalID uuid.UUID
		txHash    string
	)
	err = s.locks.LockWalletID(ctx, sender.ID, func(lockCtx context.Context) error {
		// Re-price under the lock so the fee that is checked is the one
		// that gets booked.
		locked, err := s.minerFeeAndPaymentFlow(lockCtx, builder, proposed.Btc, confs)
		if err != nil {
			return err
		}
		flow = locked

		meta, err := s.onChainMetadata(lockCtx, flow, memo)
		if err != nil {
			return err
		}

		balance, err := s.ledger.GetWalletBalance(lockCtx, flow.SenderWallet)
		if err != nil {
			return err
		}
		if err := flow.CheckBalanceForSend(balance); err != nil {
			return err
		}

		if err := lock.CheckHeld(lockCtx); err != nil {
			return err
		}

		journalID, err = s.ledger.RecordSend(lockCtx, domain.RecordSendArgs{
			Description:         memo,
			AmountToDebitSender: flow.TotalDebit(),
			BankFee:             flow.BankFees(),
			Sender:              flow.SenderWallet,
			Metadata:            meta,
		})
		if err != nil {
			return err
		}

		// The journal is committed. Whatever happens below must finish even if
		// the caller goes away.
		settleCtx := context.WithoutCancel(lockCtx)

		if err := lock.CheckHeld(lockCtx); err != nil {
			if revertErr := s.revert(settleCtx, journalID, err); revertErr != nil {
				return revertErr
			}
			return err
		}

		txHash, err = s.chain.PayToAddress(settleCtx, onchain.PayToAddressArgs{
			Address:             flow.Address,
			Amount:              flow.BtcPaymentAmount,
			TargetConfirmations: confs,
			Description:         "journal-" + journalID.String(),
		})
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientOnChainFunds) || errors.Is(err, domain.ErrCPFPAncestorLimitReached) {
				if revertErr := s.revert(settleCtx, journalID, err); revertErr != nil {
					return revertErr
				}
			}
			return err
		}

		if err := s.ledger.SetOnChainTxSendHash(settleCtx, journalID, txHash); err != nil {
			metrics.IncBestEffortFailure("set_tx_hash")
			logging.FromContext(lockCtx).Error("failed to record broadcast tx hash",
				"journal_id", journalID, "tx_hash", txHash, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("executeViaOnChain: %w", err)
	}

	log.Info("onchain payment broadcast",
		"journal_id", journalID,
		"tx_hash", txHash,
		"sender_wallet_id", sender.ID,
		"sats", flow.BtcPaymentAmount.Amount,
		"miner_fee_sats", flow.BtcMinerFee.Amount,
		"bank_fee_sats", flow.BtcBankFee.Amount,
	)

	s.lookupRealizedFee(ctx, txHash)
	return nil
}

// minerFeeAndPaymentFlow prices the payout with the wallet service's current
// fee estimate.
func (s *Service) minerFeeAndPaymentFlow(ctx context.Context, builder ConversionStage, amount domain.BtcPaymentAmount, confs int) (PaymentFlow, error) {
	address, err := builder.AddressForFlow()
	if err != nil {
		return PaymentFlow{}, fmt.Errorf("minerFeeAndPaymentFlow: %w", err)
	}
	minerFee, err := s.chain.GetOnChainFeeEstimate(ctx, address, amount, confs)
	if err != nil {
		return PaymentFlow{}, fmt.Errorf("minerFeeAndPaymentFlow: fee estimate: %w", err)
	}
	flow, err := builder.WithMinerFee(ctx, minerFee)
	if err != nil {
		return PaymentFlow{}, fmt.Errorf("minerFeeAndPaymentFlow: %w", err)
	}
	return flow, nil
}

func (s *Service) onChainMetadata(ctx context.Context, flow PaymentFlow, memo string) (domain.LedgerMetadata, error) {
	display, err := s.prices.DisplayPriceRatio(ctx, flow.SenderAccount.DisplayCurrency)
	if err != nil {
		return domain.LedgerMetadata{}, err
	}
	tempHash, err := onchain.TemporaryTxHash()
	if err != nil {
		return domain.LedgerMetadata{}, err
	}
	amount := display.ConvertFromWallet(flow.BtcPaymentAmount)
	fee := display.ConvertFromWalletToCeil(flow.BtcProtocolAndBankFee)

	return domain.LedgerMetadata{
		Type:                domain.LedgerTransactionTypeOnchainPayment,
		PendingConfirmation: true,
		SatsAmount:          flow.BtcPaymentAmount.Amount,
		SatsFee:             flow.BtcProtocolAndBankFee.Amount,
		CentsAmount:         flow.UsdPaymentAmount.Amount,
		CentsFee:            flow.UsdProtocolAndBankFee.Amount,
		DisplayAmount:       amount.AmountInMinor,
		DisplayFee:          fee.AmountInMinor,
		DisplayCurrency:     amount.Currency,
		MemoFromPayer:       memo,
		Address:             flow.Address,
		TxHash:              tempHash,
		SendAll:             flow.SendAll,
	}, nil
}

func satsAttr(key string, amount domain.BtcPaymentAmount) attribute.KeyValue {
	v, err := safecast.ToInt64(amount.Amount)
	if err != nil {
		return attribute.String(key, amount.String())
	}
	return attribute.Int64(key, v)
}

// revert voids a committed send. cause is the failure that made the payout
// impossible and is only used for logging and metrics.
func (s *Service) revert(ctx context.Context, journalID uuid.UUID, cause error) error {
	log := logging.FromContext(ctx)
	metrics.IncReversal(cause)

	if err := s.ledger.RevertOnChainPayment(ctx, journalID); err != nil {
		log.Error("failed to revert onchain payment",
			"journal_id", journalID, "cause", cause, "error", err)
		return fmt.Errorf("revert journal %s after %v: %w", journalID, cause, err)
	}
	log.Warn("onchain payment reverted", "journal_id", journalID, "cause", cause)
	return nil
}

// lookupRealizedFee asks the wallet service what the broadcast actually paid
// the miners. Only logged.
func (s *Service) lookupRealizedFee(ctx context.Context, txHash string) {
	log := logging.FromContext(ctx)
	fee, err := s.chain.LookupOnChainFee(ctx, txHash, s.config.ScanDepthOutgoing)
	if err != nil {
		metrics.IncBestEffortFailure("lookup_fee")
		log.Warn("onchain fee lookup failed", "tx_hash", txHash, "error", err)
		return
	}
	log.Info("onchain fee realized", "tx_hash", txHash, "fee_sats", fee.Amount)
}
