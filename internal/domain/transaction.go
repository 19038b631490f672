package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletTransaction is the history read model of one ledger row or one
// pending on-chain output, expressed in the wallet's own currency.
type WalletTransaction struct {
	ID                      string
	WalletID                *uuid.UUID
	SettlementAmount        int64
	SettlementFee           int64
	SettlementCurrency      WalletCurrency
	SettlementDisplayAmount string
	SettlementDisplayFee    string
	SettlementDisplayPrice  WalletMinorUnitDisplayPrice
	Status                  TxStatus
	Memo                    *string
	CreatedAt               time.Time
	InitiationVia           InitiationVia
	SettlementVia           SettlementVia
}

type InitiationVia interface {
	Method() PaymentInitiationMethod
}

type InitiationViaIntraLedger struct {
	CounterPartyWalletID *uuid.UUID
	CounterPartyUsername string
}

// InitiationViaOnChain has an empty Address for legacy rows that never
// persisted one.
type InitiationViaOnChain struct {
	Address string
}

type InitiationViaLightning struct {
	PaymentHash string
	PubKey      string
}

func (InitiationViaIntraLedger) Method() PaymentInitiationMethod {
	return PaymentInitiationMethodIntraLedger
}
func (InitiationViaOnChain) Method() PaymentInitiationMethod {
	return PaymentInitiationMethodOnChain
}
func (InitiationViaLightning) Method() PaymentInitiationMethod {
	return PaymentInitiationMethodLightning
}

type SettlementVia interface {
	Method() SettlementMethod
}

type SettlementViaIntraLedger struct {
	CounterPartyWalletID *uuid.UUID
	CounterPartyUsername string
}

type SettlementViaOnChain struct {
	TransactionHash string
}

type SettlementViaLightning struct {
	RevealedPreImage string
}

func (SettlementViaIntraLedger) Method() SettlementMethod { return SettlementMethodIntraLedger }
func (SettlementViaOnChain) Method() SettlementMethod     { return SettlementMethodOnChain }
func (SettlementViaLightning) Method() SettlementMethod   { return SettlementMethodLightning }

type TxOut struct {
	Sats    uint64
	Address string
}

type IncomingOnChainTransaction struct {
	TxHash    string
	Outs      []TxOut
	CreatedAt time.Time
}
