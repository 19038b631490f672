package domain

type PaymentSendStatus string

const (
	PaymentSendStatusSuccess     PaymentSendStatus = "success"
	PaymentSendStatusFailure     PaymentSendStatus = "failed"
	PaymentSendStatusPending     PaymentSendStatus = "pending"
	PaymentSendStatusAlreadyPaid PaymentSendStatus = "already_paid"
)

type SettlementMethod string

const (
	SettlementMethodIntraLedger SettlementMethod = "intraledger"
	SettlementMethodOnChain     SettlementMethod = "onchain"
	SettlementMethodLightning   SettlementMethod = "lightning"
)

type PaymentInitiationMethod string

const (
	PaymentInitiationMethodIntraLedger PaymentInitiationMethod = "intraledger"
	PaymentInitiationMethodOnChain     PaymentInitiationMethod = "onchain"
	PaymentInitiationMethodLightning   PaymentInitiationMethod = "lightning"
)

type TxStatus string

const (
	TxStatusPending TxStatus = "pending"
	TxStatusSuccess TxStatus = "success"
	TxStatusFailure TxStatus = "failure"
)
