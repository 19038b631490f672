package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fees"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/limits"
	"github.com/josh-kwaku/btc-wallet-core/internal/lock"
	"github.com/josh-kwaku/btc-wallet-core/internal/onchain"
	"github.com/josh-kwaku/btc-wallet-core/internal/repository"
	"github.com/josh-kwaku/btc-wallet-core/internal/service/history"
	"github.com/josh-kwaku/btc-wallet-core/internal/service/payment"
)

type Config struct {
	DatabaseURL  string   `env:"DATABASE_URL,required"`
	RedisURL     string   `env:"REDIS_URL"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"wallet-notifications"`
	Port         int      `env:"PORT" envDefault:"8080"`
	LogLevel     string   `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv       string   `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"1m"`

	ChainServiceURL string          `env:"CHAIN_SERVICE_URL" envDefault:"http://mock-chain:8081"`
	BitcoinNetwork  onchain.Network `env:"BITCOIN_NETWORK" envDefault:"mainnet"`
	DustThreshold   uint64          `env:"DUST_THRESHOLD_SATS" envDefault:"546"`
	DepositFeeRatio decimal.Decimal `env:"DEPOSIT_FEE_RATIO" envDefault:"0.003"`

	WithdrawFeeMethod          fees.WithdrawalFeeMethod `env:"WITHDRAW_FEE_METHOD" envDefault:"flat"`
	WithdrawMinBankFee         uint64                   `env:"WITHDRAW_MIN_BANK_FEE_SATS" envDefault:"2000"`
	WithdrawRatioBasisPoints   uint64                   `env:"WITHDRAW_RATIO_BASIS_POINTS" envDefault:"50"`
	WithdrawThresholdImbalance uint64                   `env:"WITHDRAW_THRESHOLD_IMBALANCE_SATS" envDefault:"1000000"`
	WithdrawDaysLookback       int                      `env:"WITHDRAW_DAYS_LOOKBACK" envDefault:"30"`

	LimitWithdrawal        uint64 `env:"LIMIT_WITHDRAWAL_CENTS" envDefault:"100000"`
	LimitIntraledger       uint64 `env:"LIMIT_INTRALEDGER_CENTS" envDefault:"100000"`
	LimitTradeIntraAccount uint64 `env:"LIMIT_TRADE_INTRA_ACCOUNT_CENTS" envDefault:"500000"`

	ActivityThreshold         uint64   `env:"ACTIVITY_MONTHLY_VOLUME_THRESHOLD_CENTS" envDefault:"2000"`
	MemoSharingSatsThreshold  uint64   `env:"MEMO_SHARING_SATS_THRESHOLD" envDefault:"1000"`
	MemoSharingCentsThreshold uint64   `env:"MEMO_SHARING_CENTS_THRESHOLD" envDefault:"10"`
	OnboardingMemoKeys        []string `env:"ONBOARDING_MEMO_KEYS" envSeparator:","`

	LockTTL            time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	LockRetryDelay     time.Duration `env:"LOCK_RETRY_DELAY" envDefault:"50ms"`
	LockAcquireTimeout time.Duration `env:"LOCK_ACQUIRE_TIMEOUT" envDefault:"5s"`

	ScanDepthOutgoing          int `env:"ONCHAIN_SCAN_DEPTH_OUTGOING" envDefault:"2"`
	ScanDepthIncoming          int `env:"ONCHAIN_SCAN_DEPTH_INCOMING" envDefault:"360"`
	DefaultTargetConfirmations int `env:"ONCHAIN_DEFAULT_TARGET_CONFIRMATIONS" envDefault:"1"`

	PriceServiceURL string          `env:"PRICE_SERVICE_URL"`
	PriceBtcUsd     decimal.Decimal `env:"PRICE_BTC_USD" envDefault:"0"`
	PriceBtcEur     decimal.Decimal `env:"PRICE_BTC_EUR" envDefault:"0"`
	PriceBtcGbp     decimal.Decimal `env:"PRICE_BTC_GBP" envDefault:"0"`
	DealerSpreadPct float64         `env:"DEALER_SPREAD_PCT" envDefault:"0.005"`

	BalanceNotifierInterval time.Duration `env:"BALANCE_NOTIFIER_INTERVAL" envDefault:"24h"`
	IdempotencyTTL          time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.BitcoinNetwork.Params(); err != nil {
		return err
	}
	switch c.WithdrawFeeMethod {
	case fees.WithdrawalFeeMethodFlat, fees.WithdrawalFeeMethodProportionalOnImbalance:
	default:
		return fmt.Errorf("WITHDRAW_FEE_METHOD %q: %w", c.WithdrawFeeMethod, domain.ErrInvalidRequest)
	}
	if _, err := onchain.CheckedToTargetConfs(c.DefaultTargetConfirmations); err != nil {
		return fmt.Errorf("ONCHAIN_DEFAULT_TARGET_CONFIRMATIONS: %w", err)
	}
	if c.DepositFeeRatio.IsNegative() {
		return fmt.Errorf("DEPOSIT_FEE_RATIO: %w", domain.ErrNegativeAmount)
	}
	return nil
}

func (c *Config) Pool() repository.PoolConfig {
	return repository.PoolConfig{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
		ConnMaxIdleTime: c.DBConnMaxIdleTime,
	}
}

func (c *Config) Lock() lock.Config {
	return lock.Config{
		TTL:            c.LockTTL,
		RetryDelay:     c.LockRetryDelay,
		AcquireTimeout: c.LockAcquireTimeout,
	}
}

func (c *Config) Withdrawal() fees.WithdrawalConfig {
	return fees.WithdrawalConfig{
		Method:             c.WithdrawFeeMethod,
		MinBankFee:         domain.Sats(c.WithdrawMinBankFee),
		RatioBasisPoints:   c.WithdrawRatioBasisPoints,
		ThresholdImbalance: domain.Sats(c.WithdrawThresholdImbalance),
		DaysLookback:       c.WithdrawDaysLookback,
	}
}

func (c *Config) Limits() limits.Config {
	return limits.Config{
		Withdrawal:        domain.Cents(c.LimitWithdrawal),
		Intraledger:       domain.Cents(c.LimitIntraledger),
		TradeIntraAccount: domain.Cents(c.LimitTradeIntraAccount),
		Window:            24 * time.Hour,
	}
}

func (c *Config) Payment() payment.Config {
	return payment.Config{
		Network:                    c.BitcoinNetwork,
		DustThreshold:              domain.Sats(c.DustThreshold),
		DefaultTargetConfirmations: c.DefaultTargetConfirmations,
		ScanDepthOutgoing:          c.ScanDepthOutgoing,
	}
}

func (c *Config) History() history.Config {
	return history.Config{
		MemoSharingSatsThreshold:  c.MemoSharingSatsThreshold,
		MemoSharingCentsThreshold: c.MemoSharingCentsThreshold,
		OnboardingMemoKeys:        c.OnboardingMemoKeys,
	}
}

func (c *Config) HistoryService() history.ServiceConfig {
	return history.ServiceConfig{
		DepositFeeRatio:   c.DepositFeeRatio,
		ScanDepthIncoming: c.ScanDepthIncoming,
	}
}

// PriceSource prefers the live price service and falls back to the
// configured static prices.
func (c *Config) PriceSource() fx.PriceSource {
	if c.PriceServiceURL != "" {
		return fx.NewPriceClient(c.PriceServiceURL)
	}
	return c.StaticPrices()
}

// StaticPrices returns the configured fallback prices. Zero prices are left
// out so that an unconfigured currency reads as unavailable.
func (c *Config) StaticPrices() fx.StaticPrices {
	prices := fx.StaticPrices{}
	for currency, price := range map[domain.DisplayCurrency]decimal.Decimal{
		domain.DisplayCurrencyUSD: c.PriceBtcUsd,
		domain.DisplayCurrencyEUR: c.PriceBtcEur,
		domain.DisplayCurrencyGBP: c.PriceBtcGbp,
	} {
		if price.IsPositive() {
			prices[currency] = price
		}
	}
	return prices
}
