package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
)

const activityWindow = 30 * 24 * time.Hour

type allVolumeSource interface {
	AllTxBaseVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error)
}

// ActivityChecker classifies a set of wallets as active when their combined
// incoming and outgoing volume over the last 30 days, in cents, is above
// the threshold.
type ActivityChecker struct {
	threshold domain.UsdPaymentAmount
	volumes   allVolumeSource
	now       func() time.Time
}

func NewActivityChecker(threshold domain.UsdPaymentAmount, volumes allVolumeSource) *ActivityChecker {
	return &ActivityChecker{threshold: threshold, volumes: volumes, now: time.Now}
}

func (a *ActivityChecker) AreRecentlyActive(ctx context.Context, wallets []domain.Wallet, ratio fx.WalletPriceRatio) (bool, error) {
	since := a.now().Add(-activityWindow)

	total := domain.ZeroCents
	for i := range wallets {
		v, err := a.volumes.AllTxBaseVolumeSince(ctx, wallets[i].Descriptor(), since)
		if err != nil {
			return false, fmt.Errorf("AreRecentlyActive: wallet %s: %w", wallets[i].ID, err)
		}
		total = total.Add(toUsd(v.Outgoing, v.Currency, ratio)).Add(toUsd(v.Incoming, v.Currency, ratio))
	}
	return a.threshold.LessThan(total), nil
}
