package accounts

import (
	"context"
	"time"

	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
)

type balanceSender interface {
	SendDefaultWalletBalance(ctx context.Context) (int, error)
}

// BalanceNotifier sends default-wallet balances on a fixed interval.
type BalanceNotifier struct {
	sender   balanceSender
	interval time.Duration
}

func NewBalanceNotifier(sender balanceSender, interval time.Duration) *BalanceNotifier {
	return &BalanceNotifier{sender: sender, interval: interval}
}

// Start blocks until ctx is cancelled. A run that is still going when the
// next tick fires delays that tick rather than overlapping it.
func (n *BalanceNotifier) Start(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("balance notifier started", "interval", n.interval)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("balance notifier stopped")
			return
		case <-ticker.C:
			n.run(ctx)
		}
	}
}

func (n *BalanceNotifier) run(ctx context.Context) {
	log := logging.FromContext(ctx)
	start := time.Now()

	sent, err := n.sender.SendDefaultWalletBalance(ctx)
	if err != nil {
		log.Error("balance notification run failed", "sent", sent, "error", err)
		return
	}
	log.Info("balance notification run finished", "sent", sent, "duration_ms", time.Since(start).Milliseconds())
}
