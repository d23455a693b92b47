package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/authz"
)

// BanSweepJob lifts expired bans from store state. Resolvers already
// self-recover on expiry when a banned account reconnects; the sweep keeps
// store state honest for accounts that never do.
type BanSweepJob struct {
	accounts account.AccountStore
	logger   *slog.Logger
}

// NewBanSweepJob constructs the job.
func NewBanSweepJob(accounts account.AccountStore, logger *slog.Logger) *BanSweepJob {
	return &BanSweepJob{accounts: accounts, logger: logger}
}

// Handle processes TaskTypeBanSweep tasks.
func (j *BanSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload BanSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	lifted, err := j.Sweep(ctx, payload.Limit)
	if err != nil {
		return err
	}
	if j.logger != nil && lifted > 0 {
		j.logger.Info("ban sweep", slog.Int("lifted", lifted))
	}
	return nil
}

// Sweep unbans accounts whose ban expiry has passed and reports how many
// bans it lifted.
func (j *BanSweepJob) Sweep(ctx context.Context, limit int) (int, error) {
	banned, err := j.accounts.FindBanned(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	lifted := 0
	for i := range banned {
		acct := &banned[i]
		if authz.EvaluateBan(acct.Banned, acct.BanExpiresAt, now) != authz.BanExpired {
			continue
		}
		if err := j.accounts.SetBan(ctx, acct.ID, false, "", nil); err != nil {
			return lifted, err
		}
		lifted++
		if limit > 0 && lifted >= limit {
			break
		}
	}
	return lifted, nil
}
