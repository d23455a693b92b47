package authz

import "time"

// BanStatus is the outcome of evaluating an account's ban state.
type BanStatus int

const (
	// BanNone means the account is not banned.
	BanNone BanStatus = iota
	// BanActive means the ban is in force.
	BanActive
	// BanExpired means the ban flag is still set but the expiry has passed;
	// the caller is responsible for the unban write-back.
	BanExpired
)

// EvaluateBan is a pure evaluation of ban state against now. A nil
// expiresAt with banned set means a permanent ban.
func EvaluateBan(banned bool, expiresAt *time.Time, now time.Time) BanStatus {
	if !banned {
		return BanNone
	}
	if expiresAt == nil || expiresAt.After(now) {
		return BanActive
	}
	return BanExpired
}
