package domain

import "time"

// WalletLink maps a user to a wallet address they have proved control of.
type WalletLink struct {
	UserID    string
	Address   string
	Proofed   bool
	TaskID    string // task that completed the proof, may be backfilled later
	CreatedAt time.Time
	UpdatedAt time.Time
}
