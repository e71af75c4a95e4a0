package domain

import "time"

// ProofTask represents one attempt to prove control of a wallet by sending a
// transaction to the challenge address within a bounded time window.
type ProofTask struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	WalletCipher string     `json:"-"` // encrypted wallet address, never exposed
	AfterTS      int64      `json:"after_ts"`  // window lower bound, inclusive (unix seconds)
	Deadline     int64      `json:"deadline"`  // window upper bound, exclusive (unix seconds)
	Status       TaskStatus `json:"status"`
	Attempts     int        `json:"attempts"`
	FoundTxHash  string     `json:"found_tx_hash,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSuccess    TaskStatus = "success"
	TaskStatusFailedNoTx TaskStatus = "failed_no_tx"
	TaskStatusExpired    TaskStatus = "expired"
	TaskStatusError      TaskStatus = "error"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status is final. A terminal task is never
// mutated again by the scheduler.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailedNoTx, TaskStatusExpired,
		TaskStatusError, TaskStatusCancelled:
		return true
	}
	return false
}

// TerminalStatuses lists all final statuses, in a fixed order usable in SQL
// NOT IN clauses.
func TerminalStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusSuccess,
		TaskStatusFailedNoTx,
		TaskStatusExpired,
		TaskStatusError,
		TaskStatusCancelled,
	}
}
