package domain

// ChainTx is one transaction record as reported by the block explorer.
type ChainTx struct {
	Hash        string   `json:"hash"`
	From        string   `json:"from_address"`
	To          string   `json:"to_address"`
	Value       string   `json:"value"`
	Status      TxStatus `json:"status"`
	BlockNumber uint64   `json:"block_number"`
	Timestamp   int64    `json:"timestamp"` // unix seconds, 0 when not yet resolved
}

type TxStatus string

const (
	TxStatusOK     TxStatus = "ok"
	TxStatusFailed TxStatus = "failed"
)
