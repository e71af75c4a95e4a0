package locator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"walletgate/internal/core/domain"
	"walletgate/internal/explorer"
)

// Result is the outcome of one proof search. "Not found" is not an error;
// Reason carries the diagnostic when Confirmed is false.
type Result struct {
	Confirmed bool
	TxHash    string
	Reason    string
}

// PageFetcher fetches one page of a wallet's transaction history.
type PageFetcher interface {
	FetchPage(ctx context.Context, wallet string, cursor string) (*explorer.Page, error)
}

// Locator walks a wallet's transaction history and decides whether a
// qualifying proof transaction exists inside the time window.
type Locator struct {
	pages PageFetcher
}

func New(pages PageFetcher) *Locator {
	return &Locator{pages: pages}
}

// Locate searches for the first transaction from userWallet to targetWallet
// with status OK inside [afterTS, deadline). First match wins; page order is
// whatever the explorer returns. Fail-closed: any uncertainty reports not
// confirmed with a reason, never confirmed.
func (l *Locator) Locate(ctx context.Context, userWallet, targetWallet string, afterTS, deadline int64) Result {
	if !common.IsHexAddress(userWallet) {
		return Result{Reason: fmt.Sprintf("invalid user wallet address: %q", userWallet)}
	}
	if !common.IsHexAddress(targetWallet) {
		return Result{Reason: fmt.Sprintf("invalid target wallet address: %q", targetWallet)}
	}
	if afterTS >= deadline {
		return Result{Reason: fmt.Sprintf("invalid time window: after %d >= deadline %d", afterTS, deadline)}
	}

	cursor := ""
	for {
		page, err := l.pages.FetchPage(ctx, userWallet, cursor)
		if err != nil {
			// Inconclusive this cycle; the scheduler retries on its cadence.
			return Result{Reason: fmt.Sprintf("explorer unavailable: %v", err)}
		}

		oldest := int64(math.MaxInt64)
		for _, tx := range page.Txs {
			if matches(tx, userWallet, targetWallet, afterTS, deadline) {
				slog.Debug("Proof transaction located",
					"tx", tx.Hash, "wallet", userWallet, "block", tx.BlockNumber)
				return Result{Confirmed: true, TxHash: tx.Hash}
			}
			if tx.Timestamp > 0 && tx.Timestamp < oldest {
				oldest = tx.Timestamp
			}
		}

		if !page.HasNext || page.Cursor == "" {
			break
		}
		// Early exit: once the primary path shows transactions older than the
		// window start, deeper pages cannot contain a match. Skipped for
		// fallback pages, whose timestamps were not eagerly available.
		if page.Kind == explorer.PageWithTimestamps && oldest < afterTS {
			break
		}
		cursor = page.Cursor
	}

	return Result{Reason: "no qualifying transaction found in window"}
}

// matches applies the four-clause predicate: from, to, status and window.
// The transferred amount is deliberately not checked; any value qualifies.
func matches(tx domain.ChainTx, userWallet, targetWallet string, afterTS, deadline int64) bool {
	return strings.EqualFold(tx.From, userWallet) &&
		strings.EqualFold(tx.To, targetWallet) &&
		tx.Status == domain.TxStatusOK &&
		tx.Timestamp >= afterTS &&
		tx.Timestamp < deadline
}
