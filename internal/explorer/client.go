package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"walletgate/internal/core/domain"
	"walletgate/internal/metrics"
)

// PageKind tags which query shape produced a page. The fallback shape omits
// per-transaction timestamps, which disables the caller's early-exit check.
type PageKind int

const (
	PageWithTimestamps PageKind = iota
	PageBlockNumbersOnly
)

// Page is one page of a wallet's transaction history, in explorer order.
type Page struct {
	Txs     []domain.ChainTx
	Kind    PageKind
	HasNext bool
	Cursor  string
}

// Config holds explorer client settings.
type Config struct {
	Endpoint    string
	PageSize    int
	CallTimeout time.Duration
	Backoff     BackoffConfig
}

// Client fetches wallet transaction pages from a remote GraphQL explorer.
// Stateless across invocations; the pagination cursor is carried by the caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates an explorer client.
func New(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.CallTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// FetchPage fetches one page of the wallet's transaction history. The primary
// query is tried first; on exhausted retries the fallback shape is used for
// the same page and missing timestamps are resolved per block. A transaction
// whose timestamp cannot be resolved is dropped from the page.
func (c *Client) FetchPage(ctx context.Context, wallet string, cursor string) (*Page, error) {
	page, primaryErr := c.fetchPageQuery(ctx, "primary", primaryTxQuery, wallet, cursor)
	if primaryErr == nil {
		page.Kind = PageWithTimestamps
		return page, nil
	}
	slog.Warn("Primary explorer query exhausted, switching to fallback",
		"wallet", wallet, "error", primaryErr)

	page, fallbackErr := c.fetchPageQuery(ctx, "fallback", fallbackTxQuery, wallet, cursor)
	if fallbackErr != nil {
		return nil, fmt.Errorf("explorer page fetch failed: primary: %v, fallback: %w",
			primaryErr, fallbackErr)
	}

	metrics.ExplorerFallbacks.Inc()
	page.Kind = PageBlockNumbersOnly
	c.resolveTimestamps(ctx, page)
	return page, nil
}

func (c *Client) fetchPageQuery(
	ctx context.Context,
	name, query, wallet, cursor string,
) (*Page, error) {
	vars := map[string]any{
		"address": wallet,
		"first":   c.cfg.PageSize,
	}
	if cursor != "" {
		vars["after"] = cursor
	}

	var data txPageData
	err := callWithBackoff(ctx, c.cfg.Backoff, func(ctx context.Context) error {
		var attempt txPageData
		if err := c.post(ctx, name, query, vars, &attempt); err != nil {
			return err
		}
		data = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}

	txs := data.Address.Transactions
	page := &Page{
		Txs:     make([]domain.ChainTx, 0, len(txs.Edges)),
		HasNext: txs.PageInfo.HasNextPage,
		Cursor:  txs.PageInfo.EndCursor,
	}
	for _, edge := range txs.Edges {
		tx := domain.ChainTx{
			Hash:        edge.Node.Hash,
			From:        edge.Node.FromAddress,
			To:          edge.Node.ToAddress,
			Value:       edge.Node.Value,
			Status:      parseTxStatus(edge.Node.Status),
			BlockNumber: edge.Node.BlockNumber,
		}
		if edge.Node.BlockTimestamp != nil {
			tx.Timestamp = *edge.Node.BlockTimestamp
		}
		page.Txs = append(page.Txs, tx)
	}
	return page, nil
}

// resolveTimestamps fills in timestamps missing from a fallback page with
// single-block queries. Unresolvable transactions are skipped, not fatal.
func (c *Client) resolveTimestamps(ctx context.Context, page *Page) {
	cache := make(map[uint64]int64)
	kept := page.Txs[:0]
	for _, tx := range page.Txs {
		if tx.Timestamp > 0 {
			kept = append(kept, tx)
			continue
		}
		ts, ok := cache[tx.BlockNumber]
		if !ok {
			var err error
			ts, err = c.blockTimestamp(ctx, tx.BlockNumber)
			if err != nil {
				slog.Warn("Skipping transaction with unresolvable timestamp",
					"tx", tx.Hash, "block", tx.BlockNumber, "error", err)
				continue
			}
			cache[tx.BlockNumber] = ts
		}
		tx.Timestamp = ts
		kept = append(kept, tx)
	}
	page.Txs = kept
}

func (c *Client) blockTimestamp(ctx context.Context, number uint64) (int64, error) {
	vars := map[string]any{"number": number}

	var data blockData
	err := callWithBackoff(ctx, c.cfg.Backoff, func(ctx context.Context) error {
		return c.post(ctx, "block_timestamp", blockTimestampQuery, vars, &data)
	})
	if err != nil {
		return 0, err
	}
	if data.Block == nil {
		return 0, fmt.Errorf("block %d not found", number)
	}
	return data.Block.Timestamp, nil
}

// post issues a single GraphQL call and decodes the data payload into out.
// A GraphQL error in the response body is treated like a transport error so
// the backoff loop retries it.
func (c *Client) post(ctx context.Context, name, query string, vars map[string]any, out any) error {
	start := time.Now()

	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ExplorerCalls.WithLabelValues(name, "transport_error").Inc()
		return fmt.Errorf("explorer call: %w", err)
	}
	defer resp.Body.Close()

	metrics.ExplorerCallLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ExplorerCalls.WithLabelValues(name, "transport_error").Inc()
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ExplorerCalls.WithLabelValues(name, "http_error").Inc()
		return fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var envelope gqlEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		metrics.ExplorerCalls.WithLabelValues(name, "decode_error").Inc()
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		metrics.ExplorerCalls.WithLabelValues(name, "graphql_error").Inc()
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		metrics.ExplorerCalls.WithLabelValues(name, "decode_error").Inc()
		return fmt.Errorf("decode data: %w", err)
	}

	metrics.ExplorerCalls.WithLabelValues(name, "ok").Inc()
	return nil
}

func parseTxStatus(s string) domain.TxStatus {
	if strings.EqualFold(s, "ok") || strings.EqualFold(s, "success") {
		return domain.TxStatusOK
	}
	return domain.TxStatusFailed
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
