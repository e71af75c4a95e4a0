package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"walletgate/internal/core/domain"
)

const (
	testWallet = "0x1111111111111111111111111111111111111111"
	testTarget = "0x2222222222222222222222222222222222222222"
)

func testClient(endpoint string) *Client {
	return New(Config{
		Endpoint:    endpoint,
		PageSize:    10,
		CallTimeout: 2 * time.Second,
		Backoff: BackoffConfig{
			MaxAttempts: 2,
			BaseDelay:   1 * time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
	})
}

func decodeReq(t *testing.T, r *http.Request) gqlRequest {
	t.Helper()
	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("Failed to decode request: %v", err)
	}
	return req
}

func primaryPageJSON(ts int64) string {
	return fmt.Sprintf(`{"data": {"address": {"transactions": {
		"edges": [{"node": {
			"hash": "0xabc",
			"fromAddress": %q,
			"toAddress": %q,
			"value": "0",
			"status": "ok",
			"blockNumber": 100,
			"blockTimestamp": %d
		}}],
		"pageInfo": {"hasNextPage": true, "endCursor": "cursor-1"}
	}}}}`, testWallet, testTarget, ts)
}

func TestFetchPage_Primary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeReq(t, r)
		if !strings.Contains(req.Query, "blockTimestamp") {
			t.Errorf("Expected primary query shape, got: %s", req.Query)
		}
		fmt.Fprint(w, primaryPageJSON(1700000000))
	}))
	defer srv.Close()

	page, err := testClient(srv.URL).FetchPage(context.Background(), testWallet, "")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	if page.Kind != PageWithTimestamps {
		t.Errorf("Expected PageWithTimestamps, got %v", page.Kind)
	}
	if !page.HasNext || page.Cursor != "cursor-1" {
		t.Errorf("Expected hasNext with cursor-1, got %v %q", page.HasNext, page.Cursor)
	}
	if len(page.Txs) != 1 {
		t.Fatalf("Expected 1 tx, got %d", len(page.Txs))
	}
	tx := page.Txs[0]
	if tx.Hash != "0xabc" || tx.Timestamp != 1700000000 || tx.Status != domain.TxStatusOK {
		t.Errorf("Unexpected tx: %+v", tx)
	}
}

func TestFetchPage_FallbackOnServerError(t *testing.T) {
	var primaryCalls, blockCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeReq(t, r)
		switch {
		case strings.Contains(req.Query, "BlockTimestamp"):
			blockCalls.Add(1)
			fmt.Fprint(w, `{"data": {"block": {"timestamp": 1700000123}}}`)
		case strings.Contains(req.Query, "blockTimestamp"):
			primaryCalls.Add(1)
			fmt.Fprint(w, `{"errors": [{"message": "internal server error"}]}`)
		default:
			fmt.Fprintf(w, `{"data": {"address": {"transactions": {
				"edges": [{"node": {
					"hash": "0xdef",
					"fromAddress": %q,
					"toAddress": %q,
					"value": "0",
					"status": "ok",
					"blockNumber": 200
				}}],
				"pageInfo": {"hasNextPage": false, "endCursor": ""}
			}}}}`, testWallet, testTarget)
		}
	}))
	defer srv.Close()

	page, err := testClient(srv.URL).FetchPage(context.Background(), testWallet, "")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	if primaryCalls.Load() != 2 {
		t.Errorf("Expected primary retried up to ceiling (2), got %d", primaryCalls.Load())
	}
	if page.Kind != PageBlockNumbersOnly {
		t.Errorf("Expected PageBlockNumbersOnly, got %v", page.Kind)
	}
	if len(page.Txs) != 1 {
		t.Fatalf("Expected 1 tx, got %d", len(page.Txs))
	}
	if page.Txs[0].Timestamp != 1700000123 {
		t.Errorf("Expected resolved timestamp 1700000123, got %d", page.Txs[0].Timestamp)
	}
	if blockCalls.Load() != 1 {
		t.Errorf("Expected 1 block timestamp call, got %d", blockCalls.Load())
	}
}

func TestFetchPage_BothShapesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchPage(context.Background(), testWallet, "")
	if err == nil {
		t.Fatal("Expected error when both query shapes fail")
	}
	// 2 primary attempts + 2 fallback attempts
	if calls.Load() != 4 {
		t.Errorf("Expected 4 calls, got %d", calls.Load())
	}
}

func TestFetchPage_SkipsUnresolvableTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeReq(t, r)
		switch {
		case strings.Contains(req.Query, "BlockTimestamp"):
			num := int(req.Variables["number"].(float64))
			if num == 300 {
				fmt.Fprint(w, `{"errors": [{"message": "block not indexed"}]}`)
				return
			}
			fmt.Fprint(w, `{"data": {"block": {"timestamp": 1700000456}}}`)
		case strings.Contains(req.Query, "blockTimestamp"):
			fmt.Fprint(w, `{"errors": [{"message": "internal server error"}]}`)
		default:
			fmt.Fprintf(w, `{"data": {"address": {"transactions": {
				"edges": [
					{"node": {"hash": "0xaaa", "fromAddress": %[1]q, "toAddress": %[2]q,
						"value": "0", "status": "ok", "blockNumber": 300}},
					{"node": {"hash": "0xbbb", "fromAddress": %[1]q, "toAddress": %[2]q,
						"value": "0", "status": "ok", "blockNumber": 301}}
				],
				"pageInfo": {"hasNextPage": false, "endCursor": ""}
			}}}}`, testWallet, testTarget)
		}
	}))
	defer srv.Close()

	page, err := testClient(srv.URL).FetchPage(context.Background(), testWallet, "")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	if len(page.Txs) != 1 {
		t.Fatalf("Expected unresolvable tx skipped, got %d txs", len(page.Txs))
	}
	if page.Txs[0].Hash != "0xbbb" {
		t.Errorf("Expected 0xbbb kept, got %s", page.Txs[0].Hash)
	}
}

func TestFetchPage_PassesCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeReq(t, r)
		if req.Variables["after"] != "cursor-7" {
			t.Errorf("Expected after=cursor-7, got %v", req.Variables["after"])
		}
		fmt.Fprint(w, primaryPageJSON(1700000000))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).FetchPage(context.Background(), testWallet, "cursor-7"); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
}

func TestParseTxStatus(t *testing.T) {
	tests := []struct {
		in     string
		expect domain.TxStatus
	}{
		{"ok", domain.TxStatusOK},
		{"OK", domain.TxStatusOK},
		{"success", domain.TxStatusOK},
		{"error", domain.TxStatusFailed},
		{"reverted", domain.TxStatusFailed},
		{"", domain.TxStatusFailed},
	}
	for _, tt := range tests {
		if got := parseTxStatus(tt.in); got != tt.expect {
			t.Errorf("parseTxStatus(%q) = %v, want %v", tt.in, got, tt.expect)
		}
	}
}
