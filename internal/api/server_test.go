package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"walletgate/internal/core/domain"
	"walletgate/internal/infra/storage/memory"
	"walletgate/internal/wcrypto"
)

const (
	testKey    = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testWallet = "0x1111111111111111111111111111111111111111"
)

func newTestServer(t *testing.T) (*Server, *memory.TaskRepo) {
	t.Helper()
	store := memory.NewMemoryStorage()
	tasks := memory.NewTaskRepo(store)
	codec, err := wcrypto.New(testKey)
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	srv := NewServer(Config{Port: 0, DeadlineOffset: 15 * time.Minute}, tasks, codec, nil)
	return srv, tasks
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateTask(t *testing.T) {
	srv, tasks := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/tasks",
		createTaskReq{UserID: "u1", WalletAddress: testWallet})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp createTaskResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.TaskID == "" {
		t.Error("Expected a task id")
	}

	task, err := tasks.GetByID(context.Background(), resp.TaskID)
	if err != nil {
		t.Fatalf("Created task not found: %v", err)
	}
	if task.Status != domain.TaskStatusPending {
		t.Errorf("Expected pending, got %s", task.Status)
	}
	if task.WalletCipher == testWallet {
		t.Error("Wallet address stored in plain text")
	}
	if task.Deadline != resp.Deadline || task.AfterTS >= task.Deadline {
		t.Errorf("Bad window: after=%d deadline=%d resp=%d", task.AfterTS, task.Deadline, resp.Deadline)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		req  createTaskReq
	}{
		{"missing user", createTaskReq{WalletAddress: testWallet}},
		{"bad address", createTaskReq{UserID: "u1", WalletAddress: "nope"}},
		{"short address", createTaskReq{UserID: "u1", WalletAddress: "0x1234"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/tasks", tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestCreateTask_OneActivePerUser(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/tasks",
		createTaskReq{UserID: "u1", WalletAddress: testWallet})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/tasks",
		createTaskReq{UserID: "u1", WalletAddress: testWallet})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate active task, got %d", rec.Code)
	}
}

func TestGetTask(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/tasks",
		createTaskReq{UserID: "u1", WalletAddress: testWallet})
	var created createTaskResp
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/tasks/"+created.TaskID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	// The cipher must never appear in API responses.
	if bytes.Contains(rec.Body.Bytes(), []byte("wallet_cipher")) {
		t.Error("Response leaks wallet cipher")
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/tasks/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown task, got %d", rec.Code)
	}
}

func TestCancelTasks(t *testing.T) {
	srv, tasks := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/tasks",
		createTaskReq{UserID: "u1", WalletAddress: testWallet})
	var created createTaskResp
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	rec = doJSON(t, srv.Handler(), http.MethodDelete, "/api/tasks/user/u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp["cancelled"] != 1 {
		t.Errorf("Expected 1 cancelled, got %d", resp["cancelled"])
	}

	task, err := tasks.GetByID(context.Background(), created.TaskID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if task.Status != domain.TaskStatusCancelled {
		t.Errorf("Expected cancelled, got %s", task.Status)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}
