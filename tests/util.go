package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/school"
	logsvc "github.com/trezcool/schoolconnect/services/logger"
)

// NewLogger returns a core.Logger writing to the test log.
func NewLogger(t *testing.T) core.Logger {
	return logsvc.NewLogger(zaptest.NewLogger(t), &core.Config{Debug: true, TestMode: true})
}

type (
	backendUser struct {
		password string
		profile  map[string]interface{}
		items    []json.RawMessage
	}

	// StubBackend is an in-memory school.Backend serving a fixed feed per user.
	StubBackend struct {
		mu       sync.Mutex
		users    map[string]*backendUser
		requests []school.LoginRequest

		ProbeErr error
		Err      error // returned by ValidateLogin instead of answering
		// Hook runs before ValidateLogin answers (e.g. to block until a test releases it).
		Hook func(ctx context.Context, req school.LoginRequest)
	}
)

var _ school.Backend = (*StubBackend)(nil)

func NewStubBackend() *StubBackend {
	return &StubBackend{users: make(map[string]*backendUser)}
}

// AddUser registers a login whose profile carries studentName and whose feed is `items`.
func (b *StubBackend) AddUser(username, password, studentName string, items ...json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[username] = &backendUser{
		password: password,
		profile: map[string]interface{}{
			"studentName": studentName,
			"instDbValue": "hccs",
			"pId":         "4411",
			"className":   "V",
			"divName":     "A",
			"feesDbName":  "hccs_fees",
		},
		items: items,
	}
}

// SetItems replaces the feed of `username`.
func (b *StubBackend) SetItems(username string, items ...json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := b.users[username]; ok {
		u.items = items
	}
}

func (b *StubBackend) Requests() []school.LoginRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	reqs := make([]school.LoginRequest, len(b.requests))
	copy(reqs, b.requests)
	return reqs
}

func (b *StubBackend) RequestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *StubBackend) Probe(context.Context) error {
	return b.ProbeErr
}

func (b *StubBackend) ValidateLogin(ctx context.Context, req school.LoginRequest) (*school.LoginResponse, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	hook := b.Hook
	b.mu.Unlock()

	if hook != nil {
		hook(ctx, req)
	}
	if b.Err != nil {
		return nil, b.Err
	}
	return b.Answer(req), nil
}

// Answer computes the response to `req` without recording it.
func (b *StubBackend) Answer(req school.LoginRequest) *school.LoginResponse {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[req.UserName]
	if !ok || u.password != req.Password {
		return &school.LoginResponse{LoginStatus: "failure", ResultMsg: "Invalid username or password"}
	}

	filtered := make([]json.RawMessage, 0, len(u.items))
	for _, it := range u.items {
		if req.Filter == "" || req.Filter == "All" || itemType(it) == req.Filter {
			filtered = append(filtered, it)
		}
	}
	offset, _ := strconv.Atoi(req.Offset)
	limit, _ := strconv.Atoi(req.Limit)
	page := []json.RawMessage{}
	if offset < len(filtered) {
		end := len(filtered)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		page = append(page, filtered[offset:end]...)
	}

	profile := make(map[string]json.RawMessage, len(u.profile))
	for k, v := range u.profile {
		raw, _ := json.Marshal(v)
		profile[k] = raw
	}
	return &school.LoginResponse{
		LoginStatus: "success",
		ResultMsg:   "Login successful",
		List:        page,
		Profile:     profile,
	}
}

// NewBackendServer serves `b` over HTTP the way the real endpoint does.
func NewBackendServer(t *testing.T, b *StubBackend) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/validateLoginOptimized":
			var req school.LoginRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			resp, err := b.ValidateLogin(r.Context(), req)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func itemType(raw json.RawMessage) string {
	var it struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &it)
	return it.Type
}

func mustJSON(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// Item builders; dates use the backend's "DD-MM-YYYY HH:MM:SS" layout.

func Alert(id int, sentDate, msg string) json.RawMessage {
	return mustJSON(map[string]interface{}{
		"type": "alert", "alertTransId": id, "sentDate": sentDate, "alertMessage": msg, "senderName": "Principal",
	})
}

func Circular(id int, sentDate, subject string) json.RawMessage {
	return mustJSON(map[string]interface{}{
		"type": "circular", "circularTransId": id, "sentDate": sentDate, "subject": subject,
		"description": subject + " details", "sentBy": "Office",
		"attachments": []map[string]interface{}{{"fileName": "c.pdf", "filePath": "/files/c.pdf", "fileSize": "12KB", "fileType": "pdf"}},
	})
}

func Homework(id int, startDate, subject string) json.RawMessage {
	return mustJSON(map[string]interface{}{
		"type": "classwork", "classWorkTransId": fmt.Sprint(id), "startDate": startDate, "subject": subject,
		"classWorkType": "Homework", "senderName": "Class Teacher",
	})
}

func Moment(albumID int, sentDate, title string) json.RawMessage {
	return mustJSON(map[string]interface{}{
		"type": "photos", "albumId": albumID, "sentDate": sentDate, "albumTitle": title,
		"photos": []map[string]interface{}{{"imageName": "p1.jpg", "imageLoc": "/img/p1.jpg", "fileType": "jpg"}},
	})
}

// NewHangingServer answers nothing until the client gives up.
func NewHangingServer(t *testing.T) *httptest.Server {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}
