package streamers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Its-donkey/restreamer-console/internal/ui/model"
	"github.com/Its-donkey/restreamer-console/logging"
)

func TestAPIBase(t *testing.T) {
	tests := []struct {
		page    string
		port    int
		want    string
		wantErr bool
	}{
		{page: "http://console.local/index.html", port: 8880, want: "http://console.local:8880"},
		{page: "https://console.local:4173/", port: 443, want: "https://console.local:443"},
		{page: "http://[::1]:4173/", port: 8880, want: "http://[::1]:8880"},
		{page: "console.local", port: 8880, wantErr: true},
		{page: "http://console.local", port: 0, wantErr: true},
	}
	for _, tt := range tests {
		got, err := APIBase(tt.page, tt.port)
		if (err != nil) != tt.wantErr {
			t.Fatalf("APIBase(%q, %d) err = %v", tt.page, tt.port, err)
		}
		if got != tt.want {
			t.Fatalf("APIBase(%q, %d) = %q want %q", tt.page, tt.port, got, tt.want)
		}
	}
}

func TestFetchStreamersDecodesRecords(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/streamers" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(logging.RequestIDHeader) == "" {
			t.Errorf("expected request id header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a","description":"D","source":"S","key":true,"enabled":false}]`))
	}))
	defer srv.Close()

	records, err := NewClient(srv.URL + "/").FetchStreamers(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := model.ServerStreamerRecord{ID: "a", Description: "D", Source: "S", Key: true}
	if len(records) != 1 || records[0] != want {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestFetchStreamersReportsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchStreamers(context.Background())
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("expected 503 status error, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Body != "down for maintenance" {
		t.Fatalf("expected body in status error, got %v", err)
	}
}

func TestFetchStreamersRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"streamers":[]}`, `null`, `[{"id":`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := NewClient(srv.URL).FetchStreamers(context.Background())
		srv.Close()
		if err == nil {
			t.Fatalf("expected decode error for body %q", body)
		}
	}
}

func TestSetEnabledSendsPatch(t *testing.T) {
	t.Parallel()

	var got model.EnableRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/streamers/cam%201" && r.URL.Path != "/api/streamers/cam 1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).SetEnabled(context.Background(), "cam 1", true); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	if !got.Enable {
		t.Fatalf("expected enable=true in body")
	}
}

func TestSetEnabledRequiresID(t *testing.T) {
	if err := NewClient("http://127.0.0.1:1").SetEnabled(context.Background(), "", true); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
