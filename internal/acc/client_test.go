package acc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"modelsync/internal/gateway"
	"modelsync/internal/model"
)

const (
	testProject = "11111111-2222-3333-4444-555555555555"
	testModel   = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	testChild   = "bbbbbbbb-cccc-dddd-eeee-ffffffffffff"
)

func testIdentity(t *testing.T) model.Identity {
	t.Helper()
	id, err := model.NewIdentity("US", testProject, testModel)
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	return id
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), nil, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestClient_OpenReadLinksSyncClose(t *testing.T) {
	var sawMode, sawOptions string
	synced := 0
	deleted := 0

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sawMode = req["mode"]
		if req["projectId"] != testProject || req["modelId"] != testModel || req["region"] != "US" {
			http.Error(w, "wrong identity", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"sessionId":"s-1","name":"Tower-A"}`)
	})
	mux.HandleFunc("GET /v1/sessions/s-1/links", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"links":[{"region":"US","projectId":%q,"modelId":%q,"name":"Struct"}]}`, testProject, testChild)
	})
	mux.HandleFunc("POST /v1/sessions/s-1/options", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		sawOptions, _ = req["worksetMode"].(string)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /v1/sessions/s-1/sync", func(w http.ResponseWriter, r *http.Request) {
		synced++
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /v1/sessions/s-1", func(w http.ResponseWriter, r *http.Request) {
		deleted++
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, mux)
	ctx := context.Background()
	id := testIdentity(t)

	h, err := client.OpenFull(ctx, id)
	if err != nil {
		t.Fatalf("OpenFull: %v", err)
	}
	if sawMode != "full" {
		t.Errorf("open mode = %q, want full", sawMode)
	}
	if h.Identity() != id || h.Mode() != gateway.OpenFull {
		t.Errorf("handle = %s/%s", h.Identity(), h.Mode())
	}

	links, err := client.ReadDirectLinks(ctx, h)
	if err != nil {
		t.Fatalf("ReadDirectLinks: %v", err)
	}
	if len(links) != 1 || links[0].Name != "Struct" || links[0].Identity.ModelID.String() != testChild {
		t.Fatalf("links = %+v", links)
	}

	if err := client.ApplyOptions(ctx, h, gateway.Options{WorksetMode: gateway.WorksetsAll}); err != nil {
		t.Fatalf("ApplyOptions: %v", err)
	}
	if sawOptions != "all" {
		t.Errorf("workset mode sent = %q, want all", sawOptions)
	}

	if err := client.Sync(ctx, h); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if synced != 1 {
		t.Errorf("sync called %d times, want 1", synced)
	}

	client.Close(ctx, h)
	client.Close(ctx, h)
	if deleted != 1 {
		t.Errorf("session deleted %d times, want 1 (Close is idempotent)", deleted)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   gateway.Kind
	}{
		{http.StatusNotFound, gateway.KindNotFound},
		{http.StatusUnauthorized, gateway.KindAccessDenied},
		{http.StatusForbidden, gateway.KindAccessDenied},
		{http.StatusLocked, gateway.KindLocked},
		{http.StatusConflict, gateway.KindSyncConflict},
		{http.StatusUnprocessableEntity, gateway.KindCorruptModel},
		{http.StatusInternalServerError, gateway.KindTransientIO},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d", tc.status), func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"message":"nope"}`, tc.status)
			})
			client := newTestClient(t, mux)

			_, err := client.OpenDetached(context.Background(), testIdentity(t))
			if err == nil {
				t.Fatal("expected error")
			}
			kind, ok := gateway.KindOf(err)
			if !ok || kind != tc.kind {
				t.Fatalf("kind = %s (ok=%v), want %s; err = %v", kind, ok, tc.kind, err)
			}
		})
	}
}

func TestClient_OutageStatusIsFatal(t *testing.T) {
	for _, status := range []int{http.StatusBadGateway, http.StatusServiceUnavailable} {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", status)
		})
		client := newTestClient(t, mux)

		_, err := client.OpenFull(context.Background(), testIdentity(t))
		if !errors.Is(err, gateway.ErrUnavailable) {
			t.Fatalf("status %d: err = %v, want ErrUnavailable", status, err)
		}
	}
}

func TestClient_TransportErrorIsTransient(t *testing.T) {
	client, err := NewClient(context.Background(), nil, WithBaseURL("http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.OpenDetached(context.Background(), testIdentity(t))
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !gateway.IsTransient(err) {
		t.Fatalf("transport error not transient: %v", err)
	}
}

func TestClient_SyncRejectsDetachedHandle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sessionId":"s-2"}`)
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	h, err := client.OpenDetached(ctx, testIdentity(t))
	if err != nil {
		t.Fatalf("OpenDetached: %v", err)
	}
	if err := client.Sync(ctx, h); err == nil {
		t.Fatal("Sync on a detached handle must fail")
	}
	if err := client.ApplyOptions(ctx, h, gateway.Options{}); err == nil {
		t.Fatal("ApplyOptions on a detached handle must fail")
	}
}

func TestClient_MalformedLinkIsCorruptModel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sessionId":"s-3"}`)
	})
	mux.HandleFunc("GET /v1/sessions/s-3/links", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"links":[{"region":"US","projectId":"garbage","modelId":"garbage","name":"X"}]}`)
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	h, err := client.OpenDetached(ctx, testIdentity(t))
	if err != nil {
		t.Fatalf("OpenDetached: %v", err)
	}
	_, err = client.ReadDirectLinks(ctx, h)
	if err == nil {
		t.Fatal("expected error for malformed link")
	}
	if kind, _ := gateway.KindOf(err); kind != gateway.KindCorruptModel {
		t.Fatalf("kind = %s, want corrupt-model", kind)
	}
}
