package serveraccess

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func notify(stat *ServerStatus, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/notify-active", strings.NewReader(`{"user":"`+user+`"}`))
	w := httptest.NewRecorder()
	stat.NotifyActive(w, req)
	return w
}

func TestNotifyActiveGrantsFirstUser(t *testing.T) {
	stat := &ServerStatus{}
	w := notify(stat, "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !stat.Busy || stat.User != "alice" {
		t.Fatalf("stat = %+v, want busy held by alice", stat)
	}
}

func TestNotifyActiveRejectsSecondDistinctUser(t *testing.T) {
	stat := &ServerStatus{}
	notify(stat, "alice")
	w := notify(stat, "bob")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if stat.User != "alice" {
		t.Fatalf("reservation should remain with alice, got %q", stat.User)
	}
}

func TestNotifyActiveAllowsSameUserToRenew(t *testing.T) {
	stat := &ServerStatus{}
	notify(stat, "alice")
	w := notify(stat, "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for renewing user", w.Code)
	}
}

func TestReleaseActiveClearsReservation(t *testing.T) {
	stat := &ServerStatus{}
	notify(stat, "alice")

	req := httptest.NewRequest(http.MethodPost, "/release-active", nil)
	w := httptest.NewRecorder()
	stat.ReleaseActive(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if stat.Busy {
		t.Fatalf("expected Busy=false after release")
	}

	w2 := notify(stat, "bob")
	if w2.Code != http.StatusOK {
		t.Fatalf("bob should be able to claim after release, got %d", w2.Code)
	}
}

func TestCheckActiveReportsCurrentHolder(t *testing.T) {
	stat := &ServerStatus{}
	notify(stat, "alice")

	req := httptest.NewRequest(http.MethodGet, "/check-active", nil)
	w := httptest.NewRecorder()
	stat.CheckActive(w, req)

	var got ServerStatus
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.User != "alice" || !got.Busy {
		t.Fatalf("decoded = %+v, want held by alice", got)
	}
}
