// Package serveraccess gates the scanner's single-session reservation
// over HTTP: once a user has notified the server they hold the device, a
// second distinct user's notify is rejected with 409 Conflict until the
// first releases it.
package serveraccess

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// ServerStatus holds the current user, if the server is busy, and when the
// user took control. It is safe for concurrent use.
type ServerStatus struct {
	mu sync.Mutex

	User       string
	Busy       bool
	WhenAuthed time.Time
}

// AuthRequest is a passthrough struct allowing a User variable to be
// extracted from JSON.
type AuthRequest struct {
	User string `json:"user"`
}

// NotifyActive takes POST requests with JSON like {"user": "foo"} and
// reserves the session for that user. If another user already holds the
// reservation, it responds 409 Conflict and leaves the existing
// reservation untouched, matching the device's single-open invariant.
func (stat *ServerStatus) NotifyActive(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var dat AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&dat); err != nil {
		fstr := fmt.Sprintf("/notify-error cannot decode request, need JSON field \"user\": %s", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusBadRequest)
		return
	}

	stat.mu.Lock()
	defer stat.mu.Unlock()
	if stat.Busy && stat.User != dat.User {
		msg := fmt.Sprintf("scanner is held by %q since %s", stat.User, stat.WhenAuthed.Format(time.RFC822))
		http.Error(w, msg, http.StatusConflict)
		return
	}

	stat.User = dat.User
	stat.Busy = true
	stat.WhenAuthed = time.Now()
	w.WriteHeader(http.StatusOK)
	log.Printf("user %s notified at %s from %s", stat.User, stat.WhenAuthed.Format(time.RFC822), r.RemoteAddr)
}

// ReleaseActive clears the reservation, responds 200 OK, and logs who
// released it. Releasing when nobody holds the reservation is a no-op.
func (stat *ServerStatus) ReleaseActive(w http.ResponseWriter, r *http.Request) {
	stat.mu.Lock()
	defer stat.mu.Unlock()

	log.Printf("released, %s last authed at %s, released by %s",
		stat.User, stat.WhenAuthed.Format(time.RFC822), r.RemoteAddr)

	stat.User = ""
	stat.Busy = false
	stat.WhenAuthed = time.Time{}
	w.WriteHeader(http.StatusOK)
}

// CheckActive writes the JSON representation of stat's current reservation.
func (stat *ServerStatus) CheckActive(w http.ResponseWriter, r *http.Request) {
	stat.mu.Lock()
	snapshot := ServerStatus{User: stat.User, Busy: stat.Busy, WhenAuthed: stat.WhenAuthed}
	stat.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		fstr := fmt.Sprintf("/check-active error encoding server state %s", err)
		log.Println(fstr)
		return
	}
	log.Printf("activity checked from %s", r.RemoteAddr)
}
