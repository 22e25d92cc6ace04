package scanner

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/fs4000scan/codec"
	"github.com/nasa-jpl/fs4000scan/command"
	"github.com/nasa-jpl/fs4000scan/scan"
	"github.com/nasa-jpl/fs4000scan/session"
)

type fakeSource struct {
	inquiry   *codec.InquiryBlock
	inquiryFn func() (*codec.InquiryBlock, error)
	scanErr   error
	buf       *scan.Buffer
	cancelled bool
	params    session.Params
}

func (f *fakeSource) Inquiry() (*codec.InquiryBlock, error) {
	if f.inquiryFn != nil {
		return f.inquiryFn()
	}
	return f.inquiry, nil
}
func (f *fakeSource) Params() session.Params       { return f.params }
func (f *fakeSource) SetParams(p session.Params)   { f.params = p }
func (f *fakeSource) Scan(idx int, auto bool) error { return f.scanErr }
func (f *fakeSource) Drain() (*scan.Buffer, bool) {
	if f.buf == nil {
		return nil, false
	}
	return f.buf, true
}
func (f *fakeSource) Cancel()          { f.cancelled = true }
func (f *fakeSource) State() scan.State { return scan.Idle }

func newInquiry(t *testing.T) *codec.InquiryBlock {
	t.Helper()
	raw := make([]byte, codec.InquiryLen)
	copy(raw[8:16], "CANON   ")
	copy(raw[16:32], "IX-40015G       ")
	b, err := codec.DecodeInquiry(raw)
	if err != nil {
		t.Fatalf("DecodeInquiry: %v", err)
	}
	return b
}

func router(h *HTTPScanner) chi.Router {
	mux := chi.NewRouter()
	h.RT().Bind(mux)
	return mux
}

func TestSetOptionFrameNegativeAndSlideAreMutuallyExclusive(t *testing.T) {
	h := NewHTTPScanner(&fakeSource{inquiry: newInquiry(t)})

	req := httptest.NewRequest(http.MethodPost, "/option/2", strings.NewReader(`{"value":3}`))
	w := httptest.NewRecorder()
	router(h).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("set frame_negative status = %d body=%s", w.Code, w.Body.String())
	}
	if h.kind != FrameNegative || h.frame != 3 {
		t.Fatalf("kind=%v frame=%d, want Negative/3", h.kind, h.frame)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/option/3", strings.NewReader(`{"value":2}`))
	w2 := httptest.NewRecorder()
	router(h).ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("set frame_slide status = %d body=%s", w2.Code, w2.Body.String())
	}
	if h.kind != FrameSlide || h.frame != 2 {
		t.Fatalf("kind=%v frame=%d, want Slide/2 after mutually-exclusive set", h.kind, h.frame)
	}
}

func TestSetOptionRejectsOutOfRange(t *testing.T) {
	h := NewHTTPScanner(&fakeSource{inquiry: newInquiry(t)})
	req := httptest.NewRequest(http.MethodPost, "/option/2", strings.NewReader(`{"value":7}`))
	w := httptest.NewRecorder()
	router(h).ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for frame_negative=7", w.Code)
	}
}

func TestGetOptionNumOptionsAndProduct(t *testing.T) {
	h := NewHTTPScanner(&fakeSource{inquiry: newInquiry(t)})

	w := httptest.NewRecorder()
	router(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/option/0", nil))
	var got optionValue
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Value.(float64) != 4 {
		t.Fatalf("num_options = %v, want 4", got.Value)
	}

	w2 := httptest.NewRecorder()
	router(h).ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/option/1", nil))
	var got2 optionValue
	json.NewDecoder(w2.Body).Decode(&got2)
	if !strings.Contains(got2.Value.(string), "IX-40015G") {
		t.Fatalf("product = %v", got2.Value)
	}
}

func TestStartWithoutFrameSelectionFails(t *testing.T) {
	h := NewHTTPScanner(&fakeSource{inquiry: newInquiry(t)})
	w := httptest.NewRecorder()
	router(h).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStartReadEndsWithNoContent(t *testing.T) {
	buf := scan.NewBuffer(2, 12, 16, 0, false)
	for i := range buf.Data {
		buf.Data[i] = byte(i)
	}
	src := &fakeSource{inquiry: newInquiry(t), buf: buf}
	h := NewHTTPScanner(src)
	h.kind, h.frame = FrameNegative, 1

	w := httptest.NewRecorder()
	router(h).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start?auto_expose=false", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d body=%s", w.Code, w.Body.String())
	}

	var all []byte
	for {
		rw := httptest.NewRecorder()
		router(h).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/read?n=5", nil))
		if rw.Code == http.StatusNoContent {
			break
		}
		if rw.Code != http.StatusOK {
			t.Fatalf("read status = %d", rw.Code)
		}
		all = append(all, rw.Body.Bytes()...)
	}
	if len(all) != len(buf.Data) {
		t.Fatalf("read total = %d bytes, want %d", len(all), len(buf.Data))
	}
	for i, b := range all {
		if b != buf.Data[i] {
			t.Fatalf("byte %d = %d, want %d", i, b, buf.Data[i])
		}
	}
}

func TestStartMapsNoFilmHolderTo409(t *testing.T) {
	src := &fakeSource{inquiry: newInquiry(t), scanErr: command.ErrNoFilmHolder}
	h := NewHTTPScanner(src)
	h.kind, h.frame = FrameSlide, 1

	w := httptest.NewRecorder()
	router(h).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 for NoFilmHolder", w.Code)
	}
}

func TestCancelClearsInProgressRead(t *testing.T) {
	src := &fakeSource{inquiry: newInquiry(t)}
	h := NewHTTPScanner(src)
	h.reading = &bufferReader{buf: scan.NewBuffer(1, 6, 16, 0, false)}

	w := httptest.NewRecorder()
	router(h).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cancel", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !src.cancelled {
		t.Fatalf("expected Cancel to reach the source")
	}
	if h.reading != nil {
		t.Fatalf("expected in-progress read to be cleared")
	}
}
