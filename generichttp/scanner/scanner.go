// Package scanner is the boundary adapter of spec.md §4.6: it exposes a
// SANE-style option surface (list_devices, open, close, get_option/
// set_option, get_parameters, start, read, cancel, set_blocking) over HTTP,
// translating it onto a session.Session without leaking SCSI or
// device-session detail into the transport.
package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/types"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/fs4000scan/codec"
	"github.com/nasa-jpl/fs4000scan/generichttp"
	"github.com/nasa-jpl/fs4000scan/scan"
	"github.com/nasa-jpl/fs4000scan/session"
)

// FrameSource is the subset of session.Session the adapter drives. It is
// an interface so the HTTP layer can be tested without real hardware.
type FrameSource interface {
	Inquiry() (*codec.InquiryBlock, error)
	Params() session.Params
	SetParams(session.Params)
	Scan(frameIndex int, autoExpose bool) error
	Drain() (*scan.Buffer, bool)
	Cancel()
	State() scan.State
}

// FrameKind distinguishes the two mutually exclusive frame-selection
// options spec.md §6 names: negative strips (1..6) and slide mounts
// (1..4).
type FrameKind int

const (
	// FrameNone means no frame has been selected yet.
	FrameNone FrameKind = iota
	FrameNegative
	FrameSlide
)

// Parameters mirrors get_parameters(): format is always RGB, depth is the
// deinterlaced sample width, and the dimensions come from the last
// get_data_status and post-deinterlace line count.
type Parameters struct {
	Format string `json:"format"`
	Depth  int    `json:"depth"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// HTTPScanner adapts a FrameSource onto the SANE-style option surface.
// It is not safe for concurrent Start/Read/Cancel calls from more than
// one client, matching the single-threaded-per-session model of §5.
type HTTPScanner struct {
	src FrameSource

	kind  FrameKind
	frame int // 1-based index within kind

	blocking bool

	reading *bufferReader
}

// NewHTTPScanner wraps src for HTTP exposure.
func NewHTTPScanner(src FrameSource) *HTTPScanner {
	return &HTTPScanner{src: src, blocking: true}
}

// bufferReader turns a drained scan.Buffer into a chunked io.Reader per
// spec.md §4.6: "chunked read -> drain buffer in application-supplied
// chunks", ending in io.EOF once every byte has been delivered.
type bufferReader struct {
	buf *scan.Buffer
	off int
}

func (r *bufferReader) Read(p []byte) (int, error) {
	if r.off >= len(r.buf.Data) {
		return 0, io.EOF
	}
	n := copy(p, r.buf.Data[r.off:])
	r.off += n
	return n, nil
}

func (r *bufferReader) Parameters() Parameters {
	return Parameters{
		Format: "RGB",
		Depth:  r.buf.BitsPerSample,
		Width:  r.buf.LineEntries() / scan.SamplesPerPixel,
		Height: int(r.buf.Lines),
	}
}

// frameIndexFor maps the SANE option's 1-based frame number (frame_negative
// 1..=6, frame_slide 1..=4, per spec.md §6) onto the orchestrator's 0-based
// frameIndex, which codec.CarriageOffset indexes directly into its
// per-holder offset arrays.
func frameIndexFor(kind FrameKind, frame int) int {
	return frame - 1
}

// ListDevices answers list_devices with the single fixed USB identity
// this driver supports; multi-device enumeration is out of scope.
func (h *HTTPScanner) ListDevices(w http.ResponseWriter, r *http.Request) {
	inq, err := h.src.Inquiry()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	devices := []string{fmt.Sprintf("%s %s", inq.Vendor(), inq.Product())}
	writeJSON(w, devices)
}

// optionDescriptor struct is what get_option/set_option exchange as JSON.
type optionValue struct {
	Value interface{} `json:"value"`
}

// GetOption answers get_option(i) for the four options spec.md §6 names:
// 0 num_options, 1 product (read-only), 2 frame_negative, 3 frame_slide.
func (h *HTTPScanner) GetOption(w http.ResponseWriter, r *http.Request, idx int) {
	switch idx {
	case 0:
		writeJSON(w, optionValue{Value: 4})
	case 1:
		inq, err := h.src.Inquiry()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, optionValue{Value: inq.Product()})
	case 2:
		v := 0
		if h.kind == FrameNegative {
			v = h.frame
		}
		writeJSON(w, optionValue{Value: v})
	case 3:
		v := 0
		if h.kind == FrameSlide {
			v = h.frame
		}
		writeJSON(w, optionValue{Value: v})
	default:
		http.Error(w, "unknown option", http.StatusNotFound)
	}
}

// SetOption answers set_option(i, v). Setting frame_negative or
// frame_slide to zero clears that selection; setting one implicitly
// clears the other, since the two are mutually exclusive.
func (h *HTTPScanner) SetOption(w http.ResponseWriter, r *http.Request, idx int) {
	var body optionValue
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	n, ok := body.Value.(float64) // JSON numbers decode to float64
	if !ok {
		http.Error(w, "option value must be numeric", http.StatusBadRequest)
		return
	}
	v := int(n)

	switch idx {
	case 0, 1:
		http.Error(w, "option is read-only", http.StatusBadRequest)
	case 2:
		if v < 0 || v > 6 {
			http.Error(w, "frame_negative must be 1..6 or 0 to clear", http.StatusBadRequest)
			return
		}
		if v == 0 {
			h.kind, h.frame = FrameNone, 0
		} else {
			h.kind, h.frame = FrameNegative, v
		}
		w.WriteHeader(http.StatusOK)
	case 3:
		if v < 0 || v > 4 {
			http.Error(w, "frame_slide must be 1..4 or 0 to clear", http.StatusBadRequest)
			return
		}
		if v == 0 {
			h.kind, h.frame = FrameNone, 0
		} else {
			h.kind, h.frame = FrameSlide, v
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "unknown option", http.StatusNotFound)
	}
}

// GetParameters answers get_parameters(); it only succeeds once a frame
// has been acquired and drained.
func (h *HTTPScanner) GetParameters(w http.ResponseWriter, r *http.Request) {
	if h.reading == nil {
		http.Error(w, "no frame available; call start then read", http.StatusConflict)
		return
	}
	writeJSON(w, h.reading.Parameters())
}

// Start answers start: it requires a frame selection, runs the full
// acquisition synchronously (per §5's single-threaded model), and leaves
// the drained buffer ready for Read.
func (h *HTTPScanner) Start(w http.ResponseWriter, r *http.Request) {
	if h.kind == FrameNone {
		http.Error(w, "select frame_negative or frame_slide before start", http.StatusBadRequest)
		return
	}
	autoExpose := r.URL.Query().Get("auto_expose") != "false"
	idx := frameIndexFor(h.kind, h.frame)
	if err := h.src.Scan(idx, autoExpose); err != nil {
		mapScanError(w, err)
		return
	}
	buf, ok := h.src.Drain()
	if !ok {
		http.Error(w, "scan completed but produced no buffer", http.StatusInternalServerError)
		return
	}
	h.reading = &bufferReader{buf: buf}
	w.WriteHeader(http.StatusOK)
}

// Read answers read(buf): it copies up to the caller's requested chunk
// size (query parameter "n", default 65536) out of the drained buffer,
// returning 204 No Content once the buffer is exhausted (end-of-stream).
func (h *HTTPScanner) Read(w http.ResponseWriter, r *http.Request) {
	if h.reading == nil {
		http.Error(w, "no frame in progress; call start first", http.StatusConflict)
		return
	}
	n := 65536
	if s := r.URL.Query().Get("n"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	chunk := make([]byte, n)
	read, err := h.reading.Read(chunk)
	if err == io.EOF && read == 0 {
		h.reading = nil
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(chunk[:read])
}

// Cancel answers cancel.
func (h *HTTPScanner) Cancel(w http.ResponseWriter, r *http.Request) {
	h.src.Cancel()
	h.reading = nil
	w.WriteHeader(http.StatusOK)
}

// SetBlocking answers set_blocking; this adapter always serves reads
// synchronously, so it only validates and echoes the request.
func (h *HTTPScanner) SetBlocking(w http.ResponseWriter, r *http.Request) {
	b := generichttp.BoolT{}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	h.blocking = b.Bool
	w.WriteHeader(http.StatusOK)
}

// mapScanError implements spec.md §7's user-visible mapping: NoFilmHolder,
// DeviceBusy, and any SenseError whose key is not-ready are retryable
// conditions, everything else is an I/O error.
func mapScanError(w http.ResponseWriter, err error) {
	hp := generichttp.HumanPayload{T: types.String, String: err.Error()}
	msg := strings.ToLower(err.Error())
	var se *command.SenseError
	retryable := strings.Contains(msg, "no film holder") || strings.Contains(msg, "device busy") ||
		(errors.As(err, &se) && se.IsNotReady())
	w.Header().Set("Content-Type", "application/json")
	if retryable {
		w.WriteHeader(http.StatusConflict)
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(hp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func (h *HTTPScanner) getOptionRoute(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		http.Error(w, "option index must be an integer", http.StatusBadRequest)
		return
	}
	h.GetOption(w, r, idx)
}

func (h *HTTPScanner) setOptionRoute(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		http.Error(w, "option index must be an integer", http.StatusBadRequest)
		return
	}
	h.SetOption(w, r, idx)
}

// RT builds the route table for the SANE-style option surface, satisfying
// generichttp.HTTPer.
func (h *HTTPScanner) RT() generichttp.RouteTable {
	rt := generichttp.RouteTable{}
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/list-devices"}] = h.ListDevices
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/option/{idx}"}] = h.getOptionRoute
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/option/{idx}"}] = h.setOptionRoute
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/parameters"}] = h.GetParameters
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/start"}] = h.Start
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/read"}] = h.Read
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/cancel"}] = h.Cancel
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/blocking"}] = h.SetBlocking
	return rt
}
