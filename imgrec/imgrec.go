// Package imgrec contains a recorder that spools raw scan buffers to disk.
package imgrec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"go/types"
	"io/ioutil"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/nasa-jpl/fs4000scan/generichttp"
	"github.com/nasa-jpl/fs4000scan/scan"
)

// magic identifies the raw sample file format: a fixed header followed by
// the big-endian uint16 sample data exactly as Deinterlace leaves it.
// There is no image-file encoding here; spec.md's Non-goals exclude it.
var magic = [4]byte{'F', 'S', '4', 'R'}

// headerLen is the size in bytes of the fixed header written ahead of
// every raw sample buffer: magic(4) + lines(4) + lineBytes(4) +
// bitsPerSample(2) + lpi(2) + shift(2) + leftToRight(1) + reserved(1).
const headerLen = 20

// Recorder records raw scan buffers with incrementing filenames in
// yyyy-mm-dd subfolders. It is not thread safe.
type Recorder struct {
	last     time.Time
	counter  int
	timeFldr string

	// Root is the root path images are written under.
	Root string

	// Prefix is the filename prefix.
	Prefix string
}

func (r *Recorder) updateFolder() {
	now := time.Now()
	last := r.last
	y, m, d := now.Year(), now.Month(), now.Day()
	if last.Day() == d && last.Month() == m && last.Year() == y {
		return
	}
	r.timeFldr = fmt.Sprintf("%04d-%02d-%02d", y, m, d)
	r.counter = 0
}

func (r *Recorder) mkDir() (string, error) {
	fldr := path.Join(r.Root, r.timeFldr)
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

// WriteBuffer spools buf's header and sample data to the next numbered
// .raw file under Root/yyyy-mm-dd/.
func (r *Recorder) WriteBuffer(buf *scan.Buffer) (string, error) {
	defer func() { r.last = time.Now() }()

	r.updateFolder()
	fldr, err := r.mkDir()
	if err != nil {
		return "", err
	}

	fn := fmt.Sprintf("%s%06d.raw", r.Prefix, r.counter)
	fn = path.Join(fldr, fn)
	fid, err := os.Create(fn)
	if err != nil {
		return "", err
	}
	defer fid.Close()

	hdr := make([]byte, headerLen)
	copy(hdr[0:4], magic[:])
	binary.BigEndian.PutUint32(hdr[4:8], buf.Lines)
	binary.BigEndian.PutUint32(hdr[8:12], buf.LineBytes)
	binary.BigEndian.PutUint16(hdr[12:14], uint16(buf.BitsPerSample))
	binary.BigEndian.PutUint16(hdr[14:16], uint16(buf.LinesPerInch))
	binary.BigEndian.PutUint16(hdr[16:18], uint16(buf.Shift))
	if buf.LeftToRight {
		hdr[18] = 1
	}
	if _, err := fid.Write(hdr); err != nil {
		return "", err
	}
	if _, err := fid.Write(buf.Data); err != nil {
		return "", err
	}
	r.counter++
	return fn, nil
}

// Incr rescans the current folder and sets counter to one past the
// highest sequence number found, so a restarted process does not
// overwrite existing files.
func (r *Recorder) Incr() {
	dn, _ := r.mkDir()
	files, err := ioutil.ReadDir(dn)
	if err != nil {
		return
	}
	count := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		fn := file.Name()
		if !strings.HasSuffix(fn, ".raw") || !strings.HasPrefix(fn, r.Prefix) {
			continue
		}
		bit := strings.Split(fn, r.Prefix)[1]
		bit = bit[:len(bit)-len(".raw")]
		n, err := strconv.Atoi(bit)
		if err != nil {
			continue
		}
		if count < n {
			count = n
		}
	}
	r.counter = count + 1
}

// HTTPWrapper exposes a Recorder's root folder and filename prefix over
// HTTP. It does not implement generichttp.HTTPer on its own; Inject adds
// its routes into another HTTPer's table.
type HTTPWrapper struct {
	*Recorder
}

// NewHTTPWrapper wraps a Recorder for HTTP exposure.
func NewHTTPWrapper(r *Recorder) HTTPWrapper {
	return HTTPWrapper{r}
}

// SetRoot updates the recorder's root folder.
func (h HTTPWrapper) SetRoot(w http.ResponseWriter, r *http.Request) {
	str := generichttp.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Recorder.Root = str.Str
	h.Recorder.updateFolder()
	if _, err := h.Recorder.mkDir(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetRoot returns the recorder's root folder as JSON.
func (h HTTPWrapper) GetRoot(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.String, String: h.Recorder.Root}
	hp.EncodeAndRespond(w, r)
}

// SetPrefix updates the recorder's filename prefix and resets its counter.
func (h HTTPWrapper) SetPrefix(w http.ResponseWriter, r *http.Request) {
	str := generichttp.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Recorder.Prefix = str.Str
	h.Recorder.counter = 0
	w.WriteHeader(http.StatusOK)
}

// GetPrefix returns the recorder's filename prefix as JSON.
func (h HTTPWrapper) GetPrefix(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.String, String: h.Recorder.Prefix}
	hp.EncodeAndRespond(w, r)
}

// Inject adds GET/POST routes for /autowrite/root and /autowrite/prefix
// onto table, wiring this wrapper's recorder into another HTTPer.
func (h HTTPWrapper) Inject(table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/root"}] = h.SetRoot
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/root"}] = h.GetRoot
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/prefix"}] = h.SetPrefix
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/prefix"}] = h.GetPrefix
}
