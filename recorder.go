package tapedeck

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// NoEntryError is returned when the recorder mode is ReplayOnly and no
// recorded entry matches the current request.
//
// Because the error is returned from the transport, it may be wrapped.
type NoEntryError struct{ Request *http.Request }

// Error implements the error interface.
func (e NoEntryError) Error() string { return "no recorded entry" }

// Mode controls the mode of the recorder.
type Mode int

// Possible values:
const (
	// Auto replays entries from the cassette if one matches. If none does,
	// the request is performed and the result recorded.
	Auto Mode = iota

	// ReplayOnly only allows replaying from the cassette without network
	// traffic. If no entry matches, NoEntryError is returned.
	ReplayOnly

	// Record records all traffic. Entries persisted by a previous session
	// are discarded and re-recorded.
	Record

	// Passthrough disables the recorder and passes through all traffic
	// directly to the session's transport. Responses are not persisted but
	// can be retrieved with Lookup().
	Passthrough
)

// String returns the name accepted by ParseMode.
func (m Mode) String() string {
	switch m {
	case Auto:
		return "auto"
	case ReplayOnly:
		return "replay"
	case Record:
		return "record"
	case Passthrough:
		return "passthrough"
	}
	return "unknown"
}

// ParseMode converts a mode name to a Mode. Accepted names are auto,
// replay, record and passthrough.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "auto":
		return Auto, nil
	case "replay":
		return ReplayOnly, nil
	case "record":
		return Record, nil
	case "passthrough":
		return Passthrough, nil
	}
	return 0, errors.Errorf("unknown recorder mode %q", s)
}

// Selector chooses a recorded Entry to respond to a given request.
type Selector interface {
	Select(entries []Entry, req *http.Request) (Entry, bool)
}

// Stats reports interaction counts observed by a recorder.
type Stats struct {
	// Replayed is the number of requests answered from the cassette.
	Replayed int
	// Recorded is the number of requests performed for real.
	Recorded int
}

// New is a convenience function for creating a recorder bound to the given
// session.
func New(session *http.Client, filters ...Filter) *Recorder {
	return &Recorder{
		Session: session,
		Mode:    Auto,
		Filters: filters,
	}
}

// Recorder intercepts an HTTP session's traffic and records it to, or
// replays it from, the inserted cassette.
//
// The lifecycle is: UseCassette selects the named cassette and loads any
// previously persisted entries, Start installs the recorder as the
// session's transport, Stop restores the original transport and persists
// entries recorded since Start. A Recorder also implements
// http.RoundTripper directly so it can be injected into a client by hand.
type Recorder struct {
	// Session whose traffic is intercepted between Start and Stop.
	//
	// Required unless the Recorder is used directly as a RoundTripper.
	Session *http.Client

	// Dir is prepended to cassette names passed to UseCassette.
	Dir string

	// Mode to use. Default mode is Auto.
	Mode Mode

	// Filters to apply to each entry before it is kept.
	// Filters are executed in the order specified.
	Filters []Filter

	// Transport to use for real requests. If nil, the session's transport
	// at Start time is used, falling back to http.DefaultTransport.
	Transport http.RoundTripper

	// An optional Selector may be specified to control which recorded
	// Entry is selected to respond to a given request. If nil, the default
	// selection is used that picks the first recorded entry with a
	// matching method and url.
	Selector Selector

	mu       sync.Mutex
	cassette *Cassette
	prev     http.RoundTripper
	started  bool
	stats    Stats
}

var _ http.RoundTripper = (*Recorder)(nil)

// UseCassette selects the named cassette, loading previously persisted
// entries if the cassette file exists. The name is resolved relative to
// Dir and gets a .yml extension if it has none.
//
// The cassette cannot be changed while the recorder is started.
func (r *Recorder) UseCassette(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("recorder: cassette changed while started")
	}
	p := name
	if r.Dir != "" {
		p = filepath.Join(r.Dir, p)
	}
	c, err := LoadCassette(p)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		c = NewCassette(p)
	}
	c.Name = name
	r.cassette = c
	return nil
}

// Start begins intercepting the session's traffic by installing the
// recorder as the session's transport. The transport in place at this
// point is kept for performing real requests and is restored by Stop.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("recorder: already started")
	}
	if r.Session == nil {
		return errors.New("recorder: no session bound")
	}
	if r.cassette == nil && r.Mode != Passthrough {
		return errors.New("recorder: no cassette inserted")
	}
	if r.Mode == Record && r.cassette != nil {
		// Re-record from scratch.
		r.cassette.Entries = nil
	}
	r.prev = r.Session.Transport
	r.Session.Transport = r
	r.started = true
	return nil
}

// Stop ends interception, restores the session's original transport and
// persists entries recorded since Start. In ReplayOnly and Passthrough
// modes nothing is written to disk.
//
// Stop must be called exactly once for each successful Start.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return errors.New("recorder: not started")
	}
	r.Session.Transport = r.prev
	r.prev = nil
	r.started = false
	if r.cassette != nil && r.cassette.dirty && (r.Mode == Auto || r.Mode == Record) {
		if err := r.cassette.Save(); err != nil {
			return errors.Wrapf(err, "persist cassette %s", r.cassette.Name)
		}
	}
	return nil
}

// RoundTrip implements http.RoundTripper and does the actual request.
//
// The behavior depends on the mode set:
//
//	Auto:          If a matching entry exists, the response from the entry
//	               is returned. Otherwise the request is performed and
//	               recorded.
//	ReplayOnly:    Returns a previously recorded response. Returns
//	               NoEntryError if no entry matches the request.
//	Record:        Always sends the real request and records the response.
//	Passthrough:   The request is passed through to the underlying
//	               transport and kept in memory only.
//
// Attempting to set another mode will cause a panic.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	if r.Mode > Passthrough {
		panic("Unsupported mode")
	}
	if r.cassette == nil && r.Mode != Passthrough {
		return nil, errors.New("recorder: no cassette inserted")
	}

	if r.Mode == Auto || r.Mode == ReplayOnly {
		var e Entry
		var ok bool
		if r.Selector != nil {
			e, ok = r.Selector.Select(r.cassette.Entries, req)
		} else {
			e, ok = r.cassette.lookup(req.Method, req.URL.String())
		}
		if ok {
			r.mu.Lock()
			r.stats.Replayed++
			r.mu.Unlock()
			return e.Response.httpResponse(), nil
		}
		if r.Mode == ReplayOnly {
			return nil, NoEntryError{Request: req}
		}
	}

	transport := r.Transport
	if transport == nil {
		transport = r.prev
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	// Construct request
	var bodyOut bytes.Buffer
	if req.Body != nil {
		if _, err := io.Copy(&bodyOut, req.Body); err != nil {
			return nil, err
		}
	}
	req.Body = io.NopCloser(&bodyOut)
	out := &Request{
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: flattenHeader(req.Header),
		Body:    bodyOut.String(),
	}

	// Send request
	start := time.Now()
	resp, err := transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	dur := time.Since(start)

	// Construct response
	in := &Response{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeader(resp.Header),
	}
	bodyIn, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := resp.Body.Close(); err != nil {
		return nil, err
	}
	in.Body = string(bodyIn)

	// Construct entry
	e := Entry{Request: out, Response: in, recordedAt: start, roundTrip: dur}

	// Apply filters
	for _, apply := range r.Filters {
		apply(&e)
	}

	// Keep entry; persisted on Stop unless passing through
	r.mu.Lock()
	if r.cassette != nil {
		r.cassette.Entries = append(r.cassette.Entries, e)
		if r.Mode == Auto || r.Mode == Record {
			r.cassette.dirty = true
		}
	}
	r.stats.Recorded++
	r.mu.Unlock()

	// Response is rebuilt from the entry so filters apply to it too
	return in.httpResponse(), nil
}

// Lookup returns a recorded entry matching the given method and url.
//
// The method and url are case-insensitive.
//
// Returns false if no such entry exists.
func (r *Recorder) Lookup(method, url string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cassette == nil {
		return Entry{}, false
	}
	return r.cassette.lookup(method, url)
}

// Stats returns interaction counts observed since the recorder was
// created.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// OncePerCall is a Selector that selects entries based on the method and
// URL, but it will only select any given entry at most once.
type OncePerCall struct {
	mu   sync.Mutex
	used map[int]bool
}

// Select implements Selector and chooses an entry.
func (s *OncePerCall) Select(entries []Entry, req *http.Request) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used == nil {
		s.used = map[int]bool{}
	}
	for i, e := range entries {
		if !strings.EqualFold(e.Request.Method, req.Method) {
			continue
		} else if !strings.EqualFold(e.Request.URL, req.URL.String()) {
			continue
		}
		if !s.used[i] {
			s.used[i] = true
			return e, true
		}
	}
	return Entry{}, false
}
