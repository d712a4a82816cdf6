package tapedeck

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// A Cassette is a named set of recorded entries backed by a single file on
// disk. The file holds one YAML document per entry, separated by document
// markers, so recordings stay easy to read and edit by hand.
type Cassette struct {
	Name    string
	Entries []Entry

	path  string
	dirty bool
}

// NewCassette returns an empty cassette backed by the file at path. A .yml
// extension is added if not present.
func NewCassette(path string) *Cassette {
	if !strings.HasSuffix(path, ".yml") {
		path += ".yml"
	}
	return &Cassette{
		Name: strings.TrimSuffix(filepath.Base(path), ".yml"),
		path: path,
	}
}

// LoadCassette reads a previously saved cassette from path.
//
// The error wraps os.ErrNotExist when no cassette file exists yet.
func LoadCassette(path string) (*Cassette, error) {
	c := NewCassette(path)
	b, err := os.ReadFile(c.path)
	if err != nil {
		return nil, errors.Wrapf(err, "read cassette %s", c.path)
	}
	for i, doc := range bytes.Split(b, []byte("\n---\n")) {
		var e Entry
		if err := yaml.Unmarshal(doc, &e); err != nil {
			return nil, errors.Wrapf(err, "unmarshal entry %d in %s", i, c.path)
		}
		if e.Request == nil && e.Response == nil {
			continue
		}
		c.Entries = append(c.Entries, e)
	}
	return c, nil
}

// Path returns the file the cassette is persisted to.
func (c *Cassette) Path() string { return c.path }

// Save rewrites the cassette file with all current entries. Any
// subdirectories are created if needed.
func (c *Cassette) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0750); err != nil {
		return errors.Wrapf(err, "create cassette dir for %s", c.path)
	}
	var buf bytes.Buffer
	for i, e := range c.Entries {
		if i > 0 {
			buf.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&buf, "# entry %d\n", i)
		if !e.recordedAt.IsZero() {
			fmt.Fprintf(&buf, "# recorded %s\n", e.recordedAt.UTC().Round(time.Second))
			fmt.Fprintf(&buf, "# roundtrip %s\n", e.roundTrip.Round(time.Millisecond))
		}
		b, err := yaml.Marshal(e)
		if err != nil {
			return errors.Wrapf(err, "marshal entry %d", i)
		}
		buf.Write(b)
	}
	if err := os.WriteFile(c.path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "write cassette %s", c.path)
	}
	c.dirty = false
	return nil
}

func (c *Cassette) lookup(method, url string) (Entry, bool) {
	for _, e := range c.Entries {
		if strings.EqualFold(e.Request.Method, method) && strings.EqualFold(e.Request.URL, url) {
			return e, true
		}
	}
	return Entry{}, false
}

// An Entry is a single recorded request-response interaction.
type Entry struct {
	Request  *Request  `yaml:"request"`
	Response *Response `yaml:"response"`

	recordedAt time.Time
	roundTrip  time.Duration
}

// A Request is a recorded outgoing request.
//
// The headers are flattened to a simple key-value map. The underlying
// request may contain multiple values for each key but in practice this is
// not very common and working with a simple key-value map is much more
// convenient.
type Request struct {
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`
}

// A Response is a recorded incoming response.
//
// The headers are flattened in the same way as for Request.
type Response struct {
	StatusCode int               `yaml:"status_code"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Body       string            `yaml:"body,omitempty"`
}

func (resp *Response) httpResponse() *http.Response {
	return &http.Response{
		StatusCode:    resp.StatusCode,
		Header:        expandHeader(resp.Headers),
		Body:          io.NopCloser(strings.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
	}
}

func flattenHeader(in http.Header) map[string]string {
	out := make(map[string]string, len(in))
	for k, vv := range in {
		out[k] = vv[0]
	}
	return out
}

func expandHeader(in map[string]string) http.Header {
	out := make(http.Header, len(in))
	for k, v := range in {
		out.Set(k, v)
	}
	return out
}
