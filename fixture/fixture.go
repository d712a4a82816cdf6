package fixture

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mkraft/tapedeck"
)

// CassetteName derives the cassette name for the given test: the test's
// full name with every "/" replaced by ".". For a suite method this yields
// "<TestFunc>.<Method>", e.g. "TestMyAPI.TestAllUsers".
//
// The name is stable across runs and unique per test method, so a later
// run replays the exact recording made for that test.
func CassetteName(t *testing.T) string {
	return strings.ReplaceAll(t.Name(), "/", ".")
}

// Suite records or replays all HTTP traffic of each test method through a
// per-test cassette. Embed it in place of suite.Suite:
//
//	type MyAPISuite struct {
//		fixture.Suite
//	}
//
//	func (s *MyAPISuite) TestAllUsers() {
//		resp, err := s.Session.Get("https://api.example.com/users")
//		// ...
//	}
//
//	func TestMyAPI(t *testing.T) {
//		suite.Run(t, new(MyAPISuite))
//	}
//
// A suite that defines its own SetupTest or TearDownTest must call the
// embedded one first, so the session exists before any suite-specific
// fixture logic and composes the same way in both hooks:
//
//	func (s *MyAPISuite) SetupTest() {
//		s.Suite.SetupTest()
//		s.manager = NewSessionManager(s.Session)
//	}
type Suite struct {
	suite.Suite

	// NewSession returns the HTTP client used for the test. Leave nil to
	// get a plain client; set it to exercise a customized client (extra
	// auth, retries, ...) under test. The returned client is the one the
	// recorder is bound to.
	NewSession func() *http.Client

	// Config for the whole suite. The zero value loads from the
	// environment, see FromEnv.
	Config Config

	// Session and Recorder are created fresh for every test by SetupTest
	// and stay valid until after TearDownTest.
	Session  *http.Client
	Recorder *tapedeck.Recorder
}

// CassetteName returns the cassette name for the currently running test.
func (s *Suite) CassetteName() string {
	return CassetteName(s.T())
}

// SetupTest creates the session, wraps it in a recorder and starts
// recording or replaying against the test's cassette. Any failure here
// fails the test before its body runs.
func (s *Suite) SetupTest() {
	cfg, err := resolveConfig(s.Config)
	s.Require().NoError(err, "load cassette config")

	if s.NewSession != nil {
		s.Session = s.NewSession()
	} else {
		s.Session = &http.Client{}
	}

	s.Recorder, err = startRecorder(s.Session, cfg, s.CassetteName())
	s.Require().NoError(err, "start recorder")
}

// TearDownTest stops the recorder, persisting anything recorded during the
// test. The framework invokes it whether the test body passed, failed or
// errored, so no recording is left open across test boundaries.
func (s *Suite) TearDownTest() {
	if s.Recorder == nil {
		return
	}
	rec := s.Recorder
	s.Recorder = nil
	s.Require().NoError(rec.Stop(), "stop recorder")
}

func startRecorder(session *http.Client, cfg Config, name string) (*tapedeck.Recorder, error) {
	mode, err := tapedeck.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	rec := tapedeck.New(session)
	rec.Dir = cfg.Dir
	rec.Mode = mode
	if err := rec.UseCassette(name); err != nil {
		return nil, err
	}
	if err := rec.Start(); err != nil {
		return nil, err
	}
	return rec, nil
}
