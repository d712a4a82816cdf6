package fixture

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// Record wires a recorder into a fresh HTTP client for the duration of the
// test and returns the client. The recorder is stopped through t.Cleanup,
// so recordings are persisted no matter how the test body exits. This is
// the scoped alternative to embedding Suite:
//
//	func TestAllUsers(t *testing.T) {
//		client := fixture.Record(t, fixture.Config{})
//		resp, err := client.Get("https://api.example.com/users")
//		// ...
//	}
func Record(t *testing.T, cfg Config) *http.Client {
	t.Helper()

	cfg, err := resolveConfig(cfg)
	require.NoError(t, err, "load cassette config")

	client := &http.Client{}
	rec, err := startRecorder(client, cfg, CassetteName(t))
	require.NoError(t, err, "start recorder")

	t.Cleanup(func() {
		if err := rec.Stop(); err != nil {
			t.Errorf("stop recorder: %v", err)
		}
	})
	return client
}
