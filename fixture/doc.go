// Package fixture wraps each test's HTTP traffic in a tapedeck recorder
// without any per-test setup or teardown code.
//
// Embedding Suite gives every test method of a testify suite its own
// session and cassette, named after the test itself. The Record function
// offers the same behavior for plain tests, releasing the recorder through
// t.Cleanup.
package fixture
