// Package tapedeck records and replays HTTP interactions through named
// cassettes.
//
// A Recorder is bound to an http.Client session. While started, the
// recorder intercepts the session's outgoing requests and either replays a
// matching entry from the inserted cassette or performs the real request
// and records it. New entries are persisted to disk when the recorder is
// stopped. The Recorder is configurable to always perform requests, never
// perform requests, or auto, where requests are performed when no existing
// entry exists.
//
// The fixture subpackage wires a recorder into every test of a suite so
// that test authors never manage this lifecycle by hand.
package tapedeck
