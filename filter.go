package tapedeck

// A Filter modifies an entry before it is kept by the recorder.
//
// Filters are applied after the actual request, with the primary purpose
// being to remove sensitive data from the saved cassette.
type Filter func(entry *Entry)

// RemoveRequestHeader removes a header with the given name from the request.
// The name of the header is case-sensitive.
func RemoveRequestHeader(name string) Filter {
	return func(e *Entry) {
		delete(e.Request.Headers, name)
	}
}

// RemoveResponseHeader removes a header with the given name from the response.
// The name of the header is case-sensitive.
func RemoveResponseHeader(name string) Filter {
	return func(e *Entry) {
		delete(e.Response.Headers, name)
	}
}
