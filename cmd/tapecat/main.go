// tapecat is a utility for reviewing recorded HTTP cassettes. It lists
// the entries of one or more cassette files, optionally dumps request and
// response bodies, and can scrub sensitive headers out of existing
// recordings.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/mkraft/tapedeck"
)

type arguments struct {
	cassettes []string
	methods   []string
	bodies    bool
	scrub     []string
}

func parseArgs(args []string) (*arguments, error) {
	app := kingpin.New("tapecat", "Utility for reviewing recorded HTTP cassettes.")
	cassettes := app.Arg("cassette", "Cassette file to inspect (repeatable).").Required().ExistingFiles()
	methods := app.Flag("method", "Only show entries with this HTTP method (repeatable).").Strings()
	bodies := app.Flag("bodies", "Print request and response bodies.").Default("false").Bool()
	scrub := app.Flag("scrub", "Remove the named header from all entries and rewrite the file (repeatable).").Strings()

	_, err := app.Parse(args)
	if err != nil {
		return nil, err
	}

	return &arguments{
		cassettes: *cassettes,
		methods:   *methods,
		bodies:    *bodies,
		scrub:     *scrub,
	}, nil
}

// excludedByMethod is used for --method. A nil include list means every
// entry is shown.
func excludedByMethod(method string, include []string) bool {
	if include == nil {
		return false
	}
	for _, name := range include {
		if strings.EqualFold(name, method) {
			return false
		}
	}
	return true
}

func (a *arguments) execute(output io.Writer) error {
	for _, path := range a.cassettes {
		c, err := tapedeck.LoadCassette(path)
		if err != nil {
			return err
		}

		fmt.Fprintf(output, "%s: %d entries\n", c.Path(), len(c.Entries))
		for i, e := range c.Entries {
			if excludedByMethod(e.Request.Method, a.methods) {
				continue
			}
			fmt.Fprintf(output, "%3d  %-7s %s -> %d (%d bytes)\n",
				i, e.Request.Method, e.Request.URL, e.Response.StatusCode, len(e.Response.Body))
			if a.bodies {
				if e.Request.Body != "" {
					fmt.Fprintf(output, "     > %s\n", e.Request.Body)
				}
				if e.Response.Body != "" {
					fmt.Fprintf(output, "     < %s\n", e.Response.Body)
				}
			}
		}

		if len(a.scrub) > 0 {
			for i := range c.Entries {
				for _, name := range a.scrub {
					delete(c.Entries[i].Request.Headers, name)
					delete(c.Entries[i].Response.Headers, name)
				}
			}
			if err := c.Save(); err != nil {
				return errors.Wrapf(err, "scrub %s", path)
			}
			fmt.Fprintf(output, "scrubbed %s from %s\n", strings.Join(a.scrub, ", "), path)
		}
	}
	return nil
}

func main() {
	kingpin.Version("0.1.0")
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("failed to parse arguments, %s, try --help", err)
	}
	if err := args.execute(os.Stdout); err != nil {
		kingpin.Fatalf("%s", err)
	}
}
