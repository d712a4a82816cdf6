package tapedeck_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mkraft/tapedeck"
)

var _ = Describe("Integration", func() {
	var (
		dir      string
		requests int
		server   *httptest.Server
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "tapedeck")
		Expect(err).NotTo(HaveOccurred())

		requests = 0
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("from the network")) // nolint: errcheck
		}))
	})

	AfterEach(func() {
		server.Close()
		os.RemoveAll(dir) // nolint: errcheck
	})

	record := func(mode tapedeck.Mode, cassette string) {
		cli := &http.Client{}
		rec := tapedeck.New(cli)
		rec.Dir = dir
		rec.Mode = mode
		Expect(rec.UseCassette(cassette)).To(Succeed())
		Expect(rec.Start()).To(Succeed())

		resp, err := cli.Get(server.URL)
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(Equal("from the network"))

		Expect(rec.Stop()).To(Succeed())
	}

	It("replays a persisted session in a later run without network traffic", func() {
		By("recording a session")
		record(tapedeck.Record, "api-session")
		Expect(requests).To(Equal(1))
		Expect(filepath.Join(dir, "api-session.yml")).To(BeAnExistingFile())

		By("replaying the cassette with a fresh recorder")
		cli := &http.Client{}
		rec := tapedeck.New(cli)
		rec.Dir = dir
		rec.Mode = tapedeck.ReplayOnly
		Expect(rec.UseCassette("api-session")).To(Succeed())
		Expect(rec.Start()).To(Succeed())

		resp, err := cli.Get(server.URL)
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(Equal("from the network"))
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain"))
		Expect(requests).To(Equal(1), "replay must not reach the server")
		Expect(rec.Stats().Replayed).To(Equal(1))

		Expect(rec.Stop()).To(Succeed())
	})

	It("errors in replay mode when the cassette has no matching entry", func() {
		record(tapedeck.Record, "known")

		cli := &http.Client{}
		rec := tapedeck.New(cli)
		rec.Dir = dir
		rec.Mode = tapedeck.ReplayOnly
		Expect(rec.UseCassette("known")).To(Succeed())
		Expect(rec.Start()).To(Succeed())
		defer rec.Stop() // nolint: errcheck

		_, err := cli.Get(server.URL + "/other")
		Expect(err).To(HaveOccurred())
		Expect(errors.As(err, &tapedeck.NoEntryError{})).To(BeTrue())
	})

	It("re-records over a stale cassette in record mode", func() {
		record(tapedeck.Record, "stale")
		record(tapedeck.Record, "stale")

		c, err := tapedeck.LoadCassette(filepath.Join(dir, "stale"))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Entries).To(HaveLen(1), "second session must overwrite, not append")
		Expect(requests).To(Equal(2))
	})

	It("keeps each cassette isolated per name", func() {
		record(tapedeck.Auto, "one")
		record(tapedeck.Auto, "two")

		Expect(filepath.Join(dir, "one.yml")).To(BeAnExistingFile())
		Expect(filepath.Join(dir, "two.yml")).To(BeAnExistingFile())
		Expect(requests).To(Equal(2))
	})
})
