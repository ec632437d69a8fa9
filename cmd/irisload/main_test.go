package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const twoFlowers = `<irises>
  <flower>
    <petal_length>4.7</petal_length>
    <petal_width>1.4</petal_width>
  </flower>
  <flower>
    <petal_length>5.1</petal_length>
    <petal_width>1.8</petal_width>
  </flower>
</irises>
`

func newIrisServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("mode") {
		case "fail":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Server error: Cannot find input file"))
		case "broken":
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte("<irises><flower>"))
		case "empty":
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte("<irises></irises>\n"))
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(twoFlowers))
		}
	}))
}

func testOptions(url string, queries ...string) options {
	return options{
		url:         url,
		queries:     queries,
		concurrency: 4,
		requests:    8,
		timeout:     time.Second,
	}
}

var _ = Describe("irisload", func() {
	var server *httptest.Server

	BeforeEach(func() {
		server = newIrisServer()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("fetch", func() {
		It("should count flower elements in a 200 response", func() {
			res := fetch(context.Background(), server.Client(), server.URL, "variety=true")
			Expect(res.err).NotTo(HaveOccurred())
			Expect(res.status).To(Equal(http.StatusOK))
			Expect(res.flowers).To(Equal(2))
			Expect(res.duration).To(BeNumerically(">", 0))
		})

		It("should count zero flowers for an empty root", func() {
			res := fetch(context.Background(), server.Client(), server.URL, "mode=empty")
			Expect(res.err).NotTo(HaveOccurred())
			Expect(res.flowers).To(BeZero())
		})

		It("should keep the status of an error response without decoding it", func() {
			res := fetch(context.Background(), server.Client(), server.URL, "mode=fail")
			Expect(res.err).NotTo(HaveOccurred())
			Expect(res.status).To(Equal(http.StatusInternalServerError))
			Expect(res.flowers).To(BeZero())
		})

		It("should report a malformed document", func() {
			res := fetch(context.Background(), server.Client(), server.URL, "mode=broken")
			Expect(res.err).To(MatchError(ContainSubstring("decode response")))
		})

		It("should report an unreachable server", func() {
			url := server.URL
			server.Close()

			res := fetch(context.Background(), http.DefaultClient, url, "")
			Expect(res.err).To(HaveOccurred())
		})
	})

	Describe("runLoad", func() {
		It("should cycle queries and summarize the results", func() {
			s, err := runLoad(context.Background(), testOptions(server.URL, "", "mode=empty"))
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Requests).To(Equal(8))
			Expect(s.Concurrency).To(Equal(4))
			Expect(s.Failures).To(BeZero())
			Expect(s.StatusCodes).To(Equal(map[int]int{http.StatusOK: 8}))
			Expect(s.Flowers).To(Equal(map[string]int{"": 2, "mode=empty": 0}))
			Expect(s.P50MS).To(BeNumerically("<=", s.P99MS))
		})

		It("should count error statuses and broken documents as failures", func() {
			s, err := runLoad(context.Background(), testOptions(server.URL, "", "mode=fail", "mode=broken", "variety=true"))
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Failures).To(Equal(4))
			Expect(s.StatusCodes).To(Equal(map[int]int{http.StatusOK: 4, http.StatusInternalServerError: 2}))
			Expect(s.Flowers).To(HaveKeyWithValue("", 2))
			Expect(s.Flowers).To(HaveKeyWithValue("variety=true", 2))
			Expect(s.Flowers).NotTo(HaveKey("mode=broken"))
		})
	})

	Describe("options", func() {
		It("should accept sensible values", func() {
			Expect(testOptions(server.URL, "").validate()).To(Succeed())
		})

		DescribeTable("should reject unusable values",
			func(mutate func(*options)) {
				opts := testOptions("http://localhost:3000", "")
				mutate(&opts)
				Expect(opts.validate()).NotTo(Succeed())
			},
			Entry("zero concurrency", func(o *options) { o.concurrency = 0 }),
			Entry("zero requests", func(o *options) { o.requests = 0 }),
			Entry("no queries", func(o *options) { o.queries = nil }),
			Entry("bad url", func(o *options) { o.url = "not a url" }),
			Entry("no timeout", func(o *options) { o.timeout = 0 }),
		)
	})

	Describe("percentileMS", func() {
		It("should pick from sorted latencies", func() {
			sorted := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 4 * time.Millisecond}
			Expect(percentileMS(sorted, 0.50)).To(Equal(2.0))
			Expect(percentileMS(sorted, 0.99)).To(Equal(3.0))
			Expect(percentileMS(sorted, 1.0)).To(Equal(4.0))
		})

		It("should return zero without samples", func() {
			Expect(percentileMS(nil, 0.5)).To(BeZero())
		})
	})

	Describe("output", func() {
		It("should print the summary and write it as JSON", func() {
			s, err := runLoad(context.Background(), testOptions(server.URL, ""))
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			printSummary(&buf, s)
			Expect(buf.String()).To(ContainSubstring("200 -> 8"))
			Expect(buf.String()).To(ContainSubstring(`"" -> 2`))

			path := filepath.Join(GinkgoT().TempDir(), "summary.json")
			Expect(writeSummary(path, s)).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())

			var decoded summary
			Expect(json.Unmarshal(data, &decoded)).To(Succeed())
			Expect(decoded.Requests).To(Equal(8))
			Expect(decoded.StatusCodes).To(HaveKeyWithValue(http.StatusOK, 8))
		})
	})
})
