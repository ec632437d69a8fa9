package middleware_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/iris-server/internal/middleware"
	"github.com/angeloszaimis/iris-server/pkg/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

var _ = Describe("Chain", func() {
	It("should apply middleware outermost first", func() {
		var order []string
		mark := func(name string) middleware.Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		h := middleware.Chain(okHandler, mark("outer"), nil, mark("inner"))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(order).To(Equal([]string{"outer", "inner"}))
	})
})

var _ = Describe("RequestID", func() {
	It("should generate an ID when none is supplied", func() {
		var seen string
		h := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.RequestIDFrom(r.Context())
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(seen)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Header().Get(middleware.HeaderRequestID)).To(Equal(seen))
	})

	It("should propagate a supplied ID", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.HeaderRequestID, "abc-123")

		w := httptest.NewRecorder()
		middleware.RequestID()(okHandler).ServeHTTP(w, req)

		Expect(w.Header().Get(middleware.HeaderRequestID)).To(Equal("abc-123"))
	})

	It("should return empty outside a request", func() {
		Expect(middleware.RequestIDFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context())).To(BeEmpty())
	})
})

var _ = Describe("ClientIP", func() {
	It("should use the remote address", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		Expect(middleware.ClientIP(req, false)).To(Equal("10.0.0.1"))
	})

	It("should prefer X-Forwarded-For only when trusted", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

		Expect(middleware.ClientIP(req, true)).To(Equal("203.0.113.7"))
		Expect(middleware.ClientIP(req, false)).To(Equal("10.0.0.1"))
	})

	It("should fall back to the raw remote address", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "pipe"
		Expect(middleware.ClientIP(req, false)).To(Equal("pipe"))
	})
})

var _ = Describe("AccessLog", func() {
	It("should log status and path", func() {
		var buf bytes.Buffer
		log := logger.NewWithWriter(&buf, "info", false, "dev")

		h := middleware.AccessLog(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/irises?variety=true", nil))

		Expect(buf.String()).To(ContainSubstring("status=418"))
		Expect(buf.String()).To(ContainSubstring("path=/irises"))
		Expect(buf.String()).To(ContainSubstring("query=\"variety=true\""))
	})

	It("should record bytes written", func() {
		rec := middleware.NewStatusRecorder(httptest.NewRecorder())
		Expect(rec.Written()).To(BeFalse())
		rec.Write([]byte("hello"))
		Expect(rec.Bytes).To(Equal(5))
		Expect(rec.StatusCode).To(Equal(http.StatusOK))
		Expect(rec.Written()).To(BeTrue())
	})

	It("should keep the first status code", func() {
		rec := middleware.NewStatusRecorder(httptest.NewRecorder())
		rec.WriteHeader(http.StatusNotFound)
		rec.WriteHeader(http.StatusInternalServerError)
		Expect(rec.StatusCode).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("Recover", func() {
	var (
		captured error
		onPanic  func(http.ResponseWriter, error)
	)

	BeforeEach(func() {
		captured = nil
		onPanic = func(w http.ResponseWriter, err error) {
			captured = err
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	It("should convert a panic value into an error", func() {
		h := middleware.Recover(logger.Discard(), onPanic)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		w := httptest.NewRecorder()
		Expect(func() { h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil)) }).NotTo(Panic())
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(captured).To(MatchError("boom"))
	})

	It("should keep error panics intact", func() {
		sentinel := errors.New("sentinel")
		h := middleware.Recover(logger.Discard(), onPanic)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(sentinel)
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(captured).To(MatchError(sentinel))
	})

	It("should re-panic on ErrAbortHandler", func() {
		h := middleware.Recover(logger.Discard(), onPanic)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		Expect(func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}).To(PanicWith(http.ErrAbortHandler))
	})

	It("should not write a second response after headers were sent", func() {
		h := middleware.Recover(logger.Discard(), onPanic)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte("partial"))
			panic("late")
		}))

		w := httptest.NewRecorder()
		Expect(func() { h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil)) }).NotTo(Panic())
		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(w.Body.String()).To(Equal("partial"))
		Expect(captured).To(BeNil())
	})

	It("should pass through when nothing panics", func() {
		w := httptest.NewRecorder()
		middleware.Recover(logger.Discard(), onPanic)(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(captured).To(BeNil())
	})
})

var _ = Describe("RateLimit", func() {
	newRequest := func(remote string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		return req
	}

	It("should allow requests within the burst", func() {
		h := middleware.RateLimit(middleware.NewLimiterStore(1, 2), false)(okHandler)

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, newRequest("10.0.0.1:1000"))
			Expect(w.Code).To(Equal(http.StatusOK))
		}
	})

	It("should reject requests beyond the burst", func() {
		h := middleware.RateLimit(middleware.NewLimiterStore(0.5, 1), false)(okHandler)

		h.ServeHTTP(httptest.NewRecorder(), newRequest("10.0.0.1:1000"))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, newRequest("10.0.0.1:1000"))
		Expect(w.Code).To(Equal(http.StatusTooManyRequests))
		Expect(w.Header().Get("Content-Type")).To(Equal("text/plain"))
		Expect(w.Header().Get("Retry-After")).To(Equal("2"))
		Expect(w.Body.String()).To(Equal("Too Many Requests"))
	})

	It("should track clients independently", func() {
		store := middleware.NewLimiterStore(0.5, 1)
		h := middleware.RateLimit(store, false)(okHandler)

		for _, remote := range []string{"10.0.0.1:1000", "10.0.0.2:1000"} {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, newRequest(remote))
			Expect(w.Code).To(Equal(http.StatusOK))
		}
		Expect(store.Len()).To(Equal(2))
	})

	It("should forget idle clients", func() {
		now := time.Now()
		store := middleware.NewLimiterStore(1, 1,
			middleware.WithIdleTTL(time.Minute),
			middleware.WithClock(func() time.Time { return now }))

		store.Get("10.0.0.1")
		now = now.Add(2 * time.Minute)
		store.Get("10.0.0.2")
		store.Cleanup()

		Expect(store.Len()).To(Equal(1))
	})
})
