package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"airouter/internal/llm"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Server Suite")
}

var _ = Describe("API Server", func() {
	var (
		server   *Server
		handler  http.Handler
		primary  *llm.MockBackend
		registry *prometheus.Registry
	)

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		switch b := body.(type) {
		case nil:
		case string:
			buf.WriteString(b)
		default:
			Expect(json.NewEncoder(&buf).Encode(b)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	BeforeEach(func() {
		primary = llm.NewMockBackend()
		table, err := llm.NewTable(llm.Descriptor{
			ID:        "mock-a",
			Family:    "mock",
			Model:     "canned-v1",
			Timeout:   2 * time.Second,
			MaxTokens: 1024,
			Quality:   llm.QualityHigh,
			Cost:      llm.CostFree,
		})
		Expect(err).NotTo(HaveOccurred())

		registry = prometheus.NewRegistry()
		observer, err := llm.NewPrometheusObserver(registry)
		Expect(err).NotTo(HaveOccurred())

		router, err := llm.NewRouter(table, map[string]llm.Backend{"mock-a": primary}, llm.RouterOptions{
			MaxRetries: 2,
			Backoff:    -1,
			Observer:   observer,
			Logger:     logr.Discard(),
		})
		Expect(err).NotTo(HaveOccurred())

		server = NewServer(router, 8081, logr.Discard()).WithMetrics(registry, "/metrics")
		handler = server.Handler()
	})

	Context("Generate", func() {
		It("should return the provider's text", func() {
			primary.SetResponse("weather", "sunny")

			rr := do("POST", "/api/v1/generate", map[string]interface{}{"prompt": "How is the weather?", "preferSpeed": true})
			Expect(rr.Code).To(Equal(http.StatusOK))

			var res map[string]interface{}
			Expect(json.Unmarshal(rr.Body.Bytes(), &res)).To(Succeed())
			Expect(res["text"]).To(Equal("sunny"))
			Expect(res["provider"]).To(Equal("mock-a"))
			Expect(res["model"]).To(Equal("canned-v1"))
			Expect(res["qualityTier"]).To(Equal("high"))
			Expect(res["attempts"]).To(BeEquivalentTo(1))
			Expect(res["requestId"]).NotTo(BeEmpty())
		})

		It("should reject a malformed body", func() {
			rr := do("POST", "/api/v1/generate", "{not json")
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
			Expect(primary.CallCount()).To(Equal(0))
		})

		It("should reject an empty prompt", func() {
			rr := do("POST", "/api/v1/generate", map[string]interface{}{"prompt": "   "})
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
		})

		It("should answer 503 when no provider is healthy", func() {
			primary.SetError(errors.New("connection refused"))

			rr := do("POST", "/api/v1/generate", map[string]interface{}{"prompt": "hello"})
			Expect(rr.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(rr.Body.String()).To(ContainSubstring("no provider available"))
		})

		It("should answer 502 when every attempted provider failed", func() {
			// Record a healthy probe first so the dispatch itself fails.
			Expect(do("GET", "/api/v1/providers", nil).Code).To(Equal(http.StatusOK))
			primary.SetError(errors.New("upstream 500"))

			rr := do("POST", "/api/v1/generate", map[string]interface{}{"prompt": "hello"})
			Expect(rr.Code).To(Equal(http.StatusBadGateway))

			var res errorResponse
			Expect(json.Unmarshal(rr.Body.Bytes(), &res)).To(Succeed())
			Expect(res.Error).To(ContainSubstring("all providers failed"))
			Expect(res.Attempts).To(HaveLen(1))
			Expect(res.Attempts[0]).To(ContainSubstring("mock-a (transport)"))
		})

		It("should record attempts in the metrics endpoint", func() {
			Expect(do("POST", "/api/v1/generate", map[string]interface{}{"prompt": "hello"}).Code).To(Equal(http.StatusOK))

			rr := do("GET", "/metrics", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring(`airouter_attempts_total{outcome="success",provider="mock-a"} 1`))
		})
	})

	Context("Providers", func() {
		It("should list availability with tiers", func() {
			rr := do("GET", "/api/v1/providers", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))

			var res struct {
				Providers map[string]llm.ProviderStatus `json:"providers"`
			}
			Expect(json.Unmarshal(rr.Body.Bytes(), &res)).To(Succeed())
			Expect(res.Providers).To(HaveKey("mock-a"))
			Expect(res.Providers["mock-a"].Available).To(BeTrue())
			Expect(res.Providers["mock-a"].Model).To(Equal("canned-v1"))
			Expect(res.Providers["mock-a"].CostTier).To(Equal(llm.CostFree))
		})
	})

	Context("Ping", func() {
		It("should report the provider that answered", func() {
			rr := do("POST", "/api/v1/llm/ping", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))

			var res map[string]interface{}
			Expect(json.Unmarshal(rr.Body.Bytes(), &res)).To(Succeed())
			Expect(res["status"]).To(Equal("ok"))
			Expect(res["provider"]).To(Equal("mock-a"))
		})

		It("should return 200 with an error body when nothing answers", func() {
			primary.SetError(errors.New("down"))

			rr := do("POST", "/api/v1/llm/ping", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring(`"status":"error"`))
		})
	})

	Context("Rate limiting", func() {
		It("should throttle the API but not health checks", func() {
			handler = server.WithRateLimit(1, 1).Handler()

			Expect(do("GET", "/api/v1/providers", nil).Code).To(Equal(http.StatusOK))
			rr := do("GET", "/api/v1/providers", nil)
			Expect(rr.Code).To(Equal(http.StatusTooManyRequests))
			Expect(rr.Header().Get("Retry-After")).To(Equal("1"))

			Expect(do("GET", "/healthz", nil).Code).To(Equal(http.StatusOK))
		})
	})

	Context("Without providers", func() {
		BeforeEach(func() {
			handler = NewServer(nil, 8081, logr.Discard()).Handler()
		})

		It("should answer 503 on generate and ping", func() {
			Expect(do("POST", "/api/v1/generate", map[string]interface{}{"prompt": "hi"}).Code).To(Equal(http.StatusServiceUnavailable))
			Expect(do("POST", "/api/v1/llm/ping", nil).Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("should still serve healthz", func() {
			rr := do("GET", "/healthz", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(Equal("ok"))
		})
	})
})
