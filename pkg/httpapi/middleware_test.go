package httpapi

import (
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/jordigilh/netmond/pkg/metrics"
)

func sampleCount(h prometheus.Histogram) uint64 {
	metric := &dto.Metric{}
	_ = h.Write(metric)
	return metric.GetHistogram().GetSampleCount()
}

var _ = Describe("HTTPMetrics middleware", func() {
	var router *chi.Mux

	BeforeEach(func() {
		router = chi.NewRouter()
		router.Use(HTTPMetrics)
	})

	It("records request duration under the route pattern, not the raw path", func() {
		router.Get("/widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		histogram := metrics.HTTPRequestDuration.WithLabelValues("GET", "/widgets/{id}", "200").(prometheus.Histogram)
		before := sampleCount(histogram)

		req := httptest.NewRequest("GET", "/widgets/42", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(sampleCount(histogram)).To(BeNumerically(">", before))
	})

	It("records the actual status code written by the handler", func() {
		router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		histogram := metrics.HTTPRequestDuration.WithLabelValues("GET", "/boom", "500").(prometheus.Histogram)
		before := sampleCount(histogram)

		req := httptest.NewRequest("GET", "/boom", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(sampleCount(histogram)).To(BeNumerically(">", before))
	})
})

var _ = Describe("InFlightRequests middleware", func() {
	It("increments while the handler runs and decrements once it returns", func() {
		router := chi.NewRouter()
		router.Use(InFlightRequests)

		started := make(chan struct{})
		release := make(chan struct{})
		router.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
			close(started)
			<-release
			w.WriteHeader(http.StatusOK)
		})

		before := testutil.ToFloat64(metrics.HTTPRequestsInFlight)

		done := make(chan struct{})
		go func() {
			req := httptest.NewRequest("GET", "/slow", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			close(done)
		}()

		<-started
		Expect(testutil.ToFloat64(metrics.HTTPRequestsInFlight)).To(Equal(before + 1))

		close(release)
		<-done
		Expect(testutil.ToFloat64(metrics.HTTPRequestsInFlight)).To(Equal(before))
	})
})
