package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	attendanceMarks *prometheus.CounterVec
	emailDispatch   *prometheus.CounterVec
	bookingConflict prometheus.Counter
}

// NewMetricsService registers the core collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	attendanceMarks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_marks_total",
		Help: "Attendance records written, by status",
	}, []string{"status"})

	emailDispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_emails_total",
		Help: "Notification emails attempted, by outcome",
	}, []string{"outcome"})

	bookingConflict := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lab_booking_conflicts_total",
		Help: "Lab bookings refused because the slot was taken",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, attendanceMarks, emailDispatch, bookingConflict, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		attendanceMarks: attendanceMarks,
		emailDispatch:   emailDispatch,
		bookingConflict: bookingConflict,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveAttendanceMark counts one attendance write.
func (m *MetricsService) ObserveAttendanceMark(status string) {
	if m == nil {
		return
	}
	m.attendanceMarks.WithLabelValues(status).Inc()
}

// ObserveEmailDispatch counts one notification email attempt.
func (m *MetricsService) ObserveEmailDispatch(outcome string) {
	if m == nil {
		return
	}
	m.emailDispatch.WithLabelValues(outcome).Inc()
}

// ObserveBookingConflict counts one refused lab booking.
func (m *MetricsService) ObserveBookingConflict() {
	if m == nil {
		return
	}
	m.bookingConflict.Inc()
}
