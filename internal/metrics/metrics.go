package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	requests      int64
	responseTimes []time.Duration
	statusCodes   map[int]int64
	flowersServed int64
	loads         int64
	loadFailures  int64
	loadTimes     []time.Duration
	lastRecords   int
	healthy       bool
	healthKnown   bool
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64          `json:"total_requests"`
	Uptime        time.Duration  `json:"uptime"`
	StatusCodes   map[int]int64  `json:"status_codes"`
	FlowersServed int64          `json:"flowers_served"`
	AvgResponse   time.Duration  `json:"avg_response"`
	P50Response   time.Duration  `json:"p50_response"`
	P95Response   time.Duration  `json:"p95_response"`
	P99Response   time.Duration  `json:"p99_response"`
	Dataset       DatasetMetrics `json:"dataset"`
}

// DatasetMetrics describes dataset reads. Healthy stays nil until the first
// probe reports.
type DatasetMetrics struct {
	Loads       int64         `json:"loads"`
	Failures    int64         `json:"failures"`
	LastRecords int           `json:"last_records"`
	AvgLoad     time.Duration `json:"avg_load"`
	Healthy     *bool         `json:"healthy"`
}

func (m *Metrics) IncrementRequests() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests++
}

func (m *Metrics) RecordResponse(duration time.Duration, statusCode int, flowers int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes = appendSample(m.responseTimes, duration)
	m.statusCodes[statusCode]++
	m.flowersServed += int64(flowers)
}

func (m *Metrics) RecordLoad(duration time.Duration, records int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.loads++
	m.loadTimes = appendSample(m.loadTimes, duration)
	m.lastRecords = records
}

func (m *Metrics) RecordLoadFailure() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.loadFailures++
}

func (m *Metrics) UpdateHealthStatus(healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthy = healthy
	m.healthKnown = true
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalRequests: m.requests,
		Uptime:        time.Since(m.startTime),
		StatusCodes:   make(map[int]int64, len(m.statusCodes)),
		FlowersServed: m.flowersServed,
		Dataset: DatasetMetrics{
			Loads:       m.loads,
			Failures:    m.loadFailures,
			LastRecords: m.lastRecords,
			AvgLoad:     average(m.loadTimes),
		},
	}

	for code, n := range m.statusCodes {
		snap.StatusCodes[code] = n
	}

	if m.healthKnown {
		healthy := m.healthy
		snap.Dataset.Healthy = &healthy
	}

	if len(m.responseTimes) > 0 {
		sorted := make([]time.Duration, len(m.responseTimes))
		copy(sorted, m.responseTimes)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		snap.AvgResponse = average(sorted)
		snap.P50Response = percentile(sorted, 0.50)
		snap.P95Response = percentile(sorted, 0.95)
		snap.P99Response = percentile(sorted, 0.99)
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		statusCodes: make(map[int]int64),
		startTime:   time.Now(),
	}
}

func appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	samples = append(samples, d)
	if len(samples) > maxSamples {
		samples = samples[1:]
	}
	return samples
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
