package stats

import "sync"

// MockStatsUpdater records metric updates in memory for tests.
type MockStatsUpdater struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *MockStatsUpdater) add(name string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[name] += delta
}

func (m *MockStatsUpdater) Incr(name string)           { m.add(name, 1) }
func (m *MockStatsUpdater) Decr(name string)           { m.add(name, -1) }
func (m *MockStatsUpdater) Add(name string, delta int) { m.add(name, delta) }
func (m *MockStatsUpdater) RegisterMetric(name string) {}
func (m *MockStatsUpdater) Run()                       {}

// Count returns the recorded value for a metric.
func (m *MockStatsUpdater) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}
