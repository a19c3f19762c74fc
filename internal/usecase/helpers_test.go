package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/policy"
)

// mockSettingsStore implements domain.SettingsStore in memory
type mockSettingsStore struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMockSettingsStore() *mockSettingsStore {
	return &mockSettingsStore{values: make(map[string]string)}
}

func (m *mockSettingsStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockSettingsStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsStore) SetMany(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *mockSettingsStore) All() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *mockSettingsStore) Close() error { return nil }

func (m *mockSettingsStore) value(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

// mockLedger implements domain.UsageLedger in memory
type mockLedger struct {
	mu        sync.Mutex
	records   map[string]float64
	upserts   int
	truncated   int
	upsertErr   error
	truncateErr error
}

func newMockLedger() *mockLedger {
	return &mockLedger{records: make(map[string]float64)}
}

func (m *mockLedger) Load() (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

func (m *mockLedger) Upsert(name string, seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.records[name] = seconds
	return nil
}

func (m *mockLedger) Truncate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.truncated++
	if m.truncateErr != nil {
		return m.truncateErr
	}
	m.records = make(map[string]float64)
	return nil
}

func (m *mockLedger) failTruncate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.truncateErr = err
}

func (m *mockLedger) get(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[name]
}

// mockMetadataCache implements domain.MetadataCache in memory
type mockMetadataCache struct {
	mu        sync.Mutex
	records   map[string]domain.ProcessMetadata
	appends   int
	appendErr error
}

func newMockMetadataCache() *mockMetadataCache {
	return &mockMetadataCache{records: make(map[string]domain.ProcessMetadata)}
}

func (m *mockMetadataCache) Lookup(name string) (*domain.ProcessMetadata, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.records[name]
	if !ok {
		return nil, false, nil
	}
	return &meta, true, nil
}

func (m *mockMetadataCache) Append(meta domain.ProcessMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	if m.appendErr != nil {
		return m.appendErr
	}
	if _, ok := m.records[meta.ProcessName]; !ok {
		m.records[meta.ProcessName] = meta
	}
	return nil
}

func (m *mockMetadataCache) All() (map[string]domain.ProcessMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.ProcessMetadata, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

// mockForeground implements domain.ForegroundResolver. The window in
// front is set per test; pid 0 means no window.
type mockForeground struct {
	window    *domain.ForegroundWindow
	err       error
	chrome    map[string]bool
	hosted    map[int]int
	hostedErr error
}

func (m *mockForeground) show(pid int, title string) {
	m.window = &domain.ForegroundWindow{Handle: "0x" + title, PID: pid, Title: title}
}

func (m *mockForeground) clear() {
	m.window = nil
}

func (m *mockForeground) CurrentForeground(ctx context.Context) (*domain.ForegroundWindow, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.window == nil {
		return nil, nil
	}
	w := *m.window
	return &w, nil
}

func (m *mockForeground) IsChromeWindow(ctx context.Context, handle string) (bool, error) {
	return m.chrome[handle], nil
}

func (m *mockForeground) ResolveHostedProcess(ctx context.Context, window domain.ForegroundWindow) (int, bool, error) {
	if m.hostedErr != nil {
		return 0, false, m.hostedErr
	}
	pid, ok := m.hosted[window.PID]
	return pid, ok, nil
}

// mockProcessManager implements domain.ProcessManager
type mockProcessManager struct {
	names map[int]string
}

func (m *mockProcessManager) Lookup(pid int) (*domain.ProcessIdentity, error) {
	name, ok := m.names[pid]
	if !ok {
		return nil, errors.New("no such process")
	}
	return &domain.ProcessIdentity{PID: pid, Name: name}, nil
}

func (m *mockProcessManager) Children(pid int) ([]int, error) { return nil, nil }
func (m *mockProcessManager) IsRunning(pid int) bool          { return m.names[pid] != "" }
func (m *mockProcessManager) GetCurrentPID() int              { return 1 }

// recordingEnricher implements MetadataEnricher
type recordingEnricher struct {
	names []string
}

func (r *recordingEnricher) Enrich(identity domain.ProcessIdentity) {
	r.names = append(r.names, identity.Name)
}

// Well-known test processes.
const (
	pidEditor    = 100
	pidBrowser   = 200
	pidLocker    = 300
	pidFiles     = 400
	pidSandbox   = 500
	pidSandboxed = 501
)

// engineHarness wires an engine to in-memory collaborators and a mock clock.
type engineHarness struct {
	t          *testing.T
	clock      *quartz.Mock
	store      *mockSettingsStore
	ledger     *mockLedger
	cache      *mockMetadataCache
	foreground *mockForeground
	enricher   *recordingEnricher
	queueSize  int
	engine     *Engine
}

// startOfTest is a weekday morning, local time.
var startOfTest = time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)

func newHarness(t *testing.T) *engineHarness {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(startOfTest)
	return &engineHarness{
		t:          t,
		clock:      clock,
		store:      newMockSettingsStore(),
		ledger:     newMockLedger(),
		cache:      newMockMetadataCache(),
		foreground: &mockForeground{chrome: map[string]bool{}, hosted: map[int]int{}},
		enricher:   &recordingEnricher{},
		queueSize:  16,
	}
}

// start builds the engine; call after preparing the store and ledger.
func (h *engineHarness) start() *Engine {
	h.t.Helper()
	logger := zap.NewNop()
	e, err := NewEngine(EngineConfig{ReminderQueueSize: h.queueSize}, EngineDeps{
		Clock:      h.clock,
		Foreground: h.foreground,
		Processes: &mockProcessManager{names: map[int]string{
			pidEditor:    "code",
			pidBrowser:   "firefox",
			pidLocker:    "i3lock",
			pidFiles:     "nautilus",
			pidSandbox:   "bwrap",
			pidSandboxed: "spotify",
		}},
		Settings: NewSettingsService(h.store, domain.DefaultSettings(), logger),
		Ledger:   h.ledger,
		Metadata: h.cache,
		Hosts:    policy.NewHostRegistry(),
		Enricher: h.enricher,
		Logger:   logger,
	})
	require.NoError(h.t, err)
	h.engine = e
	return e
}

// tick advances the clock by d and runs one tick.
func (h *engineHarness) tick(d time.Duration) {
	h.clock.Advance(d).MustWait(context.Background())
	h.engine.Tick(context.Background())
}

// ticks runs n ticks one second apart with pid in front (0 = nothing).
func (h *engineHarness) ticks(n int, pid int) {
	if pid == 0 {
		h.foreground.clear()
	} else {
		h.foreground.show(pid, "")
	}
	for i := 0; i < n; i++ {
		h.tick(time.Second)
	}
}

// drain returns the reminders emitted so far.
func (h *engineHarness) drain() []domain.Reminder {
	var out []domain.Reminder
	for {
		select {
		case r := <-h.engine.Reminders():
			out = append(out, r)
		default:
			return out
		}
	}
}

func kinds(rs []domain.Reminder) []domain.ReminderKind {
	out := make([]domain.ReminderKind, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Kind)
	}
	return out
}
