package rules

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

const backupRulesYAML = `
rules:
  - id: db-without-backups
    componentTypes: [database]
    when: "!reliability.backups"
    issue:
      type: reliability
      severity: critical
      title: Database without backups
      impact:
        userSatisfaction: 10
        cost: 20000
  - id: slow-component
    when: "metrics.performance < 65 && connections > 0"
    issue:
      type: scalability
      severity: low
      title: Slow component on a hot path
`

func TestParse_YAML(t *testing.T) {
	f, err := Parse([]byte(backupRulesYAML))
	require.NoError(t, err)
	require.Len(t, f.Rules, 2)
	assert.Equal(t, "db-without-backups", f.Rules[0].ID)
	assert.Equal(t, []catalog.ComponentType{catalog.ComponentDatabase}, f.Rules[0].ComponentTypes)
	assert.Equal(t, scoring.SeverityCritical, f.Rules[0].Issue.Severity)
	assert.Equal(t, 20000.0, f.Rules[0].Issue.Impact.Cost)
}

func TestParse_JSON(t *testing.T) {
	doc := `{"rules":[{"id":"no-auth","when":"!security.authentication","issue":{"type":"security","severity":"high","title":"No auth"}}]}`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, f.Rules, 1)
	assert.Equal(t, scoring.IssueSecurity, f.Rules[0].Issue.Type)
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Rules)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing id", `rules: [{when: "true", issue: {type: security, severity: low, title: x}}]`},
		{"missing when", `rules: [{id: a, issue: {type: security, severity: low, title: x}}]`},
		{"missing title", `rules: [{id: a, when: "true", issue: {type: security, severity: low}}]`},
		{"bad severity", `rules: [{id: a, when: "true", issue: {type: security, severity: urgent, title: x}}]`},
		{"bad type", `rules: [{id: a, when: "true", issue: {type: vibes, severity: low, title: x}}]`},
		{"bad component", `rules: [{id: a, componentTypes: [mainframe], when: "true", issue: {type: security, severity: low, title: x}}]`},
		{"duplicate id", `rules: [{id: a, when: "true", issue: {type: security, severity: low, title: x}}, {id: a, when: "true", issue: {type: security, severity: low, title: y}}]`},
		{"unknown field", `rules: [{id: a, whenever: "true", when: "true", issue: {type: security, severity: low, title: x}}]`},
		{"bad json", `{"rules": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestCompile_RejectsBadExpressions(t *testing.T) {
	for _, when := range []string{"rateLimit +", "rateLimit + 1", "undefinedVar > 1"} {
		d := Definition{ID: "x", When: when, Issue: scoring.IssueSpec{Type: scoring.IssueSecurity, Severity: scoring.SeverityLow, Title: "x"}}
		_, err := d.Compile()
		assert.Error(t, err, when)
	}
}

func TestExprRule_Check(t *testing.T) {
	f, err := Parse([]byte(backupRulesYAML))
	require.NoError(t, err)
	compiled, err := f.Compile()
	require.NoError(t, err)
	backups, slow := compiled[0], compiled[1]

	db := scoring.Component{ID: "db", Type: catalog.ComponentDatabase}
	spec, ok := backups.Check(db)
	assert.True(t, ok)
	assert.Equal(t, "Database without backups", spec.Title)

	db.Config.Reliability.Backups = true
	_, ok = backups.Check(db)
	assert.False(t, ok)

	// Type filter: caches are never checked for backups.
	_, ok = backups.Check(scoring.Component{Type: catalog.ComponentCache})
	assert.False(t, ok)

	hot := scoring.Component{Type: catalog.ComponentAPI, Connections: []string{"db"}, Metrics: catalog.ComponentMetrics{Performance: 60}}
	_, ok = slow.Check(hot)
	assert.True(t, ok)
	hot.Connections = nil
	_, ok = slow.Check(hot)
	assert.False(t, ok)
}

func TestRulesInEngine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(backupRulesYAML), 0o644))

	compiled, err := LoadFile(path)
	require.NoError(t, err)

	e := scoring.New(scoring.WithRules(compiled...), scoring.WithSeed(1))
	defer e.Close()
	db, err := scoring.NewComponent(catalog.ComponentDatabase)
	require.NoError(t, err)
	_, err = e.AddComponent(db)
	require.NoError(t, err)

	st := e.State()
	require.Len(t, st.Issues, 1)
	assert.Equal(t, "db-without-backups", st.Issues[0].Rule)
	assert.Equal(t, 72.0, st.Issues[0].TimeToResolve)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o644))

	var mu sync.Mutex
	var got [][]scoring.Rule
	w, err := NewWatcher(path, func(rs []scoring.Rule) {
		mu.Lock()
		got = append(got, rs)
		mu.Unlock()
	}, WithWatchDebounce(50*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(backupRulesYAML), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	last := got[len(got)-1]
	mu.Unlock()
	require.Len(t, last, 2)
	assert.Equal(t, "db-without-backups", last[0].Name())
}

func TestWatcher_SkipsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o644))

	var mu sync.Mutex
	calls := 0
	w, err := NewWatcher(path, func([]scoring.Rule) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, WithWatchDebounce(30*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("rules: [{id: broken}]\n"), 0o644))
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}

func TestNewWatcher_RejectsExtension(t *testing.T) {
	_, err := NewWatcher("/tmp/rules.txt", func([]scoring.Rule) {})
	assert.Error(t, err)
}

func TestWatcher_StopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	w, err := NewWatcher(path, func([]scoring.Rule) {})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	assert.NoError(t, w.Stop())
	assert.NotPanics(t, func() { _ = w.Stop() })
}
