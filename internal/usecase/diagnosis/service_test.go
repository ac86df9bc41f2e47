package diagnosis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medlens/internal/db/goredis"
	"github.com/kailas-cloud/medlens/internal/domain"
	"github.com/kailas-cloud/medlens/internal/domain/analysis"
	domdiag "github.com/kailas-cloud/medlens/internal/domain/diagnosis"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
	domknow "github.com/kailas-cloud/medlens/internal/domain/knowledge"
	"github.com/kailas-cloud/medlens/internal/metrics"
	diagrepo "github.com/kailas-cloud/medlens/internal/repository/diagnosis"
)

// --- Mocks ---

type mockRepo struct {
	saved     []domdiag.Record
	saveCalls int
	saveErr   error
	getResult domdiag.Record
	getErr    error
	history   []domdiag.Record
	histErr   error
	histLimit int
	latest    domdiag.Record
	latestErr error
}

func (m *mockRepo) Save(_ context.Context, recs ...domdiag.Record) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, recs...)
	return nil
}

func (m *mockRepo) Get(_ context.Context, _ string) (domdiag.Record, error) {
	return m.getResult, m.getErr
}

func (m *mockRepo) History(_ context.Context, _ string, _ evidence.Source, limit int) ([]domdiag.Record, error) {
	m.histLimit = limit
	return m.history, m.histErr
}

func (m *mockRepo) Latest(_ context.Context, _ string, _ evidence.Source) (domdiag.Record, error) {
	return m.latest, m.latestErr
}

type mockKnowledge struct {
	base *domknow.Base
	err  error
}

func (m *mockKnowledge) Current() (*domknow.Base, error) { return m.base, m.err }

type mockClassifier struct {
	result domain.Classification
	err    error
	calls  int
	block  bool
}

func (m *mockClassifier) Classify(ctx context.Context, _ []byte) (domain.Classification, error) {
	m.calls++
	if m.block {
		<-ctx.Done()
		return domain.Classification{}, ctx.Err()
	}
	return m.result, m.err
}

// --- Fixtures ---

var testLabels = map[string]string{
	"Ringworm (Fungal)": "Ringworm",
	"chicken pox ":      "chicken pox",
}

func testBase(t *testing.T) *domknow.Base {
	t.Helper()
	b, err := domknow.New(domknow.Tables{
		Weights: []domknow.Weight{
			{Symptom: "fever", Value: 3},
			{Symptom: "rash", Value: 2},
			{Symptom: "itching", Value: 1},
			{Symptom: "chills", Value: 2},
			{Symptom: "sweating", Value: 2},
			{Symptom: "headache", Value: 1},
		},
		Rows: []domknow.Row{
			{Disease: "Ringworm", Symptoms: []string{"rash", "itching"}},
			{Disease: "Malaria", Symptoms: []string{"fever", "chills", "sweating"}},
			{Disease: "chicken pox", Symptoms: []string{"rash", "fever", "itching"}},
		},
		Descriptions: map[string]string{
			"Ringworm":    "Fungal skin infection.",
			"Malaria":     "  ",
			"chicken pox": "Varicella zoster infection.",
		},
		Precautions: map[string][]string{
			"Ringworm": {"keep skin dry"},
		},
	}, []string{"Ringworm", "Malaria", "chicken pox"})
	if err != nil {
		t.Fatalf("domknow.New: %v", err)
	}
	return b
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, cls domain.Classifier) (*Service, *mockRepo) {
	t.Helper()
	repo := &mockRepo{}
	svc := New(&mockKnowledge{base: testBase(t)}, repo, cls, testLabels, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

type got struct {
	disease string
	score   float64
	source  evidence.Source
}

func recordsOf(recs []domdiag.Record) []got {
	out := make([]got, len(recs))
	for i := range recs {
		out[i] = got{recs[i].Disease(), recs[i].Probability(), recs[i].Source()}
	}
	return out
}

func equalGot(a, b []got) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Analyze ---

func TestAnalyze_TextOnly(t *testing.T) {
	cls := &mockClassifier{}
	svc, repo := newTestService(t, cls)

	report, err := svc.Analyze(context.Background(), Request{UserID: "u-1", Symptoms: []string{"Rash, itching"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Outcome.OK() {
		t.Fatalf("expected ok, got %s", report.Outcome.Status())
	}
	want := []got{{"Ringworm", 100, evidence.Text}}
	if !equalGot(recordsOf(report.Records), want) {
		t.Fatalf("records = %v, want %v", recordsOf(report.Records), want)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected 1 saved record, got %d", len(repo.saved))
	}
	rec := repo.saved[0]
	if rec.UserID() != "u-1" || rec.Symptoms() != "Rash, itching" || rec.ImageRef() != "" {
		t.Errorf("unexpected record: user=%q symptoms=%q image=%q", rec.UserID(), rec.Symptoms(), rec.ImageRef())
	}
	if !rec.CreatedAt().Equal(fixedNow) {
		t.Errorf("created_at = %v", rec.CreatedAt())
	}
	if cls.calls != 0 {
		t.Errorf("classifier called without an image")
	}
}

func TestAnalyze_NoInput(t *testing.T) {
	cls := &mockClassifier{}
	svc, repo := newTestService(t, cls)

	report, err := svc.Analyze(context.Background(), Request{UserID: "u-1", Symptoms: []string{" , ", ""}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome.Status() != analysis.StatusInvalidInput || report.Outcome.Reason() != analysis.ReasonNoInput {
		t.Fatalf("got %s %q", report.Outcome.Status(), report.Outcome.Reason())
	}
	if len(repo.saved) != 0 || cls.calls != 0 {
		t.Error("nothing may be saved or classified")
	}
}

func TestAnalyze_RequiresUser(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.Analyze(context.Background(), Request{Symptoms: []string{"rash"}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnalyze_NoMatchAbortsBeforeClassifier(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: "Ringworm (Fungal)", Probability: 0.9}}
	svc, repo := newTestService(t, cls)

	report, err := svc.Analyze(context.Background(), Request{
		UserID: "u-1", Symptoms: []string{"headache"}, Image: []byte("img"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome.Status() != analysis.StatusNoMatch {
		t.Fatalf("expected no_match, got %s", report.Outcome.Status())
	}
	if cls.calls != 0 || len(repo.saved) != 0 {
		t.Error("classifier must not run and nothing may be saved after a text failure")
	}
}

func TestAnalyze_ImageOnly(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: "Ringworm (Fungal)", Probability: 0.42}}
	svc, repo := newTestService(t, cls)

	report, err := svc.Analyze(context.Background(), Request{UserID: "u-1", Image: []byte("img")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []got{{"Ringworm", 42, evidence.Image}}
	if !equalGot(recordsOf(report.Records), want) {
		t.Fatalf("records = %v, want %v", recordsOf(report.Records), want)
	}
	rec := repo.saved[0]
	if !strings.HasPrefix(rec.ImageRef(), "sha256:") || rec.Symptoms() != "" {
		t.Errorf("unexpected refs: image=%q symptoms=%q", rec.ImageRef(), rec.Symptoms())
	}
	if rec.Description() != "Fungal skin infection." || len(rec.Precautions()) != 1 {
		t.Errorf("unexpected details: %q %v", rec.Description(), rec.Precautions())
	}
}

func TestAnalyze_FusesTextThenImage(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: "Ringworm (Fungal)", Probability: 0.8}}
	svc, _ := newTestService(t, cls)

	report, err := svc.Analyze(context.Background(), Request{
		UserID: "u-1", Symptoms: []string{"fever", "rash", "itching"}, Image: []byte("img"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []got{
		{"Ringworm", 100, evidence.Text},
		{"chicken pox", 100, evidence.Text},
		{"Ringworm", 80, evidence.Image},
	}
	if !equalGot(recordsOf(report.Records), want) {
		t.Fatalf("records = %v, want %v", recordsOf(report.Records), want)
	}
	if len(report.Outcome.Candidates()) != 3 {
		t.Errorf("expected 3 candidates, got %d", len(report.Outcome.Candidates()))
	}
}

func TestAnalyze_UnrecognizedImage(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: "Shingles (Viral)", Probability: 0.99}}
	svc, repo := newTestService(t, cls)

	report, err := svc.Analyze(context.Background(), Request{
		UserID: "u-1", Symptoms: []string{"rash", "itching"}, Image: []byte("img"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome.Status() != analysis.StatusUnrecognizedEvidence {
		t.Fatalf("expected unrecognized_evidence, got %s", report.Outcome.Status())
	}
	if len(repo.saved) != 0 {
		t.Error("an unrecognized image aborts the whole request")
	}
}

func TestAnalyze_ClassifierFailures(t *testing.T) {
	tests := []struct {
		name    string
		cls     domain.Classifier
		wantErr error
	}{
		{"not configured", nil, domain.ErrClassifierNotConfigured},
		{"unavailable", &mockClassifier{err: domain.ErrClassifierUnavailable}, domain.ErrClassifierUnavailable},
		{
			"contract violation",
			&mockClassifier{result: domain.Classification{Label: "Ringworm (Fungal)", Probability: 1.5}},
			domain.ErrClassifierContract,
		},
		{"timeout", &mockClassifier{block: true}, domain.ErrClassifierUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newTestService(t, tc.cls)
			svc.WithClassifierTimeout(20 * time.Millisecond)

			_, err := svc.Analyze(context.Background(), Request{UserID: "u-1", Image: []byte("img")})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if len(repo.saved) != 0 {
				t.Error("nothing may be saved")
			}
		})
	}
}

func TestAnalyze_SkipsMalformedRecords(t *testing.T) {
	svc, repo := newTestService(t, nil)
	before := testutil.ToFloat64(metrics.PersistenceSkippedTotal.WithLabelValues(domdiag.FieldDescription))

	report, err := svc.Analyze(context.Background(), Request{
		UserID: "u-1", Symptoms: []string{"fever, chills, sweating, rash, itching"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []got{{"Ringworm", 100, evidence.Text}, {"chicken pox", 100, evidence.Text}}
	if !equalGot(recordsOf(report.Records), want) {
		t.Fatalf("records = %v, want %v", recordsOf(report.Records), want)
	}
	if len(repo.saved) != 2 || len(report.Outcome.Candidates()) != 2 {
		t.Errorf("saved %d, candidates %d", len(repo.saved), len(report.Outcome.Candidates()))
	}
	after := testutil.ToFloat64(metrics.PersistenceSkippedTotal.WithLabelValues(domdiag.FieldDescription))
	if after-before != 1 {
		t.Errorf("skipped metric delta = %v, want 1", after-before)
	}
}

func TestAnalyze_EmptyResult(t *testing.T) {
	svc, repo := newTestService(t, nil)

	report, err := svc.Analyze(context.Background(), Request{UserID: "u-1", Symptoms: []string{"fever", "chills", "sweating"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome.Status() != analysis.StatusEmptyResult || report.Outcome.Reason() != analysis.ReasonEmptyResult {
		t.Fatalf("got %s %q", report.Outcome.Status(), report.Outcome.Reason())
	}
	if len(repo.saved) != 0 || len(report.Records) != 0 {
		t.Error("expected nothing persisted")
	}
}

func TestAnalyze_SaveError(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: "Ringworm (Fungal)", Probability: 0.8}}
	svc, repo := newTestService(t, cls)
	repo.saveErr = errors.New("connection reset")

	_, err := svc.Analyze(context.Background(), Request{
		UserID: "u-1", Symptoms: []string{"fever", "rash", "itching"}, Image: []byte("img"),
	})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected storage error, got %v", err)
	}
	if repo.saveCalls != 1 {
		t.Errorf("all records go in one batch, got %d saves", repo.saveCalls)
	}
}

func TestAnalyze_StampsRecordsInFusedOrder(t *testing.T) {
	cls := &mockClassifier{result: domain.Classification{Label: "Ringworm (Fungal)", Probability: 0.8}}
	svc, repo := newTestService(t, cls)
	svc.now = func() time.Time { return fixedNow.Add(789 * time.Nanosecond) }

	report, err := svc.Analyze(context.Background(), Request{
		UserID: "u-1", Symptoms: []string{"fever", "rash", "itching"}, Image: []byte("img"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.saveCalls != 1 || len(repo.saved) != 3 {
		t.Fatalf("saves %d, records %d", repo.saveCalls, len(repo.saved))
	}
	for i, rec := range report.Records {
		want := fixedNow.Add(-time.Duration(i) * time.Microsecond)
		if !rec.CreatedAt().Equal(want) {
			t.Errorf("record %d created_at = %v, want %v", i, rec.CreatedAt(), want)
		}
	}
}

func TestAnalyze_HistoryKeepsRanking(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := goredis.NewStore(goredis.Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(store.Close)

	cls := &mockClassifier{result: domain.Classification{Label: "Ringworm (Fungal)", Probability: 0.8}}
	svc := New(&mockKnowledge{base: testBase(t)}, diagrepo.NewRedis(store), cls, testLabels, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	report, err := svc.Analyze(ctx, Request{
		UserID: "u-1", Symptoms: []string{"fever", "rash", "itching"}, Image: []byte("img"),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	history, err := svc.History(ctx, "u-1", "", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !equalGot(recordsOf(history), recordsOf(report.Records)) {
		t.Errorf("history = %v, want %v", recordsOf(history), recordsOf(report.Records))
	}

	latest, err := svc.Latest(ctx, "u-1", evidence.Text)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID() != report.Records[0].ID() {
		t.Errorf("latest text = %s %v, want the top-ranked candidate", latest.Disease(), latest.Probability())
	}
}

func TestAnalyze_KnowledgeNotLoaded(t *testing.T) {
	svc := New(&mockKnowledge{err: domain.ErrKnowledgeBase}, &mockRepo{}, nil, testLabels, zap.NewNop())
	_, err := svc.Analyze(context.Background(), Request{UserID: "u-1", Symptoms: []string{"rash"}})
	if !errors.Is(err, domain.ErrKnowledgeBase) {
		t.Fatalf("expected ErrKnowledgeBase, got %v", err)
	}
}

// --- Queries ---

func TestHistory_Limits(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 20},
		{"explicit", 7, 7},
		{"clamped", 500, 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newTestService(t, nil)
			if _, err := svc.History(context.Background(), "u-1", "", tc.limit); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.histLimit != tc.want {
				t.Errorf("limit = %d, want %d", repo.histLimit, tc.want)
			}
		})
	}
}

func TestHistory_Validation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	if _, err := svc.History(context.Background(), "", "", 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty user: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.History(context.Background(), "u-1", "audio", 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad source: expected ErrInvalidInput, got %v", err)
	}
}

func TestLatest_NotFound(t *testing.T) {
	svc, repo := newTestService(t, nil)
	repo.latestErr = domain.ErrNotFound

	_, err := svc.Latest(context.Background(), "u-1", evidence.Image)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_OtherUserIsNotFound(t *testing.T) {
	svc, repo := newTestService(t, nil)
	repo.getResult = domdiag.Reconstruct("rec-1", "u-2", "Ringworm", 90, "d", []string{}, "", "", evidence.Text, fixedNow)

	if _, err := svc.Get(context.Background(), "u-1", "rec-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	rec, err := svc.Get(context.Background(), "u-2", "rec-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID() != "rec-1" {
		t.Errorf("unexpected id %q", rec.ID())
	}
}
