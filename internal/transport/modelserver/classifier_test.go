package modelserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/kailas-cloud/medlens/internal/domain"
	"github.com/kailas-cloud/medlens/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterDiagnosisMetrics()
	os.Exit(m.Run())
}

var testImage = []byte{0xff, 0xd8, 0xff, 0xe0, 'J', 'F', 'I', 'F'}

func predictServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Instances) != 1 || req.Instances[0].B64 != base64.StdEncoding.EncodeToString(testImage) {
			t.Errorf("unexpected instances: %+v", req.Instances)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func newTestClassifier(t *testing.T, url string) *Classifier {
	t.Helper()
	c, err := NewClassifier(&Config{PredictURL: url, Provider: "test", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestNewClassifier_RequiresURL(t *testing.T) {
	if _, err := NewClassifier(&Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestClassify_Argmax(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantLabel string
		wantProb  float64
	}{
		{
			"ringworm",
			`{"predictions":[[0.01,0.02,0.9,0.01,0.02,0.01,0.02,0.01]]}`,
			"Ringworm (Fungal)", 0.9,
		},
		{
			"chicken pox keeps raw label",
			`{"predictions":[[0,0,0,0,0,0,0.75,0.25]]}`,
			"chicken pox ", 0.75,
		},
		{
			"tie picks first",
			`{"predictions":[[0.5,0.5,0,0,0,0,0,0]]}`,
			"Cellulitis (Bacterial)", 0.5,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := predictServer(t, http.StatusOK, tc.body)
			defer server.Close()

			res, err := newTestClassifier(t, server.URL).Classify(context.Background(), testImage)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Label != tc.wantLabel || res.Probability != tc.wantProb {
				t.Errorf("got %+v, want %q %v", res, tc.wantLabel, tc.wantProb)
			}
		})
	}
}

func TestClassify_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing predictions", `{"outputs":[[1]]}`},
		{"empty predictions", `{"predictions":[]}`},
		{"wrong class count", `{"predictions":[[0.5,0.5]]}`},
		{"score above one", `{"predictions":[[2,0,0,0,0,0,0,0]]}`},
		{"non numeric", `{"predictions":[["a","b","c","d","e","f","g","h"]]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := predictServer(t, http.StatusOK, tc.body)
			defer server.Close()

			_, err := newTestClassifier(t, server.URL).Classify(context.Background(), testImage)
			if !errors.Is(err, domain.ErrClassifierContract) {
				t.Fatalf("expected ErrClassifierContract, got %v", err)
			}
		})
	}
}

func TestClassify_ServerError(t *testing.T) {
	server := predictServer(t, http.StatusServiceUnavailable, `{"error":"model not loaded"}`)
	defer server.Close()

	_, err := newTestClassifier(t, server.URL).Classify(context.Background(), testImage)
	if !errors.Is(err, domain.ErrClassifierUnavailable) {
		t.Fatalf("expected ErrClassifierUnavailable, got %v", err)
	}
}

func TestClassify_Unreachable(t *testing.T) {
	server := predictServer(t, http.StatusOK, `{}`)
	url := server.URL
	server.Close()

	_, err := newTestClassifier(t, url).Classify(context.Background(), testImage)
	if !errors.Is(err, domain.ErrClassifierUnavailable) {
		t.Fatalf("expected ErrClassifierUnavailable, got %v", err)
	}
}

func TestClassify_EmptyImage(t *testing.T) {
	c := newTestClassifier(t, "http://127.0.0.1:1/predict")
	if _, err := c.Classify(context.Background(), nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"model_version_status":[{"state":"AVAILABLE"}]}`))
	}))
	defer server.Close()

	ok, err := NewClassifier(&Config{PredictURL: server.URL, HealthURL: server.URL + "/up"})
	if err != nil {
		t.Fatal(err)
	}
	if err := ok.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	down, err := NewClassifier(&Config{PredictURL: server.URL, HealthURL: server.URL + "/down"})
	if err != nil {
		t.Fatal(err)
	}
	if err := down.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for 404")
	}

	none, err := NewClassifier(&Config{PredictURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := none.HealthCheck(context.Background()); err != nil {
		t.Errorf("no health url must be healthy, got %v", err)
	}
}
