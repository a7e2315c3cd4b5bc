package loadtest_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"

	"smartrisk/internal/console"
	"smartrisk/internal/platform/server"
	"smartrisk/internal/platform/telemetry"
	"smartrisk/internal/session"
	"smartrisk/internal/testutil"
)

// testEnv holds the console, its backing store and the mock backend.
type testEnv struct {
	baseURL string
	backend *testutil.Backend
	store   *session.Store
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend, backendSrv := testutil.StartBackend(t, testutil.AdminUser())

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	creds := session.NewCredentialFile(filepath.Join(t.TempDir(), "credential"))
	store := session.New(backendSrv.URL, creds, session.Options{Logger: logger})
	store.Bootstrap(context.Background())

	shutdown, _ := telemetry.Setup(context.Background(), "console-loadtest")
	t.Cleanup(func() { shutdown(context.Background()) })

	addr := freeAddr(t)
	srv := server.New(addr, console.New(store, logger, nil).Handler(), logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)

	baseURL := "http://" + addr
	waitForReady(t, baseURL+"/healthz")

	return &testEnv{baseURL: baseURL, backend: backend, store: store}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func waitForReady(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not become ready at %s", url)
}

func loadtestDuration() time.Duration {
	if d := os.Getenv("LOADTEST_DURATION"); d != "" {
		dur, err := time.ParseDuration(d)
		if err == nil {
			return dur
		}
	}
	if testing.Short() {
		return 2 * time.Second
	}
	return 5 * time.Second
}

func loadtestRate() int {
	if r := os.Getenv("LOADTEST_RATE"); r != "" {
		rate, err := strconv.Atoi(r)
		if err == nil {
			return rate
		}
	}
	if testing.Short() {
		return 50
	}
	return 100
}

func printReport(t *testing.T, name string, metrics *vegeta.Metrics) {
	t.Helper()
	t.Logf("\n=== %s ===", name)
	t.Logf("  Requests:    %d", metrics.Requests)
	t.Logf("  Rate:        %.1f req/s", metrics.Rate)
	t.Logf("  Throughput:  %.1f req/s", metrics.Throughput)
	t.Logf("  Duration:    %s", metrics.Duration)
	t.Logf("  Latencies:")
	t.Logf("    Mean:    %s", metrics.Latencies.Mean)
	t.Logf("    P50:     %s", metrics.Latencies.P50)
	t.Logf("    P95:     %s", metrics.Latencies.P95)
	t.Logf("    P99:     %s", metrics.Latencies.P99)
	t.Logf("    Max:     %s", metrics.Latencies.Max)
	t.Logf("  Status Codes:")
	for code, count := range metrics.StatusCodes {
		t.Logf("    %s: %d", code, count)
	}
	if len(metrics.Errors) > 0 {
		t.Logf("  Errors (first 5):")
		for i, e := range metrics.Errors {
			if i >= 5 {
				break
			}
			t.Logf("    %s", e)
		}
	}
	t.Logf("  Success:     %.1f%%", metrics.Success*100)
}

func attack(targeter vegeta.Targeter, rate vegeta.Rate, duration time.Duration, name string) *vegeta.Metrics {
	attacker := vegeta.NewAttacker(vegeta.Redirects(vegeta.NoFollow))
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, rate, duration, name) {
		metrics.Add(res)
	}
	metrics.Close()
	return &metrics
}

func TestAuthenticatedDashboard(t *testing.T) {
	env := setupTestEnv(t)
	if _, err := env.store.Login(context.Background(), "admin@smartrisk.test", "secret123"); err != nil {
		t.Fatalf("login: %v", err)
	}

	rate := vegeta.Rate{Freq: loadtestRate(), Per: time.Second}
	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: http.MethodGet,
		URL:    env.baseURL + "/dashboard",
	})

	metrics := attack(targeter, rate, loadtestDuration(), "dashboard")
	printReport(t, "Authenticated Dashboard", metrics)

	if metrics.Success < 0.99 {
		t.Errorf("expected >99%% success rate, got %.1f%%", metrics.Success*100)
	}
	if metrics.Latencies.P99 > 250*time.Millisecond {
		t.Errorf("P99 latency too high: %s", metrics.Latencies.P99)
	}
}

func TestAnonymousRedirects(t *testing.T) {
	env := setupTestEnv(t)

	rate := vegeta.Rate{Freq: loadtestRate(), Per: time.Second}
	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: http.MethodGet,
		URL:    env.baseURL + "/dashboard",
	})

	metrics := attack(targeter, rate, loadtestDuration(), "anonymous")
	printReport(t, "Anonymous Redirect Storm", metrics)

	// Every request should be steered to the login page.
	if metrics.StatusCodes["303"] == 0 {
		t.Error("expected 303 redirects for anonymous traffic")
	}
	if metrics.StatusCodes["200"] != 0 {
		t.Errorf("guarded route leaked %d responses to anonymous traffic", metrics.StatusCodes["200"])
	}
}

func TestPublicSurvey(t *testing.T) {
	env := setupTestEnv(t)
	token := testutil.RandomToken()
	env.backend.AddSurvey(token, testutil.Survey{Establishment: "Harbor Mill"})

	rate := vegeta.Rate{Freq: loadtestRate(), Per: time.Second}
	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: http.MethodGet,
		URL:    env.baseURL + "/survey/" + token,
	})

	metrics := attack(targeter, rate, loadtestDuration(), "survey")
	printReport(t, "Public Survey", metrics)

	if metrics.Success < 0.99 {
		t.Errorf("expected >99%% success rate, got %.1f%%", metrics.Success*100)
	}
}
