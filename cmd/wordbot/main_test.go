package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/wordbot/internal/config"
	"github.com/mattjoyce/wordbot/internal/lock"
	"github.com/mattjoyce/wordbot/internal/signature"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	var stdoutBytes, stderrBytes []byte
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); stdoutBytes, _ = io.ReadAll(stdoutR) }()
	go func() { defer wg.Done(); stderrBytes, _ = io.ReadAll(stderrR) }()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	wg.Wait()
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func runCLICaptured(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return captureOutputWithExitCode(t, func() int { return runCLI(args) })
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()
	origVersion, origCommit, origBuildDate := version, gitCommit, buildDate
	version, gitCommit, buildDate = v, commit, built
	t.Cleanup(func() {
		version, gitCommit, buildDate = origVersion, origCommit, origBuildDate
	})
}

func testKeyPair() (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), priv
}

func writeConfigFixture(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// validConfigYAML ends in the discord block so fixtures can append
// "  key: value" lines to it.
func validConfigYAML() string {
	pub, _ := testKeyPair()
	return "webhook:\n" +
		"  max_timestamp_skew: 5m\n" +
		"discord:\n" +
		"  public_key: " + hex.EncodeToString(pub) + "\n" +
		"  register_commands: false\n"
}

// fakePlatform records the REST calls wordbot makes.
type fakePlatform struct {
	mu        sync.Mutex
	verifyKey string
	calls     []string
	bodies    map[string]string
	failPut   bool
}

func newFakePlatform(t *testing.T, verifyKey string) (*fakePlatform, *httptest.Server) {
	t.Helper()
	f := &fakePlatform{verifyKey: verifyKey, bodies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakePlatform) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	call := r.Method + " " + r.URL.Path

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.bodies[call] = string(body)
	failPut := f.failPut
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bot test-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch call {
	case "GET /applications/@me":
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "app1", "verify_key": f.verifyKey})
	case "PATCH /applications/@me":
		_, _ = w.Write([]byte(`{}`))
	case "PUT /applications/app1/commands":
		if failPut {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"Missing Access"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakePlatform) body(call string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bodies[call]
	return b, ok
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := runCLICaptured(t, "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
}

func TestRunCLINoArgsPrintsUsage(t *testing.T) {
	code, stdout, _ := runCLICaptured(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "wordbot <noun> <action>")
}

func TestRunNounHelp(t *testing.T) {
	for _, noun := range []string{"config", "commands", "key"} {
		code, stdout, _ := runCLICaptured(t, noun, "help")
		assert.Equal(t, 0, code, noun)
		assert.Contains(t, stdout, "Usage: wordbot "+noun+" <action>")
	}

	code, stdout, _ := runCLICaptured(t, "config", "check", "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Exit codes:")
}

func TestRunCLIRootVersionFlag(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "0123456789abcdef", "2026-01-02T03:04:05+02:00")

	code, stdout, _ := runCLICaptured(t, "--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "wordbot 1.2.3")
	assert.Contains(t, stdout, "commit: 0123456789ab")
	assert.Contains(t, stdout, "built_at: 2026-01-02T01:04:05Z")
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "abc", "not-a-time")

	code, stdout, _ := runCLICaptured(t, "version", "--json")
	require.Equal(t, 0, code)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc", info.Commit)
	assert.Equal(t, "unknown", info.BuildTime)
}

func TestRunConfigCheckLockCycle(t *testing.T) {
	path := writeConfigFixture(t, validConfigYAML())

	code, stdout, _ := runCLICaptured(t, "config", "check", "--config", path)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "WARN  [integrity]")

	code, stdout, _ = runCLICaptured(t, "config", "lock", "--config", path, "--dry-run")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Dry-run: would write")
	_, err := os.Stat(filepath.Join(filepath.Dir(path), config.ChecksumFile))
	assert.True(t, os.IsNotExist(err))

	code, stdout, _ = runCLICaptured(t, "config", "lock", "--config", path)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Locked 1 file(s)")

	code, stdout, _ = runCLICaptured(t, "config", "check", "--config", path)
	assert.Equal(t, 0, code)
	assert.Equal(t, "Configuration valid.\n", stdout)
}

func TestRunConfigCheckInvalid(t *testing.T) {
	path := writeConfigFixture(t, validConfigYAML()+"service:\n  log_format: xml\n")

	code, stdout, _ := runCLICaptured(t, "config", "check", "--config", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "ERROR [schema] service.log_format")

	code, stdout, _ = runCLICaptured(t, "config", "check", "--config", path, "--format", "json")
	assert.Equal(t, 1, code)
	var result struct {
		Valid  bool `json:"valid"`
		Errors []struct {
			Field string `json:"field"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "service.log_format", result.Errors[0].Field)
}

func TestRunConfigCheckMissingFile(t *testing.T) {
	code, _, stderr := runCLICaptured(t, "config", "check", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Load error")
}

func TestRunConfigShowRedactsSecrets(t *testing.T) {
	path := writeConfigFixture(t, validConfigYAML()+
		"ops:\n  enabled: true\n  listen: 127.0.0.1:9999\n  api_key: super-secret\n")

	code, stdout, _ := runCLICaptured(t, "config", "show", "--config", path)
	require.Equal(t, 0, code)
	assert.NotContains(t, stdout, "super-secret")
	assert.Contains(t, stdout, redacted)
	assert.Contains(t, stdout, "max_timestamp_skew: 5m0s")

	code, stdout, _ = runCLICaptured(t, "config", "show", "--config", path, "--json")
	require.Equal(t, 0, code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	ops := doc["ops"].(map[string]any)
	assert.Equal(t, redacted, ops["api_key"])
}

func TestRunCommandsList(t *testing.T) {
	path := writeConfigFixture(t, validConfigYAML()+
		"commands:\n"+
		"  - name: city\n    description: generate a random city\n"+
		"  - name: fruit\n    description: pick a fruit\n    words_file: fruit.txt\n")
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "fruit.txt"), []byte("apple\npear\n"), 0o644))

	code, stdout, _ := runCLICaptured(t, "commands", "list", "--config", path, "--json")
	require.Equal(t, 0, code)

	var got []commandSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "city", got[0].Name)
	assert.Equal(t, "builtin", got[0].Source)
	assert.Greater(t, got[0].Entries, 1)
	assert.Equal(t, 2, got[1].Entries)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "fruit.txt"), got[1].Source)

	code, stdout, _ = runCLICaptured(t, "commands", "list", "--config", path)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "/fruit")
}

func TestRunCommandsRegister(t *testing.T) {
	platform, srv := newFakePlatform(t, "")
	path := writeConfigFixture(t, validConfigYAML()+
		"  api_base: "+srv.URL+"\n"+
		"  application_id: app1\n"+
		"  bot_token: test-token\n")

	code, stdout, stderr := runCLICaptured(t, "commands", "register", "--config", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Registered 1 command(s)")

	body, ok := platform.body("PUT /applications/app1/commands")
	require.True(t, ok)
	assert.JSONEq(t, `[{"name":"city","description":"generate a random city"}]`, body)
}

func TestRunKeyShow(t *testing.T) {
	pub, _ := testKeyPair()
	key, err := signature.NewVerifyingKey(pub)
	require.NoError(t, err)

	path := writeConfigFixture(t, validConfigYAML())
	code, stdout, _ := runCLICaptured(t, "key", "show", "--config", path)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "public_key: "+key.String())
	assert.Contains(t, stdout, "fingerprint: "+key.Fingerprint())
	assert.Contains(t, stdout, "source: config")
}

func TestRunKeyShowFetch(t *testing.T) {
	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, srv := newFakePlatform(t, hex.EncodeToString(other))

	path := writeConfigFixture(t, validConfigYAML()+
		"  api_base: "+srv.URL+"\n"+
		"  bot_token: test-token\n")
	code, stdout, stderr := runCLICaptured(t, "key", "show", "--config", path, "--fetch")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "public_key: "+hex.EncodeToString(other))
	assert.Contains(t, stdout, "source: application")
}

func TestRunMonitorRequiresAPIKey(t *testing.T) {
	t.Setenv("WORDBOT_OPS_API_KEY", "")
	code, _, stderr := runCLICaptured(t, "monitor")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "API key required")
}

func TestLoadServiceConfigFromEnv(t *testing.T) {
	pub, _ := testKeyPair()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WORDBOT_CONFIG", "")
	t.Chdir(t.TempDir())
	t.Setenv("PUBLIC_KEY", hex.EncodeToString(pub))
	t.Setenv("BOT_KEY", "test-token")
	t.Setenv("APPLICATION_ID", "app1")
	t.Setenv("WORDBOT_LISTEN", "127.0.0.1:4000")

	if _, statErr := os.Stat("/etc/wordbot/config.yaml"); statErr == nil {
		t.Skip("system config present")
	}
	cfg, source, err := loadServiceConfig("")
	require.NoError(t, err)
	assert.Equal(t, "environment", source)
	assert.Equal(t, "127.0.0.1:4000", cfg.Webhook.Listen)
	assert.Equal(t, "app1", cfg.Discord.ApplicationID)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serveConfig(t *testing.T, apiBase string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Discord.APIBase = apiBase
	cfg.Discord.BotToken = "test-token"
	cfg.Discord.ApplicationID = "app1"
	cfg.Discord.InteractionsEndpointURL = "https://bot.example.com/"
	cfg.Webhook.Listen = "127.0.0.1:0"
	cfg.Registration.InitialBackoff = 10 * time.Millisecond
	cfg.Registration.MaxBackoff = 20 * time.Millisecond
	cfg.Ops = config.OpsConfig{Enabled: true, Listen: "127.0.0.1:0", APIKey: "ops-key"}
	cfg.State.Path = filepath.Join(t.TempDir(), "wordbot.db")
	return cfg
}

func signedPost(t *testing.T, addr string, priv ed25519.PrivateKey, body string) *http.Response {
	t.Helper()
	ts := "1700000000"
	req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(ed25519.Sign(priv, signature.Message(ts, []byte(body)))))
	req.Header.Set("X-Signature-Timestamp", ts)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func opsGet(t *testing.T, addr, path string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://"+addr+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer ops-key")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func TestServeEndToEnd(t *testing.T) {
	pub, priv := testKeyPair()
	platform, srv := newFakePlatform(t, hex.EncodeToString(pub))
	cfg := serveConfig(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan listenAddrs, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, cfg, quietLogger(), func(a listenAddrs) { addrCh <- a })
	}()

	var addrs listenAddrs
	select {
	case addrs = <-addrCh:
	case err := <-errCh:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not become ready")
	}
	require.NotEmpty(t, addrs.Ops)

	body, ok := platform.body("PUT /applications/app1/commands")
	require.True(t, ok, "commands registered before listening")
	assert.Contains(t, body, `"city"`)

	resp := signedPost(t, addrs.Webhook, priv, `{"type":1}`)
	got, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"type":1}`, string(got))

	resp = signedPost(t, addrs.Webhook, priv, `{"type":2,"data":{"name":"city"}}`)
	got, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(got), `"type":4`)

	assert.Eventually(t, func() bool {
		code, _ := opsGet(t, addrs.Ops, "/readyz")
		return code == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	patch, ok := platform.body("PATCH /applications/@me")
	require.True(t, ok)
	assert.JSONEq(t, `{"interactions_endpoint_url":"https://bot.example.com/"}`, patch)

	assert.Eventually(t, func() bool {
		code, body := opsGet(t, addrs.Ops, "/interactions")
		if code != http.StatusOK {
			return false
		}
		var out struct {
			Entries []json.RawMessage `json:"entries"`
		}
		return json.Unmarshal(body, &out) == nil && len(out.Entries) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeCommandRegistrationFailureIsFatal(t *testing.T) {
	pub, _ := testKeyPair()
	platform, srv := newFakePlatform(t, hex.EncodeToString(pub))
	platform.failPut = true
	cfg := serveConfig(t, srv.URL)

	err := serve(context.Background(), cfg, quietLogger(), func(listenAddrs) {
		t.Error("listener must not start")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register commands")
	assert.Contains(t, err.Error(), "403")
}

func TestServeRequiresKeySource(t *testing.T) {
	cfg := config.Defaults()
	cfg.Webhook.Listen = "127.0.0.1:0"
	cfg.Discord.RegisterCommands = false

	err := serve(context.Background(), cfg, quietLogger(), nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "public_key"))
}

func TestServeRefusesSharedStateDatabase(t *testing.T) {
	pub, _ := testKeyPair()
	cfg := config.Defaults()
	cfg.Discord.PublicKey = hex.EncodeToString(pub)
	cfg.Discord.RegisterCommands = false
	cfg.Webhook.Listen = "127.0.0.1:0"
	cfg.State.Path = filepath.Join(t.TempDir(), "wordbot.db")

	held, err := lock.Acquire(lock.PathFor(cfg.State.Path))
	require.NoError(t, err)
	defer held.Release()

	err = serve(context.Background(), cfg, quietLogger(), func(listenAddrs) {
		t.Error("listener must not start")
	})
	require.ErrorIs(t, err, lock.ErrHeld)
}
