package e2e_test

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klubhuset/backend/internal/factory"
	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/storage/memory"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "klubctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/klubctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	// Create temp token file
	tokenFile := filepath.Join(t.TempDir(), "token")

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  tokenFile,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// writeKeyPair writes a fresh RS256 key pair into dir
func writeKeyPair(t *testing.T, dir string) (privatePath, publicPath string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePath = filepath.Join(dir, "private.pem")
	publicPath = filepath.Join(dir, "public.pem")

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	require.NoError(t, os.WriteFile(privatePath, privatePEM, 0600))

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicDER,
	})
	require.NoError(t, os.WriteFile(publicPath, publicPEM, 0600))

	return privatePath, publicPath
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	server   *http.Server
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	privatePath, publicPath := writeKeyPair(t, t.TempDir())

	app, err := factory.New(factory.Config{
		StorageType:       factory.StorageTypeMemory,
		JWTPrivateKeyPath: privatePath,
		JWTPublicKeyPath:  publicPath,
	})
	require.NoError(t, err)

	// Seed the weekly poll
	store, ok := app.Polls.(*memory.Storage)
	require.True(t, ok)
	require.NoError(t, store.SavePoll(context.Background(), &model.Poll{
		ID:       1,
		Question: "Hvad skal vi spille fredag?",
		Options:  []string{"Minecraft", "Brætspil"},
		IsActive: true,
	}))

	server := &http.Server{
		Addr:    addr,
		Handler: app.Handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/health")

	return &testServer{
		server: server,
		addr:   serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

type profileResponse struct {
	User  userResponse `json:"user"`
	Votes []struct {
		PollID   int64  `json:"poll_id"`
		Username string `json:"username"`
		Option   string `json:"option"`
	} `json:"votes"`
}

type renameResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type pollResponse struct {
	ID       int64          `json:"id"`
	Question string         `json:"question"`
	Options  map[string]int `json:"options"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_AccountCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Register
	output, err := cli.run("account", "register", "viggo",
		"--email", "viggo@example.com", "--password", "hemmeligt")
	require.NoError(t, err, "output: %s", output)

	var authResp authResponse
	require.NoError(t, json.Unmarshal([]byte(output), &authResp))
	assert.Equal(t, "viggo", authResp.User.Username)
	assert.Equal(t, "User", authResp.User.Role)
	assert.NotEmpty(t, authResp.Token)

	// The token was saved, so me show works without logging in again
	output, err = cli.run("me", "show")
	require.NoError(t, err, "output: %s", output)

	var profile profileResponse
	require.NoError(t, json.Unmarshal([]byte(output), &profile))
	assert.Equal(t, "viggo", profile.User.Username)
	assert.Empty(t, profile.Votes)

	// Availability checks
	output, err = cli.run("account", "check-username", "viggo")
	require.NoError(t, err, "output: %s", output)
	var avail availabilityResponse
	require.NoError(t, json.Unmarshal([]byte(output), &avail))
	assert.False(t, avail.Available)

	output, err = cli.run("account", "check-username", "ledig")
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &avail))
	assert.True(t, avail.Available)
}

func TestCLI_LoginLogout(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("account", "register", "viggo",
		"--email", "viggo@example.com", "--password", "hemmeligt")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("account", "logout")
	require.NoError(t, err, "output: %s", output)
	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msg))
	assert.Equal(t, "Logged out", msg.Message)

	// Without the token, me show fails
	output, err = cli.run("me", "show")
	require.Error(t, err, "output: %s", output)

	// Log back in
	output, err = cli.run("account", "login", "viggo", "--password", "hemmeligt")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("me", "show")
	require.NoError(t, err, "output: %s", output)
}

func TestCLI_RenameOnlyOnce(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("account", "register", "viggo",
		"--email", "viggo@example.com", "--password", "hemmeligt")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("me", "rename", "viggo2")
	require.NoError(t, err, "output: %s", output)

	var rename renameResponse
	require.NoError(t, json.Unmarshal([]byte(output), &rename))
	assert.Equal(t, "viggo2", rename.Username)

	// The fresh token was stored, so the profile follows the new name
	output, err = cli.run("me", "show")
	require.NoError(t, err, "output: %s", output)
	var profile profileResponse
	require.NoError(t, json.Unmarshal([]byte(output), &profile))
	assert.Equal(t, "viggo2", profile.User.Username)

	// Renaming twice is rejected
	output, err = cli.run("me", "rename", "viggo3")
	require.Error(t, err, "output: %s", output)
	assert.Contains(t, output, "USERNAME_ALREADY_CHANGED")
}

func TestCLI_DeleteAccount(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("account", "register", "viggo",
		"--email", "viggo@example.com", "--password", "hemmeligt")
	require.NoError(t, err, "output: %s", output)

	// Refuses without --yes
	output, err = cli.run("me", "delete")
	require.Error(t, err, "output: %s", output)

	output, err = cli.run("me", "delete", "--yes")
	require.NoError(t, err, "output: %s", output)
	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msg))
	assert.Equal(t, "Account deleted", msg.Message)

	// The account is gone
	output, err = cli.run("account", "login", "viggo", "--password", "hemmeligt")
	require.Error(t, err, "output: %s", output)
}

func TestCLI_Poll(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("poll")
	require.NoError(t, err, "output: %s", output)

	var poll pollResponse
	require.NoError(t, json.Unmarshal([]byte(output), &poll))
	assert.Equal(t, "Hvad skal vi spille fredag?", poll.Question)
	assert.Equal(t, map[string]int{"Minecraft": 0, "Brætspil": 0}, poll.Options)
}

func TestCLI_WatchReceivesWelcomeEvents(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Every connection is greeted with the admin roster, the current
	// color round and the live poll tally
	output, err := cli.run("watch", "--count", "3")
	require.NoError(t, err, "output: %s", output)

	events := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(output))
	var buf strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		// Indented JSON: an envelope ends at an unindented brace
		if line == "}" {
			var envelope struct {
				Event string `json:"event"`
			}
			require.NoError(t, json.Unmarshal([]byte(buf.String()), &envelope))
			events[envelope.Event] = true
			buf.Reset()
		}
	}

	assert.True(t, events["adminOnlineMessage"], "events: %v", events)
	assert.True(t, events["newRound"], "events: %v", events)
	assert.True(t, events["pollUpdate"], "events: %v", events)
}
