//go:build !ci

package lessonkit_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

const headlessShellImage = "chromedp/headless-shell:stable"

// localChromes are tried in order before falling back to Docker.
var localChromes = []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"}

// browser is a chromedp context bound to a test.
type browser struct {
	ctx    context.Context
	docker bool
}

// newBrowser returns a headless Chrome for the test. It uses
// $LESSONKIT_CHROME or a Chrome found on PATH, then the headless-shell
// Docker image, and skips the test when neither is available. Everything
// is torn down by t.Cleanup.
func newBrowser(t *testing.T, timeout time.Duration) *browser {
	t.Helper()

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
		docker      bool
	)
	if path := findChrome(); path != "" {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.ExecPath(path),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-gpu", true),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	} else {
		port := startHeadlessShell(t)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), fmt.Sprintf("http://localhost:%d", port))
		docker = true
	}

	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(t.Logf))
	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	t.Cleanup(func() {
		timeoutCancel()
		cancel()
		allocCancel()
	})
	return &browser{ctx: ctx, docker: docker}
}

// url rewrites a test server URL so the browser can reach it. Chrome in
// Docker on macOS sits behind host.docker.internal.
func (b *browser) url(serverURL string) string {
	host := "localhost"
	if b.docker && runtime.GOOS != "linux" {
		host = "host.docker.internal"
	}
	for _, loopback := range []string{"127.0.0.1", "[::1]"} {
		serverURL = strings.Replace(serverURL, loopback, host, 1)
	}
	return serverURL
}

func (b *browser) run(t *testing.T, actions ...chromedp.Action) {
	t.Helper()
	if err := chromedp.Run(b.ctx, actions...); err != nil {
		t.Fatalf("browser: %v", err)
	}
}

func findChrome() string {
	if path := os.Getenv("LESSONKIT_CHROME"); path != "" {
		return path
	}
	for _, name := range localChromes {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// startHeadlessShell runs the headless-shell image and returns its
// debugging port once Chrome answers.
func startHeadlessShell(t *testing.T) int {
	t.Helper()
	if _, err := exec.Command("docker", "version").CombinedOutput(); err != nil {
		t.Skip("no local Chrome and Docker not available, skipping browser test")
	}

	port, err := freePort()
	if err != nil {
		t.Fatalf("Failed to allocate Chrome port: %v", err)
	}
	name := fmt.Sprintf("lessonkit-e2e-chrome-%d", port)
	_ = exec.Command("docker", "rm", "-f", name).Run()

	args := []string{"run", "-d", "--rm", "--memory", "512m", "--name", name}
	if runtime.GOOS == "linux" {
		args = append(args, "--network", "host", headlessShellImage, fmt.Sprintf("--remote-debugging-port=%d", port))
	} else {
		args = append(args, "-p", fmt.Sprintf("%d:9222", port), headlessShellImage)
	}
	if out, err := exec.Command("docker", args...).CombinedOutput(); err != nil {
		t.Fatalf("Failed to start Chrome container: %v\n%s", err, out)
	}
	t.Cleanup(func() {
		if out, err := exec.Command("docker", "rm", "-f", name).CombinedOutput(); err != nil &&
			!strings.Contains(string(out), "No such container") {
			t.Logf("Failed to remove Chrome container: %v (%s)", err, out)
		}
	})

	client := &http.Client{Timeout: 2 * time.Second}
	versionURL := fmt.Sprintf("http://localhost:%d/json/version", port)
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if resp, err := client.Get(versionURL); err == nil {
			resp.Body.Close()
			return port
		}
		time.Sleep(500 * time.Millisecond)
	}
	logs, _ := exec.Command("docker", "logs", "--tail", "50", name).CombinedOutput()
	t.Fatalf("Chrome did not start within 60s\n%s", logs)
	return 0
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
