// Package browser drives a Chrome instance over the DevTools protocol. It
// resolves tabs, installs page fillers and delivers fill messages to them.
package browser

import (
	"context"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
)

// Options selects how the browser is reached.
type Options struct {
	// RemoteURL attaches to a running browser. When empty a browser is launched.
	RemoteURL  string
	ExecPath   string
	ProfileDir string
	Headless   bool
}

// NewAllocator returns a chromedp allocator context for opts.
func NewAllocator(parent context.Context, opts Options) (context.Context, context.CancelFunc, error) {
	if opts.RemoteURL != "" {
		allocCtx, cancel := chromedp.NewRemoteAllocator(parent, opts.RemoteURL)
		return allocCtx, cancel, nil
	}

	if opts.ProfileDir != "" {
		if err := os.MkdirAll(opts.ProfileDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create profile dir: %w", err)
		}
	}

	allocCtx, cancel := chromedp.NewExecAllocator(parent, execOptions(opts)...)
	return allocCtx, cancel, nil
}

func execOptions(opts Options) []chromedp.ExecAllocatorOption {
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-session-crashed-bubble", true),
		chromedp.Flag("hide-crash-restore-bubble", true),
		chromedp.Flag("disable-popup-blocking", true),
	}
	if opts.ProfileDir != "" {
		execOpts = append(execOpts, chromedp.UserDataDir(opts.ProfileDir))
	}
	if opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.Headless {
		execOpts = append(execOpts, chromedp.Headless)
	} else {
		execOpts = append(execOpts, chromedp.Flag("headless", false))
	}
	return execOpts
}

// Start connects to the browser behind allocCtx. For a launched browser the
// initial tab's ID is returned; attaching to a remote browser opens no tab
// and returns an empty ID.
func Start(allocCtx context.Context, remote bool) (context.Context, context.CancelFunc, string, error) {
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	if remote {
		if _, err := chromedp.Targets(browserCtx); err != nil {
			cancel()
			return nil, nil, "", fmt.Errorf("connect to browser: %w", err)
		}
		return browserCtx, cancel, "", nil
	}

	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, nil, "", fmt.Errorf("start browser: %w", err)
	}
	initial := chromedp.FromContext(browserCtx).Target.TargetID
	return browserCtx, cancel, string(initial), nil
}
