// Package dashboard implements the optional `--dashboard` live metrics
// view: a small tview application that polls an in-flight metrics
// snapshot every 250ms and renders the user-visible counters and the
// top few keys of each bucket metric while a parallel run is in progress.
//
// Adapted from the teacher's tui/app.go at a fraction of its size: kept
// the QueueUpdateDraw-polling-goroutine shape and the
// progressView/statusBar TextView pair, dropped everything specific to
// CIDR clustering (results panels, trie switching, visualization cache)
// since none of it applies here. This is strictly a side observer: it
// never reads from or blocks a pipeline channel, only the snapshot
// function it is given.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/kelora-go/kelora/metrics"
)

// SnapshotFunc returns the current, in-flight metrics fold. Called from
// the dashboard's own polling goroutine only.
type SnapshotFunc func() *metrics.Snapshot

// Dashboard is a live terminal view over a running pipeline's metrics.
type Dashboard struct {
	app    *tview.Application
	view   *tview.TextView
	status *tview.TextView
	poll   SnapshotFunc
}

// New builds a Dashboard that polls poll every 250ms once Run starts.
func New(poll SnapshotFunc) *Dashboard {
	view := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false).
		SetWrap(false)
	view.SetBorder(true).SetTitle(" kelora live metrics ").SetTitleAlign(tview.AlignCenter)

	status := tview.NewTextView().
		SetDynamicColors(true).
		SetText("[yellow]running...[white] | Press 'q' to quit")
	status.SetBorder(false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(view, 0, 1, true).
		AddItem(status, 1, 0, false)

	app := tview.NewApplication().SetRoot(root, true)
	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return ev
	})

	return &Dashboard{app: app, view: view, status: status, poll: poll}
}

// Run starts the dashboard and blocks until the user quits with 'q'.
// Cancelling ctx (the pipeline finished) only switches the status line
// to "run complete"; the view stays up. It never returns an error a caller
// needs to treat as fatal: a dashboard that fails to start a terminal
// (e.g. no tty) is a cosmetic loss, not a pipeline failure.
func (d *Dashboard) Run(ctx context.Context) error {
	stop := make(chan struct{})
	go d.pollLoop(ctx, stop)
	defer close(stop)

	go func() {
		<-ctx.Done()
		d.app.QueueUpdateDraw(func() {
			d.status.SetText("[green]run complete[white] | Press 'q' to quit")
		})
	}()

	return d.app.Run()
}

func (d *Dashboard) pollLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := d.poll()
			d.app.QueueUpdateDraw(func() {
				d.view.SetText(render(snap))
			})
		}
	}
}

func render(snap *metrics.Snapshot) string {
	if snap == nil {
		return "[gray]warming up...[white]"
	}
	var b strings.Builder
	fmt.Fprintln(&b, "[yellow]counters[white]")
	for _, k := range metrics.SortedKeys(snap.Counters) {
		fmt.Fprintf(&b, "  %s: %d\n", k, snap.Counters[k])
	}
	fmt.Fprintln(&b, "[yellow]buckets (top keys)[white]")
	for _, name := range metrics.SortedKeys(snap.Buckets) {
		fmt.Fprintf(&b, "  %s:\n", name)
		for _, line := range topBuckets(snap.Buckets[name], 5) {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	return b.String()
}

func topBuckets(counts map[string]int64, n int) []string {
	keys := metrics.SortedKeys(counts)
	sort.Slice(keys, func(i, j int) bool { return counts[keys[i]] > counts[keys[j]] })
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s: %d", k, counts[k])
	}
	return out
}
