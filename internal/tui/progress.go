// Package tui renders a terminal progress view for an interactive download
// session.
package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/vidgrab/vidgrab/internal/domain"
)

// ProgressView shows one session's title, progress bar and status line.
type ProgressView struct {
	app    *tview.Application
	info   *tview.TextView
	bar    *tview.TextView
	status *tview.TextView
}

// NewProgressView creates the progress view.
func NewProgressView() *ProgressView {
	info := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	info.SetBorder(true).SetTitle(" vidgrab ")

	bar := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	status := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(info, 0, 2, false).
		AddItem(bar, 3, 0, false).
		AddItem(status, 0, 1, false)

	app := tview.NewApplication().SetRoot(layout, true)
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	return &ProgressView{
		app:    app,
		info:   info,
		bar:    bar,
		status: status,
	}
}

// Run starts the UI event loop; it blocks until Stop.
func (v *ProgressView) Run() error {
	return v.app.Run()
}

// Stop terminates the UI event loop.
func (v *ProgressView) Stop() {
	v.app.Stop()
}

// Update redraws the view from a session snapshot.
func (v *ProgressView) Update(sess domain.Session) {
	v.app.QueueUpdateDraw(func() {
		title := "waiting for preview..."
		if sess.PreviewMedia != nil {
			title = sess.PreviewMedia.Title
		}
		v.info.SetText(fmt.Sprintf("[::b]%s[-:-:-]\n%s\n\nplatform: %s", title, sess.RawInput, sess.Platform))

		v.bar.SetText(renderBar(sess.ProgressPercent, 40))

		switch sess.State {
		case domain.StateDone:
			if sess.FallbackURL != "" {
				v.status.SetText(fmt.Sprintf("[yellow]server failed; finish manually:[-]\n%s", sess.FallbackURL))
			} else {
				v.status.SetText(fmt.Sprintf("[green]saved to %s[-]\n\npress q to quit", sess.SavedPath))
			}
		case domain.StateFailed:
			v.status.SetText(fmt.Sprintf("[red]%s[-]\n\npress q to quit", sess.LastError))
		case domain.StateDownloading:
			if sess.RetryCount > 0 {
				v.status.SetText(fmt.Sprintf("[yellow]reconnecting (attempt %d)...[-]", sess.RetryCount))
			} else {
				v.status.SetText("downloading...")
			}
		default:
			v.status.SetText(string(sess.State))
		}
	})
}

// renderBar draws a fixed-width text progress bar.
func renderBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := width * percent / 100
	return fmt.Sprintf("[green]%s[gray]%s[-] %3d%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		percent,
	)
}
