package main

import (
	"io"
	"time"

	bars "github.com/jedib0t/go-pretty/v6/progress"
)

// transferBar renders a byte-count bar on terminals and stays silent
// elsewhere.
type transferBar struct {
	writer  bars.Writer
	tracker *bars.Tracker
}

func newTransferBar(out io.Writer, label string, total int64) *transferBar {
	if !shouldColorize(out) {
		return &transferBar{}
	}
	pw := bars.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(true)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(bars.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Speed = true

	tracker := &bars.Tracker{Message: label, Total: total, Units: bars.UnitsBytes}
	pw.AppendTracker(tracker)
	go pw.Render()
	return &transferBar{writer: pw, tracker: tracker}
}

func (b *transferBar) set(done int64) {
	if b.tracker != nil {
		b.tracker.SetValue(done)
	}
}

func (b *transferBar) setWithTotal(done, total int64) {
	if b.tracker == nil {
		return
	}
	if total > 0 && b.tracker.Total != total {
		b.tracker.UpdateTotal(total)
	}
	b.tracker.SetValue(done)
}

func (b *transferBar) finish(err error) {
	if b.tracker == nil {
		return
	}
	if err != nil {
		b.tracker.MarkAsErrored()
	} else {
		b.tracker.MarkAsDone()
	}
	for b.writer.IsRenderInProgress() {
		time.Sleep(50 * time.Millisecond)
	}
}
