package ui

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

const progressTemplate = `{{ cycle . "|" "/" "-" "\\" }} {{ string . "phase" }} {{ counters . }} listings {{ etime . }}`

// Progress is a listing counter drawn on stderr while a crawl runs. The zero
// value and a nil pointer are no-ops, so callers need not check whether the
// terminal supports it.
type Progress struct {
	bar *pb.ProgressBar
}

// NewProgress starts a counter on w when w is a terminal.
func (u *UI) NewProgress(w io.Writer) *Progress {
	if w == nil || !IsTTY(w) {
		return &Progress{}
	}
	bar := pb.New(0)
	bar.SetWriter(w)
	bar.SetTemplateString(progressTemplate)
	bar.Set("phase", "crawling")
	bar.Start()
	return &Progress{bar: bar}
}

func (p *Progress) Increment() {
	if p == nil || p.bar == nil {
		return
	}
	p.bar.Increment()
}

func (p *Progress) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	p.bar.Set("phase", "done")
	p.bar.Finish()
}
