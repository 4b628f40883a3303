package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"entryway/internal/pipeline"
)

// cliObserver renders stage transitions for a terminal. Byte-transport
// stages get a live progress bar when stdout is a TTY; everything else is
// plain line output so piped runs stay readable.
type cliObserver struct {
	out         io.Writer
	interactive bool

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	barStage pipeline.StageKey
}

func newCLIObserver(out io.Writer) *cliObserver {
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &cliObserver{out: out, interactive: interactive}
}

func (o *cliObserver) StageTransition(update pipeline.StageUpdate) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch update.Status {
	case pipeline.StageActive:
		if o.barStage != update.Stage {
			o.beginStage(update)
			return
		}
		if o.bar != nil {
			_ = o.bar.Set(update.Percent)
		}
	case pipeline.StageCompleted:
		o.endStage(update, "done")
	case pipeline.StageFailed:
		o.endStage(update, "failed")
	}
}

func (o *cliObserver) beginStage(update pipeline.StageUpdate) {
	o.barStage = update.Stage
	label := stageLabel(update.Stage)
	if update.FileName != "" {
		label = fmt.Sprintf("%s (%s, %s)", label, update.FileName, humanize.IBytes(uint64(update.FileSize)))
	}

	if o.interactive && update.Stage.ByteTransport() {
		o.bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWriter(o.out),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetWidth(30),
		)
		return
	}
	fmt.Fprintf(o.out, "%s...\n", label)
}

func (o *cliObserver) endStage(update pipeline.StageUpdate, outcome string) {
	if o.bar != nil && o.barStage == update.Stage {
		_ = o.bar.Finish()
		o.bar = nil
	}
	o.barStage = ""
	fmt.Fprintf(o.out, "%s: %s\n", stageLabel(update.Stage), outcome)
}

func stageLabel(key pipeline.StageKey) string {
	switch key {
	case pipeline.StagePreparing:
		return "preparing run"
	case pipeline.StageVideo:
		return "uploading video"
	case pipeline.StageThumbnail:
		return "uploading thumbnail"
	case pipeline.StageProofImages:
		return "uploading proof images"
	case pipeline.StageSubmission:
		return "registering submission"
	default:
		return string(key)
	}
}
