package source

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nxadm/tail"

	"github.com/charliek/logdog/internal/domain"
)

// TailRunner follows a growing file from its start, like tail -f. The
// config Cmd is the path.
type TailRunner struct {
	// Poll uses polling instead of inotify
	Poll bool
}

// NewTailRunner creates a new TailRunner
func NewTailRunner() *TailRunner {
	return &TailRunner{}
}

// Start begins tailing the file
func (r *TailRunner) Start(_ context.Context, config domain.SourceConfig) (Process, error) {
	t, err := tail.TailFile(config.Cmd, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Poll:      r.Poll,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("tailing log file: %w", err)
	}

	pr, pw := io.Pipe()
	p := &tailProcess{t: t, pr: pr, pw: pw, done: make(chan struct{})}
	go p.pump()
	return p, nil
}

// tailProcess turns the tail line channel back into a byte stream
type tailProcess struct {
	t    *tail.Tail
	pr   *io.PipeReader
	pw   *io.PipeWriter
	done chan struct{}
	once sync.Once
}

// pump keeps draining Lines after the reader goes away so the tailer
// never blocks on a send while Stop waits for it.
func (p *tailProcess) pump() {
	defer close(p.done)
	var werr error
	for line := range p.t.Lines {
		if werr != nil {
			continue
		}
		if line.Err != nil {
			werr = line.Err
			p.pw.CloseWithError(line.Err)
			continue
		}
		_, werr = io.WriteString(p.pw, line.Text+"\n")
	}
	p.pw.Close()
}

func (p *tailProcess) Stdout() io.Reader {
	return p.pr
}

func (p *tailProcess) Wait() error {
	<-p.done
	return nil
}

func (p *tailProcess) Kill() error {
	var err error
	p.once.Do(func() {
		p.pr.Close()
		err = p.t.Stop()
		p.t.Cleanup()
	})
	return err
}
