package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gosuri/uiprogress"
	"github.com/mattn/go-isatty"
)

// progressBar draws graph build progress on a terminal. It stays silent when
// the writer is not a terminal so piped output is not polluted.
type progressBar struct {
	out     io.Writer
	enabled bool
	ui      *uiprogress.Progress
	bar     *uiprogress.Bar

	mu      sync.Mutex
	current string
}

func newProgressBar(out io.Writer, wanted bool) *progressBar {
	return &progressBar{out: out, enabled: wanted && isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// update matches graph.ProgressFunc. The bar is created on the first call
// because the table count is only known once the build starts.
func (p *progressBar) update(done, total int, table string) {
	if !p.enabled {
		return
	}
	if p.bar == nil {
		p.ui = uiprogress.New()
		p.ui.SetOut(p.out)
		p.bar = p.ui.AddBar(total).AppendCompleted().PrependElapsed()
		p.bar.PrependFunc(func(b *uiprogress.Bar) string {
			p.mu.Lock()
			defer p.mu.Unlock()
			return fmt.Sprintf("%-24.24s", p.current)
		})
		p.ui.Start()
	}
	p.mu.Lock()
	p.current = table
	p.mu.Unlock()
	_ = p.bar.Set(done)
}

func (p *progressBar) stop() {
	if p.ui != nil {
		p.ui.Stop()
		p.ui = nil
	}
}
