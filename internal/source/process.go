package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
	"github.com/oszuidwest/zwfm-levelmeter/internal/util"
)

// Process is a Source reading raw samples from a subprocess's stdout.
type Process struct {
	*Stream
	cmd    *exec.Cmd
	cancel context.CancelFunc
	once   sync.Once
}

// StartProcess starts name with args and streams its stdout.
// A clean exit ends the stream with io.EOF; a failed exit reports the last
// line the process wrote to stderr.
func StartProcess(name string, args []string, cfg StreamConfig) (*Process, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, name, args...)

	// Interrupt first so capture tools can flush, then kill after WaitDelay.
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}
	cmd.WaitDelay = types.ShutdownTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, util.WrapError("create stdout pipe", err)
	}

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	slog.Info("starting sample source", "command", name, "args", args)

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, util.WrapError("start "+name, err)
	}

	p := &Process{cmd: cmd, cancel: cancel}
	finish := func(readErr error) error {
		waitErr := cmd.Wait()
		if waitErr != nil {
			if msg := util.ExtractLastError(stderrBuf.String()); msg != "" {
				return fmt.Errorf("%s exited: %w: %s", name, waitErr, msg)
			}
			return fmt.Errorf("%s exited: %w", name, waitErr)
		}
		return readErr
	}

	p.Stream = newStream(stdout, cfg, finish, nil)
	return p, nil
}

// Close interrupts the process and waits for it to exit.
func (p *Process) Close() error {
	p.once.Do(func() {
		p.cancel()
		<-p.Stream.done
	})
	return p.Stream.Close()
}
