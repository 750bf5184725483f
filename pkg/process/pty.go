package process

import (
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creack/pty"
	"go.uber.org/zap"
)

// drainTimeout bounds how long Wait lets buffered output reach the handler
// after the child has exited
const drainTimeout = 2 * time.Second

// PTYManager handles PTY-based process execution
type PTYManager struct {
	cmd         *exec.Cmd
	pty         *os.File
	logger      *zap.Logger
	mu          sync.Mutex
	stopChan    chan struct{}
	outputDone  chan struct{}
	wg          sync.WaitGroup
	restoreFunc func()
}

// Ensure PTYManager implements PTY
var _ PTY = (*PTYManager)(nil)

// NewPTYManager creates a new PTY manager
func NewPTYManager(logger *zap.Logger) *PTYManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PTYManager{
		logger:     logger,
		stopChan:   make(chan struct{}),
		outputDone: make(chan struct{}),
	}
}

// Start starts a process with PTY
func (p *PTYManager) Start(command string, args []string, env []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return ErrAlreadyStarted
	}

	p.cmd = exec.Command(command, args...)
	p.cmd.Env = env

	var err error
	p.pty, err = pty.Start(p.cmd)
	if err != nil {
		p.cmd = nil
		return errors.Wrap(err, "failed to start PTY")
	}

	// Some environments have no terminal to copy from
	if err := p.copyTerminalSize(); err != nil {
		p.logger.Debug("failed to copy terminal size", zap.Error(err))
	}

	p.wg.Add(1)
	go p.monitorTerminalSize()

	return nil
}

// GetPTY returns the PTY file descriptor
func (p *PTYManager) GetPTY() *os.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pty
}

// Wait waits for the process to complete, then up to drainTimeout for
// CopyIO to read the output left in the PTY
func (p *PTYManager) Wait() error {
	if p.cmd == nil {
		return ErrNotStarted
	}

	err := p.cmd.Wait()

	close(p.stopChan)
	p.wg.Wait()

	select {
	case <-p.outputDone:
	case <-time.After(drainTimeout):
		p.logger.Debug("timed out draining PTY output")
	}

	p.mu.Lock()
	if p.pty != nil {
		_ = p.pty.Close()
	}
	p.mu.Unlock()

	return err
}

// ProcessState returns the process state
func (p *PTYManager) ProcessState() *os.ProcessState {
	if p.cmd == nil {
		return nil
	}
	return p.cmd.ProcessState
}

// Process returns the underlying process
func (p *PTYManager) Process() *os.Process {
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Process
}

// Stop restores the terminal state
func (p *PTYManager) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.restoreFunc != nil {
		p.restoreFunc()
		p.restoreFunc = nil
	}

	return nil
}

// copyTerminalSize copies the terminal size from stdin to the PTY
func (p *PTYManager) copyTerminalSize() error {
	size, err := pty.GetsizeFull(os.Stdin)
	if err != nil {
		return err
	}

	return pty.Setsize(p.pty, size)
}

// monitorTerminalSize follows SIGWINCH until the child exits
func (p *PTYManager) monitorTerminalSize() {
	defer p.wg.Done()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGWINCH)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-sigChan:
			p.mu.Lock()
			if p.pty != nil {
				if err := p.copyTerminalSize(); err != nil {
					p.logger.Debug("failed to resize PTY", zap.Error(err))
				}
			}
			p.mu.Unlock()
		case <-p.stopChan:
			return
		}
	}
}

// CopyIO copies stdin into the PTY and the PTY into stdout. It returns once
// the child's output is exhausted; the stdin copy is left to end with the
// process
func (p *PTYManager) CopyIO(stdin io.Reader, stdout io.Writer, outputHandler func([]byte), inputHandler func()) error {
	p.mu.Lock()
	if p.pty == nil {
		p.mu.Unlock()
		return errors.New("PTY not initialized")
	}
	ptmx := p.pty
	p.mu.Unlock()
	defer close(p.outputDone)

	if file, ok := stdin.(*os.File); ok {
		if restore, err := setRawMode(int(file.Fd())); err == nil {
			p.mu.Lock()
			p.restoreFunc = restore
			p.mu.Unlock()
			defer func() {
				p.mu.Lock()
				if p.restoreFunc != nil {
					p.restoreFunc()
					p.restoreFunc = nil
				}
				p.mu.Unlock()
			}()
		}
	}

	go func() {
		var reader io.Reader = stdin
		if inputHandler != nil {
			reader = &inputReader{reader: stdin, handler: inputHandler}
		}
		if _, err := io.Copy(ptmx, reader); err != nil && !endOfPTY(err) {
			p.logger.Debug("stdin copy error", zap.Error(err))
		}
	}()

	var reader io.Reader = ptmx
	if outputHandler != nil {
		reader = &outputReader{reader: ptmx, handler: outputHandler}
	}
	if _, err := io.Copy(stdout, reader); err != nil {
		return errors.Wrap(err, "stdout copy error")
	}
	return nil
}

// outputReader wraps a reader and calls a handler for each chunk of data
type outputReader struct {
	reader  io.Reader
	handler func([]byte)
}

func (r *outputReader) Read(p []byte) (n int, err error) {
	n, err = r.reader.Read(p)
	if n > 0 && r.handler != nil {
		r.handler(p[:n])
	}
	return n, err
}

// inputReader wraps a reader and calls a handler when input is detected
type inputReader struct {
	reader  io.Reader
	handler func()
}

func (r *inputReader) Read(p []byte) (n int, err error) {
	n, err = r.reader.Read(p)
	if n > 0 && r.handler != nil {
		r.handler()
	}
	return n, err
}
