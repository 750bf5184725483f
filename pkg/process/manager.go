package process

import (
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/nakkulla/teams-notify/pkg/interfaces"
)

// WrappedEnv is set in the child environment to detect self-wrapping
const WrappedEnv = "TEAMS_NOTIFY_WRAPPED"

// exitInterrupted is the shell convention for a child stopped by SIGINT
const exitInterrupted = 128 + int(syscall.SIGINT)

// Manager manages the wrapped command
type Manager struct {
	ptyManager    PTY
	outputHandler interfaces.DataHandler
	inputHandler  func()
	logger        *zap.Logger
	stdin         io.Reader
	stdout        io.Writer

	exitCode    int
	interrupted atomic.Bool
	mu          sync.Mutex
	sigChan     chan os.Signal
	done        chan struct{}
}

// NewManager creates a new process manager
func NewManager(outputHandler interfaces.DataHandler, inputHandler func(), logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		ptyManager:    NewPTYManager(logger),
		outputHandler: outputHandler,
		inputHandler:  inputHandler,
		logger:        logger,
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		done:          make(chan struct{}),
	}
}

// SetIO replaces the terminal streams the child is attached to
func (m *Manager) SetIO(stdin io.Reader, stdout io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stdin = stdin
	m.stdout = stdout
}

// Start starts the command
func (m *Manager) Start(command string, args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if os.Getenv(WrappedEnv) == "1" {
		return ErrAlreadyWrapped
	}

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, WrappedEnv+"=") {
			env = append(env, e)
		}
	}
	env = append(env, WrappedEnv+"=1")

	if err := m.ptyManager.Start(command, args, env); err != nil {
		return errors.Wrap(err, "failed to start process")
	}

	stdin, stdout := m.stdin, m.stdout
	go func() {
		var handler func([]byte)
		if m.outputHandler != nil {
			handler = m.outputHandler.HandleData
		}
		if err := m.ptyManager.CopyIO(stdin, stdout, handler, m.inputHandler); err != nil && !endOfPTY(err) {
			m.logger.Warn("I/O error", zap.Error(err))
		}
	}()

	m.setupSignalForwarding()

	return nil
}

// endOfPTY reports the errors a PTY read returns once the child side is gone
func endOfPTY(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}

// Wait waits for the process to exit. A non-zero exit is not an error;
// consult ExitCode
func (m *Manager) Wait() error {
	if m.ptyManager == nil || m.ptyManager.Process() == nil {
		return ErrNotStarted
	}

	err := m.ptyManager.Wait()

	m.mu.Lock()
	if ps := m.ptyManager.ProcessState(); ps != nil {
		m.exitCode = ps.ExitCode()
		if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			m.exitCode = 128 + int(ws.Signal())
		}
		if m.exitCode == exitInterrupted {
			m.interrupted.Store(true)
		}
		err = nil
	}
	m.mu.Unlock()

	// Ensure terminal is restored
	_ = m.ptyManager.Stop()

	close(m.done)
	m.cleanupSignals()

	return err
}

// ExitCode returns the exit code of the process. A child killed by a
// signal reports 128 plus the signal number
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// Interrupted reports whether the run was stopped with SIGINT, either
// forwarded by us or delivered through the terminal
func (m *Manager) Interrupted() bool {
	return m.interrupted.Load()
}

// setupSignalForwarding sets up signal forwarding to the child process
func (m *Manager) setupSignalForwarding() {
	m.sigChan = make(chan os.Signal, 1)
	signal.Notify(m.sigChan,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGQUIT,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	)

	go m.forwardSignals()
}

// forwardSignals forwards signals to the child process
func (m *Manager) forwardSignals() {
	for {
		select {
		case sig, ok := <-m.sigChan:
			if !ok {
				return
			}
			if sig == syscall.SIGINT {
				m.interrupted.Store(true)
			}
			if p := m.ptyManager.Process(); p != nil {
				if err := p.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
					m.logger.Warn("signal forward error", zap.Stringer("signal", sig), zap.Error(err))
				}
			}
		case <-m.done:
			return
		}
	}
}

// cleanupSignals stops signal forwarding
func (m *Manager) cleanupSignals() {
	if m.sigChan != nil {
		signal.Stop(m.sigChan)
	}
}

// Stop gracefully stops the manager and cleans up resources
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ptyManager != nil {
		_ = m.ptyManager.Stop()

		if p := m.ptyManager.Process(); p != nil {
			// SIGTERM first, kill if that fails
			if err := p.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return p.Kill()
			}
		}
	}

	return nil
}
