// Package proc supervises daemons running on emulated hosts
package proc

import (
	"context"
	"fmt"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/encodeous/dvbench/emu"
)

// Spec describes how to launch a daemon. Dir defaults to the host's home directory,
// Stdin to /dev/null. LogFile is relative to Dir unless absolute.
type Spec struct {
	Command string
	Dir     string
	LogFile string
	Stdin   string
	Env     map[string]string
}

type Process struct {
	host emu.Host
	pid  int
	log  string
	name string

	mu      sync.Mutex
	stopped bool
}

// Launch renders the shell line that starts spec in the background and prints its pid
func Launch(spec Spec, home string) string {
	dir := spec.Dir
	if dir == "" {
		dir = home
	}
	stdin := spec.Stdin
	if stdin == "" {
		stdin = "/dev/null"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "cd %s && { ", Quote(dir))
	if len(spec.Env) > 0 {
		b.WriteString("env")
		for _, k := range slices.Sorted(maps.Keys(spec.Env)) {
			b.WriteString(" " + Quote(k+"="+spec.Env[k]))
		}
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "nohup %s > %s 2>&1 < %s & echo $!; }", spec.Command, Quote(spec.LogFile), Quote(stdin))
	return b.String()
}

// Start launches spec on host and returns once the daemon has been forked
func Start(ctx context.Context, host emu.Host, spec Spec) (*Process, error) {
	if spec.LogFile == "" {
		return nil, fmt.Errorf("%s: log file must be set for %q", host.Name(), spec.Command)
	}
	out, err := host.Cmd(ctx, Launch(spec, host.HomeDir()))
	if err != nil {
		return nil, fmt.Errorf("%s: start %q: %w", host.Name(), spec.Command, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return nil, fmt.Errorf("%s: start %q: unexpected pid %q", host.Name(), spec.Command, out)
	}
	logPath := spec.LogFile
	if !path.IsAbs(logPath) {
		dir := spec.Dir
		if dir == "" {
			dir = host.HomeDir()
		}
		logPath = path.Join(dir, logPath)
	}
	name, _, _ := strings.Cut(spec.Command, " ")
	return &Process{host: host, pid: pid, log: logPath, name: name}, nil
}

func (p *Process) Pid() int        { return p.pid }
func (p *Process) Host() emu.Host  { return p.host }
func (p *Process) LogPath() string { return p.log }
func (p *Process) String() string  { return fmt.Sprintf("%s[%d]@%s", p.name, p.pid, p.host.Name()) }
func (p *Process) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Stop kills the daemon. Stopping an already stopped or exited process is not an error.
func (p *Process) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	if _, err := p.host.Cmd(ctx, fmt.Sprintf("kill %d 2>/dev/null || true", p.pid)); err != nil {
		return fmt.Errorf("stop %s: %w", p, err)
	}
	p.stopped = true
	return nil
}

// Logs returns everything the daemon wrote so far
func (p *Process) Logs(ctx context.Context) (string, error) {
	data, err := p.host.ReadFile(ctx, p.log)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Tail returns the last n lines of the daemon log
func (p *Process) Tail(ctx context.Context, n int) (string, error) {
	logs, err := p.Logs(ctx)
	if err != nil {
		return "", err
	}
	return TailLines(logs, n), nil
}

func TailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Kill force-kills every process with one of the given names on host
func Kill(ctx context.Context, host emu.Host, names ...string) error {
	for _, name := range names {
		if _, err := host.Cmd(ctx, fmt.Sprintf("pkill -9 %s || true", Quote(name))); err != nil {
			return fmt.Errorf("%s: pkill %s: %w", host.Name(), name, err)
		}
	}
	return nil
}

// Quote single-quotes s for sh
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
