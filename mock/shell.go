package mock

import (
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/encodeous/dvbench/state"
)

// exec interprets one shell line. The caller holds net.mu.
func (h *Host) exec(sh string) (string, error) {
	cwd := h.home
	var out strings.Builder
	for _, seg := range splitOn(words(sh), "&&") {
		cmd, alt, fallback := cut(seg, "||")
		o, err := h.run(&cwd, cmd)
		out.WriteString(o)
		if err != nil {
			if fallback && slices.Equal(alt, []string{"true"}) {
				continue
			}
			return out.String(), err
		}
	}
	return out.String(), nil
}

func (h *Host) run(cwd *string, w []string) (string, error) {
	if len(w) == 0 {
		return "", nil
	}
	switch w[0] {
	case "cd":
		*cwd = h.resolve(*cwd, arg(w, 1))
		return "", nil
	case "{":
		return h.launch(*cwd, w[1:])
	case "mkdir":
		return "", nil
	case "rm":
		for _, p := range w[1:] {
			if strings.HasPrefix(p, "-") {
				continue
			}
			p = h.resolve(*cwd, p)
			for f := range h.files {
				if f == p || strings.HasPrefix(f, p+"/") {
					delete(h.files, f)
				}
			}
		}
		return "", nil
	case "command":
		bin := arg(w, 2)
		if h.net.Missing[bin] {
			return "", exitErr(h, w, 1, "")
		}
		return "/usr/bin/" + bin + "\n", nil
	case "cat":
		data, ok := h.files[h.resolve(*cwd, arg(w, 1))]
		if !ok {
			return "", exitErr(h, w, 1, "No such file or directory")
		}
		return string(data), nil
	case "kill":
		pid, err := strconv.Atoi(arg(w, 1))
		if err != nil {
			return "", exitErr(h, w, 1, "illegal pid")
		}
		for _, p := range h.procs {
			if p.Pid == pid && p.Alive {
				p.Alive = false
				return "", nil
			}
		}
		return "", exitErr(h, w, 1, "no such process")
	case "pkill":
		name := w[len(w)-1]
		killed := 0
		for _, p := range h.procs {
			if p.Alive && p.Argv[0] == name {
				p.Alive = false
				killed++
			}
		}
		if killed == 0 {
			return "", exitErr(h, w, 1, "")
		}
		return "", nil
	case "ndnd":
		switch {
		case slices.Equal(w[1:], []string{"fw", "route-list"}):
			return h.routes(state.ForwarderNDNd)
		case arg(w, 1) == "cat":
			return h.fetch(*cwd, w)
		}
	case "nfdc":
		if slices.Equal(w[1:], []string{"route", "list"}) {
			return h.routes(state.ForwarderNFD)
		}
	}
	return "", exitErr(h, w, 127, "command not found")
}

// launch handles `env K=V nohup CMD > LOG 2>&1 < STDIN & echo $!; }`
func (h *Host) launch(cwd string, w []string) (string, error) {
	at := slices.Index(w, "nohup")
	if at == -1 {
		return "", exitErr(h, w, 2, "syntax error")
	}
	env := make(map[string]string)
	if len(w) > 0 && w[0] == "env" {
		for _, kv := range w[1:at] {
			k, v, _ := strings.Cut(kv, "=")
			env[k] = v
		}
	}
	rest := w[at+1:]
	redir := slices.Index(rest, ">")
	if redir < 1 {
		return "", exitErr(h, w, 2, "syntax error")
	}
	p := &Proc{
		Pid:   h.nextPid,
		Argv:  slices.Clone(rest[:redir]),
		Env:   env,
		Alive: true,
	}
	h.nextPid++
	h.procs = append(h.procs, p)
	logPath := h.resolve(cwd, arg(rest, redir+1))
	stdin := "/dev/null"
	if in := slices.Index(rest, "<"); in != -1 {
		stdin = h.resolve(cwd, arg(rest, in+1))
	}

	msg := strings.Join(p.Argv, " ") + " started\n"
	switch {
	case h.net.Missing[p.Argv[0]]:
		p.Alive = false
		msg = fmt.Sprintf("nohup: failed to run command '%s': No such file or directory\n", p.Argv[0])
	case len(p.Argv) >= 3 && p.Argv[1] == "put":
		data, ok := h.files[stdin]
		switch {
		case !ok:
			p.Alive = false
			msg = "error: cannot read input\n"
		case h.forwarder() == "":
			p.Alive = false
			msg = "error: unable to connect to forwarder\n"
		default:
			p.name = p.Argv[len(p.Argv)-1]
			p.data = data
		}
	case slices.Contains(p.Argv, "run") || p.Argv[0] == "nfd":
		cfg := h.resolve(cwd, p.Argv[len(p.Argv)-1])
		if _, ok := h.files[cfg]; !ok {
			p.Alive = false
			msg = fmt.Sprintf("Unable to open configuration file: %s\n", cfg)
		}
	}
	h.files[logPath] = []byte(msg)
	return strconv.Itoa(p.Pid) + "\n", nil
}

// forwarder returns the kind of the forwarder running on the host, if any
func (h *Host) forwarder() string {
	switch {
	case len(h.running("ndnd fw run")) > 0:
		return state.ForwarderNDNd
	case len(h.running("nfd")) > 0:
		return state.ForwarderNFD
	}
	return ""
}

func (h *Host) routing() bool {
	return h.forwarder() != "" && len(h.running("ndnd dv run")) > 0
}

func (h *Host) running(prefix string) []*Proc {
	var out []*Proc
	for _, p := range h.procs {
		if p.Alive && strings.HasPrefix(strings.Join(p.Argv, " "), prefix) {
			out = append(out, p)
		}
	}
	return out
}

// reachable returns the hosts h exchanges routing state with, h first, by hop count
func (h *Host) reachable() ([]*Host, map[*Host]int) {
	dist := map[*Host]int{h: 0}
	if !h.routing() {
		return []*Host{h}, dist
	}
	order := []*Host{h}
	for i := 0; i < len(order); i++ {
		cur := order[i]
		for _, intf := range cur.intfs {
			if !h.net.IgnoreLoss && (intf.loss >= LossThreshold || intf.peer.loss >= LossThreshold) {
				continue
			}
			next := intf.peer.host
			if _, seen := dist[next]; seen || !next.routing() {
				continue
			}
			dist[next] = dist[cur] + 1
			order = append(order, next)
		}
	}
	return order, dist
}

func (h *Host) routes(kind string) (string, error) {
	if h.forwarder() != kind {
		return "", fmt.Errorf("%s: unable to connect to forwarder (exit status 1)", h.name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "prefix=/localhost/nfd nexthop=1 origin=app cost=0 flags={ChildInherit} expires=never\n")
	order, dist := h.reachable()
	origin := "dv"
	if kind == state.ForwarderNFD {
		origin = "nlsr"
	}
	for i, other := range order {
		if other == h {
			continue
		}
		name := state.RoleName(h.net.network, state.NodeId(other.name), h.net.Suffix)
		fmt.Fprintf(&b, "prefix=%s nexthop=%d origin=%s cost=%d flags={} expires=never\n",
			name, 256+i, origin, dist[other])
	}
	return b.String(), nil
}

// fetch handles `ndnd cat NAME > OUT 2> LOG`
func (h *Host) fetch(cwd string, w []string) (string, error) {
	name := arg(w, 2)
	var out, logPath string
	for i, t := range w {
		switch t {
		case ">":
			out = h.resolve(cwd, arg(w, i+1))
		case "2>":
			logPath = h.resolve(cwd, arg(w, i+1))
		}
	}
	fail := func(msg string) (string, error) {
		if logPath != "" {
			h.files[logPath] = []byte(msg + "\n")
		}
		if out != "" {
			h.files[out] = nil
		}
		return "", exitErr(h, w, 1, msg)
	}
	if h.forwarder() == "" {
		return fail("error: unable to connect to forwarder")
	}
	order, _ := h.reachable()
	for _, other := range order {
		for _, p := range other.procs {
			if !p.Alive || p.name != name {
				continue
			}
			data := slices.Clone(p.data)
			if h.net.Corrupt[h.name] {
				if len(data) == 0 {
					data = []byte{0}
				} else {
					data[len(data)/2] ^= 0xff
				}
			}
			if out != "" {
				h.files[out] = data
			}
			if logPath != "" {
				h.files[logPath] = []byte(fmt.Sprintf("fetched %d bytes from %s\n", len(data), name))
			}
			if out == "" {
				return string(data), nil
			}
			return "", nil
		}
	}
	return fail("error: no route to " + name)
}

func (h *Host) resolve(cwd, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(cwd, p)
}

func exitErr(h *Host, w []string, code int, stderr string) error {
	return fmt.Errorf("%s: %q exited with code %d: %s", h.name, strings.Join(w, " "), code, stderr)
}

func arg(w []string, i int) string {
	if i < len(w) {
		return w[i]
	}
	return ""
}

// words splits a shell line into words, honouring single quotes and backslash escapes
func words(s string) []string {
	var out []string
	var cur strings.Builder
	inWord, quoted := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quoted:
			if c == '\'' {
				quoted = false
			} else {
				cur.WriteByte(c)
			}
		case c == '\'':
			quoted, inWord = true, true
		case c == '\\' && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
			inWord = true
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				out = append(out, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteByte(c)
			inWord = true
		}
	}
	if inWord {
		out = append(out, cur.String())
	}
	return out
}

func splitOn(w []string, sep string) [][]string {
	var out [][]string
	start := 0
	for i, t := range w {
		if t == sep {
			out = append(out, w[start:i])
			start = i + 1
		}
	}
	return append(out, w[start:])
}

func cut(w []string, sep string) (before, after []string, found bool) {
	if i := slices.Index(w, sep); i != -1 {
		return w[:i], w[i+1:], true
	}
	return w, nil, false
}
