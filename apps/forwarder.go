package apps

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"text/template"

	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/proc"
	"github.com/encodeous/dvbench/state"
	"github.com/goccy/go-yaml"
)

type ForwarderKind string

const (
	NDNd ForwarderKind = state.ForwarderNDNd
	NFD  ForwarderKind = state.ForwarderNFD
)

func ParseForwarderKind(s string) (ForwarderKind, error) {
	switch k := ForwarderKind(s); k {
	case NDNd, NFD:
		return k, nil
	}
	return "", fmt.Errorf("unknown forwarder %q", s)
}

// RouteCommand lists the routes known to the forwarder
func (k ForwarderKind) RouteCommand() string {
	if k == NFD {
		// NFD status datasets carry no FinalBlockId, which `ndnd fw` cannot page through
		return "nfdc route list"
	}
	return "ndnd fw route-list"
}

// ProcessName is the name the forwarder runs under
func (k ForwarderKind) ProcessName() string {
	return string(k)
}

func (k ForwarderKind) LogFile() string {
	if k == NFD {
		return "nfd.log"
	}
	return "yanfd.log"
}

type ForwarderOptions struct {
	Level   string
	Threads int
	// Sockets is the directory holding the unix socket of every forwarder
	Sockets string
	Port    int
}

type Forwarder struct {
	Daemon
	Kind   ForwarderKind
	Config string
	Socket string
}

type yanfdConfig struct {
	Core struct {
		LogLevel string `yaml:"log_level"`
	} `yaml:"core"`
	Faces struct {
		Unix struct {
			SocketPath string `yaml:"socket_path"`
		} `yaml:"unix"`
	} `yaml:"faces"`
	Fw struct {
		Threads int `yaml:"threads"`
	} `yaml:"fw"`
}

var nfdConfig = template.Must(template.New("nfd.conf").Parse(`general
{
}

log
{
  default_level {{.Level}}
}

tables
{
  cs_max_packets 65536

  strategy_choice
  {
    /               /localhost/nfd/strategy/best-route
    /localhost      /localhost/nfd/strategy/multicast
    /localhop       /localhost/nfd/strategy/multicast
  }
}

face_system
{
  unix
  {
    path {{.Socket}}
  }

  udp
  {
    listen yes
    port {{.Port}}
    enable_v4 yes
    enable_v6 no
    mcast no
  }

  tcp
  {
    listen no
  }

  ether
  {
    mcast no
  }
}

authorizations
{
  authorize
  {
    certfile any
    privileges
    {
      faces
      fib
      cs
      strategy-choice
    }
  }
}

rib
{
  localhost_security
  {
    trust-anchor
    {
      type any
    }
  }
}
`))

// NewForwarder writes the forwarder configuration and the client transport
// configuration on host. The forwarder is not started.
func NewForwarder(ctx context.Context, kind ForwarderKind, host emu.Host, opts ForwarderOptions) (*Forwarder, error) {
	if err := RequireBinary(ctx, host, kind.ProcessName()); err != nil {
		return nil, err
	}
	home := host.HomeDir()
	f := &Forwarder{
		Kind:   kind,
		Socket: path.Join(opts.Sockets, host.Name()+".sock"),
	}

	var data []byte
	switch kind {
	case NDNd:
		cfg := yanfdConfig{}
		cfg.Core.LogLevel = opts.Level
		cfg.Faces.Unix.SocketPath = f.Socket
		cfg.Fw.Threads = opts.Threads
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		data = out
		f.Config = path.Join(home, "yanfd.yml")
		f.Spec = proc.Spec{
			Command: "ndnd fw run " + proc.Quote(f.Config),
			Env:     map[string]string{"GOMAXPROCS": strconv.Itoa(opts.Threads)},
		}
	case NFD:
		buf := new(bytes.Buffer)
		err := nfdConfig.Execute(buf, struct {
			Level  string
			Socket string
			Port   int
		}{opts.Level, f.Socket, opts.Port})
		if err != nil {
			return nil, err
		}
		data = buf.Bytes()
		f.Config = path.Join(home, "nfd.conf")
		f.Spec = proc.Spec{
			Command: "nfd --config " + proc.Quote(f.Config),
		}
	default:
		return nil, fmt.Errorf("unknown forwarder %q", kind)
	}
	f.Host = host
	f.Spec.Dir = home
	f.Spec.LogFile = kind.LogFile()

	if err := host.WriteFile(ctx, f.Config, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s on %s: %w", f.Config, host.Name(), err)
	}
	// data-plane tools on the node pick the forwarder up through this file
	clientConf := fmt.Sprintf("transport=unix://%s\n", f.Socket)
	if err := host.WriteFile(ctx, path.Join(home, ".ndn", "client.conf"), []byte(clientConf), 0o644); err != nil {
		return nil, fmt.Errorf("write client.conf on %s: %w", host.Name(), err)
	}
	return f, nil
}
