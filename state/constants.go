package state

import "time"

const (
	DefaultNetwork    = "/minindn"
	DefaultRoleSuffix = "32=DV"
	DefaultRootPath   = "/tmp/mn-dv-root"
	DefaultHomeRoot   = "/tmp/minindn"
	DefaultSocketDir  = "/run/nfd"
	DefaultImage      = "dvbench-node:latest"
	DefaultSubnet     = "10.77.0.0/16"
	// DefaultPort is the UDP port forwarders listen on for neighbor faces.
	DefaultPort = 6363
)

var (
	ConvergeDeadline = 30 * time.Second
	ConvergeInterval = 1 * time.Second
	// SettleDelay gives forwarders time to open their sockets before routers connect.
	SettleDelay   = 1 * time.Second
	PublishGrace  = 30 * time.Second
	PayloadSize   = 10 << 20
	MaxSample     = 8
	IsolationLoss = 99.99
	RestoreLoss   = 0.0001
)

const (
	KindFileTransfer = "file-transfer"
	KindLateJoin     = "late-join"

	RoutesPlain    = "plain"
	RoutesSuffixed = "suffixed"

	ForwarderNDNd = "ndnd"
	ForwarderNFD  = "nfd"
)
