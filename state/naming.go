package state

import "strings"

type NodeId string

// Identity is the routable name of a node, e.g. /minindn/a
func Identity(network string, node NodeId) string {
	return strings.TrimSuffix(network, "/") + "/" + string(node)
}

// RoleName qualifies a node identity with a role component, e.g. /minindn/a/32=DV
func RoleName(network string, node NodeId, suffix string) string {
	if suffix == "" {
		return Identity(network, node)
	}
	return Identity(network, node) + "/" + strings.Trim(suffix, "/")
}
