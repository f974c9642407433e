// Package subprotocols fixes the canonical handler set of the anchor state
// machine. The registration order here is consensus relevant: it determines
// log ordering and message delivery order within a block.
package subprotocols

import (
	"anchorsm.dev/node/stf"
	"anchorsm.dev/node/subprotocols/admin"
	"anchorsm.dev/node/subprotocols/bridge"
	"anchorsm.dev/node/subprotocols/checkpoint"
	"anchorsm.dev/node/subprotocols/debug"
	"anchorsm.dev/node/subprotocols/upgrade"
)

// Registry returns fresh handler instances in canonical order. Each block
// transition attempt gets its own set; handlers are never shared between
// attempts.
func Registry() []stf.Subprotocol {
	return []stf.Subprotocol{
		bridge.New(),
		checkpoint.New(),
		admin.New(),
		upgrade.New(),
		debug.New(),
	}
}
