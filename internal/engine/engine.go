// Package engine selects a concrete interfaces.TransferEngine by
// configuration tag.
package engine

import (
	"fmt"

	"github.com/joshgermon/bksd/internal/config"
	"github.com/joshgermon/bksd/internal/engine/native"
	"github.com/joshgermon/bksd/internal/engine/rsync"
	"github.com/joshgermon/bksd/internal/engine/simulated"
	"github.com/joshgermon/bksd/internal/interfaces"
)

// New builds the transfer engine named by kind.
func New(kind config.EngineKind) (interfaces.TransferEngine, error) {
	switch kind {
	case config.EngineNativeCopy:
		return native.New(), nil
	case config.EngineRsync:
		return rsync.New(), nil
	case config.EngineSimulated:
		return simulated.New(), nil
	default:
		return nil, fmt.Errorf("engine: unrecognised transfer_engine %q", kind)
	}
}
