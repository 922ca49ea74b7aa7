package modules

import (
	"github.com/kingrea/loom/internal/module"
	"github.com/kingrea/loom/internal/modules/approver"
	"github.com/kingrea/loom/internal/modules/recorder"
	"github.com/kingrea/loom/internal/modules/staticcontext"
)

// RegisterBuiltins installs all of the built-in module factories into the
// provided registry.
func RegisterBuiltins(reg *module.Registry) {
	if reg == nil {
		return
	}
	recorder.Register(reg)
	staticcontext.Register(reg)
	approver.Register(reg)
}
