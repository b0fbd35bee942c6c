package modules

import (
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/modules/bootloader"
	"github.com/kingrea/overview/internal/modules/network"
	"github.com/kingrea/overview/internal/modules/security"
	"github.com/kingrea/overview/internal/modules/software"
	"github.com/kingrea/overview/internal/modules/storage"
)

// RegisterBuiltins installs all of the built-in module factories into the
// provided registry.
func RegisterBuiltins(reg *module.Registry) {
	if reg == nil {
		return
	}
	storage.Register(reg)
	bootloader.Register(reg)
	software.Register(reg)
	network.Register(reg)
	security.Register(reg)
}
