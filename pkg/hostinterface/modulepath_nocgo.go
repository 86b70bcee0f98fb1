//go:build !cgo

package hostinterface

import (
	"os"
	"path/filepath"
)

// ModulePath returns the host executable when built without cgo.
func ModulePath() string {
	exe, _ := os.Executable()
	return exe
}

func ModuleDir() string {
	return filepath.Dir(ModulePath())
}
