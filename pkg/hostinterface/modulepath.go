//go:build cgo

package hostinterface

/*
#cgo linux LDFLAGS: -ldl

#ifdef _WIN32
#define WIN32_LEAN_AND_MEAN
#include <windows.h>

static int vr_module_path(char *buf, int size) {
	HMODULE mod = NULL;
	DWORD flags = GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS | GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT;
	if (!GetModuleHandleExA(flags, (LPCSTR)&vr_module_path, &mod)) {
		return 0;
	}
	DWORD n = GetModuleFileNameA(mod, buf, (DWORD)size);
	return (n == 0 || n >= (DWORD)size) ? 0 : (int)n;
}
#else
#define _GNU_SOURCE
#include <dlfcn.h>
#include <string.h>

static int vr_module_path(char *buf, int size) {
	Dl_info info;
	if (dladdr((void *)&vr_module_path, &info) == 0 || info.dli_fname == NULL) {
		return 0;
	}
	size_t n = strlen(info.dli_fname);
	if (n >= (size_t)size) {
		return 0;
	}
	memcpy(buf, info.dli_fname, n + 1);
	return (int)n;
}
#endif
*/
import "C"

import (
	"os"
	"path/filepath"
	"unsafe"
)

const maxModulePath = 4096

// ModulePath returns the file the module was loaded from, falling back to
// the host executable.
func ModulePath() string {
	buf := make([]byte, maxModulePath)
	n := C.vr_module_path((*C.char)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
	if n > 0 {
		return string(buf[:n])
	}
	exe, _ := os.Executable()
	return exe
}

// ModuleDir is the directory holding the module, where config and output
// paths are resolved from.
func ModuleDir() string {
	return filepath.Dir(ModulePath())
}
