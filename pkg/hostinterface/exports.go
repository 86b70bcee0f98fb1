//go:build cgo

package hostinterface

/*
#include <stdlib.h>
#include <string.h>

typedef struct {
	float origin[3];
	float angles[3];
	int   viewport[4];
	int   next_view;
	int   only_client_draw;
	int   view_entity;
	int   max_clients;
} vr_ref_params;
*/
import "C"

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/pipeline"
	"github.com/hlvr/vrcore/internal/vrmath"
)

// called by the engine once while loading the module
//
//export VR_Version
func VR_Version(output *C.char, outputsize C.size_t) {
	writeReply(Version(), output, outputsize)
}

//export VR_CalcRefdef
func VR_CalcRefdef(p *C.vr_ref_params) C.int {
	if p == nil {
		return C.int(pipeline.ViewDefault)
	}
	params := refParamsFromC(p)
	result := CalcRefdef(&params)
	refParamsToC(&params, p)
	return C.int(result)
}

//export VR_DrawNormal
func VR_DrawNormal() { DrawNormal() }

//export VR_DrawTransparent
func VR_DrawTransparent() { DrawTransparent() }

//export VR_InterceptHUDRedraw
func VR_InterceptHUDRedraw(time C.float, intermission C.int) {
	InterceptHUDRedraw(float32(time), int(intermission))
}

//export VR_Frame
func VR_Frame(time C.double) { Frame(float64(time)) }

// fills curls with five finger values and returns 1, or returns 0 when the
// engine should animate the hand
//
//export VR_HandSkeletalData
func VR_HandSkeletalData(model *C.char, isLeft C.int, curls *C.float) C.int {
	values, ok := HandSkeletalData(C.GoString(model), isLeft != 0)
	if !ok || curls == nil {
		return 0
	}
	out := unsafe.Slice((*float32)(unsafe.Pointer(curls)), len(values))
	copy(out, values[:])
	return 1
}

// called by the server for a client command split into name and arguments
//
//export VR_ServerCommand
func VR_ServerCommand(output *C.char, outputsize C.size_t, player C.int, input *C.char, argv **C.char, argc C.int) {
	reply := ServerCommand(int(player), C.GoString(input), argsFromC(argv, argc))
	writeReply(reply, output, outputsize)
}

// called by the server with the raw console line
//
//export VR_ServerCommandLine
func VR_ServerCommandLine(output *C.char, outputsize C.size_t, player C.int, line *C.char) {
	writeReply(ServerCommandLine(int(player), C.GoString(line)), output, outputsize)
}

func refParamsFromC(p *C.vr_ref_params) pipeline.RefParams {
	return pipeline.RefParams{
		ViewOrigin: mgl32.Vec3{float32(p.origin[0]), float32(p.origin[1]), float32(p.origin[2])},
		ViewAngles: vrmath.Angles{
			Pitch: float32(p.angles[0]),
			Yaw:   float32(p.angles[1]),
			Roll:  float32(p.angles[2]),
		},
		Viewport:       [4]int{int(p.viewport[0]), int(p.viewport[1]), int(p.viewport[2]), int(p.viewport[3])},
		NextView:       int(p.next_view),
		OnlyClientDraw: p.only_client_draw != 0,
		ViewEntity:     int(p.view_entity),
		MaxClients:     int(p.max_clients),
	}
}

// refParamsToC writes back the fields the pipeline may change.
func refParamsToC(params *pipeline.RefParams, p *C.vr_ref_params) {
	for i := range 3 {
		p.origin[i] = C.float(params.ViewOrigin[i])
	}
	p.angles[0] = C.float(params.ViewAngles.Pitch)
	p.angles[1] = C.float(params.ViewAngles.Yaw)
	p.angles[2] = C.float(params.ViewAngles.Roll)
	for i := range 4 {
		p.viewport[i] = C.int(params.Viewport[i])
	}
	p.next_view = C.int(params.NextView)
	p.only_client_draw = 0
	if params.OnlyClientDraw {
		p.only_client_draw = 1
	}
}

func argsFromC(argv **C.char, argc C.int) []string {
	if argv == nil || argc <= 0 {
		return nil
	}
	ptrs := unsafe.Slice(argv, int(argc))
	args := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		args = append(args, C.GoString(p))
	}
	return args
}

// writeReply copies response into the engine's buffer, truncating and
// always NUL terminating.
func writeReply(response string, output *C.char, outputsize C.size_t) {
	if output == nil || outputsize == 0 {
		return
	}
	n := C.size_t(len(response))
	if n > outputsize-1 {
		n = outputsize - 1
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(output)), int(outputsize))
	copy(buf, response[:n])
	buf[n] = 0
}
