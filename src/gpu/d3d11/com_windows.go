//go:build windows

// Package d3d11 is the hardware backend: Direct3D 11 devices, swapchains and
// DXGI desktop duplication, called through COM vtables without cgo.
package d3d11

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"hdr-snip/src/capture"
)

// comGUID is a COM GUID (128-bit).
type comGUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// HRESULT codes the backend reacts to.
const (
	dxgiErrWaitTimeout   = 0x887A0027
	dxgiErrAccessLost    = 0x887A0026
	dxgiErrNotFound      = 0x887A0002
	dxgiErrDeviceRemoved = 0x887A0005
	eNoInterface         = 0x80004002
	eInvalidArg          = 0x80070057
)

// HRESULTError is a failed COM call.
type HRESULTError struct {
	Method int
	Code   uint32
}

func (e *HRESULTError) Error() string {
	return fmt.Sprintf("COM vtable[%d] HRESULT 0x%08X", e.Method, e.Code)
}

// Is maps duplication results onto the capture sentinels.
func (e *HRESULTError) Is(target error) bool {
	switch e.Code {
	case dxgiErrWaitTimeout:
		return target == capture.ErrWaitTimeout
	case dxgiErrAccessLost:
		return target == capture.ErrAccessLost
	}
	return false
}

// hresult extracts the code from err, or 0.
func hresult(err error) uint32 {
	var he *HRESULTError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func vtblFn(obj uintptr, idx int) uintptr {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// comCall invokes a COM vtable method returning an HRESULT.
// obj is a pointer to a COM interface (pointer to pointer to vtable).
func comCall(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	allArgs := make([]uintptr, 0, 1+len(args))
	allArgs = append(allArgs, obj)
	allArgs = append(allArgs, args...)
	ret, _, _ := syscall.SyscallN(vtblFn(obj, vtableIdx), allArgs...)
	if int32(ret) < 0 {
		return ret, &HRESULTError{Method: vtableIdx, Code: uint32(ret)}
	}
	return ret, nil
}

// comVoid invokes a vtable method without a meaningful return value.
func comVoid(obj uintptr, vtableIdx int, args ...uintptr) {
	allArgs := make([]uintptr, 0, 1+len(args))
	allArgs = append(allArgs, obj)
	allArgs = append(allArgs, args...)
	syscall.SyscallN(vtblFn(obj, vtableIdx), allArgs...)
}

// comRelease calls IUnknown::Release (vtable index 2).
func comRelease(obj uintptr) {
	if obj != 0 {
		comVoid(obj, vtblRelease)
	}
}

func queryInterface(obj uintptr, iid *comGUID) (uintptr, error) {
	var out uintptr
	_, err := comCall(obj, vtblQueryInterface, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))
	return out, err
}

// --- DLL procs ---

var (
	d3d11DLL = windows.NewLazySystemDLL("d3d11.dll")

	procD3D11CreateDevice = d3d11DLL.NewProc("D3D11CreateDevice")
)

// --- vtable index constants ---
//
// These are fixed by the COM ABI and must be exact.
// IUnknown:   0=QueryInterface, 1=AddRef, 2=Release
// IDXGIObject: 3..6 (GetParent is 6)

const (
	vtblQueryInterface = 0
	vtblRelease        = 2

	dxgiObjectGetParent = 6

	dxgiDeviceGetAdapter        = 7
	dxgiAdapterEnumOutputs      = 7
	dxgiOutputGetDesc           = 7
	dxgiOutput1DuplicateOutput  = 22
	dxgiOutput5DuplicateOutput1 = 26
	dxgiFactoryCreateSwapChain  = 10
	dxgiSwapChainPresent        = 8
	dxgiSwapChainGetBuffer      = 9
	dxgiSwapChain1Present1      = 22

	dxgiDuplGetDesc          = 7
	dxgiDuplAcquireNextFrame = 8
	dxgiDuplReleaseFrame     = 14

	d3d11Texture2DGetDesc = 10

	devCreateBuffer              = 3
	devCreateTexture2D           = 5
	devCreateShaderResourceView  = 7
	devCreateUnorderedAccessView = 8
	devCreateRenderTargetView    = 9
	devCreateInputLayout         = 11
	devCreateVertexShader        = 12
	devCreatePixelShader         = 15
	devCreateComputeShader       = 18
	devCreateSamplerState        = 23

	ctxVSSetConstantBuffers      = 7
	ctxPSSetShaderResources      = 8
	ctxPSSetShader               = 9
	ctxPSSetSamplers             = 10
	ctxVSSetShader               = 11
	ctxDraw                      = 13
	ctxMap                       = 14
	ctxUnmap                     = 15
	ctxPSSetConstantBuffers      = 16
	ctxIASetInputLayout          = 17
	ctxIASetVertexBuffers        = 18
	ctxIASetPrimitiveTopology    = 24
	ctxOMSetRenderTargets        = 33
	ctxDispatch                  = 41
	ctxRSSetViewports            = 44
	ctxCopySubresourceRegion     = 46
	ctxCopyResource              = 47
	ctxGenerateMips              = 54
	ctxCSSetUnorderedAccessViews = 68
	ctxCSSetShader               = 69
	ctxFlush                     = 111
)

// COM GUIDs
var (
	iidIDXGIDevice     = comGUID{0x54ec77fa, 0x1377, 0x44e6, [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}
	iidIDXGIFactory    = comGUID{0x7b7166ec, 0x21c7, 0x44ae, [8]byte{0xb2, 0x1a, 0xc9, 0xae, 0x32, 0x1a, 0xe3, 0x69}}
	iidID3D11Texture2D = comGUID{0x6f15aaf2, 0xd208, 0x4e89, [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
	iidIDXGIOutput1    = comGUID{0x00cddea8, 0x939b, 0x4b83, [8]byte{0xa3, 0x40, 0xa6, 0x85, 0x22, 0x66, 0x66, 0xcc}}
	iidIDXGIOutput5    = comGUID{0x80a07424, 0xab52, 0x42eb, [8]byte{0x83, 0x3c, 0x0c, 0x42, 0xfd, 0x28, 0x2d, 0x98}}
	iidIDXGISwapChain1 = comGUID{0x790a45f7, 0x0d42, 0x4876, [8]byte{0x98, 0x3a, 0x0a, 0x55, 0xcf, 0xe6, 0xf4, 0xaa}}
)
