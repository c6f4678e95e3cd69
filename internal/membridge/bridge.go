// Package membridge produces zero-copy views over engine-owned array
// memory. A view is a plain byte slice aliasing the engine's backing
// buffer; it stays valid only while the owning handle's reference count
// is above zero, and the handle must detach it before releasing the
// reference.
package membridge

import (
	"encoding/binary"
	"fmt"

	"github.com/numlink/numlink/internal/foreign"
)

// nativeOrder reports the host byte order in the engine's notation.
func nativeOrder() string {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 0x0102)
	if buf[0] == 0x02 {
		return "<"
	}
	return ">"
}

// Acquire obtains a zero-copy byte view for the given array reference.
// Byte order is normalized once at creation: a mismatch between the
// engine's order and the host's triggers a single delegated byteswap,
// or a ConversionError in strict mode. Returns nil for references with
// an empty addressable window.
func Acquire(svc foreign.Service, ref foreign.Ref, strict bool) ([]byte, error) {
	info, err := svc.Buffer(ref)
	if err != nil {
		return nil, err
	}
	if info == nil || info.Length == 0 {
		return nil, nil
	}

	if info.ByteOrder != nativeOrder() {
		if strict {
			return nil, &foreign.ConversionError{
				SourceType: fmt.Sprintf("byte order %q", info.ByteOrder),
				TargetType: fmt.Sprintf("byte order %q", nativeOrder()),
			}
		}
		// Reorder once at creation, delegated to the engine so the
		// swap happens under the execution lock.
		if _, err := svc.Call(foreign.KernelModule, "byteswap", []interface{}{int64(ref)}, nil); err != nil {
			return nil, err
		}
	}

	if info.Offset < 0 || info.Offset+info.Length > len(info.Data) {
		return nil, fmt.Errorf("membridge: view window [%d:%d] exceeds buffer of %d bytes",
			info.Offset, info.Offset+info.Length, len(info.Data))
	}

	return info.Data[info.Offset : info.Offset+info.Length], nil
}
