package syscall

import (
	"bytes"
	"encoding/binary"

	"flyeros/defs"
	"flyeros/ustr"
	"flyeros/vm"
)

// pathMax bounds how much of a user-supplied path string this kernel
// will read, mirroring Linux's PATH_MAX so a runaway pointer can't force
// an unbounded copy.
const pathMax = 4096

// readUserPath copies a NUL-terminated string out of the caller's
// address space at va, the same "read until NUL, but never past a
// fixed ceiling" shape every *at(2) syscall needs for its path argument.
func readUserPath(as *vm.AddressSpace, va uintptr) (ustr.Ustr, defs.Err_t) {
	buf := vm.GetUserBuf(as, va, pathMax, true)
	defer vm.PutUserBuf(buf)

	raw := make([]byte, pathMax)
	n, err := buf.Uioread(raw)
	if err != 0 && n == 0 {
		return nil, err
	}
	if i := bytes.IndexByte(raw[:n], 0); i >= 0 {
		n = i
	}
	return ustr.MkUstrSlice(raw[:n]), 0
}

// argvMax bounds how many entries execve's argv/envp vectors may carry,
// the same runaway-pointer guard readUserPath applies to a single path.
const argvMax = 256

// readUserStringVec reads a NULL-terminated vector of NULL-terminated
// C strings at va, the argv/envp layout execve(2) takes its arguments
// in. Each element pointer is itself a plain 8-byte user word, read the
// same way sysPipe2's fd pair is.
func readUserStringVec(as *vm.AddressSpace, va uintptr) ([][]byte, defs.Err_t) {
	if va == 0 {
		return nil, 0
	}
	var out [][]byte
	for i := 0; i < argvMax; i++ {
		buf := vm.GetUserBuf(as, va+uintptr(i)*8, 8, true)
		var word [8]byte
		_, rerr := buf.Uioread(word[:])
		vm.PutUserBuf(buf)
		if rerr != 0 {
			return nil, rerr
		}
		ptr := uintptr(binary.LittleEndian.Uint64(word[:]))
		if ptr == 0 {
			return out, 0
		}
		s, serr := readUserPath(as, ptr)
		if serr != 0 {
			return nil, serr
		}
		out = append(out, []byte(s))
	}
	return nil, defs.E2BIG
}
