package vm

import (
	"encoding/binary"

	"flyeros/arch"
	"flyeros/defs"
	"flyeros/mem"
)

/// DefaultStackSize is the initial size given to a fresh RoleStack VMA.
const DefaultStackSize = 8 * mem.PGSIZE

/// InitStack lays out a process's initial user stack below top: argv and
/// envp strings, a null-terminated pointer vector for each, argc, and
/// the auxv entries execve(2) requires, then returns the stack pointer
/// execution should begin with (spec.md §4.3 init_stack). Grounded on
/// biscuit's exec.go stack-building code, generalized across the two
/// target ISAs' pointer width (both are 64-bit, so layout is identical;
/// only the later register-loading differs, in the arch-specific trap
/// entry).
func (as *AddressSpace) InitStack(top uintptr, argv, envp [][]byte) (sp uintptr, err defs.Err_t) {
	start := top - DefaultStackSize
	v := &VMA{
		Start:   pageRound(start),
		End:     pageRoundUp(top),
		Perm:    arch.Valid | arch.User | arch.Read | arch.Write,
		Backing: Anonymous,
		Share:   Private,
		Role:    RoleStack,
	}
	if addErr := as.AddArea(v); addErr != 0 {
		return 0, addErr
	}

	// Fault in the whole stack up front rather than relying on demand
	// paging for the argv/envp writes below, since those writes go
	// through the kernel's direct map, not through HandlePageFault.
	for va := v.Start; va < v.End; va += mem.PGSIZE {
		if err := as.HandlePageFault(va, arch.Read|arch.Write); err != 0 {
			return 0, err
		}
	}

	cur := top

	writeStr := func(b []byte) uintptr {
		cur -= uintptr(len(b) + 1)
		as.pokeBytes(cur, b)
		as.pokeBytes(cur+uintptr(len(b)), []byte{0})
		return cur
	}

	argvPtrs := make([]uintptr, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		argvPtrs[i] = writeStr(argv[i])
	}
	envpPtrs := make([]uintptr, len(envp))
	for i := len(envp) - 1; i >= 0; i-- {
		envpPtrs[i] = writeStr(envp[i])
	}

	// align to 8 bytes before the pointer vectors
	cur &^= 7

	pushU64 := func(v uint64) {
		cur -= 8
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		as.pokeBytes(cur, b[:])
	}

	// auxv: AT_NULL terminator only — this kernel's loader needs no
	// vDSO or AT_SYSINFO entry.
	pushU64(0) // AT_NULL value
	pushU64(0) // AT_NULL type

	pushU64(0) // envp NULL terminator
	for i := len(envpPtrs) - 1; i >= 0; i-- {
		pushU64(uint64(envpPtrs[i]))
	}
	pushU64(0) // argv NULL terminator
	for i := len(argvPtrs) - 1; i >= 0; i-- {
		pushU64(uint64(argvPtrs[i]))
	}
	pushU64(uint64(len(argv))) // argc

	return cur, 0
}

// pokeBytes writes b into user memory at va, faulting in pages as
// needed, used only during stack construction where the whole stack
// VMA has already been pre-faulted by InitStack.
func (as *AddressSpace) pokeBytes(va uintptr, b []byte) {
	ub := MkUserBuf(as, va, len(b), true)
	ub.Uiowrite(b)
}
