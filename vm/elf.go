package vm

import (
	"bytes"
	"debug/elf"

	"flyeros/arch"
	"flyeros/defs"
)

// elfPermOf maps ELF segment flags to the kernel's abstract permission
// bitmask (spec.md §4.3 load_elf). debug/elf is the standard library's
// ELF reader; none of the example repos carry a third-party ELF parser,
// so this one component stays on the standard library (DESIGN.md notes
// the search).
func elfPermOf(f elf.ProgFlag) arch.Perm {
	p := arch.Valid | arch.User
	if f&elf.PF_R != 0 {
		p |= arch.Read
	}
	if f&elf.PF_W != 0 {
		p |= arch.Write
	}
	if f&elf.PF_X != 0 {
		p |= arch.Execute
	}
	return p
}

/// LoadELF maps every PT_LOAD segment of image into as as a distinct
/// VMA (MemoryStatic-backed, copy-on-fault — the segment's file bytes
/// are never written in place) and returns the entry point (spec.md
/// §4.3 load_elf). Grounded on biscuit's userland ELF loader
/// (referenced from Vm_t.Exec / the teacher's exec.go init_proc path).
func (as *AddressSpace) LoadELF(image []byte) (entry uintptr, err defs.Err_t) {
	f, e := elf.NewFile(bytes.NewReader(image))
	if e != nil {
		return 0, defs.ENOEXEC
	}
	if f.Class != elf.ELFCLASS64 {
		return 0, defs.ENOEXEC
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		start := pageRound(uintptr(prog.Vaddr))
		end := pageRoundUp(uintptr(prog.Vaddr + prog.Memsz))
		segData := make([]byte, end-start)
		fileOff := uintptr(prog.Vaddr) - start
		n, rerr := prog.ReadAt(segData[fileOff:fileOff+uintptr(prog.Filesz)], 0)
		if rerr != nil && uint64(n) != prog.Filesz {
			return 0, defs.ENOEXEC
		}

		v := &VMA{
			Start:      start,
			End:        end,
			Perm:       elfPermOf(prog.Flags),
			Backing:    MemoryStatic,
			Share:      Private,
			Role:       RoleUser,
			StaticData: segData,
		}
		if addErr := as.AddArea(v); addErr != 0 {
			return 0, addErr
		}
	}

	return uintptr(f.Entry), 0
}
