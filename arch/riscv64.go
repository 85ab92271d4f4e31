package arch

// RISC-V Sv39 PTE bit positions (kernel subset): V, R, W, X, U, G, A, D.
const (
	rvV = 1 << 0
	rvR = 1 << 1
	rvW = 1 << 2
	rvX = 1 << 3
	rvU = 1 << 4
	rvG = 1 << 5
	rvA = 1 << 6
	rvD = 1 << 7
	rvPfnShift = 10
)

type riscv64Leaf struct{}

func (riscv64Leaf) Encode(pfn uint64, perm Perm, dirty bool) uint64 {
	var e uint64
	if perm.Has(Valid) {
		e |= rvV
	}
	if perm.Has(Read) {
		e |= rvR
	}
	if perm.Has(Write) {
		e |= rvW
	}
	if perm.Has(Execute) {
		e |= rvX
	}
	if perm.Has(User) {
		e |= rvU
	}
	if perm.Has(Global) {
		e |= rvG
	}
	if perm.Has(Valid) {
		e |= rvA
	}
	if dirty && perm.Has(Write) {
		e |= rvD
	}
	e |= pfn << rvPfnShift
	return e
}

func (riscv64Leaf) Decode(entry uint64) (uint64, Perm, bool) {
	pfn := entry >> rvPfnShift
	var p Perm
	present := entry&rvV != 0
	if present {
		p |= Valid
	}
	if entry&rvR != 0 {
		p |= Read
	}
	if entry&rvW != 0 {
		p |= Write
	}
	if entry&rvX != 0 {
		p |= Execute
	}
	if entry&rvU != 0 {
		p |= User
	}
	if entry&rvG != 0 {
		p |= Global
	}
	return pfn, p, present
}

// RequiresDirtyBeforeWrite is false: this kernel targets a RISC-V profile
// without Svadu, so it pre-sets D at map time (spec.md §4.2) instead of
// relying on a hardware dirty-bit fault.
func (riscv64Leaf) RequiresDirtyBeforeWrite() bool { return false }

func (riscv64Leaf) EntriesPerNode() int { return 512 }
func (riscv64Leaf) Levels() int         { return 3 }
