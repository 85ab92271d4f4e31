package arch

// LoongArch PTE bit positions (kernel subset, per
// _examples/original_source/lib/arch/src/pte/loongarch64.rs): V(alid),
// D(irty), PLV (privilege level, 2 bits), MAT (memory access type, 2
// bits), G(lobal), P(resent), W(ritable), NR (no-read), NX (no-execute).
const (
	laV      = 1 << 0
	laD      = 1 << 1
	laPLVLo  = 1 << 2 // PLV occupies bits 2-3; PLV==3 means user-accessible
	laPLVHi  = 1 << 3
	laMATLo  = 1 << 4 // MAT occupies bits 4-5
	laMATHi  = 1 << 5
	laG      = 1 << 6
	laP      = 1 << 7
	laW      = 1 << 8
	laNR     = 1 << 61
	laNX     = 1 << 62
	laPfnShift = 12
	laPfnMask  = (uint64(1) << 48) - 1
)

type loongarch64Leaf struct{}

func (loongarch64Leaf) Encode(pfn uint64, perm Perm, dirty bool) uint64 {
	var e uint64
	if perm.Has(Valid) {
		e |= laV | laP
	}
	if perm.Has(User) {
		e |= laPLVLo | laPLVHi // PLV = 3, user mode
	}
	if !perm.Has(Write) {
		// W absent means not writable; NR/NX are "no access" flags so
		// they are set when the corresponding abstract bit is absent.
	} else {
		e |= laW
	}
	if !perm.Has(Read) {
		e |= laNR
	}
	if !perm.Has(Execute) {
		e |= laNX
	}
	if perm.Has(Global) {
		e |= laG
	}
	if dirty && perm.Has(Write) {
		e |= laD
	}
	e |= (pfn & (laPfnMask >> laPfnShift)) << laPfnShift
	return e
}

func (loongarch64Leaf) Decode(entry uint64) (uint64, Perm, bool) {
	pfn := (entry >> laPfnShift) & (laPfnMask >> laPfnShift)
	var p Perm
	present := entry&laP != 0
	if present {
		p |= Valid
	}
	if entry&laNR == 0 {
		p |= Read
	}
	if entry&laW != 0 {
		p |= Write
	}
	if entry&laNX == 0 {
		p |= Execute
	}
	if entry&(laPLVLo|laPLVHi) == (laPLVLo | laPLVHi) {
		p |= User
	}
	if entry&laG != 0 {
		p |= Global
	}
	return pfn, p, present
}

// RequiresDirtyBeforeWrite is true: LoongArch's TLB refill faults unless
// the D bit is set in the leaf before a store is legal (spec.md §4.2),
// so the kernel must pre-dirty writable leaves the way it pre-sets A.
func (loongarch64Leaf) RequiresDirtyBeforeWrite() bool { return true }

func (loongarch64Leaf) EntriesPerNode() int { return 512 }
func (loongarch64Leaf) Levels() int         { return 4 }
