// Package arch abstracts the two instruction sets this kernel targets —
// a RISC-V variant with SV39 paging and a LoongArch variant with tagged
// TLB entries — behind one permission mask and one leaf-encoding
// interface, so pagetable and vm need not branch on ISA themselves.
// Grounded on _examples/original_source/lib/arch/src/pte/{riscv64,
// loongarch64}.rs and lib/arch/src/mm/loongarch64.rs, and on the flag
// vocabulary biscuit's mem package hard-codes for x86 (PTE_P/W/U/G).
package arch

// Perm is the abstract permission mask spec.md §3 defines for PageTable:
// {Valid, Read, Write, Execute, User, Global}. ISA-specific bits (RISC-V
// A/D, LoongArch NR/NX/MAT/PLV) are derived from it at leaf-write time by
// the ISA's Leaf implementation.
type Perm uint8

const (
	Valid Perm = 1 << iota
	Read
	Write
	Execute
	User
	Global
)

func (p Perm) Has(bits Perm) bool { return p&bits == bits }

// ISA identifies which of the two target instruction sets a page table
// or trap frame belongs to.
type ISA int

const (
	RISCV64 ISA = iota
	LoongArch64
)

func (i ISA) String() string {
	if i == RISCV64 {
		return "riscv64"
	}
	return "loongarch64"
}

// Leaf encodes/decodes a page-table leaf entry for one ISA. PageTable
// calls Encode whenever it installs or updates a leaf and Decode when
// translating; everything above this interface is ISA-agnostic.
type Leaf interface {
	// Encode packs a physical frame number and abstract permission mask
	// into a raw page-table entry, deriving the ISA-specific dirty/
	// cacheability/privilege-level bits the permission implies.
	Encode(pfn uint64, perm Perm, dirty bool) uint64
	// Decode unpacks a raw entry into its frame number, permission mask,
	// and present bit.
	Decode(entry uint64) (pfn uint64, perm Perm, present bool)
	// RequiresDirtyBeforeWrite reports whether this ISA's MMU faults on
	// a write to a writable-but-not-dirty leaf (LoongArch does; RISC-V's
	// Svadu-less baseline here does not, so the kernel must pre-set D).
	RequiresDirtyBeforeWrite() bool
	// EntriesPerNode is the fan-out of one page-table node (512 for a
	// 4KiB node of 8-byte entries on both target ISAs).
	EntriesPerNode() int
	// Levels is the number of radix-tree levels root-to-leaf (3 for
	// RISC-V Sv39, 4 for the LoongArch configuration this kernel uses);
	// pagetable's walk descends through all of them.
	Levels() int
}

// For implements the ISA's Leaf codec.
func For(isa ISA) Leaf {
	switch isa {
	case RISCV64:
		return riscv64Leaf{}
	case LoongArch64:
		return loongarch64Leaf{}
	default:
		panic("unknown ISA")
	}
}
