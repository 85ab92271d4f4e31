package arch

// NGPR is the general-purpose register count a trapped task's register
// file is modeled with, one slot per integer register on either target
// ISA (RISC-V's x0..x31, LoongArch's r0..r31).
const NGPR = 32

// Register-file role indices, the abstract counterpart of each ISA's
// calling-convention registers: RISC-V's x1/x2/x10 and LoongArch's
// r1/r3/r4 both play the "return address", "stack pointer", and "first
// argument" roles respectively. Anything that manipulates a trapped
// task's registers (signal delivery, the sigreturn trampoline) indexes
// through these instead of hard-coding an ISA's register numbering.
const (
	RegRA Reg = 1
	RegSP Reg = 2
	RegA0 Reg = 10
)

// Reg indexes a trapped task's general-purpose register file.
type Reg int
