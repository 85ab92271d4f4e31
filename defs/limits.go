package defs

import "sync/atomic"

/// Sysatomic_t is an atomically adjustable system-wide resource limit,
/// kept from the teacher's limits package. It is the accounting half of
/// admission control; package res layers semaphore-based blocking/backoff
/// on top of it for the bounds enumerated in package bounds.
type Sysatomic_t struct {
	avail int64
}

/// NewSysatomic creates a limit with n units available.
func NewSysatomic(n int64) *Sysatomic_t {
	return &Sysatomic_t{avail: n}
}

/// Given returns n units to the limit.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64(&s.avail, int64(n))
}

/// Taken tries to remove n units from the limit, returning false and
/// leaving the limit unchanged if that would drive it negative.
func (s *Sysatomic_t) Taken(n uint) bool {
	if atomic.AddInt64(&s.avail, -int64(n)) >= 0 {
		return true
	}
	atomic.AddInt64(&s.avail, int64(n))
	return false
}

/// Take removes one unit, reporting success.
func (s *Sysatomic_t) Take() bool { return s.Taken(1) }

/// Give returns one unit.
func (s *Sysatomic_t) Give() { s.Given(1) }

/// Avail reports the units currently available.
func (s *Sysatomic_t) Avail() int64 { return atomic.LoadInt64(&s.avail) }

/// Syslimit_t tracks system wide resource limits, the superset of
/// per-resource-kind bounds that prlimit64 and the res package consult.
type Syslimit_t struct {
	Sysprocs int
	Vnodes   int
	Futexes  int
	Pipes    *Sysatomic_t
	Mfspgs   *Sysatomic_t
	Blocks   int
	MaxFds   int
}

/// Syslimit holds the default system-wide limits, sized for the hosted
/// simulation rather than biscuit's bare-metal defaults.
var Syslimit = &Syslimit_t{
	Sysprocs: 1 << 14,
	Vnodes:   1 << 16,
	Futexes:  1 << 12,
	Pipes:    NewSysatomic(1 << 14),
	Mfspgs:   NewSysatomic(1 << 18),
	Blocks:   1 << 20,
	MaxFds:   1 << 10,
}

/// Rlimit describes a resource's soft/hard limit pair for prlimit64.
type Rlimit struct {
	Cur uint64
	Max uint64
}

const RlimInfinity = ^uint64(0)

// Resource kinds understood by prlimit64, the subset spec.md's syscall
// surface names.
const (
	RLIMIT_NOFILE = iota
	RLIMIT_AS
	RLIMIT_STACK
	RLIMIT_NPROC
)
