package mem

// OomMsg is the out-of-memory notice a reclaim daemon listening on
// OomCh acts on: Need frames are wanted, and Resume lets the stalled
// allocation retry. Kept from the teacher kernel's oommsg package.
// Nothing in this tree sends one: Allocator.Alloc reports OOM by
// returning false.
type OomMsg struct {
	Need   int
	Resume chan bool
}

// OomCh is the channel OomMsg notices travel on; no allocator path
// sends on it.
var OomCh = make(chan OomMsg)
