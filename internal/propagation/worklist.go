package propagation

// Worklist drives the fixpoint loop within one method or block
// activation: a LIFO queue of dirty bytecode positions, each carrying
// the merged TypeScope of every path that has reached it so far.
type Worklist struct {
	unprocessed []int
	scopes      map[int]*TypeScope
}

// NewWorklist seeds the queue with the activation's entry position and
// scope.
func NewWorklist(entry int, scope *TypeScope) *Worklist {
	w := &Worklist{scopes: make(map[int]*TypeScope)}
	w.scopes[entry] = scope
	w.unprocessed = append(w.unprocessed, entry)
	return w
}

// HasNext reports whether any position still needs processing.
func (w *Worklist) HasNext() bool { return len(w.unprocessed) > 0 }

// WorklistItem is one position and the scope to process it with.
type WorklistItem struct {
	BCP   int
	Scope *TypeScope
}

// Next pops the most recently added dirty position. The returned scope
// is a lazy copy of the position's merged scope, so mutating it during
// processing never corrupts the stored merge target -- only an Add back
// into that same position (or a different one) grows it further.
func (w *Worklist) Next() WorklistItem {
	n := len(w.unprocessed) - 1
	bcp := w.unprocessed[n]
	w.unprocessed = w.unprocessed[:n]
	return WorklistItem{BCP: bcp, Scope: w.scopes[bcp].CopyLazily()}
}

// Add merges scope into the types recorded for bcp, creating the entry
// (via a full, independent copy) the first time bcp is reached and
// re-queuing bcp whenever the merge grows its recorded types.
func (w *Worklist) Add(bcp int, scope *TypeScope) {
	existing, ok := w.scopes[bcp]
	if !ok {
		w.scopes[bcp] = scope.Copy()
		w.unprocessed = append(w.unprocessed, bcp)
		return
	}
	if existing.Merge(scope) {
		w.unprocessed = append(w.unprocessed, bcp)
	}
}
