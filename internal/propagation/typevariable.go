package propagation

// TypeVariable is a merge point the analysis revisits whenever new types
// flow into it: a method's declared return value, a field, a global, or
// an outer (captured) local. Every subscriber enqueued via Use is
// re-enqueued for another dequeue-loop pass whenever Merge grows the
// type.
type TypeVariable struct {
	typ   TypeSet
	users map[*MethodTemplate]struct{}
}

// NewTypeVariable returns an empty TypeVariable sized for wordsPerType
// words.
func NewTypeVariable(wordsPerType int) *TypeVariable {
	return &TypeVariable{typ: NewTypeSet(wordsPerType), users: make(map[*MethodTemplate]struct{})}
}

// Type returns the variable's current (monotonically growing) type.
func (v *TypeVariable) Type() TypeSet { return v.typ }

// Use records that user depends on v's value -- it will be re-enqueued
// by a future Merge -- and, if site is non-empty, records the site as
// one that reads this variable (used for JSON emission of per-site
// usage). It returns the variable's current type.
func (v *TypeVariable) Use(p *Propagator, user *MethodTemplate, site int) TypeSet {
	if site >= 0 {
		p.addSite(site, v)
	}
	if user != nil {
		v.users[user] = struct{}{}
	}
	return v.Type()
}

// Merge widens v with other's classes and, if that grew v, re-enqueues
// every recorded user. It reports whether v grew.
func (v *TypeVariable) Merge(p *Propagator, other TypeSet) bool {
	if !v.typ.AddAll(other) {
		return false
	}
	for user := range v.users {
		p.enqueue(user)
	}
	return true
}
