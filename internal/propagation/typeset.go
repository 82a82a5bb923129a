// Package propagation implements the whole-program type-propagation
// analysis: a Cartesian-Product-Algorithm data-flow pass over a class
// dispatch bytecode image, producing conservative per-site and
// per-argument type sets (see image.Program for the program model).
package propagation

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/emberlang/classflow/internal/image"
)

// wordBits is the width of one bitset word.
const wordBits = 64

// TypeSet is either a bitset of class ids or a single block reference.
// The zero value is not usable; construct with NewTypeSet.
//
// Bit 0 of the underlying bitset is reserved and never set (class ids
// are offset by one into the words). A block TypeSet keeps its
// *BlockTemplate in the separate block field, with every word zero.
type TypeSet struct {
	words []uint64
	block *BlockTemplate
}

// WordsPerType returns how many uint64 words a TypeSet over a class
// space of classCount ids needs (one extra bit for the reserved bit 0),
// never fewer than two.
func WordsPerType(classCount int) int {
	needed := classCount + 1
	words := (needed + wordBits - 1) / wordBits
	if words < 2 {
		words = 2
	}
	return words
}

// NewTypeSet returns an empty (non-block) TypeSet sized for wordsPerType
// words.
func NewTypeSet(wordsPerType int) TypeSet {
	return TypeSet{words: make([]uint64, wordsPerType)}
}

// Copy returns an independent copy of t.
func (t TypeSet) Copy() TypeSet {
	words := make([]uint64, len(t.words))
	copy(words, t.words)
	return TypeSet{words: words, block: t.block}
}

// IsBlock reports whether t currently holds a block reference rather
// than a set of class ids.
func (t TypeSet) IsBlock() bool { return t.block != nil }

// Block returns the block reference held by a block TypeSet. It panics
// if t is not a block set.
func (t TypeSet) Block() *BlockTemplate {
	if t.block == nil {
		panic("propagation: Block called on non-block TypeSet")
	}
	return t.block
}

// SetBlock turns t into a block TypeSet referencing tpl, discarding any
// class bits it held.
func (t *TypeSet) SetBlock(tpl *BlockTemplate) {
	for i := range t.words {
		t.words[i] = 0
	}
	t.block = tpl
}

func (t TypeSet) entry(classID image.ClassID) (word, mask int) {
	e := uint(classID) + 1
	return int(e / wordBits), int(e % wordBits)
}

// Contains reports whether classID is a member of t.
func (t TypeSet) Contains(classID image.ClassID) bool {
	w, m := t.entry(classID)
	return t.words[w]&(uint64(1)<<uint(m)) != 0
}

// ContainsAll reports whether every member of other is also in t.
func (t TypeSet) ContainsAll(other TypeSet) bool {
	for i := range t.words {
		if t.words[i]|other.words[i] != t.words[i] {
			return false
		}
	}
	return true
}

// ContainsNull reports whether t contains the program's null class.
func (t TypeSet) ContainsNull(p image.Program) bool { return t.Contains(p.NullClass()) }

// Add inserts classID into t and reports whether t grew, i.e. whether
// classID was not already a member.
func (t *TypeSet) Add(classID image.ClassID) bool {
	w, m := t.entry(classID)
	mask := uint64(1) << uint(m)
	old := t.words[w]
	t.words[w] = old | mask
	return old&mask == 0
}

// AddRange adds every class id in [start, end) to t.
func (t *TypeSet) AddRange(start, end image.ClassID) {
	for id := start; id < end; id++ {
		t.Add(id)
	}
}

// AddAny fills t with every class id in [0, classCount), i.e. widens it
// to the top of the lattice.
func (t *TypeSet) AddAny(classCount int) { t.AddRange(0, image.ClassID(classCount)) }

func (t *TypeSet) AddInstance(classID image.ClassID) bool { return t.Add(classID) }
func (t *TypeSet) AddNull(p image.Program) bool           { return t.Add(p.NullClass()) }
func (t *TypeSet) AddSmi(p image.Program) bool            { return t.Add(p.SmiClass()) }
func (t *TypeSet) AddString(p image.Program) bool         { return t.Add(p.StringClass()) }
func (t *TypeSet) AddArray(p image.Program) bool          { return t.Add(p.ArrayClass()) }
func (t *TypeSet) AddByteArray(p image.Program) bool      { return t.Add(p.ByteArrayClass()) }
func (t *TypeSet) AddFloat(p image.Program) bool          { return t.Add(p.FloatClass()) }
func (t *TypeSet) AddTask(p image.Program) bool           { return t.Add(p.TaskClass()) }

// AddInt adds both the Smi and LargeInteger classes, the two concrete
// representations an integer literal or arithmetic result may take.
func (t *TypeSet) AddInt(p image.Program) bool {
	a := t.Add(p.SmiClass())
	b := t.Add(p.LargeIntegerClass())
	return a || b
}

// AddBool adds both True and False.
func (t *TypeSet) AddBool(p image.Program) bool {
	a := t.Add(p.TrueClass())
	b := t.Add(p.FalseClass())
	return a || b
}

// AddAll merges other's class bits into t and reports whether t grew.
func (t *TypeSet) AddAll(other TypeSet) bool {
	grew := false
	for i := range t.words {
		old := t.words[i]
		merged := old | other.words[i]
		if merged != old {
			grew = true
		}
		t.words[i] = merged
	}
	return grew
}

// AddAllAlsoBlocks merges other into t, additionally propagating a block
// reference if other carries one. Used where a value slot may hold
// either ordinary instances or an escaping block (e.g. deopt-style
// merges at method boundaries).
func (t *TypeSet) AddAllAlsoBlocks(other TypeSet) {
	if other.IsBlock() {
		t.block = other.block
		return
	}
	t.AddAll(other)
}

// Remove deletes classID from t.
func (t *TypeSet) Remove(classID image.ClassID) {
	w, m := t.entry(classID)
	t.words[w] &^= uint64(1) << uint(m)
}

func (t *TypeSet) RemoveNull(p image.Program) { t.Remove(p.NullClass()) }

// RemoveRange deletes every class id in [start, end) from t.
func (t *TypeSet) RemoveRange(start, end image.ClassID) {
	for id := start; id < end; id++ {
		t.Remove(id)
	}
}

// RemoveTypecheckClass narrows t to the contiguous class-id range
// checked by a compile-time "is C" / "as C" test, restoring membership
// in the null class afterward if the check is nullable and t contained
// null before narrowing. It reports whether anything survives the
// narrowing (spec section 4.4, "class checks").
func (t *TypeSet) RemoveTypecheckClass(p image.Program, classCheckIndex int, nullable bool) bool {
	start, end := p.ClassCheckRange(classCheckIndex)
	hadNull := t.ContainsNull(p)
	t.RemoveRange(0, start)
	t.RemoveRange(end, image.ClassID(p.ClassCount()))
	if hadNull && nullable {
		t.Add(p.NullClass())
		return true
	}
	return !t.IsEmpty(p)
}

// RemoveTypecheckInterface narrows t to the classes that actually
// implement the interface selector being checked, determined by
// resolving each surviving class's dispatch entry for that selector
// offset and confirming it was compiled specifically for it.
func (t *TypeSet) RemoveTypecheckInterface(p image.Program, selectorIndex int, nullable bool) bool {
	hadNull := t.ContainsNull(p)
	offset := p.InterfaceCheckOffset(selectorIndex)
	for id := image.ClassID(0); int(id) < p.ClassCount(); id++ {
		if !t.Contains(id) {
			continue
		}
		entry := p.DispatchEntry(int(id) + offset)
		if entry != -1 {
			target := image.DecodeMethod(p, entry)
			if target.SelectorOffset == offset {
				continue
			}
		}
		t.Remove(id)
	}
	if hadNull && nullable {
		t.Add(p.NullClass())
		return true
	}
	return !t.IsEmpty(p)
}

// Clear empties t back to the bottom of the lattice, discarding any
// block reference.
func (t *TypeSet) Clear() {
	for i := range t.words {
		t.words[i] = 0
	}
	t.block = nil
}

// Size returns the number of classes in t, or 1 for a block set.
func (t TypeSet) Size(p image.Program) int {
	if t.IsBlock() {
		return 1
	}
	n := 0
	for id := image.ClassID(0); int(id) < p.ClassCount(); id++ {
		if t.Contains(id) {
			n++
		}
	}
	return n
}

// IsEmpty reports whether t holds no classes. A block set is never
// empty.
func (t TypeSet) IsEmpty(p image.Program) bool {
	if t.IsBlock() {
		return false
	}
	for id := image.ClassID(0); int(id) < p.ClassCount(); id++ {
		if t.Contains(id) {
			return false
		}
	}
	return true
}

// IsAny reports whether t contains every class in the program, i.e. sits
// at the top of the lattice.
func (t TypeSet) IsAny(p image.Program) bool {
	if t.IsBlock() {
		return false
	}
	for id := image.ClassID(0); int(id) < p.ClassCount(); id++ {
		if !t.Contains(id) {
			return false
		}
	}
	return true
}

// TypeSetIterator walks the class ids held by a non-block TypeSet in
// ascending order.
type TypeSetIterator struct {
	words []uint64
	index int
	cur   uint64
	base  int
}

// Iterator returns an iterator over t's class ids. t must not be a block
// set.
func (t TypeSet) Iterator() *TypeSetIterator {
	if t.IsBlock() {
		panic("propagation: Iterator called on a block TypeSet")
	}
	it := &TypeSetIterator{words: t.words, index: 0, base: -1}
	it.cur = t.words[0]
	it.advance()
	return it
}

func (it *TypeSetIterator) advance() {
	for it.cur == 0 && it.index+1 < len(it.words) {
		it.index++
		it.cur = it.words[it.index]
		it.base += wordBits
	}
}

// HasNext reports whether Next will yield another class id.
func (it *TypeSetIterator) HasNext() bool { return it.cur != 0 }

// Next returns the next class id in ascending order.
func (it *TypeSetIterator) Next() image.ClassID {
	tz := bits.TrailingZeros64(it.cur)
	result := it.base + tz
	it.cur &^= uint64(1) << uint(tz)
	it.advance()
	return image.ClassID(result)
}

// AsJSON renders t per the result grammar: "[]" for a block, "*" for the
// full class range, or a sorted array of class ids otherwise.
func (t TypeSet) AsJSON(p image.Program) string {
	if t.IsBlock() {
		return `"[]"`
	}
	if t.IsAny(p) {
		return `"*"`
	}
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for id := image.ClassID(0); int(id) < p.ClassCount(); id++ {
		if !t.Contains(id) {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(strconv.Itoa(int(id)))
	}
	b.WriteByte(']')
	return b.String()
}

// Print renders a debug dump of t, used by the CLI's --debug-types
// argument dump.
func (t TypeSet) Print(p image.Program, banner string) string {
	var b strings.Builder
	b.WriteString("TypeSet(")
	b.WriteString(banner)
	b.WriteString(") = {")
	if t.IsBlock() {
		fmt.Fprintf(&b, " block=%p", t.block)
	} else {
		first := true
		for id := image.ClassID(0); int(id) < p.ClassCount(); id++ {
			if !t.Contains(id) {
				continue
			}
			if first {
				b.WriteByte(' ')
			} else {
				b.WriteString(", ")
			}
			first = false
			b.WriteString(strconv.Itoa(int(id)))
		}
	}
	b.WriteString(" }")
	return b.String()
}
