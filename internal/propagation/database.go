package propagation

import (
	"encoding/json"
	"sort"

	"github.com/emberlang/classflow/internal/image"
)

// TypeDatabase is the queryable result of a propagation run: the set of
// method (and block) specializations the analysis reached, their
// argument types, and the merged type observed at every recorded usage
// site. Unlike the allocator-backed original this is modeled on, there
// is no reason to hand-manage storage for it in Go -- the GC already
// does that job, so this is just maps.
type TypeDatabase struct {
	program   image.Program
	methods   map[int]image.Method
	arguments map[int][]TypeSet
	usage     map[int]TypeSet
	order     []int // method positions in first-seen order, for stable JSON
	siteOrder []int
}

func newTypeDatabase(program image.Program) *TypeDatabase {
	return &TypeDatabase{
		program:   program,
		methods:   make(map[int]image.Method),
		arguments: make(map[int][]TypeSet),
		usage:     make(map[int]TypeSet),
	}
}

func (d *TypeDatabase) addMethod(position int, method image.Method, arguments []TypeSet) {
	if _, ok := d.methods[position]; !ok {
		d.order = append(d.order, position)
	}
	d.methods[position] = method
	d.arguments[position] = arguments
}

func (d *TypeDatabase) addUsage(position int, t TypeSet) {
	if _, ok := d.usage[position]; !ok {
		d.siteOrder = append(d.siteOrder, position)
	}
	d.usage[position] = t
}

// Methods returns every method or block position the analysis reached,
// in the order they were recorded: methods by ascending header
// position, then blocks by ascending creation site.
func (d *TypeDatabase) Methods() []image.Method {
	result := make([]image.Method, 0, len(d.order))
	for _, pos := range d.order {
		result = append(result, d.methods[pos])
	}
	return result
}

// Arguments returns the merged per-parameter type sets recorded for
// method.
func (d *TypeDatabase) Arguments(method image.Method) []TypeSet {
	return d.arguments[d.program.AbsoluteBCI(method.HeaderBCP)]
}

// Usage returns the merged type observed at the given absolute bytecode
// position, or an empty TypeSet if the position was never recorded.
func (d *TypeDatabase) Usage(position int) TypeSet {
	if t, ok := d.usage[position]; ok {
		return t
	}
	return NewTypeSet(WordsPerType(d.program.ClassCount()))
}

type methodEntry struct {
	Position  int               `json:"position"`
	Arguments []json.RawMessage `json:"arguments"`
}

type usageEntry struct {
	Position int             `json:"position"`
	Type     json.RawMessage `json:"type"`
}

// AsJSON renders the database per the result grammar (spec section 8): a
// flat array mixing per-site usage entries and per-method/per-block
// argument entries, each a small object distinguished by its "type" or
// "arguments" key.
func (d *TypeDatabase) AsJSON() ([]byte, error) {
	sites := append([]int(nil), d.siteOrder...)
	sort.Ints(sites)

	raw := make([]json.RawMessage, 0, len(sites)+len(d.order))
	for _, pos := range sites {
		entry := usageEntry{Position: pos, Type: json.RawMessage(d.usage[pos].AsJSON(d.program))}
		b, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	for _, pos := range d.order {
		args := d.arguments[pos]
		rawArgs := make([]json.RawMessage, len(args))
		for i, a := range args {
			rawArgs[i] = json.RawMessage(a.AsJSON(d.program))
		}
		entry := methodEntry{Position: pos, Arguments: rawArgs}
		b, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.MarshalIndent(raw, "", "  ")
}
