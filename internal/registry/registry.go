// Package registry derives lookup tables from a parsed ORCA header: the data
// id to decoder name table used to dispatch packets, the id to hardware class
// index, per-class object info records, and the run number.
package registry

import (
	"errors"
	"fmt"

	"example.com/orcafile/internal/common"
	"example.com/orcafile/internal/orca"
)

const (
	keyDataDescription = "dataDescription"
	keyObjectInfo      = "ObjectInfo"
	keyCrates          = "Crates"
	keyCards           = "Cards"
	keyDataChain       = "DataChain"
	keyRunControl      = "Run Control"
	keyRunNumber       = "RunNumber"
	keyCrateNumber     = "CrateNumber"
	keyClassName       = "Class Name"
	keyCard            = "Card"
	keyDataID          = "dataId"
	keyDecoder         = "decoder"

	// Data ids in the header are stored pre-shifted left by 18 bits; the
	// same shift decodes the leading word of a live packet.
	dataIDShift = 18
)

// ErrMissingRunNumber indicates no DataChain entry carried a Run Control
// dictionary with a run number.
var ErrMissingRunNumber = errors.New("no run number found in header")

// DecoderTable maps a decoded data id to the decoder name declared for it.
type DecoderTable map[uint32]string

// Collision records two header declarations that decoded to the same data id
// with different decoder names. The derivation keeps the later declaration
// (in sorted class/instance order) but never drops the conflict silently.
type Collision struct {
	DataID  uint32
	Kept    string
	Dropped string
}

// ClassEntry names the hardware class owning a data id together with the
// instance names declared for that class.
type ClassEntry struct {
	ClassName string
	Instances []string
}

// ClassIndex maps a decoded data id to its owning class.
type ClassIndex map[uint32]ClassEntry

// ObjectInfo describes one hardware card selected from the crate tree.
// Fields holds every key the header declared for the card; class name,
// crate and card numbers are lifted out for convenience.
type ObjectInfo struct {
	ClassName string
	Crate     int
	Card      int
	Fields    orca.Dict
}

// Registry is built once per parsed header and passed by reference to every
// consumer. It is read-only after New returns; there is no process-wide
// instance.
type Registry struct {
	root       orca.Dict
	decoders   DecoderTable
	classes    ClassIndex
	collisions []Collision
}

// New derives all id tables from the header root. Derivation never fails:
// a header without a dataDescription block simply yields empty tables.
func New(root orca.Dict) *Registry {
	decoders, collisions := DeriveDecoderTable(root)
	return &Registry{
		root:       root,
		decoders:   decoders,
		classes:    DeriveClassIndex(root),
		collisions: collisions,
	}
}

// DecoderName resolves a packet's decoded data id to its decoder name. A
// missing id is recoverable; the caller decides whether to skip or abort.
func (r *Registry) DecoderName(dataID uint32) (string, bool) {
	name, ok := r.decoders[dataID]
	return name, ok
}

// Decoders returns the derived decoder table.
func (r *Registry) Decoders() DecoderTable {
	return r.decoders
}

// Class resolves a decoded data id to its owning hardware class.
func (r *Registry) Class(dataID uint32) (ClassEntry, bool) {
	entry, ok := r.classes[dataID]
	return entry, ok
}

// Classes returns the derived class index.
func (r *Registry) Classes() ClassIndex {
	return r.classes
}

// Collisions returns the data id conflicts observed during derivation.
func (r *Registry) Collisions() []Collision {
	return r.collisions
}

// ObjectInfo returns the card records of the given class, see ExtractObjectInfo.
func (r *Registry) ObjectInfo(className string) []ObjectInfo {
	return ExtractObjectInfo(r.root, className)
}

// RunNumber returns the capture's run number, see RunNumber.
func (r *Registry) RunNumber() (int, error) {
	return RunNumber(r.root)
}

// DeriveDecoderTable walks dataDescription.<class>.<instance>.{dataId,decoder}
// and maps each decoded id (declared id >> 18) to its decoder name. Two
// declarations decoding to the same id with different names are a
// data-integrity fault in the header; the walk keeps the last one and
// returns the conflict so callers can surface it.
func DeriveDecoderTable(root orca.Dict) (DecoderTable, []Collision) {
	table := make(DecoderTable)
	var collisions []Collision
	walkDataDescription(root, func(dataID uint32, _ string, _ string, entry orca.Dict) {
		name, ok := entry.String(keyDecoder)
		if !ok {
			return
		}
		if prev, seen := table[dataID]; seen && prev != name {
			collisions = append(collisions, Collision{DataID: dataID, Kept: name, Dropped: prev})
		}
		table[dataID] = name
	})
	return table, collisions
}

// DeriveClassIndex maps each decoded data id to its owning class and that
// class's instance names. Every id of a class sees the complete instance
// list in sorted order; see DESIGN.md for the rationale.
func DeriveClassIndex(root orca.Dict) ClassIndex {
	instances := make(map[string][]string)
	owners := make(map[uint32]string)
	walkDataDescription(root, func(dataID uint32, className string, instance string, _ orca.Dict) {
		instances[className] = append(instances[className], instance)
		owners[dataID] = className
	})
	index := make(ClassIndex, len(owners))
	for dataID, className := range owners {
		index[dataID] = ClassEntry{ClassName: className, Instances: instances[className]}
	}
	return index
}

// walkDataDescription visits every instance entry carrying a dataId, in
// sorted class-then-instance order.
func walkDataDescription(root orca.Dict, visit func(dataID uint32, className, instance string, entry orca.Dict)) {
	dd, ok := root.Dict(keyDataDescription)
	if !ok {
		return
	}
	for _, className := range dd.Keys() {
		class, ok := dd.Dict(className)
		if !ok {
			continue
		}
		for _, instance := range class.Keys() {
			entry, ok := class.Dict(instance)
			if !ok {
				continue
			}
			declared, ok := entry.Uint32(keyDataID)
			if !ok {
				continue
			}
			visit(declared>>dataIDShift, className, instance, entry)
		}
	}
}

// ExtractObjectInfo walks ObjectInfo.Crates and each crate's Cards, selecting
// cards whose declared class name equals className and stamping the owning
// crate number onto each. Records come back in crate-then-card encounter
// order. A class with no configured cards in this run is expected and yields
// an empty, non-nil result with a logged warning.
func ExtractObjectInfo(root orca.Dict, className string) []ObjectInfo {
	records := []ObjectInfo{}
	objectInfo, ok := root.Dict(keyObjectInfo)
	if !ok {
		common.Logf("object info: header has no %s block", keyObjectInfo)
		return records
	}
	crates, _ := objectInfo.Array(keyCrates)
	for _, rawCrate := range crates {
		crate, ok := asDict(rawCrate)
		if !ok {
			continue
		}
		crateNumber, _ := crate.Int(keyCrateNumber)
		cards, _ := crate.Array(keyCards)
		for _, rawCard := range cards {
			card, ok := asDict(rawCard)
			if !ok {
				continue
			}
			name, ok := card.String(keyClassName)
			if !ok || name != className {
				continue
			}
			cardNumber, _ := card.Int(keyCard)
			records = append(records, ObjectInfo{
				ClassName: className,
				Crate:     crateNumber,
				Card:      cardNumber,
				Fields:    card,
			})
		}
	}
	if len(records) == 0 {
		common.Logf("object info: no cards of class %q in this run", className)
	}
	return records
}

// RunNumber scans ObjectInfo.DataChain for the first entry carrying a
// Run Control dictionary and returns its run number.
func RunNumber(root orca.Dict) (int, error) {
	objectInfo, ok := root.Dict(keyObjectInfo)
	if !ok {
		return 0, ErrMissingRunNumber
	}
	chain, ok := objectInfo.Array(keyDataChain)
	if !ok {
		return 0, ErrMissingRunNumber
	}
	for i, raw := range chain {
		entry, ok := asDict(raw)
		if !ok {
			continue
		}
		rc, ok := entry.Dict(keyRunControl)
		if !ok {
			continue
		}
		run, ok := rc.Int(keyRunNumber)
		if !ok {
			return 0, fmt.Errorf("%w: DataChain entry %d has Run Control without %s", ErrMissingRunNumber, i, keyRunNumber)
		}
		return run, nil
	}
	return 0, ErrMissingRunNumber
}

func asDict(v any) (orca.Dict, bool) {
	switch m := v.(type) {
	case orca.Dict:
		return m, true
	case map[string]any:
		return orca.Dict(m), true
	}
	return nil, false
}
