package importer

// Kind identifies the entity kind an ephemeral identifier belongs to.
type Kind int

const (
	KindCarrier Kind = iota
	KindLine
	KindStop
	KindCode
	KindConnection
	KindStopConnection
)

func (k Kind) String() string {
	switch k {
	case KindCarrier:
		return "carrier"
	case KindLine:
		return "line"
	case KindStop:
		return "stop"
	case KindCode:
		return "code"
	case KindConnection:
		return "connection"
	case KindStopConnection:
		return "stop connection"
	default:
		return "unknown"
	}
}

type idKey struct {
	kind      Kind
	ephemeral int
}

// IDMap maps file-local ephemeral identifiers to persisted ids for the
// lifetime of one import run. It is append-only: the first id recorded for
// a key wins, matching a first-match scan over the source file.
type IDMap struct {
	ids    map[idKey]int64
	counts map[Kind]int
}

// NewIDMap returns an empty map.
func NewIDMap() *IDMap {
	return &IDMap{
		ids:    make(map[idKey]int64),
		counts: make(map[Kind]int),
	}
}

// Put records id for (kind, ephemeral). It reports false if the key was
// already present, in which case the existing mapping is kept.
func (m *IDMap) Put(kind Kind, ephemeral int, id int64) bool {
	key := idKey{kind: kind, ephemeral: ephemeral}
	if _, ok := m.ids[key]; ok {
		return false
	}
	m.ids[key] = id
	m.counts[kind]++
	return true
}

// Lookup returns the persisted id for (kind, ephemeral).
func (m *IDMap) Lookup(kind Kind, ephemeral int) (int64, bool) {
	id, ok := m.ids[idKey{kind: kind, ephemeral: ephemeral}]
	return id, ok
}

// Ref resolves an optional ephemeral identifier to a nullable reference.
// An absent or unknown identifier yields nil.
func (m *IDMap) Ref(kind Kind, ephemeral *int) *int64 {
	if ephemeral == nil {
		return nil
	}
	id, ok := m.Lookup(kind, *ephemeral)
	if !ok {
		return nil
	}
	return &id
}

// Len returns the number of identifiers recorded for kind.
func (m *IDMap) Len(kind Kind) int {
	return m.counts[kind]
}
