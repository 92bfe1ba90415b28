package loadctx

import "strings"

// Shape says how a host-provided type is rendered structurally.
type Shape int

const (
	// ShapeOpaque is a host type with no structural mapping. It renders as a
	// plain object and is never expanded.
	ShapeOpaque Shape = iota
	ShapeString
	ShapeBoolean
	ShapeInteger
	ShapeNumber
	ShapeAny
	// ShapeArray renders as an array of its first type argument.
	ShapeArray
	// ShapeMap renders as an object whose additional properties follow the
	// second type argument.
	ShapeMap
	// ShapeOptional renders as its first type argument, nullable.
	ShapeOptional
)

// HostType is a type supplied by the shared host rather than by the
// request's private search path.
type HostType struct {
	Name     string
	Shape    Shape
	Nullable bool // OptionalInt and friends
	Known    bool // false for host-owned names outside the table
}

// DefaultHostPrefixes are the package prefixes always delegated to the host.
var DefaultHostPrefixes = []string{
	"java.",
	"javax.",
	"jdk.",
	"sun.",
	"com.fasterxml.jackson.annotation.",
}

// Host is the shared, read-only registry of host types. It is safe for
// concurrent use once built.
type Host struct {
	prefixes []string
	types    map[string]HostType
}

// NewHost returns the registry with the built-in JDK type table.
func NewHost() *Host {
	h := &Host{
		prefixes: DefaultHostPrefixes,
		types:    make(map[string]HostType, 160),
	}
	for shape, names := range hostTable {
		for _, n := range names {
			h.types[n] = HostType{Name: n, Shape: shape, Known: true}
		}
	}
	for _, n := range []string{"java.util.OptionalInt", "java.util.OptionalLong"} {
		h.types[n] = HostType{Name: n, Shape: ShapeInteger, Nullable: true, Known: true}
	}
	h.types["java.util.OptionalDouble"] = HostType{Name: "java.util.OptionalDouble", Shape: ShapeNumber, Nullable: true, Known: true}
	return h
}

// Owns reports whether name is delegated to the host.
func (h *Host) Owns(name string) bool {
	for _, p := range h.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Lookup returns the host view of a host-owned name. Names outside the table
// are reported as opaque.
func (h *Host) Lookup(name string) (HostType, bool) {
	if !h.Owns(name) {
		return HostType{}, false
	}
	if t, ok := h.types[name]; ok {
		return t, true
	}
	return HostType{Name: name, Shape: ShapeOpaque}, true
}

var hostTable = map[Shape][]string{
	ShapeString: {
		"java.lang.String",
		"java.lang.CharSequence",
		"java.lang.Character",
		"java.lang.StringBuilder",
		"java.lang.StringBuffer",
		"java.util.UUID",
		"java.util.Date",
		"java.util.Calendar",
		"java.util.Locale",
		"java.util.Currency",
		"java.util.TimeZone",
		"java.util.regex.Pattern",
		"java.net.URI",
		"java.net.URL",
		"java.io.File",
		"java.nio.file.Path",
		"java.nio.charset.Charset",
		"java.sql.Date",
		"java.sql.Time",
		"java.sql.Timestamp",
		"java.time.Duration",
		"java.time.Instant",
		"java.time.LocalDate",
		"java.time.LocalDateTime",
		"java.time.LocalTime",
		"java.time.MonthDay",
		"java.time.OffsetDateTime",
		"java.time.OffsetTime",
		"java.time.Period",
		"java.time.Year",
		"java.time.YearMonth",
		"java.time.ZoneId",
		"java.time.ZoneOffset",
		"java.time.ZonedDateTime",
		"java.time.DayOfWeek",
		"java.time.Month",
		"java.time.temporal.ChronoUnit",
		"java.math.RoundingMode",
		"java.util.concurrent.TimeUnit",
	},
	ShapeBoolean: {
		"java.lang.Boolean",
		"java.util.concurrent.atomic.AtomicBoolean",
	},
	ShapeInteger: {
		"java.lang.Byte",
		"java.lang.Short",
		"java.lang.Integer",
		"java.lang.Long",
		"java.math.BigInteger",
		"java.util.concurrent.atomic.AtomicInteger",
		"java.util.concurrent.atomic.AtomicLong",
		"java.util.concurrent.atomic.LongAdder",
	},
	ShapeNumber: {
		"java.lang.Float",
		"java.lang.Double",
		"java.lang.Number",
		"java.math.BigDecimal",
		"java.util.concurrent.atomic.DoubleAdder",
	},
	ShapeAny: {
		"java.lang.Object",
	},
	ShapeArray: {
		"java.lang.Iterable",
		"java.util.Collection",
		"java.util.List",
		"java.util.Set",
		"java.util.SortedSet",
		"java.util.NavigableSet",
		"java.util.SequencedCollection",
		"java.util.SequencedSet",
		"java.util.Queue",
		"java.util.Deque",
		"java.util.ArrayList",
		"java.util.LinkedList",
		"java.util.HashSet",
		"java.util.LinkedHashSet",
		"java.util.TreeSet",
		"java.util.EnumSet",
		"java.util.ArrayDeque",
		"java.util.PriorityQueue",
		"java.util.Vector",
		"java.util.Stack",
		"java.util.concurrent.CopyOnWriteArrayList",
		"java.util.concurrent.CopyOnWriteArraySet",
		"java.util.concurrent.ConcurrentLinkedQueue",
		"java.util.concurrent.ConcurrentLinkedDeque",
		"java.util.concurrent.ConcurrentSkipListSet",
		"java.util.concurrent.BlockingQueue",
		"java.util.concurrent.LinkedBlockingQueue",
		"java.util.concurrent.ArrayBlockingQueue",
	},
	ShapeMap: {
		"java.util.Map",
		"java.util.SortedMap",
		"java.util.NavigableMap",
		"java.util.SequencedMap",
		"java.util.HashMap",
		"java.util.LinkedHashMap",
		"java.util.TreeMap",
		"java.util.Hashtable",
		"java.util.EnumMap",
		"java.util.WeakHashMap",
		"java.util.IdentityHashMap",
		"java.util.Properties",
		"java.util.concurrent.ConcurrentMap",
		"java.util.concurrent.ConcurrentHashMap",
		"java.util.concurrent.ConcurrentNavigableMap",
		"java.util.concurrent.ConcurrentSkipListMap",
	},
	ShapeOptional: {
		"java.util.Optional",
	},
}
