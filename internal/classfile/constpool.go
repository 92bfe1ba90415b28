package classfile

import (
	"math"
	"strings"
)

// Constant pool tags.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

type cpEntry struct {
	tag  uint8
	a, b uint16
	str  string
	num  uint64
}

type constPool []cpEntry

func readConstPool(r *reader) constPool {
	count := int(r.u2())
	if count == 0 {
		r.fail("constant pool count is zero")
		return nil
	}
	pool := make(constPool, count)
	for i := 1; i < count && r.err == nil; i++ {
		e := cpEntry{tag: r.u1()}
		switch e.tag {
		case TagUtf8:
			n := int(r.u2())
			raw := r.bytes(n)
			s, ok := decodeMUTF8(raw)
			if !ok && r.err == nil {
				r.fail("invalid modified UTF-8 in constant %d", i)
			}
			e.str = s
		case TagInteger, TagFloat:
			e.num = uint64(r.u4())
		case TagLong, TagDouble:
			hi := uint64(r.u4())
			lo := uint64(r.u4())
			e.num = hi<<32 | lo
			pool[i] = e
			i++ // eight-byte constants take two slots
			continue
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			e.a = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			e.a = r.u2()
			e.b = r.u2()
		case TagMethodHandle:
			e.a = uint16(r.u1())
			e.b = r.u2()
		default:
			r.fail("unknown constant pool tag %d at index %d", e.tag, i)
		}
		pool[i] = e
	}
	return pool
}

func (p constPool) entry(r *reader, idx uint16, tag uint8) (cpEntry, bool) {
	if int(idx) <= 0 || int(idx) >= len(p) || p[idx].tag != tag {
		r.fail("constant %d is not tag %d", idx, tag)
		return cpEntry{}, false
	}
	return p[idx], true
}

func (p constPool) utf8(r *reader, idx uint16) string {
	e, _ := p.entry(r, idx, TagUtf8)
	return e.str
}

// className returns the binary name of a CONSTANT_Class in dotted form.
func (p constPool) className(r *reader, idx uint16) string {
	e, ok := p.entry(r, idx, TagClass)
	if !ok {
		return ""
	}
	return InternalToBinary(p.utf8(r, e.a))
}

func (p constPool) integer(r *reader, idx uint16) int64 {
	e, _ := p.entry(r, idx, TagInteger)
	return int64(int32(uint32(e.num)))
}

func (p constPool) long(r *reader, idx uint16) int64 {
	e, _ := p.entry(r, idx, TagLong)
	return int64(e.num)
}

func (p constPool) float(r *reader, idx uint16) float64 {
	e, _ := p.entry(r, idx, TagFloat)
	return float64(math.Float32frombits(uint32(e.num)))
}

func (p constPool) double(r *reader, idx uint16) float64 {
	e, _ := p.entry(r, idx, TagDouble)
	return math.Float64frombits(e.num)
}

// InternalToBinary converts "java/util/Map$Entry" to "java.util.Map$Entry".
func InternalToBinary(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

// BinaryToInternal converts "java.util.Map$Entry" to "java/util/Map$Entry".
func BinaryToInternal(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}
