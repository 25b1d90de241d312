package wire

// Isaac is the ISAAC pseudo-random generator used as the frame tag
// keystream. Each login negotiates two instances: one for inbound opcodes
// seeded with the client's four seed words, one for outbound tags seeded
// with the same words plus 50.
type Isaac struct {
	rsl [256]uint32
	mem [256]uint32
	a   uint32
	b   uint32
	c   uint32
	n   int
}

var _ Keystream = (*Isaac)(nil)

// NewIsaac creates a generator from up to 256 seed words.
func NewIsaac(seed []uint32) *Isaac {
	r := &Isaac{}
	copy(r.rsl[:], seed)
	r.init()
	return r
}

// Next returns the next 32-bit keystream value.
func (r *Isaac) Next() uint32 {
	if r.n == 0 {
		r.generate()
		r.n = 256
	}
	r.n--
	return r.rsl[r.n]
}

func (r *Isaac) generate() {
	r.c++
	r.b += r.c
	for i := 0; i < 256; i++ {
		x := r.mem[i]
		switch i & 3 {
		case 0:
			r.a ^= r.a << 13
		case 1:
			r.a ^= r.a >> 6
		case 2:
			r.a ^= r.a << 2
		case 3:
			r.a ^= r.a >> 16
		}
		r.a += r.mem[(i+128)&0xFF]
		y := r.mem[(x>>2)&0xFF] + r.a + r.b
		r.mem[i] = y
		r.b = r.mem[(y>>10)&0xFF] + x
		r.rsl[i] = r.b
	}
}

func (r *Isaac) init() {
	var a, b, c, d, e, f, g, h uint32 = goldenRatio, goldenRatio, goldenRatio,
		goldenRatio, goldenRatio, goldenRatio, goldenRatio, goldenRatio

	mix := func() {
		a ^= b << 11
		d += a
		b += c
		b ^= c >> 2
		e += b
		c += d
		c ^= d << 8
		f += c
		d += e
		d ^= e >> 16
		g += d
		e += f
		e ^= f << 10
		h += e
		f += g
		f ^= g >> 4
		a += f
		g += h
		g ^= h << 8
		b += g
		h += a
		h ^= a >> 9
		c += h
		a += b
	}

	for i := 0; i < 4; i++ {
		mix()
	}
	for i := 0; i < 256; i += 8 {
		a += r.rsl[i]
		b += r.rsl[i+1]
		c += r.rsl[i+2]
		d += r.rsl[i+3]
		e += r.rsl[i+4]
		f += r.rsl[i+5]
		g += r.rsl[i+6]
		h += r.rsl[i+7]
		mix()
		r.mem[i] = a
		r.mem[i+1] = b
		r.mem[i+2] = c
		r.mem[i+3] = d
		r.mem[i+4] = e
		r.mem[i+5] = f
		r.mem[i+6] = g
		r.mem[i+7] = h
	}
	for i := 0; i < 256; i += 8 {
		a += r.mem[i]
		b += r.mem[i+1]
		c += r.mem[i+2]
		d += r.mem[i+3]
		e += r.mem[i+4]
		f += r.mem[i+5]
		g += r.mem[i+6]
		h += r.mem[i+7]
		mix()
		r.mem[i] = a
		r.mem[i+1] = b
		r.mem[i+2] = c
		r.mem[i+3] = d
		r.mem[i+4] = e
		r.mem[i+5] = f
		r.mem[i+6] = g
		r.mem[i+7] = h
	}
	r.generate()
	r.n = 256
}

const goldenRatio = 0x9E3779B9
