package wire

// Display names travel as base-37 packed 64-bit integers: a-z map to 1..26,
// 0-9 to 27..36 and everything else is skipped. 37^12 < 2^64 < 37^13, so up
// to twelve significant characters fit. Packing inputs that contain skipped
// characters is lossy; the protocol accepts that.

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// PackName folds a display name into its base-37 wire form.
func PackName(name string) uint64 {
	var v uint64
	n := 0
	for i := 0; i < len(name) && n < 12; i++ {
		c := name[i]
		var d uint64
		switch {
		case c >= 'a' && c <= 'z':
			d = uint64(c-'a') + 1
		case c >= 'A' && c <= 'Z':
			d = uint64(c-'A') + 1
		case c >= '0' && c <= '9':
			d = uint64(c-'0') + 27
		default:
			continue
		}
		v = v*37 + d
		n++
	}
	return v
}

// UnpackName expands a base-37 value back into lowercase text. Characters
// skipped at pack time are gone for good.
func UnpackName(v uint64) string {
	if v == 0 {
		return ""
	}
	var buf [13]byte
	i := len(buf)
	for v != 0 && i > 0 {
		d := v % 37
		v /= 37
		i--
		if d == 0 {
			buf[i] = '_'
		} else {
			buf[i] = nameAlphabet[d-1]
		}
	}
	return string(buf[i:])
}
