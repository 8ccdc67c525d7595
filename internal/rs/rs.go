// Package rs implements a GF(256) Reed-Solomon error-correcting code
// with a fixed 8-byte parity overhead, correcting up to 4 byte errors
// per codeword at unknown locations.
//
// No library in the retrieved example corpus performs this kind of
// correction: github.com/klauspost/reedsolomon, the one RS library
// anywhere in the pack, only reconstructs erasures at already-known
// shard positions (disk/network "this shard is simply missing"), not
// blind byte-error correction at unknown positions within a single
// buffer — a different problem requiring syndrome decoding and an
// error-locator search. It is hand-rolled here in
// table-driven byte-algorithm style (core/crc16.go's table-driven CRC
// computation, before it was superseded by this component), the
// closest grounding available in the pack for this kind of codec.
// See DESIGN.md.
package rs

import "errors"

// NumParity is the number of parity bytes appended to every codeword,
// correcting up to NumParity/2 byte errors at unknown locations.
const NumParity = 8

// MaxCorrectable is the number of byte errors a codeword can recover
// from, regardless of which symbols are affected.
const MaxCorrectable = NumParity / 2

// ErrTooManyErrors is returned when a codeword has more corrupted
// bytes than the code can correct; its contents cannot be trusted.
var ErrTooManyErrors = errors.New("rs: too many errors to correct")

const (
	fieldSize   = 256
	primitive   = 0x11d // x^8 + x^4 + x^3 + x^2 + 1, standard GF(256) generator
	generatorRoot = 0
)

var expTable [fieldSize * 2]byte
var logTable [fieldSize]byte

func init() {
	x := 1
	for i := 0; i < fieldSize-1; i++ {
		expTable[i] = byte(x)
		logTable[byte(x)] = byte(i)
		x <<= 1
		if x >= fieldSize {
			x ^= primitive
		}
	}
	for i := fieldSize - 1; i < len(expTable); i++ {
		expTable[i] = expTable[i-(fieldSize-1)]
	}
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[int(logTable[a])+int(logTable[b])]
}

func gfDiv(a, b byte) byte {
	if a == 0 {
		return 0
	}
	if b == 0 {
		panic("rs: division by zero in GF(256)")
	}
	return expTable[(int(logTable[a])+fieldSize-1-int(logTable[b]))%(fieldSize-1)]
}

func gfPow(a byte, n int) byte {
	if a == 0 {
		return 0
	}
	return expTable[(int(logTable[a])*n)%(fieldSize-1)]
}

func gfInv(a byte) byte {
	return expTable[(fieldSize-1-int(logTable[a]))%(fieldSize-1)]
}

// generatorPoly returns the degree-NumParity generator polynomial,
// coefficients highest-degree-first, used both to compute parity on
// encode and to build the syndrome weighting on decode.
func generatorPoly() []byte {
	g := []byte{1}
	for i := 0; i < NumParity; i++ {
		g = polyMulMonic(g, []byte{1, gfPow(2, i)})
	}
	return g
}

// polyMulMonic multiplies two polynomials over GF(256), coefficients
// highest-degree-first.
func polyMulMonic(a, b []byte) []byte {
	out := make([]byte, len(a)+len(b)-1)
	for i, ac := range a {
		if ac == 0 {
			continue
		}
		for j, bc := range b {
			out[i+j] ^= gfMul(ac, bc)
		}
	}
	return out
}

func polyEval(p []byte, x byte) byte {
	var y byte
	for _, c := range p {
		y = gfMul(y, x) ^ c
	}
	return y
}

// Encode appends NumParity Reed-Solomon parity bytes to data and
// returns the resulting codeword. data must be non-empty; codewords
// longer than 255 bytes are not supported by this GF(256) instance.
func Encode(data []byte) []byte {
	if len(data) == 0 {
		panic("rs: cannot encode empty data")
	}
	if len(data)+NumParity > 255 {
		panic("rs: codeword would exceed 255 bytes")
	}

	gen := generatorPoly()
	remainder := make([]byte, len(data)+NumParity)
	copy(remainder, data)

	for i := 0; i < len(data); i++ {
		coeff := remainder[i]
		if coeff == 0 {
			continue
		}
		for j, gc := range gen {
			remainder[i+j] ^= gfMul(gc, coeff)
		}
	}

	out := make([]byte, len(data)+NumParity)
	copy(out, data)
	copy(out[len(data):], remainder[len(data):])
	return out
}

// Decode corrects up to MaxCorrectable byte errors in codeword and
// returns the original data (codeword without its parity suffix). It
// returns ErrTooManyErrors if the codeword cannot be corrected to a
// valid codeword with the available parity.
func Decode(codeword []byte) ([]byte, error) {
	if len(codeword) <= NumParity {
		panic("rs: codeword too short to contain data and parity")
	}

	syndromes := computeSyndromes(codeword)
	if allZero(syndromes) {
		return append([]byte(nil), codeword[:len(codeword)-NumParity]...), nil
	}

	errLocator := berlekampMassey(syndromes)
	if len(errLocator)-1 > MaxCorrectable {
		return nil, ErrTooManyErrors
	}

	errPositions, ok := chienSearch(errLocator, len(codeword))
	if !ok || len(errPositions) != len(errLocator)-1 {
		return nil, ErrTooManyErrors
	}

	corrected := append([]byte(nil), codeword...)
	if err := forneyCorrect(corrected, syndromes, errLocator, errPositions); err != nil {
		return nil, err
	}

	syndromesAfter := computeSyndromes(corrected)
	if !allZero(syndromesAfter) {
		return nil, ErrTooManyErrors
	}

	return corrected[:len(corrected)-NumParity], nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// computeSyndromes evaluates the received codeword polynomial at each
// of the NumParity roots of the generator; all-zero syndromes mean no
// error was detected.
func computeSyndromes(codeword []byte) []byte {
	syn := make([]byte, NumParity)
	for i := 0; i < NumParity; i++ {
		syn[i] = polyEval(codeword, gfPow(2, i))
	}
	return syn
}

// berlekampMassey finds the shortest linear feedback shift register
// (the error-locator polynomial) that generates the syndrome sequence.
func berlekampMassey(syndromes []byte) []byte {
	c := make([]byte, len(syndromes)+1)
	b := make([]byte, len(syndromes)+1)
	c[0], b[0] = 1, 1

	l := 0
	m := 1
	bCoeff := byte(1)

	for n := 0; n < len(syndromes); n++ {
		var delta byte
		for i := 0; i <= l; i++ {
			delta ^= gfMul(c[i], syndromes[n-i])
		}
		if delta == 0 {
			m++
			continue
		}
		t := append([]byte(nil), c...)
		coeff := gfDiv(delta, bCoeff)
		for i := 0; i < len(b)-m; i++ {
			c[i+m] ^= gfMul(coeff, b[i])
		}
		if 2*l <= n {
			l = n + 1 - l
			b = t
			bCoeff = delta
			m = 1
		} else {
			m++
		}
	}

	out := make([]byte, l+1)
	copy(out, c[:l+1])
	return out
}

// chienSearch finds the roots of the error-locator polynomial by
// brute-force evaluation over every nonzero field element within the
// codeword's length, returning the corresponding error byte positions
// (index from the start of codeword, 0-based).
func chienSearch(errLocator []byte, codewordLen int) ([]int, bool) {
	// errLocator is lowest-degree-first, as berlekampMassey's c[] array
	// is stored; reverse it into highest-degree-first for polyEval.
	rev := reverseBytes(errLocator)

	var positions []int
	for i := 0; i < codewordLen; i++ {
		x := gfInv(gfPow(2, i))
		if polyEval(rev, x) == 0 {
			positions = append(positions, codewordLen-1-i)
		}
	}
	return positions, len(positions) > 0
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// forneyCorrect computes each error's magnitude via the Forney
// algorithm and XORs it into the corresponding codeword byte in place.
func forneyCorrect(codeword, syndromes, errLocator []byte, positions []int) error {
	errLocRev := reverseBytes(errLocator)
	omega := errorEvaluator(syndromes, errLocRev, len(positions))

	locRevDeriv := formalDerivative(errLocRev)

	for _, pos := range positions {
		i := len(codeword) - 1 - pos
		xInv := gfPow(2, i)
		x := gfInv(xInv)

		num := polyEval(omega, x)
		den := polyEval(locRevDeriv, x)
		if den == 0 {
			return ErrTooManyErrors
		}
		// First-consecutive-root is 0 (generatorPoly's roots start at
		// alpha^0), so the Forney magnitude needs the extra X_k factor:
		// e_k = X_k * Omega(X_k^-1) / Lambda'(X_k^-1).
		magnitude := gfMul(xInv, gfDiv(num, den))
		codeword[pos] ^= magnitude
	}
	return nil
}

// errorEvaluator computes the error evaluator polynomial
// omega(x) = [S(x) * Lambda(x)] mod x^NumParity, keeping the
// NumParity lowest-degree terms; numErrors does not affect the result.
func errorEvaluator(syndromes, errLocRev []byte, numErrors int) []byte {
	synRev := reverseBytes(syndromes)
	product := polyMulMonic(synRev, errLocRev)
	if len(product) > NumParity {
		product = product[len(product)-NumParity:]
	}
	return product
}

// formalDerivative computes the formal derivative of a polynomial over
// GF(2^8): odd-degree terms survive, even-degree terms vanish (since
// coefficients are added mod 2).
func formalDerivative(p []byte) []byte {
	n := len(p)
	out := make([]byte, n-1)
	// p is highest-degree-first with degree n-1; term at index i has
	// degree n-1-i and lands at index i of out (degree n-2-i).
	for i := 0; i < n-1; i++ {
		degree := n - 1 - i
		if degree%2 == 1 {
			out[i] = p[i]
		}
	}
	return out
}
