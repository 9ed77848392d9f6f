package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// NumPy .npy format, versions 1.0 to 3.0. Only the dtypes the feature files
// use are supported: float32/float64 matrices and fixed-width string vectors.

const npyAlign = 64

// maxPrealloc bounds the elements allocated up front when the input size is
// unknown. Larger arrays grow as their data is actually read.
const maxPrealloc = 1 << 16

const (
	maxHeaderLen   = 1 << 20
	maxStringWidth = 1 << 16
)

var (
	npyMagic = []byte("\x93NUMPY")

	reDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	reFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	reShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

type npyHeader struct {
	descr   string
	fortran bool
	shape   []int
}

// dataSize returns the payload size the header declares for items of
// itemSize bytes. It fails when the size overflows or exceeds avail, the
// bytes left in the input (-1 when unknown).
func (h npyHeader) dataSize(itemSize int, avail int64) (int, error) {
	n := itemSize
	for _, d := range h.shape {
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("npy shape %v overflows", h.shape)
		}
		n *= d
	}
	if avail >= 0 && int64(n) > avail {
		return 0, fmt.Errorf("npy shape %v needs %d bytes, input has %d", h.shape, n, avail)
	}
	return n, nil
}

// inputSize reports how many bytes r can still deliver, or -1 if unknown.
func inputSize(r io.Reader) int64 {
	switch v := r.(type) {
	case interface{ Len() int }:
		return int64(v.Len())
	case *os.File:
		info, err := v.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return -1
		}
		off, err := v.Seek(0, io.SeekCurrent)
		if err != nil {
			return -1
		}
		return info.Size() - off
	}
	return -1
}

// byteOrder returns the byte order of the dtype and the remaining type code.
func (h npyHeader) byteOrder() (binary.ByteOrder, string) {
	if h.descr == "" {
		return binary.LittleEndian, ""
	}
	switch h.descr[0] {
	case '>':
		return binary.BigEndian, h.descr[1:]
	case '<', '=', '|':
		return binary.LittleEndian, h.descr[1:]
	default:
		return binary.LittleEndian, h.descr
	}
}

func readNPYHeader(r io.Reader) (npyHeader, error) {
	var h npyHeader

	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return h, fmt.Errorf("read npy magic: %w", err)
	}
	if !bytes.Equal(prefix[:len(npyMagic)], npyMagic) {
		return h, fmt.Errorf("not an npy file")
	}

	var headerLen int
	switch major := prefix[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return h, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return h, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	default:
		return h, fmt.Errorf("unsupported npy version %d", major)
	}

	if headerLen > maxHeaderLen {
		return h, fmt.Errorf("npy header length %d too large", headerLen)
	}
	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return h, fmt.Errorf("read npy header: %w", err)
	}
	text := string(raw)

	m := reDescr.FindStringSubmatch(text)
	if m == nil {
		return h, fmt.Errorf("npy header has no descr: %q", text)
	}
	h.descr = m[1]

	if m := reFortran.FindStringSubmatch(text); m != nil {
		h.fortran = m[1] == "True"
	}

	m = reShape.FindStringSubmatch(text)
	if m == nil {
		return h, fmt.Errorf("npy header has no shape: %q", text)
	}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "L"))
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 {
			return h, fmt.Errorf("invalid npy shape %q", m[1])
		}
		h.shape = append(h.shape, d)
	}

	return h, nil
}

func writeNPYHeader(w io.Writer, descr string, shape []int) error {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	shapeText := "(" + strings.Join(dims, ", ") + ")"
	if len(shape) == 1 {
		shapeText = "(" + dims[0] + ",)"
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeText)

	major, lenBytes := byte(1), 2
	if len(dict)+1+npyAlign > math.MaxUint16 {
		major, lenBytes = 2, 4
	}
	total := len(npyMagic) + 2 + lenBytes + len(dict) + 1
	pad := (npyAlign - total%npyAlign) % npyAlign
	header := dict + strings.Repeat(" ", pad) + "\n"

	buf := bytes.NewBuffer(make([]byte, 0, len(npyMagic)+2+lenBytes+len(header)))
	buf.Write(npyMagic)
	buf.WriteByte(major)
	buf.WriteByte(0)
	if major == 1 {
		binary.Write(buf, binary.LittleEndian, uint16(len(header)))
	} else {
		binary.Write(buf, binary.LittleEndian, uint32(len(header)))
	}
	buf.WriteString(header)

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteMatrix writes rows as a 2-D little-endian float32 array. Every row
// must have length dim.
func WriteMatrix(w io.Writer, rows [][]float32, dim int) error {
	if err := writeNPYHeader(w, "<f4", []int{len(rows), dim}); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	var scratch [4]byte
	for i, row := range rows {
		if len(row) != dim {
			return fmt.Errorf("row %d has length %d, expected %d", i, len(row), dim)
		}
		for _, v := range row {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
			if _, err := bw.Write(scratch[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadMatrix reads a 2-D float32 or float64 array.
func ReadMatrix(r io.Reader) ([][]float32, error) {
	avail := inputSize(r)
	br := bufio.NewReader(r)
	h, err := readNPYHeader(br)
	if err != nil {
		return nil, err
	}
	if len(h.shape) != 2 {
		return nil, fmt.Errorf("expected a 2-D array, got shape %v", h.shape)
	}
	order, code := h.byteOrder()

	var width int
	switch code {
	case "f4":
		width = 4
	case "f8":
		width = 8
	default:
		return nil, fmt.Errorf("unsupported matrix dtype %q", h.descr)
	}

	n, dim := h.shape[0], h.shape[1]
	if dim == 0 && n > 0 {
		return nil, fmt.Errorf("npy shape %v has zero-width rows", h.shape)
	}
	size, err := h.dataSize(width, avail)
	if err != nil {
		return nil, err
	}
	count := size / width

	flat := make([]float32, 0, min(count, maxPrealloc))
	scratch := make([]byte, width)
	for range count {
		if _, err := io.ReadFull(br, scratch); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		if width == 4 {
			flat = append(flat, math.Float32frombits(order.Uint32(scratch)))
		} else {
			flat = append(flat, float32(math.Float64frombits(order.Uint64(scratch))))
		}
	}

	rows := make([][]float32, n)
	for i := range rows {
		row := make([]float32, dim)
		for j := range row {
			if h.fortran {
				row[j] = flat[j*n+i]
			} else {
				row[j] = flat[i*dim+j]
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// WriteStrings writes names as a 1-D fixed-width unicode array, the same
// layout numpy uses for np.array(list_of_str).
func WriteStrings(w io.Writer, names []string) error {
	width := 1
	for _, s := range names {
		if n := utf8.RuneCountInString(s); n > width {
			width = n
		}
	}
	if err := writeNPYHeader(w, "<U"+strconv.Itoa(width), []int{len(names)}); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	cell := make([]byte, 4*width)
	for _, s := range names {
		clear(cell)
		i := 0
		for _, r := range s {
			binary.LittleEndian.PutUint32(cell[i*4:], uint32(r))
			i++
		}
		if _, err := bw.Write(cell); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadStrings reads a 1-D unicode (U) or byte-string (S) array.
func ReadStrings(r io.Reader) ([]string, error) {
	avail := inputSize(r)
	br := bufio.NewReader(r)
	h, err := readNPYHeader(br)
	if err != nil {
		return nil, err
	}
	if len(h.shape) != 1 {
		return nil, fmt.Errorf("expected a 1-D array, got shape %v", h.shape)
	}
	order, code := h.byteOrder()
	if len(code) < 2 {
		return nil, fmt.Errorf("unsupported string dtype %q", h.descr)
	}
	width, err := strconv.Atoi(code[1:])
	if err != nil {
		return nil, fmt.Errorf("unsupported string dtype %q", h.descr)
	}

	var unit int
	switch code[0] {
	case 'U':
		unit = 4
	case 'S':
		unit = 1
	default:
		return nil, fmt.Errorf("unsupported string dtype %q", h.descr)
	}

	if width <= 0 || width > maxStringWidth {
		return nil, fmt.Errorf("unsupported string dtype %q", h.descr)
	}
	if _, err := h.dataSize(unit*width, avail); err != nil {
		return nil, err
	}

	n := h.shape[0]
	out := make([]string, 0, min(n, maxPrealloc))
	cell := make([]byte, unit*width)
	for range n {
		if _, err := io.ReadFull(br, cell); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		if unit == 1 {
			out = append(out, string(bytes.TrimRight(cell, "\x00")))
			continue
		}
		var sb strings.Builder
		for j := 0; j < width; j++ {
			cp := order.Uint32(cell[j*4:])
			if cp == 0 {
				break
			}
			sb.WriteRune(rune(cp))
		}
		out = append(out, sb.String())
	}
	return out, nil
}
