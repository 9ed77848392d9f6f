package store

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixRoundTrip(t *testing.T) {
	rows := [][]float32{{1, 2, 3}, {-4, 0.5, float32(math.Pi)}}

	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, rows, 3))

	assert.Equal(t, 0, (buf.Len()-6*4)%npyAlign, "data must start on a 64-byte boundary")

	got, err := ReadMatrix(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestWriteMatrix_HeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, [][]float32{{1, 2}}, 2))

	data := buf.Bytes()
	assert.Equal(t, "\x93NUMPY", string(data[:6]))
	assert.Equal(t, byte(1), data[6])
	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	header := string(data[10 : 10+headerLen])
	assert.Contains(t, header, "'descr': '<f4'")
	assert.Contains(t, header, "'shape': (1, 2)")
	assert.Equal(t, byte('\n'), header[len(header)-1])
	assert.Equal(t, 0, (10+headerLen)%npyAlign)
}

func TestStringsRoundTrip(t *testing.T) {
	names := []string{"a.jpg", "longer_name.jpeg", "ünïcode.png", ""}

	var buf bytes.Buffer
	require.NoError(t, WriteStrings(&buf, names))
	assert.Contains(t, buf.String(), "'descr': '<U16'")

	got, err := ReadStrings(&buf)
	require.NoError(t, err)
	assert.Equal(t, names, got)
}

// npyFixture builds a file the way numpy would for a given header and payload.
func npyFixture(header string, payload []byte) []byte {
	total := 10 + len(header) + 1
	pad := (16 - total%16) % 16
	full := header + string(bytes.Repeat([]byte(" "), pad)) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	binary.Write(&buf, binary.LittleEndian, uint16(len(full)))
	buf.WriteString(full)
	buf.Write(payload)
	return buf.Bytes()
}

func TestReadMatrix_Float64FortranOrder(t *testing.T) {
	// [[1, 2, 3], [4, 5, 6]] stored column-major.
	var payload bytes.Buffer
	for _, v := range []float64{1, 4, 2, 5, 3, 6} {
		binary.Write(&payload, binary.LittleEndian, v)
	}
	data := npyFixture("{'descr': '<f8', 'fortran_order': True, 'shape': (2, 3), }", payload.Bytes())

	got, err := ReadMatrix(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, got)
}

func TestReadStrings_ByteStrings(t *testing.T) {
	payload := []byte("ab\x00\x00cdef")
	data := npyFixture("{'descr': '|S4', 'fortran_order': False, 'shape': (2,), }", payload)

	got, err := ReadStrings(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "cdef"}, got)
}

func TestReadMatrix_Errors(t *testing.T) {
	_, err := ReadMatrix(bytes.NewReader([]byte("not numpy at all")))
	assert.Error(t, err)

	oneD := npyFixture("{'descr': '<f4', 'fortran_order': False, 'shape': (2,), }", make([]byte, 8))
	_, err = ReadMatrix(bytes.NewReader(oneD))
	assert.Error(t, err)

	truncated := npyFixture("{'descr': '<f4', 'fortran_order': False, 'shape': (2, 2), }", make([]byte, 8))
	_, err = ReadMatrix(bytes.NewReader(truncated))
	assert.Error(t, err)

	ints := npyFixture("{'descr': '<i8', 'fortran_order': False, 'shape': (1, 1), }", make([]byte, 8))
	_, err = ReadMatrix(bytes.NewReader(ints))
	assert.Error(t, err)
}

func TestReadMatrix_CorruptShape(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"overflowing shape", "{'descr': '<f4', 'fortran_order': False, 'shape': (4611686018427387904, 4), }"},
		{"shape larger than input", "{'descr': '<f4', 'fortran_order': False, 'shape': (1000000, 2048), }"},
		{"zero-width rows", "{'descr': '<f4', 'fortran_order': False, 'shape': (4611686018427387904, 0), }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := npyFixture(tt.header, make([]byte, 16))

			_, err := ReadMatrix(bytes.NewReader(data))
			assert.Error(t, err)

			// Without a known input size the read must still fail cleanly.
			_, err = ReadMatrix(io.MultiReader(bytes.NewReader(data)))
			assert.Error(t, err)
		})
	}
}

func TestReadStrings_CorruptShape(t *testing.T) {
	for _, header := range []string{
		"{'descr': '<U8', 'fortran_order': False, 'shape': (4611686018427387904,), }",
		"{'descr': '<U8', 'fortran_order': False, 'shape': (1000000,), }",
		"{'descr': '<U0', 'fortran_order': False, 'shape': (4611686018427387904,), }",
		"{'descr': '<U9223372036854775807', 'fortran_order': False, 'shape': (0,), }",
	} {
		data := npyFixture(header, make([]byte, 16))
		_, err := ReadStrings(bytes.NewReader(data))
		assert.Error(t, err, header)
		_, err = ReadStrings(io.MultiReader(bytes.NewReader(data)))
		assert.Error(t, err, header)
	}
}
