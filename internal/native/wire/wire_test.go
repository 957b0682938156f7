package wire

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	bridgeerrors "github.com/Iron-Ham/spatialbridge/internal/errors"
)

// sampleSize: version(4) + id(16) + label(8) + count(4) + flag(1) + pad(3) + pos(12) + stamp(8)
const sampleSize = 4 + 16 + 8 + 4 + 1 + 3 + 12 + 8

type sample struct {
	ID    uuid.UUID
	Label string
	Count uint32
	Flag  bool
	Pos   Vec3
	Stamp uint64
}

func encodeSample(s sample) ([]byte, error) {
	w := NewWriter("sample", sampleSize, 2)
	w.UUID("id", s.ID)
	w.String("label", s.Label, 8)
	w.Uint32("count", s.Count)
	w.Bool("flag", s.Flag)
	w.Pad(3)
	w.Vec3("pos", s.Pos)
	w.Uint64("stamp", s.Stamp)
	return w.Finish()
}

func decodeSample(b []byte) (sample, error) {
	r := NewReader("sample", b, sampleSize, 2)
	s := sample{
		ID:    r.UUID("id"),
		Label: r.String("label", 8),
		Count: r.Uint32("count"),
		Flag:  r.Bool("flag"),
	}
	r.Skip(3)
	s.Pos = r.Vec3("pos")
	s.Stamp = r.Uint64("stamp")
	return s, r.Err()
}

func TestRecord_Layout(t *testing.T) {
	in := sample{
		ID:    uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Label: "chair",
		Count: 3,
		Flag:  true,
		Pos:   Vec3{X: 1, Y: -2.5, Z: 0.25},
		Stamp: 1 << 40,
	}

	b, err := encodeSample(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(b) != sampleSize {
		t.Fatalf("len = %d, want %d", len(b), sampleSize)
	}
	if b[0] != 2 || b[1] != 0 {
		t.Errorf("version header not little-endian: % x", b[:4])
	}
	if b[4+16+5] != 0 {
		t.Error("label must be NUL terminated inside its field")
	}

	out, err := decodeSample(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("decoded record mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_RejectsWrongSize(t *testing.T) {
	for _, n := range []int{0, sampleSize - 1, sampleSize + 1} {
		_, err := decodeSample(make([]byte, n))
		if !errors.Is(err, bridgeerrors.ErrRecordSize) {
			t.Errorf("len %d: err = %v, want ErrRecordSize", n, err)
		}
	}
}

func TestReader_RejectsWrongVersion(t *testing.T) {
	b, err := encodeSample(sample{Label: "x"})
	if err != nil {
		t.Fatal(err)
	}
	b[0] = 9

	_, err = decodeSample(b)
	if !errors.Is(err, bridgeerrors.ErrRecordVersion) {
		t.Errorf("err = %v, want ErrRecordVersion", err)
	}
}

func TestReader_RejectsUnterminatedString(t *testing.T) {
	b, err := encodeSample(sample{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 8; i++ {
		b[4+16+i] = 'a'
	}

	_, err = decodeSample(b)
	if !errors.Is(err, bridgeerrors.ErrFieldOverflow) {
		t.Errorf("err = %v, want ErrFieldOverflow", err)
	}
}

func TestWriter_StringOverflow(t *testing.T) {
	_, err := encodeSample(sample{Label: "12345678"})
	if !errors.Is(err, bridgeerrors.ErrFieldOverflow) {
		t.Errorf("err = %v, want ErrFieldOverflow", err)
	}

	var recErr *bridgeerrors.RecordError
	if !errors.As(err, &recErr) || recErr.Field != "label" {
		t.Errorf("expected RecordError for field label, got %v", err)
	}
}

func TestWriter_Underfilled(t *testing.T) {
	w := NewWriter("short", 12, 1)
	w.Uint32("a", 1)
	if _, err := w.Finish(); !errors.Is(err, bridgeerrors.ErrRecordSize) {
		t.Errorf("err = %v, want ErrRecordSize", err)
	}
}

func TestWriter_Overfilled(t *testing.T) {
	w := NewWriter("tiny", 8, 1)
	w.Uint32("a", 1)
	w.Uint32("b", 2)
	if _, err := w.Finish(); !errors.Is(err, bridgeerrors.ErrRecordSize) {
		t.Errorf("err = %v, want ErrRecordSize", err)
	}
}

func TestBytesField(t *testing.T) {
	w := NewWriter("blob", 4+4+8, 1)
	data := []byte{0xde, 0xad, 0xbe}
	w.Uint32("len", uint32(len(data)))
	w.Bytes("data", data, 8)
	b, err := w.Finish()
	if err != nil {
		t.Fatal(err)
	}

	r := NewReader("blob", b, 16, 1)
	n := r.Uint32("len")
	got := r.Bytes("data", 8, n)
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Errorf("bytes mismatch (-want +got):\n%s", diff)
	}

	got[0] = 0
	if b[8] != 0xde {
		t.Error("decoded bytes must not alias the record")
	}

	r = NewReader("blob", b, 16, 1)
	r.Uint32("len")
	r.Bytes("data", 8, 9)
	if !errors.Is(r.Err(), bridgeerrors.ErrFieldOverflow) {
		t.Errorf("length beyond capacity should fail, got %v", r.Err())
	}
}
