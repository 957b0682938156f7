package barcode

import (
	"math/bits"
	"strings"

	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/native/wire"
)

// ErrUnknownType indicates a barcode record names no single known symbology.
var ErrUnknownType = errors.New("unknown barcode type")

// Type is a bitmask of barcode symbologies.
type Type uint32

const (
	QR Type = 1 << iota
	EAN13
	UPCA
	Code128
	DataMatrix
	Aztec

	// All enables every supported symbology.
	All = QR | EAN13 | UPCA | Code128 | DataMatrix | Aztec
)

var typeNames = []struct {
	t    Type
	name string
}{
	{QR, "qr"},
	{EAN13, "ean13"},
	{UPCA, "upca"},
	{Code128, "code128"},
	{DataMatrix, "datamatrix"},
	{Aztec, "aztec"},
}

// String lists the set bits, e.g. "qr|ean13".
func (t Type) String() string {
	if t == 0 {
		return "none"
	}
	var names []string
	for _, tn := range typeNames {
		if t&tn.t != 0 {
			names = append(names, tn.name)
		}
	}
	if rest := t &^ All; rest != 0 {
		names = append(names, "unknown")
	}
	return strings.Join(names, "|")
}

// ParseType parses a single symbology name.
func ParseType(name string) (Type, bool) {
	for _, tn := range typeNames {
		if tn.name == strings.ToLower(name) {
			return tn.t, true
		}
	}
	return 0, false
}

// ParseTypes ORs together a list of symbology names.
func ParseTypes(names []string) (Type, error) {
	var t Type
	for _, n := range names {
		v, ok := ParseType(n)
		if !ok {
			return 0, errors.NewValidationError("unknown barcode type").WithField("types").WithValue(n)
		}
		t |= v
	}
	return t, nil
}

// Record versions and layouts.
const (
	SettingsVersion = 1
	FilterVersion   = 1
	BarcodeVersion  = 1

	SettingsSize = 12
	FilterSize   = 12
	BarcodeSize  = 172

	DataCapacity = 128
)

// MaxResults is the most barcodes one scan may return.
const MaxResults = 32

// Settings configure the native scanner. A newly created scanner starts
// from DefaultSettings.
type Settings struct {
	Types        Type
	FullAnalysis bool
}

// DefaultSettings returns the settings a fresh scanner runs with.
func DefaultSettings() Settings {
	return Settings{Types: All}
}

// ScanFilter narrows a scan. Types 0 means every enabled symbology;
// MaxResults 0 means MaxResults.
type ScanFilter struct {
	Types      Type
	MaxResults uint32
}

// Barcode is one decoded barcode with its pose.
type Barcode struct {
	Type              Type
	Data              string
	Position          wire.Vec3
	Rotation          wire.Quat
	ReprojectionError float32
}

func validTypes(field string, t Type, allowZero bool) error {
	if t&^All != 0 {
		return errors.NewValidationError("unknown barcode type bits").WithField(field).WithValue(uint32(t))
	}
	if t == 0 && !allowZero {
		return errors.NewValidationError("at least one barcode type is required").WithField(field)
	}
	return nil
}

// Codec converts barcode records. It implements bridge.Codec and
// bridge.SettingsCodec.
type Codec struct{}

// EncodeSettings validates s and builds its settings record.
func (Codec) EncodeSettings(s Settings) ([]byte, error) {
	if err := validTypes("types", s.Types, false); err != nil {
		return nil, err
	}
	w := wire.NewWriter("barcode settings", SettingsSize, SettingsVersion)
	w.Uint32("types", uint32(s.Types))
	w.Bool("full_analysis", s.FullAnalysis)
	w.Pad(3)
	return w.Finish()
}

// DecodeSettings is the inverse of EncodeSettings.
func DecodeSettings(record []byte) (Settings, error) {
	r := wire.NewReader("barcode settings", record, SettingsSize, SettingsVersion)
	s := Settings{Types: Type(r.Uint32("types")), FullAnalysis: r.Bool("full_analysis")}
	r.Skip(3)
	if err := r.Err(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// EncodeFilter validates f and builds its filter record.
func (Codec) EncodeFilter(f ScanFilter) ([]byte, error) {
	if err := validTypes("types", f.Types, true); err != nil {
		return nil, err
	}
	if f.MaxResults > MaxResults {
		return nil, errors.NewValidationError("max results out of range").
			WithField("max_results").WithValue(f.MaxResults)
	}
	maxResults := f.MaxResults
	if maxResults == 0 {
		maxResults = MaxResults
	}
	w := wire.NewWriter("barcode filter", FilterSize, FilterVersion)
	w.Uint32("types", uint32(f.Types))
	w.Uint32("max_results", maxResults)
	return w.Finish()
}

// DecodeFilter is the inverse of EncodeFilter, used by the simulator.
func DecodeFilter(record []byte) (ScanFilter, error) {
	r := wire.NewReader("barcode filter", record, FilterSize, FilterVersion)
	f := ScanFilter{Types: Type(r.Uint32("types")), MaxResults: r.Uint32("max_results")}
	if err := r.Err(); err != nil {
		return ScanFilter{}, err
	}
	return f, nil
}

// DecodeResult decodes one barcode record. A record must name exactly one
// symbology.
func (Codec) DecodeResult(record []byte) (Barcode, error) {
	r := wire.NewReader("barcode", record, BarcodeSize, BarcodeVersion)
	b := Barcode{Type: Type(r.Uint32("type"))}
	n := r.Uint32("data_length")
	b.Data = string(r.Bytes("data", DataCapacity, n))
	b.Position = r.Vec3("position")
	b.Rotation = r.Quat("rotation")
	b.ReprojectionError = r.Float32("reprojection_error")
	if err := r.Err(); err != nil {
		return Barcode{}, err
	}
	if bits.OnesCount32(uint32(b.Type)) != 1 || b.Type&^All != 0 {
		return Barcode{}, errors.NewRecordError("barcode", ErrUnknownType).WithField("type")
	}
	return b, nil
}

// EncodeBarcode builds a barcode record, used by the simulator.
func EncodeBarcode(b Barcode) ([]byte, error) {
	w := wire.NewWriter("barcode", BarcodeSize, BarcodeVersion)
	w.Uint32("type", uint32(b.Type))
	w.Uint32("data_length", uint32(len(b.Data)))
	w.Bytes("data", []byte(b.Data), DataCapacity)
	w.Vec3("position", b.Position)
	w.Quat("rotation", b.Rotation)
	w.Float32("reprojection_error", b.ReprojectionError)
	return w.Finish()
}
