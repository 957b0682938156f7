package runner

import (
	"fmt"

	"github.com/Iron-Ham/spatialbridge/internal/feature/barcode"
	"github.com/Iron-Ham/spatialbridge/internal/feature/foundobjects"
)

func describeObjects(objects []foundobjects.Object) []string {
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		line := fmt.Sprintf("%s at (%.2f, %.2f, %.2f)", o.Label, o.Position.X, o.Position.Y, o.Position.Z)
		if len(o.Properties) > 0 {
			line += fmt.Sprintf(" [%d properties]", len(o.Properties))
		}
		out = append(out, line)
	}
	return out
}

func describeBarcodes(codes []barcode.Barcode) []string {
	out := make([]string, 0, len(codes))
	for _, b := range codes {
		out = append(out, fmt.Sprintf("%s %q", b.Type, b.Data))
	}
	return out
}

func describeSettings(v barcode.Settings) string {
	s := "types=" + v.Types.String()
	if v.FullAnalysis {
		s += " full_analysis"
	}
	return s
}
