package barcode

import (
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/native/sim"
)

// Responder answers simulated scans from the barcodes in view. Barcodes of
// a type the filter does not ask for are skipped.
func Responder(inView []Barcode, latency int) sim.Responder {
	return func(record []byte) sim.Response {
		f, err := DecodeFilter(record)
		if err != nil {
			return sim.Response{Latency: latency, Status: native.StatusInvalidParam}
		}
		resp := sim.Response{Latency: latency}
		for _, b := range inView {
			if uint32(len(resp.Records)) >= f.MaxResults {
				break
			}
			if f.Types != 0 && f.Types&b.Type == 0 {
				continue
			}
			if rec, err := EncodeBarcode(b); err == nil {
				resp.Records = append(resp.Records, rec)
			}
		}
		return resp
	}
}
