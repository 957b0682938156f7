package foundobjects

import (
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/native/sim"
)

// Responder answers simulated queries from a fixed object set. Matching
// objects are returned in order, capped by the filter's MaxResults. An
// undecodable filter fails the query with StatusInvalidParam.
func Responder(objects []Object, latency int) sim.Responder {
	return func(record []byte) sim.Response {
		f, err := DecodeFilter(record)
		if err != nil {
			return sim.Response{Latency: latency, Status: native.StatusInvalidParam}
		}
		resp := sim.Response{Latency: latency}
		for _, o := range objects {
			if uint32(len(resp.Records)) >= f.MaxResults {
				break
			}
			if !f.Matches(o) {
				continue
			}
			rec, err := EncodeObject(o)
			if err != nil {
				continue
			}
			props := make([][]byte, 0, len(o.Properties))
			for _, p := range o.Properties {
				if b, err := EncodeProperty(p); err == nil {
					props = append(props, b)
				}
			}
			resp.Records = append(resp.Records, rec)
			resp.Properties = append(resp.Properties, props)
		}
		return resp
	}
}
