package track

import (
	"errors"
	"math"
	"strings"

	"backend-trailtrace/internal/shared/geo"
)

var ErrBadPolyline = errors.New("truncated polyline")

// EncodePolyline packs coordinates into the Google polyline format at 1e5
// precision: scale, delta against the previous point, zig-zag, then 5-bit
// groups with a continuation flag offset into printable ASCII.
func EncodePolyline(fixes []Fix) string {
	var b strings.Builder
	prevLat, prevLng := 0, 0
	for _, fix := range fixes {
		lat := int(math.Round(fix.Lat * 1e5))
		lng := int(math.Round(fix.Lng * 1e5))
		encodeSigned(&b, lat-prevLat)
		encodeSigned(&b, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return b.String()
}

func encodeSigned(b *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		b.WriteByte(byte(0x20|(u&0x1f)) + 63)
		u >>= 5
	}
	b.WriteByte(byte(u) + 63)
}

// DecodePolyline reverses EncodePolyline into [lat, lng] pairs.
func DecodePolyline(s string) ([][2]float64, error) {
	var coords [][2]float64
	lat, lng := 0, 0
	i := 0
	for i < len(s) {
		dLat, n, err := decodeSigned(s[i:])
		if err != nil {
			return nil, err
		}
		i += n
		dLng, n, err := decodeSigned(s[i:])
		if err != nil {
			return nil, err
		}
		i += n

		lat += dLat
		lng += dLng
		coords = append(coords, [2]float64{float64(lat) / 1e5, float64(lng) / 1e5})
	}
	return coords, nil
}

func decodeSigned(s string) (int, int, error) {
	u, shift := 0, 0
	for i := 0; i < len(s); i++ {
		chunk := int(s[i]) - 63
		u |= (chunk & 0x1f) << shift
		shift += 5
		if chunk < 0x20 {
			v := u >> 1
			if u&1 != 0 {
				v = ^v
			}
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrBadPolyline
}

// Simplify reduces the sequence with Douglas-Peucker against the configured
// tolerance. Perpendicular offsets are measured on the sphere, not in a
// planar approximation. First and last fixes are always retained.
func (p *Processor) Simplify(fixes []Fix) []Fix {
	if len(fixes) <= 2 {
		return fixes
	}

	keep := make([]bool, len(fixes))
	keep[0], keep[len(fixes)-1] = true, true
	douglasPeucker(fixes, 0, len(fixes)-1, p.cfg.SimplifyToleranceM, keep)

	out := make([]Fix, 0, len(fixes))
	for i, k := range keep {
		if k {
			out = append(out, fixes[i])
		}
	}
	return out
}

func douglasPeucker(fixes []Fix, first, last int, tolerance float64, keep []bool) {
	if last-first < 2 {
		return
	}

	maxDist, maxIdx := 0.0, 0
	for i := first + 1; i < last; i++ {
		d := geo.PointToSegmentM(
			fixes[i].Lat, fixes[i].Lng,
			fixes[first].Lat, fixes[first].Lng,
			fixes[last].Lat, fixes[last].Lng,
		)
		if d > maxDist {
			maxDist, maxIdx = d, i
		}
	}
	if maxDist <= tolerance {
		return
	}

	keep[maxIdx] = true
	douglasPeucker(fixes, first, maxIdx, tolerance, keep)
	douglasPeucker(fixes, maxIdx, last, tolerance, keep)
}
