package geo

import "math"

// DecodePolyline decodes a Google polyline string (precision 5) into points.
func DecodePolyline(encoded string) []Point {
	if encoded == "" {
		return nil
	}

	var points []Point
	index := 0
	lat := 0
	lon := 0

	for index < len(encoded) {
		latDelta, next := decodeValue(encoded, index)
		index = next
		lat += latDelta

		lonDelta, next := decodeValue(encoded, index)
		index = next
		lon += lonDelta

		points = append(points, Point{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}

	return points
}

func decodeValue(encoded string, index int) (int, int) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// EncodePolyline encodes points as a Google polyline string (precision 5).
func EncodePolyline(points []Point) string {
	if len(points) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(points)*4)
	prevLat := 0
	prevLon := 0

	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lon := int(math.Round(p.Lon * 1e5))

		buf = encodeValue(buf, lat-prevLat)
		buf = encodeValue(buf, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(buf)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// PathLength returns the length of a path in meters.
func PathLength(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}
