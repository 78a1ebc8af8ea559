package imageio

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TIFF tags consulted by the DPI probe.
const (
	tagXResolution    = 282
	tagYResolution    = 283
	tagResolutionUnit = 296

	typeShort    = 3
	typeRational = 5
)

// ProbeDPI extracts the resolution from a TIFF file's first image
// directory. Non-TIFF paths and files without resolution tags return 0
// with an error; callers treat DPI as simply unknown in that case.
func ProbeDPI(path string) (float64, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".tiff" && ext != ".tif" {
		return 0, fmt.Errorf("no resolution metadata for %s files", ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	header := make([]byte, 8)
	if _, err := file.Read(header); err != nil {
		return 0, err
	}
	var order binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		order = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		order = binary.BigEndian
	default:
		return 0, fmt.Errorf("not a TIFF file")
	}

	ifdOffset := order.Uint32(header[4:8])
	if _, err := file.Seek(int64(ifdOffset), 0); err != nil {
		return 0, err
	}
	var numEntries uint16
	if err := binary.Read(file, order, &numEntries); err != nil {
		return 0, err
	}

	entries := make([]byte, int(numEntries)*12)
	if _, err := file.Read(entries); err != nil {
		return 0, err
	}

	var xRes, yRes float64
	var unit uint16 = 2 // inches unless the file says otherwise
	for i := 0; i < int(numEntries); i++ {
		entry := entries[i*12 : i*12+12]
		tag := order.Uint16(entry[0:2])
		fieldType := order.Uint16(entry[2:4])

		switch {
		case tag == tagXResolution && fieldType == typeRational:
			xRes = readRational(file, int64(order.Uint32(entry[8:12])), order)
		case tag == tagYResolution && fieldType == typeRational:
			yRes = readRational(file, int64(order.Uint32(entry[8:12])), order)
		case tag == tagResolutionUnit && fieldType == typeShort:
			// A SHORT occupies the first two bytes of the value field.
			unit = order.Uint16(entry[8:10])
		}
	}

	dpi := xRes
	if dpi == 0 {
		dpi = yRes
	}
	if unit == 3 { // stored per centimeter
		dpi *= 2.54
	}
	if dpi == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}
	return dpi, nil
}

func readRational(file *os.File, offset int64, order binary.ByteOrder) float64 {
	if _, err := file.Seek(offset, 0); err != nil {
		return 0
	}
	var num, denom uint32
	if err := binary.Read(file, order, &num); err != nil {
		return 0
	}
	if err := binary.Read(file, order, &denom); err != nil {
		return 0
	}
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}
