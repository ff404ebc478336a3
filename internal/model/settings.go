package model

import (
	"math"
	"path"
	"strings"
)

// Output formats
type OutputFormat string

const (
	FormatAuto OutputFormat = "auto"
	FormatJPEG OutputFormat = "jpeg"
	FormatPNG  OutputFormat = "png"
	FormatWebP OutputFormat = "webp"
)

var ValidFormats = []OutputFormat{FormatAuto, FormatJPEG, FormatPNG, FormatWebP}

// Settings contains the user-selectable compression options
type Settings struct {
	Quality   float64      `json:"quality"`
	MaxWidth  int          `json:"maxWidth"`
	MaxHeight int          `json:"maxHeight"`
	Format    OutputFormat `json:"outputFormat"`
}

// DefaultSettings returns the settings applied until the user changes them
func DefaultSettings() Settings {
	return Settings{
		Quality:   0.8,
		MaxWidth:  1920,
		MaxHeight: 1080,
		Format:    FormatWebP,
	}
}

// WebOptimizedPreset is the one-click preset (0.8, 1920, 1080, webp)
func WebOptimizedPreset() Settings {
	return DefaultSettings()
}

// Extension returns the filename extension for a concrete output format
func (f OutputFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWebP:
		return ".webp"
	default:
		return ""
	}
}

// ContentType returns the MIME type for a concrete output format
func (f OutputFormat) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// OutputName derives the result filename. For a concrete format the original
// extension is replaced (or appended when the name has none); for auto the
// name is unchanged.
func OutputName(original string, format OutputFormat) string {
	if format == FormatAuto {
		return original
	}
	ext := path.Ext(original)
	if ext == "" {
		return original + format.Extension()
	}
	return strings.TrimSuffix(original, ext) + format.Extension()
}

// CompressionRatio returns the saved-space percentage, floored at zero:
// max(0, round((1 - outputSize/inputSize) * 100))
func CompressionRatio(inputSize, outputSize int64) int {
	if inputSize <= 0 {
		return 0
	}
	ratio := int(math.Round((1 - float64(outputSize)/float64(inputSize)) * 100))
	if ratio < 0 {
		return 0
	}
	return ratio
}
