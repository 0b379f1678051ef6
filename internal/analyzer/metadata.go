package analyzer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bep/imagemeta"
)

// MetadataAnalysis describes the file itself rather than its pixels. It is
// informational and never feeds the classifier.
type MetadataAnalysis struct {
	BasicMetadata   BasicMetadata   `json:"basicMetadata"`
	AIModelAnalysis AIModelAnalysis `json:"aiModelAnalysis"`
}

// BasicMetadata holds display-ready file facts.
type BasicMetadata struct {
	Format     string `json:"format"`
	Dimensions string `json:"dimensions"`
	Size       string `json:"size"`
}

// AIModelAnalysis lists generator fingerprints found in embedded metadata.
type AIModelAnalysis struct {
	Signatures []string `json:"signatures"`
	Detected   bool     `json:"detected"`
}

// rawMarkers are byte sequences left behind by generators or provenance tooling.
var rawMarkers = []struct {
	marker    []byte
	signature string
}{
	{[]byte("trainedAlgorithmicMedia"), "iptc digital source type: trainedAlgorithmicMedia"},
	{[]byte("c2pa.claim"), "c2pa content credentials manifest"},
}

// sdParameterMarkers identify the PNG text chunk written by Stable Diffusion web UIs.
var sdParameterMarkers = [][]byte{[]byte("parameters\x00"), []byte("Steps: ")}

// metadataFields lists the tags inspected for generator names.
var metadataFields = map[imagemeta.Source]map[string]bool{
	imagemeta.EXIF: {
		"Software":         true,
		"Artist":           true,
		"ImageDescription": true,
		"Make":             true,
	},
	imagemeta.XMP: {
		"CreatorTool":       true,
		"Creator":           true,
		"DigitalSourceType": true,
	},
	imagemeta.IPTC: {
		"Source": true,
		"Credit": true,
	},
}

var sourceNames = map[imagemeta.Source]string{
	imagemeta.EXIF: "exif",
	imagemeta.XMP:  "xmp",
	imagemeta.IPTC: "iptc",
}

// imagemetaFormats are the decoder names whose containers carry parseable metadata.
var imagemetaFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"webp": true,
	"tiff": true,
}

// AnalyzeMetadata builds the metadata section for data decoded as format.
func AnalyzeMetadata(data []byte, contentType, format string, width, height int) MetadataAnalysis {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "image/" + format
	}

	signatures := findSignatures(data, format)
	return MetadataAnalysis{
		BasicMetadata: BasicMetadata{
			Format:     contentType,
			Dimensions: fmt.Sprintf("%dx%d", width, height),
			Size:       FormatFileSize(int64(len(data))),
		},
		AIModelAnalysis: AIModelAnalysis{
			Signatures: signatures,
			Detected:   len(signatures) > 0,
		},
	}
}

// FormatFileSize renders a byte count as B, KB or MB.
func FormatFileSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	}
}

func findSignatures(data []byte, format string) []string {
	signatures := []string{}
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			signatures = append(signatures, s)
		}
	}

	for _, m := range rawMarkers {
		if bytes.Contains(data, m.marker) {
			add(m.signature)
		}
	}
	if format == "png" && bytes.Contains(data, sdParameterMarkers[0]) && bytes.Contains(data, sdParameterMarkers[1]) {
		add("stable diffusion generation parameters")
	}

	for _, tv := range metadataValues(data, format) {
		if name, ok := matchKeyword(tv.value, generatorNames); ok {
			add(fmt.Sprintf("%s (%s %s)", name, tv.source, tv.tag))
		}
	}
	return signatures
}

type tagValue struct {
	source string
	tag    string
	value  string
}

// metadataValues returns the string values of the inspected tags. Parse
// failures yield whatever was collected before the failure.
func metadataValues(data []byte, format string) []tagValue {
	if !imagemetaFormats[format] || len(data) == 0 {
		return nil
	}

	var values []tagValue
	_, _ = imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return metadataFields[ti.Source][ti.Tag]
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if s := tagString(ti.Value); s != "" {
				values = append(values, tagValue{source: sourceNames[ti.Source], tag: ti.Tag, value: s})
			}
			return nil
		},
	})
	return values
}

// tagString flattens the value shapes imagemeta produces for text tags.
func tagString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, " ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
