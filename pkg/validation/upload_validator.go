package validation

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	apperrors "github.com/anime-shed/pixelcheck-go/internal/errors"
)

// UploadLimits defines configurable limits for uploaded images
type UploadLimits struct {
	MaxBytes      int64
	MaxNameLength int

	// Accepted MIME types, matched against the sniffed content
	AllowedTypes []string
}

// DefaultUploadLimits returns the default upload limits
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxBytes:      10 * 1024 * 1024,
		MaxNameLength: 255,
		AllowedTypes: []string{
			"image/png",
			"image/jpeg",
			"image/gif",
			"image/webp",
			"image/bmp",
			"image/tiff",
		},
	}
}

// UploadValidator checks uploaded files before they reach the engine
type UploadValidator struct {
	limits UploadLimits
}

// NewUploadValidator creates an upload validator with default limits
func NewUploadValidator() *UploadValidator {
	return &UploadValidator{limits: DefaultUploadLimits()}
}

// NewUploadValidatorWithLimits creates an upload validator with custom limits
func NewUploadValidatorWithLimits(limits UploadLimits) *UploadValidator {
	return &UploadValidator{limits: limits}
}

// Limits returns the limits in effect
func (v *UploadValidator) Limits() UploadLimits {
	return v.limits
}

// UploadIssue represents an upload validation issue
type UploadIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// Inspect returns every issue found with the upload and the sniffed content
// type. Only issues with severity "error" reject the upload.
func (v *UploadValidator) Inspect(filename, declaredType string, data []byte) (string, []UploadIssue) {
	var issues []UploadIssue

	if len(data) == 0 {
		issues = append(issues, UploadIssue{
			Type:     "empty_file",
			Message:  "The uploaded file is empty.",
			Severity: "error",
		})
		return "", issues
	}

	if v.limits.MaxBytes > 0 && int64(len(data)) > v.limits.MaxBytes {
		issues = append(issues, UploadIssue{
			Type:        "file_too_large",
			Message:     "The uploaded file is too large.",
			Severity:    "error",
			ActualValue: float64(len(data)),
			Threshold:   float64(v.limits.MaxBytes),
		})
	}

	if v.limits.MaxNameLength > 0 && len(filename) > v.limits.MaxNameLength {
		issues = append(issues, UploadIssue{
			Type:        "name_too_long",
			Message:     "The file name is too long.",
			Severity:    "error",
			ActualValue: float64(len(filename)),
			Threshold:   float64(v.limits.MaxNameLength),
		})
	}

	sniffed := sniffContentType(data)
	if !v.isTypeAllowed(sniffed) {
		issues = append(issues, UploadIssue{
			Type:     "unsupported_type",
			Message:  fmt.Sprintf("Files of type %s are not supported.", sniffed),
			Severity: "error",
		})
	}

	if declared := baseMediaType(declaredType); declared != "" && declared != "application/octet-stream" && declared != sniffed {
		issues = append(issues, UploadIssue{
			Type:     "type_mismatch",
			Message:  fmt.Sprintf("Declared type %s does not match the file content (%s).", declared, sniffed),
			Severity: "warning",
		})
	}

	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && !extensionMatches(ext, sniffed) {
		issues = append(issues, UploadIssue{
			Type:     "extension_mismatch",
			Message:  fmt.Sprintf("File extension %s does not match the file content.", ext),
			Severity: "warning",
		})
	}

	return sniffed, issues
}

// ValidateUpload returns the sniffed content type, or a validation error
// describing the first blocking issue.
func (v *UploadValidator) ValidateUpload(filename, declaredType string, data []byte) (string, error) {
	contentType, issues := v.Inspect(filename, declaredType, data)
	for _, issue := range issues {
		if issue.Severity == "error" {
			return "", apperrors.NewValidationError(issue.Message, nil).WithDetails(issue.Type)
		}
	}
	return contentType, nil
}

func (v *UploadValidator) isTypeAllowed(contentType string) bool {
	for _, allowed := range v.limits.AllowedTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

// sniffContentType extends http.DetectContentType with TIFF, which the
// standard sniffer does not recognise.
func sniffContentType(data []byte) string {
	if len(data) >= 4 {
		head := string(data[:4])
		if head == "II*\x00" || head == "MM\x00*" {
			return "image/tiff"
		}
	}
	return baseMediaType(http.DetectContentType(data))
}

func baseMediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

var extensionTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

func extensionMatches(ext, contentType string) bool {
	want, ok := extensionTypes[ext]
	return !ok || want == contentType
}
