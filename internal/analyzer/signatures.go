package analyzer

import (
	"strings"

	"github.com/arbovm/levenshtein"
)

// generatorNames are lower-case names of image generators and the tools that
// commonly stamp their output.
var generatorNames = []string{
	"midjourney",
	"dall-e",
	"dalle",
	"stable diffusion",
	"stablediffusion",
	"sdxl",
	"adobe firefly",
	"firefly",
	"leonardo.ai",
	"novelai",
	"comfyui",
	"automatic1111",
	"invokeai",
	"ideogram",
	"craiyon",
	"dreamstudio",
	"bing image creator",
	"nightcafe",
}

// watermarkKeywords are strings typically printed over stock and generator output.
var watermarkKeywords = []string{
	"shutterstock",
	"gettyimages",
	"getty images",
	"istock",
	"alamy",
	"depositphotos",
	"dreamstime",
	"adobe stock",
	"123rf",
	"freepik",
	"watermark",
	"midjourney",
	"dall-e",
}

// fuzzyTolerance is the edit distance accepted for a keyword of length n.
func fuzzyTolerance(n int) int {
	switch {
	case n < 6:
		return 0
	case n < 10:
		return 1
	default:
		return 2
	}
}

// matchKeyword finds the first keyword present in text, either as a plain
// substring or as a run of words within edit-distance tolerance.
func matchKeyword(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "", false
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == ';' || r == '/' || r == '(' || r == ')'
	})
	for _, kw := range keywords {
		tol := fuzzyTolerance(len(kw))
		if tol == 0 {
			continue
		}
		span := len(strings.Fields(kw))
		for i := 0; i+span <= len(words); i++ {
			candidate := strings.Join(words[i:i+span], " ")
			if levenshtein.Distance(candidate, kw) <= tol {
				return kw, true
			}
		}
	}
	return "", false
}
