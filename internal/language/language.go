// Package language classifies a fragment from its path suffix and body.
//
// Rules are checked in a fixed order and the first match wins: python, rust,
// typescript, config, text. Within each rule the extension check runs before
// the keyword pattern.
package language

import (
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/JakeFAU/harpoon/internal/fragment"
)

type matchers struct {
	python     *regexp.Regexp
	rust       *regexp.Regexp
	typescript *regexp.Regexp
}

// compiled is built on first use and only read afterwards.
var compiled = sync.OnceValue(func() matchers {
	return matchers{
		python:     regexp.MustCompile(`(?m)^\s*(def |class |async |from |import )`),
		rust:       regexp.MustCompile(`(?m)^\s*(pub |fn |impl |use |struct |enum )`),
		typescript: regexp.MustCompile(`(?m)^\s*(export |import |const |let |async |function )`),
	}
})

var (
	pythonExts     = []string{".py", ".pyi"}
	rustExts       = []string{".rs"}
	typescriptExts = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
	configExts     = []string{".json", ".yaml", ".yml"}
)

// Detect returns the language label for a fragment.
func Detect(filePath, body string) fragment.Language {
	ext := strings.ToLower(path.Ext(filePath))
	m := compiled()
	switch {
	case hasExt(ext, pythonExts) || m.python.MatchString(body):
		return fragment.LanguagePython
	case hasExt(ext, rustExts) || m.rust.MatchString(body):
		return fragment.LanguageRust
	case hasExt(ext, typescriptExts) || m.typescript.MatchString(body):
		return fragment.LanguageTypeScript
	case hasExt(ext, configExts):
		return fragment.LanguageConfig
	default:
		return fragment.LanguageText
	}
}

func hasExt(ext string, exts []string) bool {
	for _, candidate := range exts {
		if ext == candidate {
			return true
		}
	}
	return false
}
