package language

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/harpoon/internal/fragment"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		path string
		body string
		want fragment.Language
	}{
		{"python extension", "pkg/mod.py", "", fragment.LanguagePython},
		{"python extension uppercase", "PKG/MOD.PY", "", fragment.LanguagePython},
		{"python keyword", "notes", "x = 1\ndef f():\n    pass\n", fragment.LanguagePython},
		{"indented python keyword", "notes", "    class Foo:\n", fragment.LanguagePython},
		{"rust extension", "src/lib.rs", "", fragment.LanguageRust},
		{"rust keyword", "snippet", "pub fn main() {}\n", fragment.LanguageRust},
		{"typescript extension", "app.tsx", "", fragment.LanguageTypeScript},
		{"javascript extension", "app.js", "", fragment.LanguageTypeScript},
		{"typescript keyword", "snippet", "const x = 1;\n", fragment.LanguageTypeScript},
		{"config json", "package.json", "{}", fragment.LanguageConfig},
		{"config yml", "ci.YML", "a: 1", fragment.LanguageConfig},
		{"plain text", "README", "hello world", fragment.LanguageText},
		{"empty", "", "", fragment.LanguageText},
		{"keyword mid-line ignored", "notes", "we def not match", fragment.LanguageText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Detect(tc.path, tc.body))
		})
	}
}

// TestDetectPrecedence covers bodies that match more than one rule.
func TestDetectPrecedence(t *testing.T) {
	t.Parallel()

	// "import " and "async " match both python and typescript; python wins.
	require.Equal(t, fragment.LanguagePython, Detect("index.ts", "import x from 'y'\n"))
	// Rust extension loses to a python keyword in the body.
	require.Equal(t, fragment.LanguagePython, Detect("lib.rs", "from a import b\n"))
	// Config extension loses to any keyword match.
	require.Equal(t, fragment.LanguageRust, Detect("x.json", "use serde;\n"))
	require.Equal(t, fragment.LanguageTypeScript, Detect("x.yaml", "let a = 1\n"))
}

func TestDetectConcurrentUse(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.Equal(t, fragment.LanguageRust, Detect("a.rs", "fn x() {}"))
		}()
	}
	wg.Wait()
}
