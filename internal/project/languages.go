package project

import (
	"path/filepath"
	"strings"
)

// extensionLanguages maps lowercase file extensions to language names.
var extensionLanguages = map[string]string{
	".go": "Go",
	".py": "Python", ".pyi": "Python",
	".js": "JavaScript", ".mjs": "JavaScript", ".cjs": "JavaScript", ".jsx": "JavaScript",
	".ts": "TypeScript", ".tsx": "TypeScript",
	".rs":  "Rust",
	".rb":  "Ruby",
	".php": "PHP",
	".pl":  "Perl", ".pm": "Perl",
	".r":    "R",
	".java": "Java", ".kt": "Kotlin", ".scala": "Scala",
	".c": "C", ".h": "C",
	".cc": "C++", ".cpp": "C++", ".cxx": "C++", ".hpp": "C++",
	".cs":    "C#",
	".swift": "Swift",
	".sh":    "Shell", ".bash": "Shell", ".zsh": "Shell", ".fish": "Shell",
	".lua":  "Lua",
	".sql":  "SQL",
	".html": "HTML", ".css": "CSS", ".scss": "CSS",
	".md":   "Markdown",
	".yaml": "YAML", ".yml": "YAML",
	".toml": "TOML",
	".json": "JSON",
}

// markupLanguages are counted but never reported as the primary language.
var markupLanguages = map[string]bool{
	"Markdown": true, "YAML": true, "TOML": true, "JSON": true, "HTML": true, "CSS": true,
}

func languageOf(name string) (string, bool) {
	lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(name))]
	return lang, ok
}
