package catalog

import (
	"path/filepath"
	"strings"
)

// languageByExtension maps known source file extensions to language tags.
var languageByExtension = map[string]string{
	".py":     "Python",
	".cpp":    "C++",
	".cc":     "C++",
	".cxx":    "C++",
	".c":      "C",
	".h":      "C/C++",
	".hpp":    "C++",
	".java":   "Java",
	".cs":     "C#",
	".js":     "JavaScript",
	".ts":     "TypeScript",
	".jsx":    "JavaScript",
	".tsx":    "TypeScript",
	".sql":    "SQL",
	".go":     "Go",
	".php":    "PHP",
	".rb":     "Ruby",
	".rs":     "Rust",
	".swift":  "Swift",
	".kt":     "Kotlin",
	".scala":  "Scala",
	".pl":     "Perl",
	".sh":     "Shell",
	".bash":   "Shell",
	".ps1":    "PowerShell",
	".yaml":   "YAML",
	".yml":    "YAML",
	".json":   "JSON",
	".xml":    "XML",
	".html":   "HTML",
	".css":    "CSS",
	".scss":   "SCSS",
	".sass":   "SASS",
	".vue":    "Vue",
	".svelte": "Svelte",
}

// configExtensions are the structured-config extensions removed when a scan
// excludes configuration files.
var configExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
	".xml":  true,
}

// DetectLanguage returns the language tag for a file name, or "Unknown".
func DetectLanguage(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return "Unknown"
}

// KnownExtensions returns the full extension table as a set.
func KnownExtensions() map[string]bool {
	exts := make(map[string]bool, len(languageByExtension))
	for ext := range languageByExtension {
		exts[ext] = true
	}
	return exts
}

// normalizeExtension lowercases an extension and ensures the leading dot.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ext
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// EstimateTokens converts a byte size to an estimated token cost. This is a
// fixed heuristic (1 token per 4 bytes), not a tokenizer call.
func EstimateTokens(size int64) int {
	return int(size / 4)
}
