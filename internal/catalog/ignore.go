package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"cab/internal/config"
)

// skipDirectories are pruned before any descent: VCS metadata, dependency
// caches, build output, IDE state.
var skipDirectories = map[string]bool{
	".git": true, ".svn": true, ".hg": true,
	"__pycache__": true, ".pytest_cache": true,
	"node_modules": true, ".npm": true,
	".venv": true, "venv": true, "env": true,
	"build": true, "dist": true, "out": true,
	".idea": true, ".vscode": true,
	"bin": true, "obj": true,
	"target": true, ".gradle": true,
	"vendor": true, "deps": true,
	".next": true, ".nuxt": true,
	"coverage": true, ".nyc_output": true,
	"logs": true, "log": true,
	"tmp": true, "temp": true,
}

// skipFiles are excluded by name before any I/O on their contents.
var skipFiles = map[string]bool{
	".gitignore": true, ".gitattributes": true,
	".dockerignore": true, "dockerfile": true,
	"package-lock.json": true, "yarn.lock": true,
	"pipfile.lock": true, "poetry.lock": true,
	"composer.lock": true, "gemfile.lock": true,
	".env": true, ".env.local": true, ".env.example": true,
	"readme.md": true, "license": true, "changelog.md": true,
}

// IgnoreRules decides which directories and files a scan prunes. The
// defaults can be extended per repository via .cab/ignore.yaml.
type IgnoreRules struct {
	dirs  map[string]bool
	files map[string]bool
}

// ignoreOverrides is the shape of .cab/ignore.yaml.
type ignoreOverrides struct {
	Directories []string `yaml:"directories"`
	Files       []string `yaml:"files"`
}

// DefaultIgnoreRules returns the built-in ignore sets.
func DefaultIgnoreRules() *IgnoreRules {
	dirs := make(map[string]bool, len(skipDirectories))
	for d := range skipDirectories {
		dirs[d] = true
	}
	files := make(map[string]bool, len(skipFiles))
	for f := range skipFiles {
		files[f] = true
	}
	return &IgnoreRules{dirs: dirs, files: files}
}

// LoadIgnoreRules returns the defaults extended with any overrides found in
// .cab/ignore.yaml under repoRoot. A missing file is not an error.
func LoadIgnoreRules(repoRoot string) (*IgnoreRules, error) {
	rules := DefaultIgnoreRules()

	path := filepath.Join(repoRoot, config.EngineDir, "ignore.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return nil, err
	}

	var overrides ignoreOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, err
	}

	for _, d := range overrides.Directories {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			rules.dirs[d] = true
		}
	}
	for _, f := range overrides.Files {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			rules.files[f] = true
		}
	}
	return rules, nil
}

// SkipDir reports whether a directory is pruned. Any dot-prefixed directory
// is pruned regardless of the configured set.
func (r *IgnoreRules) SkipDir(name string) bool {
	return r.dirs[strings.ToLower(name)] || strings.HasPrefix(name, ".")
}

// SkipFile reports whether a file is excluded by name: the configured set,
// dotfiles, and minified or bundled JavaScript.
func (r *IgnoreRules) SkipFile(name string) bool {
	lower := strings.ToLower(name)
	return r.files[lower] ||
		strings.HasPrefix(name, ".") ||
		strings.HasSuffix(lower, ".min.js") ||
		strings.HasSuffix(lower, ".bundle.js")
}
