// Package filterpolicy implements the composable exclude/include filter
// set described in spec.md §4.2: named presets plus user-supplied
// include/exclude patterns, evaluated against candidate repo-relative
// paths.
package filterpolicy

// Preset names the four fixed bundles of exclude patterns (spec.md §3).
type Preset string

// The four presets. Order here has no semantic meaning; the effective
// exclude set is what matters.
const (
	PresetRaw       Preset = "raw"
	PresetStandard  Preset = "standard"
	PresetCodeOnly  Preset = "code-only"
	PresetMinimal   Preset = "minimal"
	defaultPresetID        = PresetStandard
)

// ParsePreset maps a query-parameter/flag string to a Preset, defaulting
// to Standard on an empty string.
func ParsePreset(s string) (Preset, bool) {
	switch Preset(s) {
	case "", defaultPresetID:
		return PresetStandard, true
	case PresetRaw:
		return PresetRaw, true
	case PresetCodeOnly:
		return PresetCodeOnly, true
	case PresetMinimal:
		return PresetMinimal, true
	default:
		return "", false
	}
}

// category is one of the 14 canonical exclude-pattern bundles named in
// spec.md §4.2. The member lists are reproduced verbatim from the
// source's category tables: third-party consumers depend on "Standard"
// matching this exact set.
type category struct {
	name     string
	patterns []string
}

var categories = []category{
	{"lock_files", []string{
		"*.lock", "Cargo.lock", "package-lock.json", "yarn.lock",
		"pnpm-lock.yaml", "bun.lockb", "composer.lock", "Pipfile.lock",
		"poetry.lock", "Gemfile.lock", "go.sum", "mix.lock", "pubspec.lock",
		"packages-lock.json", "vcpkg.json",
	}},
	{"dependencies", []string{
		"node_modules/*", "vendor/*", "target/*", ".cargo/*",
		"__pycache__/*", ".venv/*", "venv/*", "env/*", "site-packages/*",
		"gems/*", "bower_components/*", "jspm_packages/*", ".pub-cache/*",
		"Packages/*", "Library/*", "obj/*", "bin/*", "pkg/*", "_build/*",
		"deps/*",
	}},
	{"build_artifacts", []string{
		"dist/*", "build/*", "out/*", ".next/*", ".nuxt/*", ".svelte-kit/*",
		".output/*", "coverage/*", ".nyc_output/*", "*.tsbuildinfo",
		"*.buildlog", "cmake-build-*/*", "Release/*", "Debug/*", "x64/*",
		"x86/*", ".gradle/*", "gradle/*", "*.class", "*.o", "*.a", "*.obj",
		"*.lib", "*.exp", "*.pdb", "*.ilk",
	}},
	{"ide_files", []string{
		".vscode/*", ".idea/*", "*.swp", "*.swo", "*~", ".DS_Store",
		"Thumbs.db", "*.tmp", ".vs/*", "*.vcxproj.user", "*.suo", "*.user",
		".vimrc.local", ".sublime-*", "*.sublime-workspace", ".fleet/*",
		".zed/*",
	}},
	{"media_files", []string{
		"*.png", "*.jpg", "*.jpeg", "*.gif", "*.bmp", "*.tiff", "*.tga",
		"*.ico", "*.svg", "*.webp", "*.avif", "*.heic", "*.raw", "*.psd",
		"*.ai", "*.eps",
		"*.mp4", "*.avi", "*.mov", "*.wmv", "*.flv", "*.webm", "*.mkv",
		"*.m4v", "*.3gp", "*.asf",
		"*.mp3", "*.wav", "*.flac", "*.aac", "*.ogg", "*.wma", "*.m4a",
		"*.opus",
	}},
	{"binary_files", []string{
		"*.zip", "*.tar", "*.gz", "*.bz2", "*.xz", "*.rar", "*.7z",
		"*.dmg", "*.iso", "*.exe", "*.msi", "*.app", "*.deb", "*.rpm",
		"*.pkg", "*.dll", "*.so", "*.dylib", "*.bin", "*.dat", "*.img",
	}},
	{"documents", []string{
		"*.pdf", "*.doc", "*.docx", "*.xls", "*.xlsx", "*.ppt", "*.pptx",
		"*.odt", "*.ods", "*.odp", "*.rtf", "*.pages", "*.numbers",
		"*.keynote",
	}},
	{"data_files", []string{
		"*.db", "*.sqlite", "*.sqlite3", "*.db3", "*.dump", "*.sql",
		"*.bak", "*.mdb", "*.accdb",
		"*.csv", "*.json", "*.xml", "*.yaml", "*.yml", "*.parquet",
		"*.arrow", "*.avro",
	}},
	{"fonts", []string{
		"*.ttf", "*.otf", "*.woff", "*.woff2", "*.eot", "*.pfb", "*.pfm",
		"*.afm", "*.fon", "*.fnt",
	}},
	{"logs", []string{
		"*.log", "logs/*", "log/*", "*.out", "*.err", "nohup.out",
		"*.trace", "*.pid",
	}},
	{"cache", []string{
		".cache/*", "cache/*", ".temp/*", "temp/*", "tmp/*", ".tmp/*",
		"*.cache", ".parcel-cache/*", ".turbo/*", ".swc/*", ".eslintcache",
		".stylelintcache", ".prettiercache", "*.tsbuildinfo",
		".rollup.cache/*",
	}},
	{"os_files", []string{
		".DS_Store", ".AppleDouble", ".LSOverride", "._*",
		".DocumentRevisions-V100", ".fseventsd", ".Spotlight-V100",
		".TemporaryItems", ".Trashes", ".VolumeIcon.icns",
		".com.apple.timemachine.donotpresent", ".AppleDB", ".AppleDesktop",
		"Network Trash Folder", "Temporary Items", ".apdisk", "Thumbs.db",
		"Thumbs.db:encryptable", "ehthumbs.db", "ehthumbs_vista.db",
		"*.stackdump", "[Dd]esktop.ini", "$RECYCLE.BIN/*", "*.cab", "*.lnk",
	}},
	{"version_control", []string{
		".git/*", ".svn/*", ".hg/*", ".bzr/*", "_darcs/*", ".pijul/*",
		"CVS/*", ".cvs/*", "SCCS/*", "RCS/*", ".gitignore_global",
		".gitkeep", ".gitattributes_global",
	}},
	{"secrets", []string{
		".env", ".env.local", ".env.*.local", ".env.production",
		".env.development", ".env.staging", ".env.test", "*.key", "*.pem",
		"*.crt", "*.cert", "*.p12", "*.pfx", "*.jks", "*.keystore",
		"id_rsa", "id_dsa", "id_ecdsa", "id_ed25519", "*.ppk", ".ssh/*",
		"credentials", "secrets.json", "config.json", ".aws/*", ".azure/*",
		".gcloud/*",
	}},
}

// documentationNames are the extra excludes CodeOnly layers on top of
// Standard.
var documentationNames = []string{
	"*.md", "*.txt", "*.rst", "LICENSE*", "CHANGELOG*", "README*",
	"CONTRIBUTING*", "AUTHORS*", "CREDITS*", "NOTICE*",
}

func categoryByName(name string) []string {
	for _, c := range categories {
		if c.name == name {
			return c.patterns
		}
	}
	return nil
}

// presetExcludes returns the effective exclude pattern set for a preset.
func presetExcludes(p Preset) []string {
	switch p {
	case PresetRaw:
		return nil
	case PresetStandard:
		return allCategories()
	case PresetCodeOnly:
		out := allCategories()
		return append(out, documentationNames...)
	case PresetMinimal:
		var out []string
		for _, name := range []string{"media_files", "binary_files", "documents", "fonts", "version_control", "secrets"} {
			out = append(out, categoryByName(name)...)
		}
		return out
	default:
		return allCategories()
	}
}

func allCategories() []string {
	var out []string
	for _, c := range categories {
		out = append(out, c.patterns...)
	}
	return out
}
