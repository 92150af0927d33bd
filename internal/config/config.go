package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// VaultDir is the root of the markdown vault. Relative paths are resolved
	// against the project root at run time. Default: ".grimoire/vault".
	VaultDir string `json:"vault_dir,omitempty"`

	// RotationMaxBytes is the session log segment size threshold. When the
	// current segment reaches this size a new segment is opened.
	RotationMaxBytes int `json:"rotation_max_bytes,omitempty"`

	// BatchMaxChars bounds the formatted content packed into one analyzer call.
	BatchMaxChars int `json:"batch_max_chars,omitempty"`

	// AnalyzerCommand is the analyzer CLI binary. The prompt is written to its
	// stdin and the response read from its stdout.
	AnalyzerCommand string `json:"analyzer_command,omitempty"`

	// AnalyzerArgs are extra arguments passed to the analyzer command.
	AnalyzerArgs []string `json:"analyzer_args,omitempty"`

	// AnalyzerTimeoutSecs bounds one analyzer call. 0 means the default.
	AnalyzerTimeoutSecs int `json:"analyzer_timeout_secs,omitempty"`

	// BatchPacingMS is the delay between analyzer calls during discovery,
	// to respect external rate limits.
	BatchPacingMS int `json:"batch_pacing_ms,omitempty"`

	// ScanMaxFiles caps how many source files a discovery scan considers.
	ScanMaxFiles int `json:"scan_max_files,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// LogFile is where pipeline runs log. Empty means <stateDir>/grimoire.log.
	LogFile string `json:"log_file,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		VaultDir:            filepath.Join(".grimoire", "vault"),
		RotationMaxBytes:    256 * 1024,
		BatchMaxChars:       60000,
		AnalyzerCommand:     "claude",
		AnalyzerArgs:        []string{"-p"},
		AnalyzerTimeoutSecs: 300,
		BatchPacingMS:       2000,
		ScanMaxFiles:        200,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.grimoire.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.grimoire) and repo
// (.grimoire) directories. Repo config is found by walking upward from
// startDir to find the nearest .grimoire/config.json. Repo config takes
// precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest
// .grimoire/config.json. Returns the path if found, or empty string if not.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".grimoire", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated,
// except AnalyzerArgs which is replaced wholesale when the overlay sets a command
// (mixing argument lists across config layers produces nonsense invocations).
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.VaultDir = overlay.VaultDir
	if result.VaultDir == "" {
		result.VaultDir = base.VaultDir
	}

	result.RotationMaxBytes = overlay.RotationMaxBytes
	if result.RotationMaxBytes == 0 {
		result.RotationMaxBytes = base.RotationMaxBytes
	}

	result.BatchMaxChars = overlay.BatchMaxChars
	if result.BatchMaxChars == 0 {
		result.BatchMaxChars = base.BatchMaxChars
	}

	result.AnalyzerTimeoutSecs = overlay.AnalyzerTimeoutSecs
	if result.AnalyzerTimeoutSecs == 0 {
		result.AnalyzerTimeoutSecs = base.AnalyzerTimeoutSecs
	}

	result.BatchPacingMS = overlay.BatchPacingMS
	if result.BatchPacingMS == 0 {
		result.BatchPacingMS = base.BatchPacingMS
	}

	result.ScanMaxFiles = overlay.ScanMaxFiles
	if result.ScanMaxFiles == 0 {
		result.ScanMaxFiles = base.ScanMaxFiles
	}

	result.LogFile = overlay.LogFile
	if result.LogFile == "" {
		result.LogFile = base.LogFile
	}

	// Analyzer command and args travel together
	if overlay.AnalyzerCommand != "" {
		result.AnalyzerCommand = overlay.AnalyzerCommand
		result.AnalyzerArgs = overlay.AnalyzerArgs
	} else {
		result.AnalyzerCommand = base.AnalyzerCommand
		result.AnalyzerArgs = base.AnalyzerArgs
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
