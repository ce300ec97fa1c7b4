package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// LocalConfigName is the per-tree config file searched for from the working directory upward
const LocalConfigName = ".regression-orchestrator.toml"

// ProjectPlaceholder is replaced by the project name in build commands
const ProjectPlaceholder = "{project}"

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Tree          TreeConfig          `toml:"tree"`
	Tools         ToolsConfig         `toml:"tools"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	Projects     []string `toml:"projects"`
	DatabasePath string   `toml:"database_path"`
	SchedulePath string   `toml:"schedule_path"`
}

// TreeConfig describes how the tree root is located and built
type TreeConfig struct {
	// Root skips marker discovery when set
	Root         string   `toml:"root"`
	Marker       string   `toml:"marker"`
	MaxDepth     int      `toml:"max_depth"`
	SetupCommand []string `toml:"setup_command"`
	BuildCommand []string `toml:"build_command"`
	StaleFiles   []string `toml:"stale_files"`
	StaleDirs    []string `toml:"stale_dirs"`
}

// ToolsConfig holds the external tool locations, relative to the tree root
type ToolsConfig struct {
	Python     string `toml:"python"`
	Plan       string `toml:"plan"`
	Report     string `toml:"report"`
	Diagnose   string `toml:"diagnose"`
	Metrics    string `toml:"metrics"`
	KillScript string `toml:"kill_script"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds history API settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			Projects:     []string{"nv_small", "nv_small_256"},
			DatabasePath: filepath.Join(home, ".regression-orchestrator", "runs.db"),
			SchedulePath: filepath.Join(home, ".config", "regression-orchestrator", "schedule.toml"),
		},
		Tree: TreeConfig{
			Marker:       "LICENSE",
			MaxDepth:     64,
			SetupCommand: []string{"make", "USE_NV_ENV=1"},
			BuildCommand: []string{"./tools/bin/tmake", "-build", "ready_for_test", "-project", ProjectPlaceholder},
			StaleFiles:   []string{"tree.make"},
			StaleDirs:    []string{"outdir"},
		},
		Tools: ToolsConfig{
			Python:     "python3",
			Plan:       "verif/tools/run_plan.py",
			Report:     "verif/tools/run_report.py",
			Diagnose:   "verif/tools/run_diagnose.py",
			Metrics:    "verif/tools/run_metrics.py",
			KillScript: "kill_plan.sh",
		},
		Web: WebConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.Tree.Root = ExpandPath(cfg.Tree.Root)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.General.SchedulePath = ExpandPath(cfg.General.SchedulePath)

	return cfg, nil
}

// LoadWithLocalFallback loads the explicit path if given, otherwise the
// nearest local config, otherwise the user config
func LoadWithLocalFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if local := FindLocalConfig(); local != "" {
		return Load(local)
	}
	return Load(DefaultConfigPath())
}

// FindLocalConfig walks up from the working directory looking for LocalConfigName
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// BuildArgv returns the build command with the project substituted
func (t TreeConfig) BuildArgv(project string) []string {
	argv := make([]string, len(t.BuildCommand))
	for i, arg := range t.BuildCommand {
		argv[i] = strings.ReplaceAll(arg, ProjectPlaceholder, project)
	}
	return argv
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "regression-orchestrator", "config.toml")
}
