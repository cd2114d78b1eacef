package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "taskpilot.yaml"

type Models struct {
	Planner    string `yaml:"planner"`
	Coder      string `yaml:"coder"`
	Critic     string `yaml:"critic"`
	Analyst    string `yaml:"analyst"`
	Researcher string `yaml:"researcher"`
}

type LLM struct {
	Backend    string        `yaml:"backend"`
	Host       string        `yaml:"host"`
	Model      string        `yaml:"model"`
	Models     Models        `yaml:"models"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type Sandbox struct {
	Engine  string `yaml:"engine"` // docker | dagger
	Image   string `yaml:"image"`
	Name    string `yaml:"name"`
	WorkDir string `yaml:"work_dir"`
	Memory  string `yaml:"memory"`
	Network bool   `yaml:"network"`
}

type Mission struct {
	MaxAttempts    int               `yaml:"max_attempts"`
	PackageAliases map[string]string `yaml:"package_aliases"`
	PreviewLength  int               `yaml:"preview_length"`
}

type Memory struct {
	Backend       string `yaml:"backend"` // file | redis
	Path          string `yaml:"path"`
	NotesDir      string `yaml:"notes_dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

type Search struct {
	SearxURL      string        `yaml:"searx_url"`
	Timeout       time.Duration `yaml:"timeout"`
	ResultLimit   int           `yaml:"result_limit"`
	ForbiddenCmds []string      `yaml:"forbidden_commands"`
}

type MCPServer struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

type Observability struct {
	MetricsAddr  string `yaml:"metrics_addr"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type Config struct {
	Workspace     string        `yaml:"workspace"`
	PromptsPath   string        `yaml:"prompts_path"`
	LogFile       string        `yaml:"log_file"`
	HTTPAddr      string        `yaml:"http_addr"`
	LLM           LLM           `yaml:"llm"`
	Sandbox       Sandbox       `yaml:"sandbox"`
	Mission       Mission       `yaml:"mission"`
	Memory        Memory        `yaml:"memory"`
	Search        Search        `yaml:"search"`
	MCPServers    []MCPServer   `yaml:"mcp_servers"`
	Observability Observability `yaml:"observability"`
}

// DefaultPackageAliases maps import names to the pip package that provides them.
func DefaultPackageAliases() map[string]string {
	return map[string]string{
		"PIL":     "Pillow",
		"cv2":     "opencv-python-headless",
		"sklearn": "scikit-learn",
		"bs4":     "beautifulsoup4",
		"qrcode":  "qrcode[pil]",
	}
}

func Default() *Config {
	return &Config{
		Workspace:   "workspace",
		PromptsPath: "prompts.yaml",
		LogFile:     "taskpilot.log",
		HTTPAddr:    ":8080",
		LLM: LLM{
			Backend:    "ollama",
			Host:       "http://localhost:11434",
			Timeout:    300 * time.Second,
			MaxRetries: 3,
		},
		Sandbox: Sandbox{
			Engine:  "docker",
			Image:   "python:3.10-slim",
			Name:    "taskpilot-sandbox",
			WorkDir: "/app",
			Memory:  "512m",
			Network: true,
		},
		Mission: Mission{
			MaxAttempts:    3,
			PackageAliases: DefaultPackageAliases(),
			PreviewLength:  200,
		},
		Memory: Memory{
			Backend:     "file",
			Path:        "memory/skills.jsonl",
			NotesDir:    "memory_logs",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "taskpilot:skills",
		},
		Search: Search{
			SearxURL:      "http://localhost:8081/search",
			Timeout:       5 * time.Second,
			ResultLimit:   3,
			ForbiddenCmds: []string{"docker", "sudo", "rm -rf /"},
		},
	}
}

// Load reads the YAML file at path (a missing file is not an error) and
// applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	applyEnv(cfg)
	cfg.normalize()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Workspace, "TASKPILOT_WORKSPACE")
	setString(&cfg.PromptsPath, "TASKPILOT_PROMPTS")
	setString(&cfg.LogFile, "TASKPILOT_LOG_FILE")
	setString(&cfg.HTTPAddr, "TASKPILOT_HTTP_ADDR")

	setString(&cfg.LLM.Backend, "TASKPILOT_LLM_BACKEND")
	setString(&cfg.LLM.Host, "OLLAMA_HOST")
	setString(&cfg.LLM.Model, "TASKPILOT_MODEL")
	setString(&cfg.LLM.Models.Planner, "TASKPILOT_MODEL_PLANNER")
	setString(&cfg.LLM.Models.Coder, "TASKPILOT_MODEL_CODER")
	setString(&cfg.LLM.Models.Critic, "TASKPILOT_MODEL_CRITIC")
	setString(&cfg.LLM.Models.Analyst, "TASKPILOT_MODEL_ANALYST")
	setString(&cfg.LLM.Models.Researcher, "TASKPILOT_MODEL_RESEARCHER")
	if v, ok := lookupInt("TASKPILOT_LLM_TIMEOUT_SECONDS"); ok {
		cfg.LLM.Timeout = time.Duration(v) * time.Second
	}

	setString(&cfg.Sandbox.Engine, "TASKPILOT_SANDBOX_ENGINE")
	setString(&cfg.Sandbox.Image, "TASKPILOT_SANDBOX_IMAGE")
	setString(&cfg.Sandbox.Name, "TASKPILOT_SANDBOX_NAME")

	setString(&cfg.Memory.Backend, "TASKPILOT_MEMORY_BACKEND")
	setString(&cfg.Memory.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Memory.RedisPassword, "REDIS_PASSWORD")
	if v, ok := lookupInt("REDIS_DB"); ok {
		cfg.Memory.RedisDB = v
	}

	setString(&cfg.Search.SearxURL, "SEARXNG_URL")
	setString(&cfg.Observability.MetricsAddr, "TASKPILOT_METRICS_ADDR")
	setString(&cfg.Observability.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func (c *Config) normalize() {
	def := Default()
	c.LLM.Backend = strings.ToLower(strings.TrimSpace(c.LLM.Backend))
	if c.LLM.Backend == "" {
		c.LLM.Backend = def.LLM.Backend
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = def.LLM.Timeout
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = def.LLM.MaxRetries
	}
	if c.Mission.MaxAttempts <= 0 {
		c.Mission.MaxAttempts = def.Mission.MaxAttempts
	}
	if c.Mission.PackageAliases == nil {
		c.Mission.PackageAliases = def.Mission.PackageAliases
	}
	if c.Mission.PreviewLength <= 0 {
		c.Mission.PreviewLength = def.Mission.PreviewLength
	}
	if c.Search.ResultLimit <= 0 {
		c.Search.ResultLimit = def.Search.ResultLimit
	}
	c.Sandbox.Engine = strings.ToLower(strings.TrimSpace(c.Sandbox.Engine))
	c.Memory.Backend = strings.ToLower(strings.TrimSpace(c.Memory.Backend))
}

// ModelFor returns the role-specific model, falling back to the global one.
func (l LLM) ModelFor(role string) string {
	var m string
	switch role {
	case "planner":
		m = l.Models.Planner
	case "coder":
		m = l.Models.Coder
	case "critic":
		m = l.Models.Critic
	case "analyst":
		m = l.Models.Analyst
	case "researcher":
		m = l.Models.Researcher
	}
	if strings.TrimSpace(m) == "" {
		return l.Model
	}
	return m
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}
