package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Collection names understood by the ranking pipeline.
const (
	CollectionMedline = "medline"
	CollectionPMC     = "pmc"
	CollectionCT      = "ct"
)

// Cache service names. Each has its own directory and TTL.
const (
	ServiceSynVar   = "synvar"
	ServiceES       = "es"
	ServiceCT       = "ct"
	ServiceFetchDoc = "fetchdoc"
	ServiceRankLit  = "ranklit"
	ServiceRankVar  = "rankvar"
)

// Ranking strategy names.
const (
	StrategyRelax = "relax"
	StrategyAnnot = "annot"
	StrategyDemog = "demog"
	StrategyKW    = "kw"
)

// Config represents the complete variomes configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Store       StoreConfig       `yaml:"store" json:"store"`
	Settings    UserSettings      `yaml:"settings" json:"settings"`
	Ranking     RankingConfig     `yaml:"ranking" json:"ranking"`
	Terminology TerminologyConfig `yaml:"terminology" json:"terminology"`
	URLs        URLConfig         `yaml:"urls" json:"urls"`
	Batch       BatchConfig       `yaml:"batch" json:"batch"`
	API         APIConfig         `yaml:"api" json:"api"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" json:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// PathsConfig locates the on-disk working directories.
// Empty sub-directories are derived from DataDir.
type PathsConfig struct {
	DataDir  string `yaml:"data_dir" json:"data_dir"`
	Cache    string `yaml:"cache,omitempty" json:"cache,omitempty"`
	Logs     string `yaml:"logs,omitempty" json:"logs,omitempty"`
	Errors   string `yaml:"errors,omitempty" json:"errors,omitempty"`
	Status   string `yaml:"status,omitempty" json:"status,omitempty"`
	APIFiles string `yaml:"api_files,omitempty" json:"api_files,omitempty"`
}

// CacheDir returns the cache root.
func (p PathsConfig) CacheDir() string { return p.sub(p.Cache, "cache") }

// LogsDir returns the query log directory.
func (p PathsConfig) LogsDir() string { return p.sub(p.Logs, "logs") }

// ErrorsDir returns the per-service error log directory.
func (p PathsConfig) ErrorsDir() string { return p.sub(p.Errors, "errors") }

// StatusDir returns the batch status directory.
func (p PathsConfig) StatusDir() string { return p.sub(p.Status, "status") }

// APIFilesDir returns the directory holding uploaded variant files.
func (p PathsConfig) APIFilesDir() string { return p.sub(p.APIFiles, "api_files") }

func (p PathsConfig) sub(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(p.DataDir, name)
}

// CacheService configures one cached service.
type CacheService struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	TTLDays int  `yaml:"ttl_days" json:"ttl_days"`
}

// TTL returns the entry lifetime.
func (s CacheService) TTL() time.Duration {
	return time.Duration(s.TTLDays) * 24 * time.Hour
}

// CacheConfig configures the file cache.
type CacheConfig struct {
	Services      map[string]CacheService `yaml:"services" json:"services"`
	MemoryEntries int                     `yaml:"memory_entries" json:"memory_entries"`
	ReadAttempts  int                     `yaml:"read_attempts" json:"read_attempts"`
	ReadDelay     time.Duration           `yaml:"read_delay" json:"read_delay"`
}

// ElasticsearchConfig configures the remote search backend.
type ElasticsearchConfig struct {
	URL      string        `yaml:"url" json:"url"`
	Username string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password string        `yaml:"password,omitempty" json:"-"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// SearchConfig configures the full-text search backend.
type SearchConfig struct {
	// Backend is "bleve" (local index) or "elasticsearch".
	Backend       string              `yaml:"backend" json:"backend"`
	IndexDir      string              `yaml:"index_dir,omitempty" json:"index_dir,omitempty"`
	Indices       map[string]string   `yaml:"indices" json:"indices"`
	Available     []string            `yaml:"available" json:"available"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch" json:"elasticsearch"`
}

// StoreConfig configures the document store.
type StoreConfig struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Sources is the provenance label attached to fetched documents.
	Sources map[string]string `yaml:"sources" json:"sources"`
}

// CollectionFields lists the user-facing field names used per collection.
type CollectionFields struct {
	Fetch     []string `yaml:"fetch" json:"fetch"`
	Highlight []string `yaml:"highlight" json:"highlight"`
	Search    []string `yaml:"search" json:"search"`
}

// UserSettings holds settings a request may override.
type UserSettings struct {
	Collections      []string                    `yaml:"collections" json:"collections"`
	MinDate          int                         `yaml:"min_date" json:"min_date"`
	MaxDate          int                         `yaml:"max_date" json:"max_date"`
	MandatoryDisease bool                        `yaml:"mandatory_disease" json:"mandatory_disease"`
	MandatoryGene    bool                        `yaml:"mandatory_gene" json:"mandatory_gene"`
	MandatoryVariant bool                        `yaml:"mandatory_variant" json:"mandatory_variant"`
	SynonymDisease   bool                        `yaml:"synonym_disease" json:"synonym_disease"`
	SynonymGene      bool                        `yaml:"synonym_gene" json:"synonym_gene"`
	SynonymVariant   bool                        `yaml:"synonym_variant" json:"synonym_variant"`
	KeywordsPositive []string                    `yaml:"keywords_positive" json:"keywords_positive"`
	KeywordsNegative []string                    `yaml:"keywords_negative" json:"keywords_negative"`
	UseCache         bool                        `yaml:"cache" json:"cache"`
	ResultsNb        int                         `yaml:"es_results_nb" json:"es_results_nb"`
	Fields           map[string]CollectionFields `yaml:"fields" json:"fields"`
}

// RelaxWeights weights the relaxed sub-queries.
type RelaxWeights struct {
	Weight float64 `yaml:"weight" json:"weight"`
	DG     float64 `yaml:"dg" json:"dg"`
	GV     float64 `yaml:"gv" json:"gv"`
	DV     float64 `yaml:"dv" json:"dv"`
}

// AnnotWeights weights annotation facet densities.
type AnnotWeights struct {
	Weight  float64 `yaml:"weight" json:"weight"`
	Gene    float64 `yaml:"gene" json:"gene"`
	Disease float64 `yaml:"disease" json:"disease"`
	Drug    float64 `yaml:"drug" json:"drug"`
}

// DemogWeights weights demographic matches.
type DemogWeights struct {
	Weight                 float64 `yaml:"weight" json:"weight"`
	Age                    float64 `yaml:"age" json:"age"`
	Gender                 float64 `yaml:"gender" json:"gender"`
	MatchAgeBonus          float64 `yaml:"match_age_bonus" json:"match_age_bonus"`
	MatchGenderBonus       float64 `yaml:"match_gender_bonus" json:"match_gender_bonus"`
	UndiscussedAgeBonus    float64 `yaml:"undiscussed_age_bonus" json:"undiscussed_age_bonus"`
	UndiscussedGenderBonus float64 `yaml:"undiscussed_gender_bonus" json:"undiscussed_gender_bonus"`
}

// KWWeights weights keyword tags. Neg is expected to be negative.
type KWWeights struct {
	Weight float64 `yaml:"weight" json:"weight"`
	Pos    float64 `yaml:"pos" json:"pos"`
	Neg    float64 `yaml:"neg" json:"neg"`
}

// RankingConfig configures the multi-factor scorer.
type RankingConfig struct {
	Strategies []string     `yaml:"strategies" json:"strategies"`
	Relax      RelaxWeights `yaml:"relax" json:"relax"`
	Annot      AnnotWeights `yaml:"annot" json:"annot"`
	Demog      DemogWeights `yaml:"demog" json:"demog"`
	KW         KWWeights    `yaml:"kw" json:"kw"`
}

// HasStrategy reports whether the named strategy is enabled.
func (r RankingConfig) HasStrategy(name string) bool {
	for _, s := range r.Strategies {
		if s == name {
			return true
		}
	}
	return false
}

// TerminologyConfig configures the terminology normalizer.
type TerminologyConfig struct {
	URL               string        `yaml:"url" json:"url"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	// DictionaryPath points to a YAML dictionary used instead of the remote service.
	DictionaryPath string `yaml:"dictionary_path,omitempty" json:"dictionary_path,omitempty"`
	// Lookup maps a concept type to the terminology queried for it.
	Lookup map[string]string `yaml:"lookup" json:"lookup"`
	// Annotation maps a facet (disease, gene, drug) to the annotation source name in the store.
	Annotation map[string]string `yaml:"annotation" json:"annotation"`
}

// URLConfig holds external service endpoints.
type URLConfig struct {
	SynVar string `yaml:"synvar" json:"synvar"`
	CT     string `yaml:"ct" json:"ct"`
}

// BatchConfig configures batch orchestration.
type BatchConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout" json:"poll_timeout"`
	ClaimTTL     time.Duration `yaml:"claim_ttl" json:"claim_ttl"`
	Heartbeat    time.Duration `yaml:"heartbeat" json:"heartbeat"`
	// Parallelism bounds how many collections of one topic run at once.
	Parallelism int `yaml:"parallelism" json:"parallelism"`
}

// APIConfig configures the HTTP front end.
type APIConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// TelemetryConfig configures local search statistics.
type TelemetryConfig struct {
	// Enabled persists search statistics to a SQLite file.
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Path          string        `yaml:"path,omitempty" json:"path,omitempty"`
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with the production defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Cache: CacheConfig{
			Services: map[string]CacheService{
				ServiceSynVar:   {Enabled: true, TTLDays: 30},
				ServiceES:       {Enabled: true, TTLDays: 1},
				ServiceCT:       {Enabled: true, TTLDays: 30},
				ServiceFetchDoc: {Enabled: true, TTLDays: 30},
				ServiceRankLit:  {Enabled: true, TTLDays: 1},
				ServiceRankVar:  {Enabled: true, TTLDays: 1},
			},
			MemoryEntries: 1024,
			ReadAttempts:  5,
			ReadDelay:     3 * time.Second,
		},
		Search: SearchConfig{
			Backend: "bleve",
			Indices: map[string]string{
				CollectionMedline: "med20",
				CollectionPMC:     "pmc20",
			},
			Available: []string{CollectionMedline, CollectionPMC, CollectionCT},
			Elasticsearch: ElasticsearchConfig{
				URL:     "http://localhost:9200",
				Timeout: 500 * time.Second,
			},
		},
		Store: StoreConfig{
			Sources: map[string]string{
				CollectionMedline: "SIBiLS/bibmed20",
				CollectionPMC:     "SIBiLS/bibpmc20",
				CollectionCT:      "clinical_trials/ct2019",
			},
		},
		Settings: UserSettings{
			Collections:      []string{CollectionMedline},
			MinDate:          1900,
			MaxDate:          2100,
			MandatoryDisease: true,
			MandatoryGene:    true,
			MandatoryVariant: true,
			SynonymDisease:   true,
			SynonymGene:      true,
			SynonymVariant:   true,
			KeywordsPositive: []string{},
			KeywordsNegative: []string{},
			UseCache:         true,
			ResultsNb:        1000,
			Fields:           defaultFields(),
		},
		Ranking: RankingConfig{
			Strategies: []string{StrategyRelax, StrategyAnnot, StrategyDemog, StrategyKW},
			Relax:      RelaxWeights{Weight: 0.1, DG: 0.2, GV: 0.2, DV: 0.2},
			Annot:      AnnotWeights{Weight: 0.1, Gene: 0.5, Disease: 0.3, Drug: 0.4},
			Demog: DemogWeights{
				Weight:                 0.1,
				Age:                    0.4,
				Gender:                 0.4,
				MatchAgeBonus:          0.5,
				MatchGenderBonus:       0.3,
				UndiscussedAgeBonus:    0.5,
				UndiscussedGenderBonus: 0.3,
			},
			KW: KWWeights{Weight: 0.005, Pos: 0.5, Neg: -0.1},
		},
		Terminology: TerminologyConfig{
			URL:               "http://localhost:8983/normalize",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 20,
			Lookup: map[string]string{
				"disease": "ncit",
				"gene":    "nextprot",
				"gender":  "mesh",
				"age":     "mesh",
				"drug":    "drugbank",
				"variant": "cnv",
			},
			Annotation: map[string]string{
				"disease": "NCI Thesaurus",
				"gene":    "nextprot",
				"drug":    "drugbank",
			},
		},
		URLs: URLConfig{
			SynVar: "http://goldorak.hesge.ch/synvar/generate/litterature/fromMutation",
			CT:     "http://candy.hesge.ch/CT/CTSVIP/rankCT.jsp",
		},
		Batch: BatchConfig{
			PollInterval: 10 * time.Second,
			PollTimeout:  10 * time.Minute,
			ClaimTTL:     30 * time.Minute,
			Heartbeat:    30 * time.Second,
			Parallelism:  1,
		},
		API: APIConfig{
			Addr: ":5003",
		},
		Telemetry: TelemetryConfig{
			Enabled:       true,
			FlushInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

func defaultFields() map[string]CollectionFields {
	return map[string]CollectionFields{
		CollectionMedline: {
			Fetch: []string{"abstract", "authors", "chemicals", "comments_in", "comments_on", "date",
				"publication_date", "journal", "keywords", "meshs", "publication_types", "title"},
			Highlight: []string{"abstract", "chemicals", "keywords", "meshs", "title"},
			Search:    []string{"title", "abstract", "mesh_terms", "keywords"},
		},
		CollectionPMC: {
			Fetch:     []string{"abstract", "title", "authors", "date", "pmc_date", "journal", "publication_types", "pmid", "keywords"},
			Highlight: []string{"abstract", "keywords", "title"},
			Search:    []string{"title", "abstract", "keywords", "full_text", "figures_captions"},
		},
		CollectionCT: {
			Fetch: []string{"abstract", "title", "start_date", "completion_date", "gender", "minimum_age", "maximum_age",
				"brief_title", "official_title", "brief_summary", "detailed_description", "condition",
				"inclusion_criteria", "keywords", "details"},
			Highlight: []string{"abstract", "title"},
		},
	}
}

// defaultDataDir returns ~/.variomes, or a temp fallback.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".variomes")
	}
	return filepath.Join(home, ".variomes")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/variomes/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/variomes/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "variomes", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "variomes", "config.yaml")
	}
	return filepath.Join(home, ".config", "variomes", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/variomes/config.yaml)
//  3. The explicit file at path, or .variomes.yaml in the working directory
//  4. Environment variables (VARIOMES_*)
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path == "" {
		if fileExists(".variomes.yaml") {
			path = ".variomes.yaml"
		} else if fileExists(".variomes.yml") {
			path = ".variomes.yml"
		}
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML decodes a YAML file on top of the current values.
// Keys absent from the file keep their current value, including booleans.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.Paths.DataDir = expandHome(c.Paths.DataDir)
	return nil
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// applyEnvOverrides applies VARIOMES_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VARIOMES_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("VARIOMES_CACHE_DIR"); v != "" {
		c.Paths.Cache = v
	}
	if v := os.Getenv("VARIOMES_SEARCH_BACKEND"); v != "" {
		c.Search.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("VARIOMES_ES_URL"); v != "" {
		c.Search.Elasticsearch.URL = v
	}
	if v := os.Getenv("VARIOMES_ES_USERNAME"); v != "" {
		c.Search.Elasticsearch.Username = v
	}
	if v := os.Getenv("VARIOMES_ES_PASSWORD"); v != "" {
		c.Search.Elasticsearch.Password = v
	}
	if v := os.Getenv("VARIOMES_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("VARIOMES_TERMINOLOGY_URL"); v != "" {
		c.Terminology.URL = v
	}
	if v := os.Getenv("VARIOMES_SYNVAR_URL"); v != "" {
		c.URLs.SynVar = v
	}
	if v := os.Getenv("VARIOMES_CT_URL"); v != "" {
		c.URLs.CT = v
	}
	if v := os.Getenv("VARIOMES_COLLECTIONS"); v != "" {
		c.Settings.Collections = splitList(v)
	}
	if v := os.Getenv("VARIOMES_RESULTS_NB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Settings.ResultsNb = n
		}
	}
	if v := os.Getenv("VARIOMES_BATCH_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Batch.Parallelism = n
		}
	}
	if v := os.Getenv("VARIOMES_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("VARIOMES_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}

	validBackends := map[string]bool{"bleve": true, "elasticsearch": true}
	if !validBackends[strings.ToLower(c.Search.Backend)] {
		return fmt.Errorf("search.backend must be 'bleve' or 'elasticsearch', got %s", c.Search.Backend)
	}

	if len(c.Settings.Collections) == 0 {
		return fmt.Errorf("settings.collections must not be empty")
	}
	for _, coll := range c.Settings.Collections {
		if !contains(c.Search.Available, coll) {
			return fmt.Errorf("settings.collections: unknown collection %q", coll)
		}
	}
	if c.Settings.MinDate > c.Settings.MaxDate {
		return fmt.Errorf("settings.min_date (%d) must not exceed max_date (%d)", c.Settings.MinDate, c.Settings.MaxDate)
	}
	if c.Settings.ResultsNb <= 0 {
		return fmt.Errorf("settings.es_results_nb must be positive, got %d", c.Settings.ResultsNb)
	}

	validStrategies := map[string]bool{StrategyRelax: true, StrategyAnnot: true, StrategyDemog: true, StrategyKW: true}
	for _, s := range c.Ranking.Strategies {
		if !validStrategies[s] {
			return fmt.Errorf("ranking.strategies: unknown strategy %q", s)
		}
	}

	if c.Cache.ReadAttempts <= 0 {
		return fmt.Errorf("cache.read_attempts must be positive, got %d", c.Cache.ReadAttempts)
	}
	if c.Batch.Parallelism < 1 {
		return fmt.Errorf("batch.parallelism must be at least 1, got %d", c.Batch.Parallelism)
	}
	if c.Batch.PollInterval <= 0 || c.Batch.PollTimeout <= 0 {
		return fmt.Errorf("batch.poll_interval and batch.poll_timeout must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// EnsureDirs creates the working directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{
		c.Paths.CacheDir(), c.Paths.LogsDir(), c.Paths.ErrorsDir(),
		c.Paths.StatusDir(), c.Paths.APIFilesDir(),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the SQLite document store location.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.Paths.DataDir, "documents.db")
}

// TelemetryPath returns the search statistics database location.
func (c *Config) TelemetryPath() string {
	if c.Telemetry.Path != "" {
		return c.Telemetry.Path
	}
	return filepath.Join(c.Paths.DataDir, "telemetry.db")
}

// IndexDir returns the local search index root.
func (c *Config) IndexDir() string {
	if c.Search.IndexDir != "" {
		return c.Search.IndexDir
	}
	return filepath.Join(c.Paths.DataDir, "index")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
