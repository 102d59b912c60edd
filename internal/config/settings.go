package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Settings is the per-request configuration snapshot.
//
// A Settings value is built once by Config.ForRequest and passed explicitly to
// every pipeline component. All slices and maps are private copies, so a
// request never observes another request's overrides.
type Settings struct {
	User        UserSettings
	Available   []string
	Ranking     RankingConfig
	Terminology TerminologyConfig
	Cache       CacheConfig
	Paths       PathsConfig
	Indices     map[string]string
	Sources     map[string]string
	URLs        URLConfig
}

// Overrides carries optional per-request settings. Nil fields keep the
// configured value.
type Overrides struct {
	MinDate          *int
	MaxDate          *int
	Collections      []string
	FetchFields      []string
	HighlightFields  []string
	MandatoryDisease *bool
	MandatoryGene    *bool
	MandatoryVariant *bool
	SynonymDisease   *bool
	SynonymGene      *bool
	SynonymVariant   *bool
	KeywordsPositive []string
	KeywordsNegative []string
	UseCache         *bool
	ResultsNb        *int
}

// ForRequest returns an immutable snapshot of c with o applied.
func (c *Config) ForRequest(o Overrides) Settings {
	u := c.Settings
	s := Settings{
		User: UserSettings{
			Collections:      cloneStrings(u.Collections),
			MinDate:          u.MinDate,
			MaxDate:          u.MaxDate,
			MandatoryDisease: u.MandatoryDisease,
			MandatoryGene:    u.MandatoryGene,
			MandatoryVariant: u.MandatoryVariant,
			SynonymDisease:   u.SynonymDisease,
			SynonymGene:      u.SynonymGene,
			SynonymVariant:   u.SynonymVariant,
			KeywordsPositive: cloneStrings(u.KeywordsPositive),
			KeywordsNegative: cloneStrings(u.KeywordsNegative),
			UseCache:         u.UseCache,
			ResultsNb:        u.ResultsNb,
			Fields:           make(map[string]CollectionFields, len(u.Fields)),
		},
		Available:   cloneStrings(c.Search.Available),
		Ranking:     c.Ranking,
		Terminology: c.Terminology,
		Cache:       c.Cache,
		Paths:       c.Paths,
		Indices:     cloneMap(c.Search.Indices),
		Sources:     cloneMap(c.Store.Sources),
		URLs:        c.URLs,
	}
	s.Ranking.Strategies = cloneStrings(c.Ranking.Strategies)
	s.Terminology.Lookup = cloneMap(c.Terminology.Lookup)
	s.Terminology.Annotation = cloneMap(c.Terminology.Annotation)
	s.Cache.Services = make(map[string]CacheService, len(c.Cache.Services))
	for k, v := range c.Cache.Services {
		s.Cache.Services[k] = v
	}
	for coll, f := range u.Fields {
		s.User.Fields[coll] = CollectionFields{
			Fetch:     cloneStrings(f.Fetch),
			Highlight: cloneStrings(f.Highlight),
			Search:    cloneStrings(f.Search),
		}
	}

	setInt(&s.User.MinDate, o.MinDate)
	setInt(&s.User.MaxDate, o.MaxDate)
	setInt(&s.User.ResultsNb, o.ResultsNb)
	setBool(&s.User.MandatoryDisease, o.MandatoryDisease)
	setBool(&s.User.MandatoryGene, o.MandatoryGene)
	setBool(&s.User.MandatoryVariant, o.MandatoryVariant)
	setBool(&s.User.SynonymDisease, o.SynonymDisease)
	setBool(&s.User.SynonymGene, o.SynonymGene)
	setBool(&s.User.SynonymVariant, o.SynonymVariant)
	setBool(&s.User.UseCache, o.UseCache)
	if o.Collections != nil {
		s.User.Collections = cloneStrings(o.Collections)
	}
	if o.KeywordsPositive != nil {
		s.User.KeywordsPositive = cloneStrings(o.KeywordsPositive)
	}
	if o.KeywordsNegative != nil {
		s.User.KeywordsNegative = cloneStrings(o.KeywordsNegative)
	}
	// Requested fields apply to every collection.
	for coll, f := range s.User.Fields {
		if o.FetchFields != nil {
			f.Fetch = cloneStrings(o.FetchFields)
		}
		if o.HighlightFields != nil {
			f.Highlight = cloneStrings(o.HighlightFields)
		}
		s.User.Fields[coll] = f
	}

	return s
}

// Fields returns the field lists for a collection.
func (s Settings) Fields(collection string) CollectionFields {
	return s.User.Fields[collection]
}

// CacheService returns the cache configuration for a service.
func (s Settings) CacheService(service string) CacheService {
	return s.Cache.Services[service]
}

// Validate checks the request-level constraints.
func (s Settings) Validate() error {
	if len(s.User.Collections) == 0 {
		return fmt.Errorf("no collection requested")
	}
	for _, coll := range s.User.Collections {
		if !contains(s.Available, coll) {
			return fmt.Errorf("unknown collection %q", coll)
		}
	}
	if s.User.MinDate > s.User.MaxDate {
		return fmt.Errorf("minDate %d is after maxDate %d", s.User.MinDate, s.User.MaxDate)
	}
	if s.User.ResultsNb <= 0 {
		return fmt.Errorf("nb must be positive")
	}
	return nil
}

// SettingsJSON is the settings block echoed in every ranking output.
type SettingsJSON struct {
	MinDate          int      `json:"min_date"`
	MaxDate          int      `json:"max_date"`
	Collections      []string `json:"collections"`
	KeywordsPositive string   `json:"keywords_positive"`
	KeywordsNegative string   `json:"keywords_negative"`
	MustDisease      bool     `json:"must_disease"`
	MustGene         bool     `json:"must_gene"`
	MustVariant      bool     `json:"must_variant"`
	SynonymDisease   bool     `json:"synonym_disease"`
	SynonymGene      bool     `json:"synonym_gene"`
	SynonymVariant   bool     `json:"synonym_variant"`
}

// AsJSON renders the user-visible settings.
func (s Settings) AsJSON() SettingsJSON {
	return SettingsJSON{
		MinDate:          s.User.MinDate,
		MaxDate:          s.User.MaxDate,
		Collections:      cloneStrings(s.User.Collections),
		KeywordsPositive: strings.Join(s.User.KeywordsPositive, ";"),
		KeywordsNegative: strings.Join(s.User.KeywordsNegative, ";"),
		MustDisease:      s.User.MandatoryDisease,
		MustGene:         s.User.MandatoryGene,
		MustVariant:      s.User.MandatoryVariant,
		SynonymDisease:   s.User.SynonymDisease,
		SynonymGene:      s.User.SynonymGene,
		SynonymVariant:   s.User.SynonymVariant,
	}
}

// ParseOverrides reads request parameters (minDate, maxDate, collection,
// ret_fields, hl_fields, mustDisease, expandGene, keywordsPositive, cache,
// nb, ...) through get, which returns "" for absent parameters.
func ParseOverrides(get func(string) string) (Overrides, error) {
	var o Overrides
	var err error

	if o.MinDate, err = intParam(get, "minDate"); err != nil {
		return o, err
	}
	if o.MaxDate, err = intParam(get, "maxDate"); err != nil {
		return o, err
	}
	if o.ResultsNb, err = intParam(get, "nb"); err != nil {
		return o, err
	}

	if v := firstNonEmpty(get("collections"), get("collection")); v != "" {
		o.Collections = SplitParam(v, ",")
	}
	if v := get("ret_fields"); v != "" {
		o.FetchFields = SplitParam(v, ",")
	}
	if v := get("hl_fields"); v != "" {
		o.HighlightFields = SplitParam(v, ",")
	}
	if v := get("keywordsPositive"); v != "" {
		o.KeywordsPositive = SplitParam(v, ";")
	}
	if v := get("keywordsNegative"); v != "" {
		o.KeywordsNegative = SplitParam(v, ";")
	}

	o.MandatoryDisease = boolParam(get, "mustDisease")
	o.MandatoryGene = boolParam(get, "mustGene")
	o.MandatoryVariant = boolParam(get, "mustVariant")
	o.SynonymDisease = boolParam(get, "expandDisease")
	o.SynonymGene = boolParam(get, "expandGene")
	o.SynonymVariant = boolParam(get, "expandVariant")
	o.UseCache = boolParam(get, "cache")

	return o, nil
}

// ParseBool reports whether s is one of yes, true, t or 1 (case-insensitive).
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "t", "1":
		return true
	}
	return false
}

// SplitParam splits a list parameter and drops empty items.
func SplitParam(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intParam(get func(string) string, name string) (*int, error) {
	v := get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("parameter %s must be an integer, got %q", name, v)
	}
	return &n, nil
}

func boolParam(get func(string) string, name string) *bool {
	v := get(name)
	if v == "" {
		return nil
	}
	b := ParseBool(v)
	return &b
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
