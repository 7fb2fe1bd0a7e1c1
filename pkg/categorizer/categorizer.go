package categorizer

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultSimilarityThreshold = 0.7
	DefaultCategoryName        = "sin_categoria"
)

// MatchPolicy controls how the exact stage decides a keyword occurs in a message.
type MatchPolicy string

const (
	// MatchSubstring accepts a keyword anywhere in the message, even inside a
	// longer word ("reunion" matches "reunionista").
	MatchSubstring MatchPolicy = "substring"
	// MatchWord requires the keyword to start and end on word boundaries.
	MatchWord MatchPolicy = "word"
)

// ParseMatchPolicy maps a configuration string to a MatchPolicy.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchSubstring:
		return MatchSubstring, nil
	case MatchWord:
		return MatchWord, nil
	default:
		return "", fmt.Errorf("unknown match policy %q (want %q or %q)", s, MatchSubstring, MatchWord)
	}
}

// Method records which stage produced a Result.
type Method string

const (
	MethodExact Method = "exact"
	MethodFuzzy Method = "fuzzy"
	MethodNone  Method = "none"
)

// Result is the outcome of classifying one message.
type Result struct {
	Category       string  `json:"category"`
	Confidence     float64 `json:"confidence"`
	MatchedKeyword string  `json:"matched_keyword,omitempty"`
	Method         Method  `json:"method"`
	// Err holds an internal scoring failure that was turned into the default
	// result. It is meant for logging only.
	Err error `json:"-"`
}

// Config is fixed for the lifetime of a Categorizer.
type Config struct {
	SimilarityThreshold float64
	DefaultCategory     string
	MatchPolicy         MatchPolicy
}

// DefaultConfig returns the stock configuration: threshold 0.7, default
// category "sin_categoria", substring matching.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		DefaultCategory:     DefaultCategoryName,
		MatchPolicy:         MatchSubstring,
	}
}

// stage is one step of the classification pipeline. A stage that reports ok
// ends the pipeline.
type stage interface {
	match(message string, snap Snapshot) (Result, bool)
}

// Categorizer classifies messages against a category snapshot. It keeps no
// state between calls and is safe for concurrent use.
type Categorizer struct {
	cfg    Config
	stages []stage
}

// New builds a Categorizer. The threshold must lie in [0, 1].
func New(cfg Config) (*Categorizer, error) {
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v out of range [0, 1]", cfg.SimilarityThreshold)
	}
	if strings.TrimSpace(cfg.DefaultCategory) == "" {
		cfg.DefaultCategory = DefaultCategoryName
	}
	policy, err := ParseMatchPolicy(string(cfg.MatchPolicy))
	if err != nil {
		return nil, err
	}
	cfg.MatchPolicy = policy

	return &Categorizer{
		cfg: cfg,
		stages: []stage{
			exactStage{policy: policy},
			fuzzyStage{threshold: cfg.SimilarityThreshold},
		},
	}, nil
}

func (c *Categorizer) Config() Config { return c.cfg }

// Categorize always returns a result. Exact keyword containment wins with
// confidence 1.0; otherwise the closest keyword is accepted when its
// similarity reaches the threshold; otherwise the default category is
// returned with confidence 0.
func (c *Categorizer) Categorize(text string, snap Snapshot) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = c.fallback()
			res.Err = fmt.Errorf("categorize: recovered from panic: %v", r)
		}
	}()

	message := Normalize(text)
	if message == "" || len(snap) == 0 {
		return c.fallback()
	}
	for _, s := range c.stages {
		if r, ok := s.match(message, snap); ok {
			return r
		}
	}
	return c.fallback()
}

func (c *Categorizer) fallback() Result {
	return Result{Category: c.cfg.DefaultCategory, Confidence: 0, Method: MethodNone}
}

type exactStage struct {
	policy MatchPolicy
}

// match returns the first category, in snapshot order, owning a keyword that
// occurs in the message.
func (s exactStage) match(message string, snap Snapshot) (Result, bool) {
	for _, cat := range snap {
		for _, kw := range cat.Keywords {
			if kw == "" {
				continue
			}
			if contains(message, kw, s.policy) {
				return Result{Category: cat.Name, Confidence: 1, MatchedKeyword: kw, Method: MethodExact}, true
			}
		}
	}
	return Result{}, false
}

type fuzzyStage struct {
	threshold float64
}

// match scores every (category, keyword) pair and keeps the first best pair.
func (s fuzzyStage) match(message string, snap Snapshot) (Result, bool) {
	var best Result
	found := false
	for _, cat := range snap {
		for _, kw := range cat.Keywords {
			score := Ratio(message, kw)
			if !found || score > best.Confidence {
				best = Result{Category: cat.Name, Confidence: score, MatchedKeyword: kw, Method: MethodFuzzy}
				found = true
			}
		}
	}
	if !found || best.Confidence < s.threshold {
		return Result{}, false
	}
	return best, true
}

func contains(message, keyword string, policy MatchPolicy) bool {
	if policy != MatchWord {
		return strings.Contains(message, keyword)
	}
	for offset := 0; offset <= len(message)-len(keyword); {
		idx := strings.Index(message[offset:], keyword)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(keyword)
		if boundaryBefore(message, start) && boundaryAfter(message, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

// CategoryScore breaks down how one category scored against a message.
type CategoryScore struct {
	Category    string  `json:"category"`
	Score       float64 `json:"score"`
	Exact       bool    `json:"exact"`
	FuzzyScore  float64 `json:"fuzzy_score"`
	BestKeyword string  `json:"best_keyword,omitempty"`
	AboveCutoff bool    `json:"above_threshold"`
}

// Scores reports, for every category in the snapshot, whether it matched
// exactly and how close its best keyword came. The slice is sorted by score,
// highest first; categories with equal scores keep snapshot order.
func (c *Categorizer) Scores(text string, snap Snapshot) []CategoryScore {
	message := Normalize(text)
	out := make([]CategoryScore, 0, len(snap))
	for _, cat := range snap {
		cs := CategoryScore{Category: cat.Name}
		for _, kw := range cat.Keywords {
			if kw == "" {
				continue
			}
			if !cs.Exact && contains(message, kw, c.cfg.MatchPolicy) {
				cs.Exact = true
				cs.BestKeyword = kw
			}
			if score := Ratio(message, kw); score > cs.FuzzyScore {
				cs.FuzzyScore = score
				if !cs.Exact {
					cs.BestKeyword = kw
				}
			}
		}
		cs.Score = cs.FuzzyScore
		if cs.Exact {
			cs.Score = 1
		}
		cs.AboveCutoff = cs.Exact || cs.FuzzyScore >= c.cfg.SimilarityThreshold
		out = append(out, cs)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
