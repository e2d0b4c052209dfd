package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query   string `json:"query" jsonschema:"the search query to execute"`
	Mode    string `json:"mode,omitempty" jsonschema:"find (default), orient, recent or why"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Explain bool   `json:"explain,omitempty" jsonschema:"include intent, plan and per-source outcomes"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	QueryID string               `json:"query_id" jsonschema:"pass to record_usage to mark results used"`
	Intent  string               `json:"intent"`
	Results []SearchResultOutput `json:"results"`
	Explain []string             `json:"explain,omitempty"`
}

// SearchResultOutput is one fused result.
type SearchResultOutput struct {
	Rank        int     `json:"rank"`
	DocID       string  `json:"doc_id"`
	FilePath    string  `json:"file_path,omitempty"`
	Score       float64 `json:"score" jsonschema:"reciprocal rank fusion score"`
	Provenance  string  `json:"provenance" jsonschema:"which sources ranked this result and where"`
	Snippet     string  `json:"snippet,omitempty"`
	Annotations string  `json:"annotations,omitempty" jsonschema:"structural tags such as entry point or importer count"`
	UseCount    int     `json:"use_count,omitempty"`
}

// WhyInput defines the input schema for the why tool.
type WhyInput struct {
	DocID string `json:"doc_id" jsonschema:"document ID or file path to explain"`
	Query string `json:"query" jsonschema:"the query the document was expected to match"`
}

// WhyOutput explains one document's rank.
type WhyOutput struct {
	Rank    int                `json:"rank"`
	Of      int                `json:"of"`
	Score   float64            `json:"score"`
	K       int                `json:"k"`
	Sources []WhySourceOutput  `json:"sources"`
	Result  SearchResultOutput `json:"result"`
}

// WhySourceOutput is one source's contribution.
type WhySourceOutput struct {
	Source       string   `json:"source"`
	Rank         int      `json:"rank"`
	RawScore     string   `json:"raw_score"`
	Contribution float64  `json:"contribution"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// OrientInput defines the input schema for the orient tool.
type OrientInput struct {
	Dir   string `json:"dir,omitempty" jsonschema:"directory to list, default the project root"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of files, default 10"`
}

// OrientOutput lists files by structural importance.
type OrientOutput struct {
	Files []OrientFileOutput `json:"files"`
}

// OrientFileOutput is one orient entry.
type OrientFileOutput struct {
	Path          string  `json:"path"`
	Score         float64 `json:"score"`
	ImporterCount int64   `json:"importer_count"`
	ActivityLevel string  `json:"activity_level,omitempty"`
	IsEntryPoint  bool    `json:"is_entry_point"`
	IsTestFile    bool    `json:"is_test_file"`
}

// SourcesInput defines the input schema for the sources tool (no parameters).
type SourcesInput struct{}

// SourcesOutput reports oracle availability.
type SourcesOutput struct {
	Sources []SourceOutput `json:"sources"`
}

// SourceOutput is one registered oracle.
type SourceOutput struct {
	Name        string `json:"name"`
	Available   bool   `json:"available"`
	Granularity string `json:"granularity"`
	Circuit     string `json:"circuit" jsonschema:"closed, open or half-open"`
}

// RecordUsageInput defines the input schema for the record_usage tool.
type RecordUsageInput struct {
	QueryID string `json:"query_id" jsonschema:"query_id returned by search"`
	Rank    int    `json:"rank" jsonschema:"1-based rank of the result"`
	Used    *bool  `json:"used,omitempty" jsonschema:"whether the result was used, default true"`
}

// RecordUsageOutput confirms a usage record.
type RecordUsageOutput struct {
	DocID string `json:"doc_id"`
	Used  bool   `json:"used"`
}
