package model

// Suggestion actions produced by structure analysis.
const (
	ActionMerge   = "merge"
	ActionRewrite = "rewrite"
	ActionRemove  = "remove"
	ActionKeep    = "keep"
)

// Confidence levels the model may attach to a suggestion.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Proposal types shown to the user for approval.
const (
	ProposalLinkFixes = "link-fixes"
	ProposalStructure = "structure"
)

// Link is a hyperlink discovered in the source HTML. Context holds a short
// excerpt of the text surrounding the anchor. Immutable once extracted.
type Link struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Text    string `json:"text"`
	Context string `json:"context"`
}

// LinkEvaluation extends a Link with the outcome of a reachability probe.
// Method records which probe strategy resolved the link (HEAD, GET,
// HEAD-SPECIAL, or GET-SPECIAL).
type LinkEvaluation struct {
	Link
	Status  int    `json:"status"`
	Working bool   `json:"working"`
	Issue   string `json:"issue,omitempty"`
	Method  string `json:"method"`
}

// Section is one heading-delimited block of the source document.
// OriginalIndex is the stable identity later stages use to refer back to a
// section even after merges conceptually remove some.
type Section struct {
	ID            string `json:"id"`
	Heading       string `json:"heading"`
	Content       string `json:"content"`
	OriginalIndex int    `json:"originalIndex"`
}

// StructureSuggestion is a single validated restructuring suggestion.
type StructureSuggestion struct {
	Action           string `json:"action"`
	AffectedSections []int  `json:"affectedSections"`
	NewHeading       string `json:"newHeading,omitempty"`
	Rationale        string `json:"rationale"`
	Confidence       string `json:"confidenceLevel,omitempty"`
}

// StructureAnalysis is the validated result of one structure-analysis call.
type StructureAnalysis struct {
	NeedsRestructuring  bool                  `json:"needsRestructuring"`
	CurrentSectionCount int                   `json:"currentSectionCount"`
	RestructuringReason string                `json:"restructuringReason"`
	Suggestions         []StructureSuggestion `json:"suggestions"`
}

// Proposal is one user-facing, approvable unit of change. Approved is the
// only field mutated after creation, and only by the approval UI.
type Proposal struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
	Approved    bool   `json:"approved"`

	// link-fixes payload.
	AffectedLinks []LinkEvaluation `json:"affectedLinks,omitempty"`

	// structure payload.
	Action           string `json:"action,omitempty"`
	AffectedSections []int  `json:"affectedSections,omitempty"`
	NewHeading       string `json:"newHeading,omitempty"`
}

// PageContent is the extracted title and main content of a fetched page.
type PageContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// AnalysisResult bundles everything one analysis run produces.
type AnalysisResult struct {
	Sections          []Section         `json:"sections"`
	LinkEvaluations   []LinkEvaluation  `json:"linkEvaluations"`
	StructureAnalysis StructureAnalysis `json:"structureAnalysis"`
	Proposals         []Proposal        `json:"proposals"`
}

// ErrorResponse is the JSON shape returned on failure.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}
