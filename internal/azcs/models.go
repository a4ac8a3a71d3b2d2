// SPDX-License-Identifier: MIT

package azcs

// TextCategory is a harm category recognised by the text and image analysis APIs.
type TextCategory string

const (
	CategoryHate     TextCategory = "Hate"
	CategorySexual   TextCategory = "Sexual"
	CategorySelfHarm TextCategory = "SelfHarm"
	CategoryViolence TextCategory = "Violence"
)

// DefaultCategories returns all four harm categories, the API default.
func DefaultCategories() []TextCategory {
	return []TextCategory{CategoryHate, CategorySexual, CategorySelfHarm, CategoryViolence}
}

// OutputType selects the severity granularity of an analysis.
type OutputType string

const (
	// FourSeverityLevels yields severities in {0, 2, 4, 6}.
	FourSeverityLevels OutputType = "FourSeverityLevels"
	// EightSeverityLevels yields severities in 0..7.
	EightSeverityLevels OutputType = "EightSeverityLevels"
)

// AnalyzeTextRequest is the body of text:analyze.
type AnalyzeTextRequest struct {
	Text               string         `json:"text"`
	Categories         []TextCategory `json:"categories,omitempty"`
	BlocklistNames     []string       `json:"blocklistNames,omitempty"`
	HaltOnBlocklistHit bool           `json:"haltOnBlocklistHit"`
	OutputType         OutputType     `json:"outputType,omitempty"`
}

// CategoryAnalysis is the severity assigned to one category.
type CategoryAnalysis struct {
	Category TextCategory `json:"category"`
	Severity int          `json:"severity"`
}

// BlocklistMatch describes a blocklist item that matched the analysed text.
type BlocklistMatch struct {
	BlocklistName     string `json:"blocklistName"`
	BlocklistItemID   string `json:"blocklistItemId"`
	BlocklistItemText string `json:"blocklistItemText"`
}

// AnalyzeTextResult is the response of text:analyze.
type AnalyzeTextResult struct {
	BlocklistsMatch    []BlocklistMatch   `json:"blocklistsMatch,omitempty"`
	CategoriesAnalysis []CategoryAnalysis `json:"categoriesAnalysis"`
}

// MaxSeverity returns the highest severity in the result together with its
// category. A result with no categories yields (0, "").
func (r AnalyzeTextResult) MaxSeverity() (int, TextCategory) {
	max, cat := 0, TextCategory("")
	for _, c := range r.CategoriesAnalysis {
		if c.Severity > max || cat == "" {
			max, cat = c.Severity, c.Category
		}
	}
	return max, cat
}

// ImageData carries the image to analyse, either inline or by blob URL.
// Content is base64-encoded on the wire by encoding/json.
type ImageData struct {
	Content []byte `json:"content,omitempty"`
	BlobURL string `json:"blobUrl,omitempty"`
}

// AnalyzeImageRequest is the body of image:analyze.
type AnalyzeImageRequest struct {
	Image      ImageData      `json:"image"`
	Categories []TextCategory `json:"categories,omitempty"`
	OutputType OutputType     `json:"outputType,omitempty"`
}

// AnalyzeImageResult is the response of image:analyze.
type AnalyzeImageResult struct {
	CategoriesAnalysis []CategoryAnalysis `json:"categoriesAnalysis"`
}

// ShieldPromptRequest is the body of text:shieldPrompt.
type ShieldPromptRequest struct {
	UserPrompt string   `json:"userPrompt"`
	Documents  []string `json:"documents"`
}

// AttackAnalysis reports whether an injection attack was detected in one input.
type AttackAnalysis struct {
	AttackDetected bool `json:"attackDetected"`
}

// ShieldPromptResult is the response of text:shieldPrompt.
type ShieldPromptResult struct {
	UserPromptAnalysis AttackAnalysis   `json:"userPromptAnalysis"`
	DocumentsAnalysis  []AttackAnalysis `json:"documentsAnalysis"`
}

// QnAOptions carries the query for groundedness detection in QnA task mode.
type QnAOptions struct {
	Query string `json:"query"`
}

// LLMResource names the Azure OpenAI resource used for groundedness reasoning.
type LLMResource struct {
	ResourceType              string `json:"resourceType"`
	AzureOpenAIEndpoint       string `json:"azureOpenAIEndpoint"`
	AzureOpenAIDeploymentName string `json:"azureOpenAIDeploymentName"`
}

// DetectGroundednessRequest is the body of text:detectGroundedness.
type DetectGroundednessRequest struct {
	Domain           string       `json:"domain"`
	Task             string       `json:"task"`
	Text             string       `json:"text"`
	GroundingSources []string     `json:"groundingSources"`
	QnA              *QnAOptions  `json:"qna,omitempty"`
	Reasoning        bool         `json:"reasoning"`
	LLMResource      *LLMResource `json:"llmResource,omitempty"`
}

// UngroundedDetail locates one ungrounded span in the analysed text.
type UngroundedDetail struct {
	Text   string `json:"text"`
	Reason string `json:"reason,omitempty"`
}

// DetectGroundednessResult is the response of text:detectGroundedness.
type DetectGroundednessResult struct {
	UngroundedDetected   bool               `json:"ungroundedDetected"`
	UngroundedPercentage float64            `json:"ungroundedPercentage"`
	UngroundedDetails    []UngroundedDetail `json:"ungroundedDetails,omitempty"`
}

// TextBlocklist is a named blocklist.
type TextBlocklist struct {
	BlocklistName string `json:"blocklistName"`
	Description   string `json:"description,omitempty"`
}

// TextBlocklistItem is a single entry in a blocklist.
type TextBlocklistItem struct {
	BlocklistItemID string `json:"blocklistItemId,omitempty"`
	Description     string `json:"description,omitempty"`
	Text            string `json:"text"`
}
