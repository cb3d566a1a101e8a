package services

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Operation is one of the coding actions the broker can perform upstream.
type Operation string

const (
	OpGenerate Operation = "generate_code"
	OpEdit     Operation = "edit_code"
	OpReview   Operation = "review_code"

	// ToolCostReport is the read-only report query; it never reaches upstream.
	ToolCostReport = "get_cost_report"
)

// Max input sizes to prevent abuse and runaway costs.
const (
	maxCodeLength        = 100_000
	maxDescriptionLength = 10_000
)

// CallArgs carries the union of arguments across the three operations.
// Which fields are meaningful depends on the operation.
type CallArgs struct {
	TaskDescription string
	Language        string
	FilePath        string
	Context         string
	OriginalCode    string
	ChangeRequest   string
	Code            string
	FocusAreas      []string
}

// operationSpec is one entry in the operation dispatch table: how to build
// the prompts for an operation and whether it requests reasoning mode.
type operationSpec struct {
	systemPrompt func(args *CallArgs) string
	userPrompt   func(args *CallArgs) string
	reasoning    bool
}

var operationSpecs = map[Operation]operationSpec{
	OpGenerate: {
		systemPrompt: generateSystemPrompt,
		userPrompt:   generateUserPrompt,
	},
	OpEdit: {
		systemPrompt: editSystemPrompt,
		userPrompt:   editUserPrompt,
	},
	OpReview: {
		systemPrompt: reviewSystemPrompt,
		userPrompt:   reviewUserPrompt,
		reasoning:    true,
	},
}

const generatePromptTemplate = `You are a code generation specialist. Write clean, working code.

RULES:
1. Return ONLY a JSON object with keys "code" and "explanation"
2. Code must be complete, runnable, and follow best practices for %s
3. Explanation must be brief (1-2 sentences) describing key decisions
4. No markdown formatting, no code fences, no prose outside JSON
5. If unsure, make reasonable assumptions and document in explanation

OUTPUT FORMAT:
{"code": "...", "explanation": "..."}`

const editPromptTemplate = `You are a code editing specialist. Modify existing code as requested.

RULES:
1. Return ONLY a JSON object with keys "code" and "explanation"
2. The "code" field must contain the complete modified code
3. Preserve the original code's style and conventions
4. Explanation must be brief (1-2 sentences) describing what changed
5. No markdown formatting, no code fences, no prose outside JSON

OUTPUT FORMAT:
{"code": "...", "explanation": "..."}`

const reviewPromptTemplate = `You are a code reviewer. Analyze the provided code for issues.

Focus areas: %s

Return JSON with:
- "code": (original code unchanged)
- "explanation": summary of findings
- "suggestions": array of specific improvements`

func generateSystemPrompt(args *CallArgs) string {
	language := args.Language
	if language == "" {
		language = "python"
	}
	return fmt.Sprintf(generatePromptTemplate, language)
}

func editSystemPrompt(_ *CallArgs) string {
	return editPromptTemplate
}

func reviewSystemPrompt(args *CallArgs) string {
	focus := args.FocusAreas
	if len(focus) == 0 {
		focus = []string{"performance", "security", "readability"}
	}
	return fmt.Sprintf(reviewPromptTemplate, strings.Join(focus, ", "))
}

func generateUserPrompt(args *CallArgs) string {
	language := args.Language
	if language == "" {
		language = "python"
	}
	parts := []string{
		"Task: " + args.TaskDescription,
		"Language: " + language,
	}
	if args.FilePath != "" {
		parts = append(parts, "Target file: "+args.FilePath)
	}
	if args.Context != "" {
		parts = append(parts, "Context:\n"+args.Context)
	}
	return strings.Join(parts, "\n")
}

func editUserPrompt(args *CallArgs) string {
	language := args.Language
	if language == "" {
		language = "python"
	}
	parts := []string{
		"Original code:\n```\n" + args.OriginalCode + "\n```",
		"Change request: " + args.ChangeRequest,
		"Language: " + language,
	}
	if args.FilePath != "" {
		parts = append(parts, "File: "+args.FilePath)
	}
	return strings.Join(parts, "\n")
}

func reviewUserPrompt(args *CallArgs) string {
	parts := []string{"Code to review:\n```\n" + args.Code + "\n```"}
	if len(args.FocusAreas) > 0 {
		parts = append(parts, "Focus on: "+strings.Join(args.FocusAreas, ", "))
	}
	return strings.Join(parts, "\n")
}

// validateArgs enforces per-field size caps before any network call,
// so oversized inputs never incur cost. Limits count characters, not
// bytes, so multi-byte input is not penalized.
func validateArgs(args *CallArgs) error {
	largeFields := map[string]string{
		"code":          args.Code,
		"original_code": args.OriginalCode,
		"context":       args.Context,
	}
	for field, value := range largeFields {
		if utf8.RuneCountInString(value) > maxCodeLength {
			return &ValidationError{Field: field, Limit: maxCodeLength}
		}
	}

	shortFields := map[string]string{
		"task_description": args.TaskDescription,
		"change_request":   args.ChangeRequest,
	}
	for field, value := range shortFields {
		if utf8.RuneCountInString(value) > maxDescriptionLength {
			return &ValidationError{Field: field, Limit: maxDescriptionLength}
		}
	}

	return nil
}
