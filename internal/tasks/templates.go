// Package tasks holds the canned summary prompts and runs them through the
// executor into the output store.
package tasks

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/codefionn/tldrbot/internal/output"
)

// Filename prefixes of the canned tasks.
const (
	PrefixDaily         = "tldr_summary"
	PrefixComprehensive = "tldr_comprehensive"
	PrefixAI            = "ai_summary"
)

// PromptDateLayout is the date format interpolated into prompts.
const PromptDateLayout = "2006-01-02"

const dailyTemplate = `
Generate today's TLDR newsletter summary for {{ .Date }}:

STEPS:
1. Navigate to https://tldr.tech/
2. Find and extract today's main newsletter content
3. Also check https://tldr.tech/ai for AI-specific news

OUTPUT:
- Create markdown with date header: "# TLDR Daily Summary - {{ .Date }}"
- Top 5-7 most important stories
- Each story: title, 2-3 sentence summary, source link
- Save as '{{ .Filename }}'

START: Navigate to TLDR website now.
`

const multiTemplate = `
Generate comprehensive TLDR summary from multiple sources for {{ .Date }}:

SOURCES:
1. https://tldr.tech/ (Main tech news)
2. https://tldr.tech/ai (AI/ML developments)
3. https://tldr.tech/crypto (Crypto/Web3)
4. https://tldr.tech/design (Design/UX)

OUTPUT:
- Sections for each source category
- Top 3 stories overall
- Cross-cutting themes
- Save as '{{ .Filename }}'

START: Begin with main TLDR site, then check each source.
`

const aiTemplate = `
Generate AI-focused TLDR summary for {{ .Date }}:

FOCUS ON:
- Machine learning breakthroughs
- AI startup funding
- New AI tools and models
- Research releases
- Industry AI adoption

SOURCES:
1. https://tldr.tech/ai (primary)
2. https://tldr.tech/ (scan for AI stories)

OUTPUT: Save as '{{ .Filename }}'
START: Check TLDR AI newsletter first.
`

// Task is a canned prompt together with the prefix of the file it produces.
type Task struct {
	Name   string
	Prefix string
	tmpl   *template.Template
}

var (
	Daily = newTask("daily", PrefixDaily, dailyTemplate)
	Multi = newTask("multi", PrefixComprehensive, multiTemplate)
	AI    = newTask("ai", PrefixAI, aiTemplate)
)

// Canned lists the built-in tasks in menu order.
func Canned() []*Task {
	return []*Task{Daily, Multi, AI}
}

// Lookup finds a canned task by name.
func Lookup(name string) (*Task, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range Canned() {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

func newTask(name, prefix, text string) *Task {
	return &Task{
		Name:   name,
		Prefix: prefix,
		tmpl:   template.Must(template.New(name).Parse(text)),
	}
}

type promptData struct {
	Date     string
	Filename string
}

// Prompt renders the task's prompt for the day of now. The filename hint is
// the name the output store will use.
func (t *Task) Prompt(now time.Time) (string, error) {
	data := promptData{
		Date:     now.Format(PromptDateLayout),
		Filename: output.BuildFilename(t.Prefix, now.Format(output.DateLayout)),
	}
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Name, err)
	}
	return sb.String(), nil
}
