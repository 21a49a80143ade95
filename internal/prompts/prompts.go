// Package prompts loads and renders the two-layer prompt set: a user
// override file on disk takes precedence over the embedded default for
// the same prompt id.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

//go:embed defaults/*.md
var defaultsFS embed.FS

// ID identifies one of the known prompts.
type ID string

const (
	FastClassification         ID = "fast_classification"
	StructuredExtractionReceipt ID = "structured_extraction_receipt"
	NormalizeMerchant           ID = "normalize_merchant"
	SubscriptionClassify        ID = "subscription_classify"
	EntitySuggest                ID = "entity_suggest"
	SplitRecommend               ID = "split_recommend"
	ReceiptMatch                 ID = "receipt_match"
	DuplicateAnalysis            ID = "duplicate_analysis"
	SpendingExplain              ID = "spending_explain"
	AgentSystem                  ID = "agent_system"
	AgentSummary                 ID = "agent_summary"
)

// All enumerates the prompts the library knows about.
var All = []ID{
	FastClassification, StructuredExtractionReceipt, NormalizeMerchant,
	SubscriptionClassify, EntitySuggest, SplitRecommend, ReceiptMatch,
	DuplicateAnalysis, SpendingExplain, AgentSystem, AgentSummary,
}

// Prompt is a parsed, two-section prompt template.
type Prompt struct {
	ID       ID
	Version  string
	TaskType string
	System   string
	User     string
}

// Info describes a prompt's resolution state, for list().
type Info struct {
	ID           ID
	Version      string
	TaskType     string
	HasOverride  bool
	OverridePath string
}

// Library resolves, parses, and caches the prompt set.
type Library struct {
	overrideDir string

	mu    sync.RWMutex
	cache map[ID]*Prompt
}

// NewLibrary creates a library that looks for override files named
// "<id>.md" under overrideDir before falling back to the embedded default.
func NewLibrary(overrideDir string) *Library {
	return &Library{overrideDir: overrideDir, cache: make(map[ID]*Prompt)}
}

// Get returns the resolved prompt for id, from cache if already loaded.
func (l *Library) Get(id ID) (*Prompt, error) {
	l.mu.RLock()
	if p, ok := l.cache[id]; ok {
		l.mu.RUnlock()
		return p, nil
	}
	l.mu.RUnlock()

	raw, err := l.load(id)
	if err != nil {
		return nil, err
	}
	p, err := parse(id, raw)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[id] = p
	l.mu.Unlock()
	return p, nil
}

// ClearCache invalidates all cached prompts, so the next Get re-reads from
// disk or the embedded default. Call after editing an override file.
func (l *Library) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[ID]*Prompt)
}

// List returns resolution info for every known prompt.
func (l *Library) List() ([]Info, error) {
	out := make([]Info, 0, len(All))
	for _, id := range All {
		p, err := l.Get(id)
		if err != nil {
			return nil, err
		}
		overridePath := l.overridePath(id)
		_, statErr := os.Stat(overridePath)
		out = append(out, Info{
			ID:           id,
			Version:      p.Version,
			TaskType:     p.TaskType,
			HasOverride:  statErr == nil,
			OverridePath: overridePath,
		})
	}
	return out, nil
}

func (l *Library) overridePath(id ID) string {
	if l.overrideDir == "" {
		return ""
	}
	return filepath.Join(l.overrideDir, string(id)+".md")
}

func (l *Library) load(id ID) ([]byte, error) {
	if path := l.overridePath(id); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			return b, nil
		}
	}
	b, err := defaultsFS.ReadFile("defaults/" + string(id) + ".md")
	if err != nil {
		return nil, fmt.Errorf("no embedded default for prompt %q: %w", id, err)
	}
	return b, nil
}

// parse splits frontmatter (id/version/task_type) from the "# System" and
// "# User" sections.
func parse(id ID, raw []byte) (*Prompt, error) {
	text := string(raw)
	p := &Prompt{ID: id, Version: "1", TaskType: "fast_classification"}

	lines := strings.Split(text, "\n")
	i := 0
	if i < len(lines) && strings.TrimSpace(lines[i]) == "---" {
		i++
		for i < len(lines) && strings.TrimSpace(lines[i]) != "---" {
			line := strings.TrimSpace(lines[i])
			if k, v, ok := strings.Cut(line, ":"); ok {
				switch strings.TrimSpace(k) {
				case "id":
					// informational only; the map key is authoritative
				case "version":
					p.Version = strings.TrimSpace(v)
				case "task_type":
					p.TaskType = strings.TrimSpace(v)
				}
			}
			i++
		}
		i++ // skip closing ---
	}

	body := strings.Join(lines[i:], "\n")
	sysIdx := strings.Index(body, "# System")
	userIdx := strings.Index(body, "# User")
	if sysIdx == -1 || userIdx == -1 || userIdx < sysIdx {
		return nil, fmt.Errorf("prompt %q missing # System / # User sections", id)
	}
	p.System = strings.TrimSpace(body[sysIdx+len("# System") : userIdx])
	p.User = strings.TrimSpace(body[userIdx+len("# User"):])
	return p, nil
}

// Render substitutes {{var}} placeholders from vars and resolves
// {{#if var}}...{{/if}} blocks, keeping the block's content iff vars[var] is
// present and non-empty. Unknown {{#if}} variables are treated as absent.
func Render(template string, vars map[string]string) string {
	return renderIf(substituteVars(template, vars), vars)
}

func substituteVars(template string, vars map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(template) {
		start := strings.Index(template[i:], "{{")
		if start == -1 {
			b.WriteString(template[i:])
			break
		}
		start += i
		end := strings.Index(template[start:], "}}")
		if end == -1 {
			b.WriteString(template[i:])
			break
		}
		end += start
		b.WriteString(template[i:start])
		key := strings.TrimSpace(template[start+2 : end])
		if strings.HasPrefix(key, "#if") || key == "/if" {
			b.WriteString(template[start : end+2])
		} else if v, ok := vars[key]; ok {
			b.WriteString(v)
		}
		i = end + 2
	}
	return b.String()
}

// renderIf walks {{#if var}}...{{/if}} blocks, tracking nesting depth. A
// block's content is kept iff vars[var] is present and non-empty.
func renderIf(template string, vars map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(template) {
		openIdx := strings.Index(template[i:], "{{#if")
		if openIdx == -1 {
			b.WriteString(template[i:])
			break
		}
		openIdx += i
		b.WriteString(template[i:openIdx])

		closeTag := strings.Index(template[openIdx:], "}}")
		if closeTag == -1 {
			b.WriteString(template[openIdx:])
			break
		}
		closeTag += openIdx
		varName := strings.TrimSpace(strings.TrimPrefix(template[openIdx+2:closeTag], "#if"))

		depth := 1
		scan := closeTag + 2
		blockStart := scan
		blockEnd := -1
		for scan < len(template) {
			nextOpen := strings.Index(template[scan:], "{{#if")
			nextClose := strings.Index(template[scan:], "{{/if}}")
			if nextClose == -1 {
				break
			}
			nextClose += scan
			if nextOpen != -1 && nextOpen+scan < nextClose {
				depth++
				scan = nextOpen + scan + 5
				continue
			}
			depth--
			if depth == 0 {
				blockEnd = nextClose
				scan = nextClose + 7
				break
			}
			scan = nextClose + 7
		}
		if blockEnd == -1 {
			b.WriteString(template[openIdx:])
			break
		}

		inner := template[blockStart:blockEnd]
		if v, ok := vars[varName]; ok && v != "" {
			b.WriteString(renderIf(inner, vars))
		}
		i = scan
	}
	return b.String()
}
