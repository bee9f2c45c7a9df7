package assembler

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_][a-zA-Z0-9_.]*)\s*\}\}`)

const (
	sectionOpenPrefix  = "{{#section:"
	sectionClosePrefix = "{{/section:"
	sectionSuffix      = "}}"
)

// DocumentVars flattens gathered source documents into the renderer's
// dot-notation variables. A document carrying a section header maps to
// `<snake(header)>.<documentKey>`; documents sharing a key are joined
// in gather order under per-model headings. Each header also yields a
// bare truthy flag so templates can gate whole sections on the
// presence of that input class.
func DocumentVars(docs []SourceDocument) (map[string]any, error) {
	type slot struct {
		contents []string
		models   []string
	}
	var order []string
	slots := map[string]*slot{}
	flags := map[string]bool{}
	for _, doc := range docs {
		if doc.Metadata.Header == "" {
			continue
		}
		if doc.Metadata.DocumentKey == "" {
			return nil, fmt.Errorf("source document %s under header '%s' is missing required metadata.documentKey", doc.ID, doc.Metadata.Header)
		}
		section := snakeCase(doc.Metadata.Header)
		flags[section] = true
		key := section + "." + doc.Metadata.DocumentKey
		s, ok := slots[key]
		if !ok {
			s = &slot{}
			slots[key] = s
			order = append(order, key)
		}
		s.contents = append(s.contents, doc.Content)
		s.models = append(s.models, doc.Metadata.ModelName)
	}

	vars := make(map[string]any, len(order)+len(flags))
	for _, key := range order {
		s := slots[key]
		if len(s.contents) == 1 {
			// A lone document keeps its raw content; attribution
			// headings appear only when concatenation happens.
			vars[key] = s.contents[0]
			continue
		}
		parts := make([]string, len(s.contents))
		for i, content := range s.contents {
			if s.models[i] != "" {
				parts[i] = "#### Contribution from " + s.models[i] + "\n\n" + content
			} else {
				parts[i] = content
			}
		}
		vars[key] = strings.Join(parts, "\n\n")
	}
	for section := range flags {
		if _, taken := vars[section]; !taken {
			vars[section] = true
		}
	}
	return vars, nil
}

// RenderPrompt substitutes placeholders and resolves conditional
// sections. Lookup order per name: vars, then systemOverlay, then
// userOverlay (user values override system defaults). A line containing
// any unresolved placeholder is removed whole.
func RenderPrompt(template string, vars map[string]any, systemOverlay map[string]any, userOverlay map[string]any) (string, error) {
	lookup := func(name string) (any, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		if v, ok := userOverlay[name]; ok {
			return v, true
		}
		if v, ok := systemOverlay[name]; ok {
			return v, true
		}
		return nil, false
	}

	out, err := resolveSections(template, lookup)
	if err != nil {
		return "", err
	}

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		resolved, ok := substituteLine(line, lookup)
		if !ok {
			continue
		}
		kept = append(kept, resolved)
	}
	return strings.Join(kept, "\n"), nil
}

// resolveSections strips or removes {{#section:X}}...{{/section:X}}
// spans by the truthiness of X. Sections nest; inner spans are resolved
// after their enclosing span survives.
func resolveSections(template string, lookup func(string) (any, bool)) (string, error) {
	for {
		open := strings.Index(template, sectionOpenPrefix)
		if open < 0 {
			return template, nil
		}
		nameEnd := strings.Index(template[open:], sectionSuffix)
		if nameEnd < 0 {
			return "", fmt.Errorf("malformed section tag at offset %d", open)
		}
		name := template[open+len(sectionOpenPrefix) : open+nameEnd]
		openEnd := open + nameEnd + len(sectionSuffix)
		closeTag := sectionClosePrefix + name + sectionSuffix
		closeIdx := strings.Index(template[openEnd:], closeTag)
		if closeIdx < 0 {
			return "", fmt.Errorf("unclosed section '%s'", name)
		}
		closeStart := openEnd + closeIdx
		body := template[openEnd:closeStart]
		after := template[closeStart+len(closeTag):]
		v, ok := lookup(name)
		if ok && truthy(v) {
			template = template[:open] + body + after
		} else {
			template = template[:open] + after
		}
	}
}

// substituteLine resolves every placeholder on one line. The second
// return is false when any placeholder has no value, which drops the
// line entirely.
func substituteLine(line string, lookup func(string) (any, bool)) (string, bool) {
	unresolved := false
	out := placeholderRe.ReplaceAllStringFunc(line, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := lookup(name)
		if !ok || v == nil {
			unresolved = true
			return m
		}
		return stringify(v)
	})
	if unresolved {
		return "", false
	}
	return out, true
}

// truthy follows the template language's notion of presence: nil,
// false, empty string and zero are absent, everything else present.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return strings.TrimSpace(t) != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// stringify renders a substituted value. Structured values serialize as
// indented JSON so templates can splice whole contracts in.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// snakeCase lowers a section header into a variable-safe name:
// "Thesis Documents" becomes "thesis_documents".
func snakeCase(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		isWord := r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isWord {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// render is the guarded entry the orchestrators call: it enforces the
// stage-level preconditions before handing off to RenderPrompt.
func (a *Assembler) render(stage *StageContext, templateText string, vars map[string]any, userOverlay map[string]any) (string, error) {
	slug := stage.Stage.Slug
	if strings.TrimSpace(templateText) == "" {
		return "", fmt.Errorf("RENDER_PRECONDITION_FAILED: missing system prompt text for stage %s", slug)
	}

	systemOverlay := map[string]any{}
	if len(stage.Overlays) > 0 {
		systemOverlay = parseOverlay(stage.Overlays[0].OverlayValues)
	}
	if raw := stage.Stage.ExpectedOutputArtifacts; len(raw) > 0 && string(raw) != "null" {
		var artifacts any
		if err := json.Unmarshal(raw, &artifacts); err != nil {
			return "", fmt.Errorf("expected_output_artifacts must be JSON-compatible: %w", err)
		}
		systemOverlay["expected_output_artifacts_json"] = stringify(artifacts)
	}

	requireOverlayText := func(name string) error {
		if !strings.Contains(templateText, sectionOpenPrefix+name+sectionSuffix) {
			return nil
		}
		for _, overlay := range []map[string]any{userOverlay, systemOverlay} {
			if s, ok := overlay[name].(string); ok && strings.TrimSpace(s) != "" {
				return nil
			}
		}
		return fmt.Errorf("RENDER_PRECONDITION_FAILED: missing %s for stage %s", name, slug)
	}
	if err := requireOverlayText("style_guide_markdown"); err != nil {
		return "", err
	}
	if err := requireOverlayText("expected_output_artifacts_json"); err != nil {
		return "", err
	}

	rendered, err := RenderPrompt(templateText, vars, systemOverlay, userOverlay)
	if err != nil {
		return "", fmt.Errorf("Failed to render prompt: %w", err)
	}
	return rendered, nil
}
