package session

import (
	"context"
	"encoding/json"
	"strconv"
)

// Evaluate runs a script in the page and returns its JSON-serialized
// result. A throwing script surfaces as *browser.ScriptError; the raw
// result is returned undecoded for callers that want the bytes.
func (p *Page) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.requireReady(); err != nil {
		return nil, err
	}

	raw, err := p.driver.Evaluate(ctx, p.id, script)
	if err != nil {
		p.failOp("evaluate", err)
		return nil, err
	}
	return raw, nil
}

// Extract evaluates a script and decodes the result into T. A script
// throw surfaces as *browser.ScriptError; a result that does not fit T
// surfaces as *DecodeError carrying the raw bytes.
func Extract[T any](ctx context.Context, p *Page, script string) (T, error) {
	var out T

	raw, err := p.Evaluate(ctx, script)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &DecodeError{Raw: raw, Err: err}
	}
	return out, nil
}

// ExtractAttributes collects one attribute from every element matching
// the selector, in document order. No matches is a successful empty
// result, not an error. An empty attribute reads textContent.
func (p *Page) ExtractAttributes(ctx context.Context, selector, attribute string) ([]string, error) {
	if attribute == "" {
		attribute = "textContent"
	}
	script := `(() => {
		const attr = ` + strconv.Quote(attribute) + `;
		return Array.from(document.querySelectorAll(` + strconv.Quote(selector) + `)).map(el => {
			if (attr in el) { return String(el[attr] ?? ""); }
			return el.getAttribute(attr) ?? "";
		});
	})()`

	values, err := Extract[[]string](ctx, p, script)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// Title returns the document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	return Extract[string](ctx, p, "document.title")
}

// Text returns the text content of the first element matching the
// selector, with surrounding whitespace trimmed.
func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	script := `(() => {
		const el = document.querySelector(` + strconv.Quote(selector) + `);
		return el ? (el.textContent ?? "").trim() : "";
	})()`
	return Extract[string](ctx, p, script)
}
