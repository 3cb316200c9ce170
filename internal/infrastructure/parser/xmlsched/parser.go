// Package xmlsched extracts line items from schedule-export XML of unknown,
// non-standardized tree shape. Container and item element names are resolved
// through the shared synonym vocabulary, so a new export format is a data
// change, not a code change.
package xmlsched

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
	"github.com/bidworks/ingest-pipeline/internal/infrastructure/parser/fields"
)

type Parser struct {
	vocab *fields.Vocabulary
}

func New() (*Parser, error) {
	vocab, err := fields.LoadVocabulary()
	if err != nil {
		return nil, err
	}
	return &Parser{vocab: vocab}, nil
}

type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

// Parse never fails for malformed-but-parseable XML; only well-formedness
// errors surface as structural errors.
func (p *Parser) Parse(raw []byte) (domain.ParseResult, error) {
	var root node
	if err := xml.Unmarshal(raw, &root); err != nil {
		return domain.ParseResult{}, domain.WrapError(domain.ErrParseFailed, "decode xml", err)
	}

	containers := findAll(&root, p.vocab.IsContainer)
	schemaName := "flat-items"
	var itemNodes []*node
	if len(containers) > 0 {
		schemaName = containers[0].XMLName.Local
		for _, c := range containers {
			itemNodes = append(itemNodes, findAll(c, p.vocab.IsItem)...)
		}
	} else {
		itemNodes = findAll(&root, p.vocab.IsItem)
	}

	items := make([]domain.ParsedItem, 0, len(itemNodes))
	for _, n := range itemNodes {
		item := p.resolveItem(n)
		if item.Blank() {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return domain.ParseResult{
			OK: false,
			Diagnostic: fmt.Sprintf(
				"no recognizable line items: %d container(s), %d candidate element(s); tried container synonyms %v",
				len(containers), len(itemNodes), p.vocab.Containers,
			),
		}, nil
	}

	return domain.ParseResult{
		OK:         true,
		Items:      items,
		Metadata:   p.resolveMetadata(&root),
		SchemaName: schemaName,
	}, nil
}

func (p *Parser) resolveItem(n *node) domain.ParsedItem {
	rawCode := p.resolveField(n, "item_code")
	code := fields.NormalizeItemCode(rawCode)

	item := domain.ParsedItem{
		ItemCode:         code,
		Description:      p.resolveField(n, "description"),
		ShortDescription: p.resolveField(n, "short_description"),
		Quantity:         fields.ParseQuantity(p.resolveField(n, "quantity")),
		Unit:             p.resolveField(n, "unit"),
		UnitPrice:        fields.ParsePrice(p.resolveField(n, "unit_price")),
		SpecSection:      p.resolveField(n, "spec_section"),
	}
	if item.SpecSection == "" {
		item.SpecSection = p.resolveField(n, "section")
	}
	if alt := p.resolveField(n, "alt_item_code"); alt != "" {
		item.AltItemCode = fields.NormalizeItemCode(alt)
	} else if code != strings.TrimSpace(rawCode) {
		item.AltItemCode = strings.TrimSpace(rawCode)
	}
	return item
}

// resolveField tries the field's synonyms in order and takes the first
// non-empty text found, looking at descendant elements first, attributes
// second. Nested text-node conventions are handled by flattening.
func (p *Parser) resolveField(n *node, field string) string {
	for _, syn := range p.vocab.FieldSynonyms(field) {
		for i := range n.Children {
			if match := findNamed(&n.Children[i], syn); match != nil {
				if text := flatten(match); text != "" {
					return text
				}
			}
		}
		for _, attr := range n.Attrs {
			if fields.FoldName(attr.Name.Local) == syn {
				if v := strings.TrimSpace(attr.Value); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func (p *Parser) resolveMetadata(root *node) domain.ProjectMetadata {
	// Length guard: a synonym like "project" can match a wrapper element
	// whose flattened subtree is the whole document.
	const maxMetadataLen = 200
	resolve := func(field string) string {
		for _, syn := range p.vocab.MetadataFields[field] {
			if match := findNamed(root, syn); match != nil {
				if text := flatten(match); text != "" && len(text) <= maxMetadataLen {
					return text
				}
			}
		}
		return ""
	}

	md := domain.ProjectMetadata{
		Name:           resolve("project_name"),
		ContractNumber: resolve("contract_number"),
		County:         resolve("county"),
		Route:          resolve("route"),
	}
	if raw := resolve("letting_date"); raw != "" {
		if t, ok := fields.ParseDate(raw); ok {
			md.LettingDate = &t
		}
	}
	return md
}

// findAll returns every node in the subtree (root included) whose folded
// element name satisfies the predicate. Matched subtrees are not descended
// into again, so nested containers do not double-count items.
func findAll(n *node, pred func(string) bool) []*node {
	if pred(fields.FoldName(n.XMLName.Local)) {
		return []*node{n}
	}
	var out []*node
	for i := range n.Children {
		out = append(out, findAll(&n.Children[i], pred)...)
	}
	return out
}

// findNamed returns the first node in the subtree whose folded name equals
// the folded synonym, searching depth-first.
func findNamed(n *node, folded string) *node {
	if fields.FoldName(n.XMLName.Local) == folded {
		return n
	}
	for i := range n.Children {
		if match := findNamed(&n.Children[i], folded); match != nil {
			return match
		}
	}
	return nil
}

// flatten concatenates the chardata of a subtree, trimmed.
func flatten(n *node) string {
	var b strings.Builder
	b.WriteString(n.Content)
	for i := range n.Children {
		b.WriteString(flatten(&n.Children[i]))
	}
	return strings.TrimSpace(b.String())
}
