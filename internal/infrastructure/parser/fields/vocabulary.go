package fields

import (
	_ "embed"
	"fmt"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var vocabularyYAML []byte

// Vocabulary is the static synonym data shared by the XML and spreadsheet
// parsers. Element and field names are matched through FoldName, header
// names through compiled regular expressions in declaration order.
type Vocabulary struct {
	Containers       []string            `yaml:"containers"`
	Items            []string            `yaml:"items"`
	Fields           map[string][]string `yaml:"fields"`
	MetadataFields   map[string][]string `yaml:"metadata_fields"`
	Headers          map[string][]string `yaml:"headers"`
	Sheets           []string            `yaml:"sheets"`
	MetadataTriggers map[string][]string `yaml:"metadata_triggers"`

	headerPatterns map[string][]*regexp.Regexp
}

var (
	vocabOnce sync.Once
	vocab     *Vocabulary
	vocabErr  error
)

// LoadVocabulary parses the embedded vocabulary once and caches it.
func LoadVocabulary() (*Vocabulary, error) {
	vocabOnce.Do(func() {
		v := &Vocabulary{}
		if err := yaml.Unmarshal(vocabularyYAML, v); err != nil {
			vocabErr = fmt.Errorf("parse vocabulary: %w", err)
			return
		}
		v.headerPatterns = make(map[string][]*regexp.Regexp, len(v.Headers))
		for field, patterns := range v.Headers {
			for _, p := range patterns {
				re, err := regexp.Compile(p)
				if err != nil {
					vocabErr = fmt.Errorf("compile header pattern %q for %s: %w", p, field, err)
					return
				}
				v.headerPatterns[field] = append(v.headerPatterns[field], re)
			}
		}
		vocab = v
	})
	return vocab, vocabErr
}

// IsContainer reports whether a folded element name is a known bid-item
// container synonym.
func (v *Vocabulary) IsContainer(folded string) bool {
	return containsFolded(v.Containers, folded)
}

// IsItem reports whether a folded element name is a known line-item synonym.
func (v *Vocabulary) IsItem(folded string) bool {
	return containsFolded(v.Items, folded)
}

// FieldSynonyms returns the ordered folded synonyms for a logical field.
func (v *Vocabulary) FieldSynonyms(field string) []string {
	return v.Fields[field]
}

// MatchHeader reports whether a header cell text matches any of the logical
// field's header patterns.
func (v *Vocabulary) MatchHeader(field, cell string) bool {
	for _, re := range v.headerPatterns[field] {
		if re.MatchString(cell) {
			return true
		}
	}
	return false
}

func containsFolded(names []string, folded string) bool {
	for _, n := range names {
		if n == folded {
			return true
		}
	}
	return false
}
