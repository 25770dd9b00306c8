package assessment

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// patternConfidence is the confidence attached to regex/keyword hits.
// Explicit statements rank above model-inferred values on merge.
const patternConfidence = 0.9

var (
	relativeTerms = []string{
		"mother", "mom", "sister", "daughter", "aunt", "grandmother", "grandma",
		"father", "dad", "brother", "uncle", "grandfather", "grandpa", "son",
		"cousin", "niece", "nephew",
	}
	maleRelativeTerms = []string{
		"father", "dad", "brother", "uncle", "grandfather", "grandpa", "son", "nephew",
	}
	firstPersonMarkers = []string{
		"i was", "i were", "i had", "i have", "i've", "i am", "i'm", "i got",
		"i never", "i haven't", "i don't", "my own", "myself", "diagnosed me",
	}
	negationMarkers = []string{
		"no ", "never", "none", "not ", "haven't", "hasn't", "hadn't", "didn't",
		"don't", "doesn't", "without",
	}
	ashkenaziTerms = []string{"ashkenazi", "ashkenazic"}

	numberWords = map[string]int{
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	}

	clauseSplitRe    = regexp.MustCompile(`[,;.!?\n]+|\band\b|\bbut\b|\balso\b`)
	diagnosisAgeRe   = regexp.MustCompile(`(?:at(?: the)? age(?: of)? |at |when (?:i|she|he) was |aged )(\d{1,3})`)
	subjectAgeRe     = regexp.MustCompile(`i(?:'m| am) (\d{1,3})(?: years old)?|i(?:'m| am) now (\d{1,3})`)
	countQuantityRe  = regexp.MustCompile(`(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten) (?:of my |of her |of his )?(?:aunts|sisters|daughters|cousins|nieces|uncles|brothers|relatives|family members)`)
	foldCaser        = cases.Fold()
	whitespaceSquash = regexp.MustCompile(`\s+`)
)

// PatternExtractor derives clinical facts from explicit statements using
// keyword and regular-expression heuristics. It is fully deterministic and
// needs no external calls, which makes it the fallback path when the model
// is degraded and the reference implementation for merge semantics.
type PatternExtractor struct{}

// NewPatternExtractor creates a pattern-based extractor
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Name identifies the implementation in logs and configuration
func (e *PatternExtractor) Name() string {
	return "pattern"
}

// Extract scans the subject utterance clause by clause. Assistant replies
// carry no subject facts, so only the utterance is mined. Family counts
// are proposed only when the exchange mentions more relatives than the
// record already holds, keeping counts monotonic across turns.
func (e *PatternExtractor) Extract(_ context.Context, utterance, _ string, existing ClinicalFactRecord) (Extraction, error) {
	text := normalizeUtterance(utterance)
	if text == "" {
		return Extraction{}, nil
	}

	var ex Extraction
	familyBreast := 0
	familyOvarian := 0

	for _, clause := range splitClauses(text) {
		breast := strings.Contains(clause, "breast cancer")
		ovarian := strings.Contains(clause, "ovarian cancer") || strings.Contains(clause, "cancer of the ovar")
		relatives, males := relativeMentions(clause)
		personal := hasFirstPerson(clause) && relatives == 0
		negated := hasNegation(clause)

		switch {
		case personal && breast:
			if negated {
				ex.PersonalBreastCancer = boolPtr(false)
			} else {
				ex.PersonalBreastCancer = boolPtr(true)
				if age, ok := diagnosisAge(clause); ok {
					ex.BreastCancerAge = intPtr(age)
				}
			}
		case personal && ovarian:
			ex.PersonalOvarianCancer = boolPtr(!negated)
		case relatives > 0 && breast && !negated:
			familyBreast += relatives
			if males > 0 {
				ex.FamilyMaleBreastCancer = boolPtr(true)
			}
		case relatives > 0 && ovarian && !negated:
			familyOvarian += relatives
		case breast && negated && mentionsFamily(clause):
			// "no breast cancer in my family" is an explicit zero
			familyBreast = 0
			ex.FamilyBreastCancerCount = intPtr(0)
		case ovarian && negated && mentionsFamily(clause):
			familyOvarian = 0
			ex.FamilyOvarianCancerCount = intPtr(0)
		}

		if mentionsAny(clause, ashkenaziTerms) {
			ex.AshkenaziHeritage = boolPtr(!negated)
		}
	}

	if age, ok := subjectAge(text); ok {
		ex.SubjectAge = intPtr(age)
	}

	if familyBreast > 0 && exceedsExisting(existing, FactFamilyBreastCancerCount, familyBreast) {
		ex.FamilyBreastCancerCount = intPtr(familyBreast)
	}
	if familyOvarian > 0 && exceedsExisting(existing, FactFamilyOvarianCancerCount, familyOvarian) {
		ex.FamilyOvarianCancerCount = intPtr(familyOvarian)
	}

	if ex.IsEmpty() {
		return Extraction{}, nil
	}
	ex.Confidence = patternConfidence
	if err := ValidateExtraction(ex); err != nil {
		return Extraction{}, err
	}
	return ex, nil
}

// normalizeUtterance case-folds and compatibility-normalizes free text so
// keyword matching is stable across input variants
func normalizeUtterance(s string) string {
	folded := foldCaser.String(norm.NFKC.String(s))
	return strings.TrimSpace(whitespaceSquash.ReplaceAllString(folded, " "))
}

func splitClauses(text string) []string {
	parts := clauseSplitRe.Split(text, -1)
	clauses := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			clauses = append(clauses, p)
		}
	}
	return clauses
}

func mentionsAny(clause string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(clause, t) {
			return true
		}
	}
	return false
}

func hasFirstPerson(clause string) bool {
	return mentionsAny(clause, firstPersonMarkers)
}

func hasNegation(clause string) bool {
	return mentionsAny(clause, negationMarkers)
}

func mentionsFamily(clause string) bool {
	if strings.Contains(clause, "family") || strings.Contains(clause, "relative") {
		return true
	}
	r, _ := relativeMentions(clause)
	return r > 0
}

// relativeMentions counts relative terms in a clause, expanding quantified
// plural forms such as "two of my aunts"
func relativeMentions(clause string) (total, male int) {
	if m := countQuantityRe.FindStringSubmatch(clause); m != nil {
		n := parseQuantity(m[1])
		if n > 0 {
			male = 0
			if mentionsAny(clause, []string{"uncles", "brothers"}) {
				male = n
			}
			return n, male
		}
	}
	for _, t := range relativeTerms {
		if containsWord(clause, t) {
			total++
		}
	}
	for _, t := range maleRelativeTerms {
		if containsWord(clause, t) {
			male++
		}
	}
	return total, male
}

// containsWord matches a whole word, so "son" does not match "person"
func containsWord(clause, word string) bool {
	idx := 0
	for {
		i := strings.Index(clause[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isLetter(clause[start-1])
		afterOK := end == len(clause) || !isLetter(clause[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func parseQuantity(s string) int {
	if n, ok := numberWords[s]; ok {
		return n
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func diagnosisAge(clause string) (int, bool) {
	m := diagnosisAgeRe.FindStringSubmatch(clause)
	if m == nil {
		return 0, false
	}
	age, err := strconv.Atoi(m[1])
	if err != nil || age <= 0 || age > 120 {
		return 0, false
	}
	return age, true
}

func subjectAge(text string) (int, bool) {
	m := subjectAgeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	age, err := strconv.Atoi(raw)
	if err != nil || age <= 0 || age > 120 {
		return 0, false
	}
	return age, true
}

func exceedsExisting(existing ClinicalFactRecord, key FactKey, candidate int) bool {
	current, ok := existing.IntFact(key)
	return !ok || candidate > current
}

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }

var _ Extractor = (*PatternExtractor)(nil)
