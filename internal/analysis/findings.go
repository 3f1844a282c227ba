package analysis

import (
	"strings"
)

// Finding labels produced by ExtractFindings.
const (
	FindingSuspectedFracture   = "Подозрение на перелом"
	FindingJointChanges        = "Изменения в суставах"
	FindingPulmonaryChanges    = "Изменения в легочной ткани"
	FindingSpinalChanges       = "Изменения позвоночника"
	FindingNormalStructure     = "Нормальная структура"
	FindingPathologicalChanges = "Патологические изменения"
)

// keywordRule yields result when any keyword occurs in the lower-cased input.
type keywordRule[T any] struct {
	keywords []string
	result   T
}

func (r keywordRule[T]) matches(text string) bool {
	return containsAny(text, r.keywords)
}

// findingRules are evaluated in order; every matching rule contributes.
var findingRules = []keywordRule[string]{
	{keywords: []string{"fracture", "break", "crack"}, result: FindingSuspectedFracture},
	{keywords: []string{"joint", "arthritis", "cartilage"}, result: FindingJointChanges},
	{keywords: []string{"lung", "chest", "pneumonia"}, result: FindingPulmonaryChanges},
	{keywords: []string{"spine", "vertebra", "disc"}, result: FindingSpinalChanges},
	{keywords: []string{"normal", "healthy", "clear"}, result: FindingNormalStructure},
	{keywords: []string{"irregular", "abnormal", "lesion"}, result: FindingPathologicalChanges},
}

var fallbackFindings = []string{
	"Костные структуры визуализируются",
	"Мягкие ткани в пределах нормы",
	"Суставные поверхности конгруэнтны",
	"Патологических теней не выявлено",
	"Возрастные изменения",
}

const (
	fallbackFindingsMaxCount = 3
	fallbackFindingsStride   = 7
)

// ExtractFindings maps a description to an ordered, duplicate-free, non-empty
// list of findings. When no keyword matches, findings are picked from a fixed
// list using the digest seed.
func ExtractFindings(description string, d ImageDigest) []string {
	text := strings.ToLower(description)

	var findings []string
	for _, rule := range findingRules {
		if rule.matches(text) {
			findings = appendUnique(findings, rule.result)
		}
	}
	if len(findings) > 0 {
		return findings
	}

	h := d.Seed()
	count := h%fallbackFindingsMaxCount + 1
	for i := uint64(0); i < count; i++ {
		idx := (h + i*fallbackFindingsStride) % uint64(len(fallbackFindings))
		findings = appendUnique(findings, fallbackFindings[idx])
	}
	return findings
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
