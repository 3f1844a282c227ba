package analysis

import (
	"fmt"
	"strings"
)

// pathologyKind is the specific pathology recognised from the findings.
type pathologyKind int

const (
	kindUnspecified pathologyKind = iota
	kindFracture
	kindJoint
	kindPulmonary
)

// kindRules match against individual findings (case-sensitive, as produced by
// ExtractFindings). Order is priority.
var kindRules = []keywordRule[pathologyKind]{
	{keywords: []string{"перелом", "fracture"}, result: kindFracture},
	{keywords: []string{"сустав", "joint", "артрит"}, result: kindJoint},
	{keywords: []string{"легочной", "lung", "пневмония"}, result: kindPulmonary},
}

// pathologyProfile is the fixed report content for one pathology kind.
type pathologyProfile struct {
	primary         func(regionName string) string
	secondary       string
	discount        float64
	recommendations []RecommendationItem
	category        CaseCategory
}

var pathologyProfiles = map[pathologyKind]pathologyProfile{
	kindFracture: {
		primary:   FracturePrimaryDiagnosis,
		secondary: "Требуется дополнительное обследование",
		discount:  0.8,
		recommendations: []RecommendationItem{
			{Text: "Срочная консультация травматолога", Priority: PriorityHigh},
			{Text: "Иммобилизация поврежденной области", Priority: PriorityHigh},
			{Text: "Контрольная рентгенография через 2 недели", Priority: PriorityMedium},
			{Text: "Обезболивающая терапия по показаниям", Priority: PriorityMedium},
		},
		category: CategoryFracture,
	},
	kindJoint: {
		primary: func(regionName string) string {
			return "Изменения в суставах области " + regionName
		},
		secondary: "Дегенеративно-дистрофические изменения",
		discount:  0.7,
		recommendations: []RecommendationItem{
			{Text: "Консультация ревматолога", Priority: PriorityMedium},
			{Text: "Противовоспалительная терапия", Priority: PriorityMedium},
			{Text: "Физиотерапевтическое лечение", Priority: PriorityLow},
			{Text: "ЛФК для поддержания подвижности", Priority: PriorityLow},
		},
		category: CategoryArthritis,
	},
	kindPulmonary: {
		primary: func(string) string {
			return "Изменения в легочной ткани"
		},
		secondary: "Требуется консультация пульмонолога",
		discount:  0.8,
		recommendations: []RecommendationItem{
			{Text: "Консультация пульмонолога", Priority: PriorityHigh},
			{Text: "Лабораторные исследования", Priority: PriorityMedium},
			{Text: "Контрольная рентгенография через 7 дней", Priority: PriorityMedium},
		},
		category: CategoryPneumonia,
	},
	kindUnspecified: {
		primary: func(string) string {
			return "Выявлены патологические изменения"
		},
		recommendations: []RecommendationItem{
			{Text: "Консультация специалиста", Priority: PriorityMedium},
			{Text: "Дополнительные методы исследования", Priority: PriorityMedium},
		},
		category: CategoryNormal,
	},
}

// AgeGroup buckets patients for the no-pathology branch.
type AgeGroup string

const (
	AgePediatric AgeGroup = "pediatric"
	AgeAdult     AgeGroup = "adult"
	AgeElderly   AgeGroup = "elderly"
)

const (
	pediatricBelow = 18
	elderlyAbove   = 65
)

func AgeGroupOf(age int) AgeGroup {
	switch {
	case age < pediatricBelow:
		return AgePediatric
	case age > elderlyAbove:
		return AgeElderly
	default:
		return AgeAdult
	}
}

type normalProfile struct {
	primary         string
	recommendations []RecommendationItem
}

var normalProfiles = map[AgeGroup]normalProfile{
	AgePediatric: {
		primary: "Развитие костной системы соответствует возрасту",
		recommendations: []RecommendationItem{
			{Text: "Наблюдение педиатра", Priority: PriorityLow},
			{Text: "Профилактические осмотры", Priority: PriorityLow},
			{Text: "Сбалансированное питание с кальцием", Priority: PriorityLow},
		},
	},
	AgeElderly: {
		primary: "Возрастные изменения в пределах нормы",
		recommendations: []RecommendationItem{
			{Text: "Профилактика остеопороза", Priority: PriorityMedium},
			{Text: "Препараты кальция и витамина D", Priority: PriorityMedium},
			{Text: "Регулярные осмотры", Priority: PriorityLow},
			{Text: "Умеренная физическая активность", Priority: PriorityLow},
		},
	},
	AgeAdult: {
		primary: "Патологических изменений не выявлено",
		recommendations: []RecommendationItem{
			{Text: "Профилактические осмотры", Priority: PriorityLow},
			{Text: "Здоровый образ жизни", Priority: PriorityLow},
			{Text: "Регулярная физическая активность", Priority: PriorityLow},
		},
	},
}

var regionNames = map[Region]string{
	RegionChest:   "грудной клетки",
	RegionSpine:   "позвоночника",
	RegionLimb:    "конечностей",
	RegionPelvis:  "таза",
	RegionSkull:   "черепа",
	RegionGeneral: "исследуемой области",
}

// RegionName is the genitive Russian name used inside diagnosis sentences.
func RegionName(r Region) string {
	if name, ok := regionNames[r]; ok {
		return name
	}
	return regionNames[RegionGeneral]
}

// FracturePrimaryDiagnosis is the primary sentence for a suspected fracture.
func FracturePrimaryDiagnosis(regionName string) string {
	return fmt.Sprintf("Подозрение на перелом в области %s", regionName)
}

const (
	findingConfidenceStart = 0.8
	findingConfidenceStep  = 0.1
	findingConfidenceFloor = 0.5
)

// Report is the synthesized content of an analysis.
type Report struct {
	PrimaryDiagnosis string
	Diagnosis        []DiagnosisItem
	Recommendations  []RecommendationItem
	Category         CaseCategory
}

// Synthesize derives diagnosis, recommendations and the similar-case category.
// It is total over its inputs.
func Synthesize(result ImageAnalysisResult, patient PatientData) Report {
	c := result.Confidence
	var rep Report

	if result.PathologyDetected {
		p := pathologyProfiles[kindOf(result.MedicalFindings)]
		rep.PrimaryDiagnosis = p.primary(RegionName(result.AnatomicalRegion))
		rep.Diagnosis = append(rep.Diagnosis, DiagnosisItem{Text: rep.PrimaryDiagnosis, Confidence: c})
		if p.secondary != "" {
			rep.Diagnosis = append(rep.Diagnosis, DiagnosisItem{Text: p.secondary, Confidence: c * p.discount})
		}
		rep.Recommendations = append(rep.Recommendations, p.recommendations...)
		rep.Category = p.category
	} else {
		n := normalProfiles[AgeGroupOf(patient.Age)]
		rep.PrimaryDiagnosis = n.primary
		rep.Diagnosis = append(rep.Diagnosis, DiagnosisItem{Text: n.primary, Confidence: c})
		rep.Recommendations = append(rep.Recommendations, n.recommendations...)
		rep.Category = CategoryNormal
	}

	for i, f := range result.MedicalFindings {
		conf := c * (findingConfidenceStart - float64(i)*findingConfidenceStep)
		if conf < findingConfidenceFloor {
			conf = findingConfidenceFloor
		}
		rep.Diagnosis = append(rep.Diagnosis, DiagnosisItem{Text: f, Confidence: conf})
	}

	return rep
}

func kindOf(findings []string) pathologyKind {
	for _, rule := range kindRules {
		for _, f := range findings {
			if rule.matches(f) {
				return rule.result
			}
		}
	}
	return kindUnspecified
}

// CategoryForText resolves a similar-case category from free text such as a
// diagnosis string.
func CategoryForText(text string) CaseCategory {
	lower := strings.ToLower(text)
	for _, rule := range textCategoryRules {
		if rule.matches(lower) {
			return rule.result
		}
	}
	return CategoryNormal
}

var textCategoryRules = []keywordRule[CaseCategory]{
	{keywords: []string{"перелом", "fracture"}, result: CategoryFracture},
	{keywords: []string{"артрит", "arthritis"}, result: CategoryArthritis},
	{keywords: []string{"пневмония", "pneumonia"}, result: CategoryPneumonia},
}
