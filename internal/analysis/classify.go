package analysis

import (
	"strings"
)

// regionRules are evaluated in order and the first match wins.
var regionRules = []keywordRule[Region]{
	{keywords: []string{"chest", "lung", "heart", "грудь", "легк"}, result: RegionChest},
	{keywords: []string{"spine", "vertebra", "back", "позвоночник", "спин"}, result: RegionSpine},
	{keywords: []string{"arm", "leg", "hand", "foot", "рука", "нога"}, result: RegionLimb},
	{keywords: []string{"pelvis", "hip", "таз"}, result: RegionPelvis},
	{keywords: []string{"skull", "head", "череп"}, result: RegionSkull},
}

var pathologyKeywords = []string{
	"fracture", "break", "crack", "irregular", "abnormal", "lesion",
	"pneumonia", "infection", "arthritis", "degeneration",
	"перелом", "патологические", "изменения", "подозрение",
}

// normalKeywords intentionally include "regular", which also matches
// "irregular"; such descriptions land in the ambiguous branch.
var normalKeywords = []string{
	"normal", "healthy", "clear", "regular", "typical",
	"нормальная", "здоровые", "норма",
}

// ClassifyRegion picks the anatomical region from the description and the
// uploaded file name.
func ClassifyRegion(description, fileName string) Region {
	combined := strings.ToLower(description + " " + fileName)
	for _, rule := range regionRules {
		if rule.matches(combined) {
			return rule.result
		}
	}
	return RegionGeneral
}

// DetectPathology reports true only when pathology keywords are present and
// normal keywords are absent. Both or neither present yields false.
func DetectPathology(description string, findings []string) bool {
	desc := strings.ToLower(description)
	found := strings.ToLower(strings.Join(findings, " "))

	pathology := containsAny(desc, pathologyKeywords) || containsAny(found, pathologyKeywords)
	normal := containsAny(desc, normalKeywords) || containsAny(found, normalKeywords)

	return pathology && !normal
}

// ReadImage builds the structured reading of an image from its description.
func ReadImage(v Vision, d ImageDigest, fileName string) ImageAnalysisResult {
	findings := ExtractFindings(v.Description, d)
	return ImageAnalysisResult{
		Description:       v.Description,
		Confidence:        v.Confidence,
		MedicalFindings:   findings,
		AnatomicalRegion:  ClassifyRegion(v.Description, fileName),
		PathologyDetected: DetectPathology(v.Description, findings),
	}
}
