package analysis

import (
	"time"
)

// Region is the anatomical area an image is classified into.
type Region string

const (
	RegionChest   Region = "chest"
	RegionSpine   Region = "spine"
	RegionLimb    Region = "limb"
	RegionPelvis  Region = "pelvis"
	RegionSkull   Region = "skull"
	RegionGeneral Region = "general"
)

// Priority of a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// CaseCategory keys the similar-case table.
type CaseCategory string

const (
	CategoryFracture  CaseCategory = "fracture"
	CategoryArthritis CaseCategory = "arthritis"
	CategoryNormal    CaseCategory = "normal"
	CategoryPneumonia CaseCategory = "pneumonia"
)

type PatientData struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Age        int    `json:"age"`
	DoctorName string `json:"doctorName"`
}

// Vision is the description of an image, either produced by the inference
// service or derived from the image digest.
type Vision struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Model       string  `json:"model,omitempty"`
}

// ImageAnalysisResult is the structured reading of one image.
type ImageAnalysisResult struct {
	Description       string   `json:"description"`
	Confidence        float64  `json:"confidence"`
	MedicalFindings   []string `json:"medicalFindings"`
	AnatomicalRegion  Region   `json:"anatomicalRegion"`
	PathologyDetected bool     `json:"pathologyDetected"`
}

type DiagnosisItem struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type RecommendationItem struct {
	Text     string   `json:"text"`
	Priority Priority `json:"priority"`
}

type SimilarCase struct {
	ID          int    `json:"id"`
	ImageURL    string `json:"imageUrl"`
	Diagnosis   string `json:"diagnosis"`
	Match       int    `json:"match"`
	Description string `json:"description"`
}

// XrayAnalysis is the final report returned to the caller. It is never stored.
type XrayAnalysis struct {
	Diagnosis       []DiagnosisItem      `json:"diagnosis"`
	Recommendations []RecommendationItem `json:"recommendations"`
	SimilarCases    []SimilarCase        `json:"similarCases"`
	Confidence      float64              `json:"confidence"`
	AnalysisDate    time.Time            `json:"analysisDate"`
}
