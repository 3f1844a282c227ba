package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize_PediatricNormal(t *testing.T) {
	result := ImageAnalysisResult{
		Confidence:        0.7,
		MedicalFindings:   []string{FindingNormalStructure},
		AnatomicalRegion:  RegionGeneral,
		PathologyDetected: false,
	}

	rep := Synthesize(result, PatientData{Age: 10})

	assert.Equal(t, "Развитие костной системы соответствует возрасту", rep.PrimaryDiagnosis)
	require.Len(t, rep.Diagnosis, 2)
	assert.Equal(t, rep.PrimaryDiagnosis, rep.Diagnosis[0].Text)
	assert.InDelta(t, 0.7, rep.Diagnosis[0].Confidence, 1e-9)
	assert.InDelta(t, 0.56, rep.Diagnosis[1].Confidence, 1e-9)

	require.Len(t, rep.Recommendations, 3)
	for _, r := range rep.Recommendations {
		assert.Equal(t, PriorityLow, r.Priority)
	}
	assert.Equal(t, CategoryNormal, rep.Category)
}

func TestSynthesize_AgeGroups(t *testing.T) {
	tests := []struct {
		age     int
		primary string
		recs    int
	}{
		{0, "Развитие костной системы соответствует возрасту", 3},
		{17, "Развитие костной системы соответствует возрасту", 3},
		{18, "Патологических изменений не выявлено", 3},
		{65, "Патологических изменений не выявлено", 3},
		{66, "Возрастные изменения в пределах нормы", 4},
		{150, "Возрастные изменения в пределах нормы", 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("age %d", tt.age), func(t *testing.T) {
			rep := Synthesize(ImageAnalysisResult{Confidence: 0.8, MedicalFindings: []string{"x"}}, PatientData{Age: tt.age})
			assert.Equal(t, tt.primary, rep.PrimaryDiagnosis)
			assert.Len(t, rep.Recommendations, tt.recs)
		})
	}
}

func TestSynthesize_Fracture(t *testing.T) {
	result := ImageAnalysisResult{
		Confidence:        0.9,
		MedicalFindings:   []string{FindingSuspectedFracture},
		AnatomicalRegion:  RegionLimb,
		PathologyDetected: true,
	}

	rep := Synthesize(result, PatientData{Age: 40})

	assert.Equal(t, "Подозрение на перелом в области конечностей", rep.PrimaryDiagnosis)
	require.Len(t, rep.Diagnosis, 3)
	assert.InDelta(t, 0.9, rep.Diagnosis[0].Confidence, 1e-9)
	assert.Equal(t, "Требуется дополнительное обследование", rep.Diagnosis[1].Text)
	assert.InDelta(t, 0.72, rep.Diagnosis[1].Confidence, 1e-9)
	assert.Equal(t, FindingSuspectedFracture, rep.Diagnosis[2].Text)
	assert.InDelta(t, 0.72, rep.Diagnosis[2].Confidence, 1e-9)

	require.Len(t, rep.Recommendations, 4)
	assert.Equal(t, PriorityHigh, rep.Recommendations[0].Priority)
	assert.Equal(t, CategoryFracture, rep.Category)

	cases := NewCaseRepository().Lookup(rep.Category)
	require.Len(t, cases, 2)
	assert.Equal(t, 1, cases[0].ID)
	assert.Equal(t, 2, cases[1].ID)
}

func TestSynthesize_KindPriority(t *testing.T) {
	tests := []struct {
		name     string
		findings []string
		primary  string
		category CaseCategory
		discount float64
	}{
		{"fracture beats joint", []string{FindingJointChanges, FindingSuspectedFracture}, "Подозрение на перелом в области таза", CategoryFracture, 0.8},
		{"joint", []string{FindingJointChanges}, "Изменения в суставах области таза", CategoryArthritis, 0.7},
		{"pulmonary", []string{FindingPulmonaryChanges}, "Изменения в легочной ткани", CategoryPneumonia, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Synthesize(ImageAnalysisResult{
				Confidence:        0.8,
				MedicalFindings:   tt.findings,
				AnatomicalRegion:  RegionPelvis,
				PathologyDetected: true,
			}, PatientData{Age: 30})

			assert.Equal(t, tt.primary, rep.PrimaryDiagnosis)
			assert.Equal(t, tt.category, rep.Category)
			assert.InDelta(t, 0.8*tt.discount, rep.Diagnosis[1].Confidence, 1e-9)
		})
	}
}

func TestSynthesize_UnspecifiedPathology(t *testing.T) {
	rep := Synthesize(ImageAnalysisResult{
		Confidence:        0.75,
		MedicalFindings:   []string{FindingPathologicalChanges},
		PathologyDetected: true,
	}, PatientData{Age: 30})

	assert.Equal(t, "Выявлены патологические изменения", rep.PrimaryDiagnosis)
	require.Len(t, rep.Diagnosis, 2)
	assert.Equal(t, FindingPathologicalChanges, rep.Diagnosis[1].Text)
	assert.Equal(t, []RecommendationItem{
		{Text: "Консультация специалиста", Priority: PriorityMedium},
		{Text: "Дополнительные методы исследования", Priority: PriorityMedium},
	}, rep.Recommendations)
	assert.Equal(t, CategoryNormal, rep.Category)
}

func TestSynthesize_FindingConfidenceFloor(t *testing.T) {
	rep := Synthesize(ImageAnalysisResult{
		Confidence:      0.9,
		MedicalFindings: []string{"a", "b", "c", "d", "e"},
	}, PatientData{Age: 30})

	want := []float64{0.72, 0.63, 0.54, 0.5, 0.5}
	require.Len(t, rep.Diagnosis, 1+len(want))
	for i, w := range want {
		assert.InDelta(t, w, rep.Diagnosis[i+1].Confidence, 1e-9, "finding %d", i)
	}
}

func TestSynthesize_FractureCategoryMatchesDiagnosis(t *testing.T) {
	descriptions := []string{
		"fracture of the arm", "crack in the skull", "break with clear edges",
		"joint lesion", "irregular lung", "abnormal spine", "fracture and joint lesion in chest",
		"radiograph", "pneumonia", "healthy hand",
	}

	for i, desc := range descriptions {
		for _, age := range []int{5, 40, 80} {
			result := ReadImage(Vision{Description: desc, Confidence: 0.8}, DigestOf([]byte{byte(i)}), "scan.png")
			rep := Synthesize(result, PatientData{Age: age})

			fractureText := FracturePrimaryDiagnosis(RegionName(result.AnatomicalRegion))
			hasFractureText := false
			for _, d := range rep.Diagnosis {
				if d.Text == fractureText {
					hasFractureText = true
				}
			}
			assert.Equal(t, rep.Category == CategoryFracture, hasFractureText, desc)
		}
	}
}

func TestCategoryForText(t *testing.T) {
	assert.Equal(t, CategoryFracture, CategoryForText("case_1 Перелом лучевой кости"))
	assert.Equal(t, CategoryArthritis, CategoryForText("case_2 arthritis"))
	assert.Equal(t, CategoryPneumonia, CategoryForText("case_3 PNEUMONIA"))
	assert.Equal(t, CategoryNormal, CategoryForText("case_4"))
}

func TestCaseRepository_Lookup(t *testing.T) {
	repo := NewCaseRepository()

	assert.Len(t, repo.Lookup(CategoryArthritis), 1)
	assert.Equal(t, repo.Lookup(CategoryNormal), repo.Lookup(CaseCategory("unknown")))

	cases := repo.Lookup(CategoryFracture)
	cases[0].Diagnosis = "mutated"
	assert.NotEqual(t, "mutated", repo.Lookup(CategoryFracture)[0].Diagnosis)
}
