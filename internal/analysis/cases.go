package analysis

// CaseRepository is the read-only table of reference cases shown for
// comparison. It has no mutation methods and Lookup hands out copies.
type CaseRepository struct {
	cases map[CaseCategory][]SimilarCase
}

// NewCaseRepository builds the reference table. Call once at startup.
func NewCaseRepository() *CaseRepository {
	return &CaseRepository{cases: map[CaseCategory][]SimilarCase{
		CategoryFracture: {
			{
				ID:          1,
				ImageURL:    "https://www.ckbran.ru/upload/medialibrary/10b/r1kwcbrmtwpm04pi5zccep60ecjtuk83.jpg",
				Diagnosis:   "Перелом дистального отдела лучевой кости",
				Match:       94,
				Description: "Типичный перелом Коллеса с дорсальным смещением",
			},
			{
				ID:          2,
				ImageURL:    "https://meduniver.com/Medical/traumatologia/Img/perelom_luchevoi_kosti.jpg",
				Diagnosis:   "Оскольчатый перелом лучевой кости",
				Match:       87,
				Description: "Множественные костные фрагменты, требует хирургического лечения",
			},
		},
		CategoryArthritis: {
			{
				ID:          1,
				ImageURL:    "https://www.dikul.net/files/images/wiki/osteoartroz4.jpg",
				Diagnosis:   "Остеоартрит коленного сустава 3 степени",
				Match:       91,
				Description: "Выраженное сужение суставной щели, множественные остеофиты",
			},
		},
		CategoryNormal: {
			{
				ID:          1,
				ImageURL:    "https://www.radiologyinfo.org/en/photocat/gallery_3/xray-chest-normal.jpg",
				Diagnosis:   "Нормальная рентгенограмма",
				Match:       95,
				Description: "Костные структуры без патологических изменений",
			},
		},
		CategoryPneumonia: {
			{
				ID:          1,
				ImageURL:    "https://radiopaedia.org/images/pneumonia-chest-xray.jpg",
				Diagnosis:   "Правосторонняя нижнедолевая пневмония",
				Match:       89,
				Description: "Гомогенное затемнение в нижней доле правого легкого",
			},
		},
	}}
}

// Lookup returns the cases of a category, or the normal cases when the
// category is unknown.
func (r *CaseRepository) Lookup(category CaseCategory) []SimilarCase {
	cases, ok := r.cases[category]
	if !ok {
		cases = r.cases[CategoryNormal]
	}
	out := make([]SimilarCase, len(cases))
	copy(out, cases)
	return out
}
