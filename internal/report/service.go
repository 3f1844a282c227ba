// Package report renders the detailed textual conclusion for a set of
// findings. It is a static template generator and does not depend on the
// synthesis pipeline.
package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	dateLayout = "02.01.2006"
	timeLayout = "15:04:05"
	endMarker  = "--- Конец детального анализа ---"
)

// template is one variant of the detailed conclusion.
type template struct {
	keywords        []string
	observations    []string
	recommendations []string
	closing         []string
}

// templates are checked in order; the last one has no keywords and always
// applies.
var templates = []template{
	{
		keywords: []string{"перелом", "fracture"},
		observations: []string{
			"Визуализируется нарушение целостности костной ткани",
			"Линия перелома четко прослеживается",
			"Смещение костных отломков: минимальное/отсутствует",
			"Окружающие мягкие ткани: без видимых изменений",
		},
		recommendations: []string{
			"Немедленная иммобилизация поврежденной области",
			"Обезболивающая терапия по показаниям",
			"Контрольная рентгенография через 7-10 дней",
			"При необходимости - консультация хирурга-травматолога",
			"Физиотерапия после снятия иммобилизации",
		},
		closing: []string{
			"ПРОГНОЗ: Благоприятный при соблюдении рекомендаций",
			"СРОКИ ЛЕЧЕНИЯ: 4-6 недель в зависимости от локализации",
		},
	},
	{
		keywords: []string{"остеоартрит", "артрит"},
		observations: []string{
			"Сужение суставной щели",
			"Краевые костные разрастания (остеофиты)",
			"Субхондральный склероз",
			"Деформация суставных поверхностей",
		},
		recommendations: []string{
			"Консультация ревматолога для подбора терапии",
			"НПВС курсами по показаниям",
			"Хондропротекторы длительными курсами",
			"Физиотерапевтическое лечение",
			"ЛФК для поддержания подвижности сустава",
			"Контроль массы тела",
		},
		closing: []string{
			"ПРОГНОЗ: Хроническое прогрессирующее заболевание",
			"НАБЛЮДЕНИЕ: Контрольные осмотры каждые 6 месяцев",
		},
	},
	{
		observations: []string{
			"Костные структуры сформированы правильно",
			"Суставные щели не сужены",
			"Кортикальный слой сохранен",
			"Патологических образований не выявлено",
		},
		recommendations: []string{
			"Профилактические осмотры согласно возрасту",
			"Поддержание здорового образа жизни",
			"Адекватная физическая активность",
			"Сбалансированное питание",
		},
		closing: []string{
			"ЗАКЛЮЧЕНИЕ: Патологических изменений не выявлено",
			"РЕКОМЕНДАЦИИ: Динамическое наблюдение",
		},
	},
}

type Service struct {
	now func() time.Time
}

func NewService() *Service {
	return &Service{now: time.Now}
}

// NewServiceWithClock is used by tests to pin the report date.
func NewServiceWithClock(now func() time.Time) *Service {
	return &Service{now: now}
}

// Detailed renders the conclusion for the image at imagePath. Only the base
// name of the path is printed.
func (s *Service) Detailed(imagePath string, findings []string) string {
	findingsText := strings.ToLower(strings.Join(findings, ", "))
	t := pick(findingsText)
	now := s.now()

	var b strings.Builder
	b.WriteString("ДЕТАЛЬНОЕ МЕДИЦИНСКОЕ ЗАКЛЮЧЕНИЕ\n\n")
	b.WriteString("Исследование: Рентгенография\n")
	fmt.Fprintf(&b, "Файл изображения: %s\n", filepath.Base(imagePath))
	fmt.Fprintf(&b, "Дата анализа: %s\n", now.Format(dateLayout))
	fmt.Fprintf(&b, "Время анализа: %s\n\n", now.Format(timeLayout))

	b.WriteString("РЕНТГЕНОЛОГИЧЕСКИЕ НАХОДКИ:\n")
	for _, o := range t.observations {
		fmt.Fprintf(&b, "• %s\n", o)
	}
	b.WriteString("\n")

	b.WriteString("КЛИНИЧЕСКИЕ РЕКОМЕНДАЦИИ:\n")
	for i, r := range t.recommendations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\n")

	b.WriteString(strings.Join(t.closing, "\n"))
	b.WriteString("\n\n")
	b.WriteString(endMarker)

	return b.String()
}

func pick(findingsText string) template {
	for _, t := range templates {
		if len(t.keywords) == 0 {
			return t
		}
		for _, k := range t.keywords {
			if strings.Contains(findingsText, k) {
				return t
			}
		}
	}
	return templates[len(templates)-1]
}
