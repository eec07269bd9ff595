package model

import (
	"sort"
	"time"
)

// SectionCount количество разделов профиля
const SectionCount = 16

// AlwaysEditableSections разделы 1..AlwaysEditableSections доступны без ограничений
const AlwaysEditableSections = 2

type OnboardingProgress struct {
	CreatorID         int64      `json:"creator_id"`
	CompletedSections []int      `json:"completed_sections"`
	IsCompleted       bool       `json:"is_completed"`
	CompletedAt       *time.Time `json:"completed_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ValidSection проверяет номер раздела
func ValidSection(section int) bool {
	return section >= 1 && section <= SectionCount
}

// HasSection раздел уже заполнен
func (p *OnboardingProgress) HasSection(section int) bool {
	for _, s := range p.CompletedSections {
		if s == section {
			return true
		}
	}
	return false
}

// MarkSection отмечает раздел и возвращает true если заполнены все разделы
func (p *OnboardingProgress) MarkSection(section int) bool {
	if !p.HasSection(section) {
		p.CompletedSections = append(p.CompletedSections, section)
		sort.Ints(p.CompletedSections)
	}
	return len(p.CompletedSections) == SectionCount
}
