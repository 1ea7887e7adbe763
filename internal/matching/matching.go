package matching

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// DefaultCategory возвращается, когда ни у кандидата нет навыков,
// ни в каталоге нет категорий
const DefaultCategory = "Technical & IT"

// SkillGraph — read-only доступ к навыкам и интересам пользователей
type SkillGraph interface {
	SkillCategoriesOf(ctx context.Context, userID uuid.UUID) ([]string, error)
	InterestCategoriesOf(ctx context.Context, userID uuid.UUID) ([]string, error)
	AnyCatalogCategory(ctx context.Context) (string, error)
}

// Engine подбирает категорию, которую кандидат может предложить зрителю
type Engine struct {
	skills SkillGraph
}

// NewEngine создает новый экземпляр Engine
func NewEngine(skills SkillGraph) *Engine {
	return &Engine{skills: skills}
}

// BestOffer вычисляет лучшую категорию-предложение кандидата для зрителя.
// Приоритет: пересечение навыков кандидата с интересами зрителя →
// первая категория навыков кандидата → категория из каталога.
// Во всех ветках берётся лексикографически наименьший вариант, чтобы
// результат был воспроизводимым. Функция чистая, без побочных эффектов.
func (e *Engine) BestOffer(ctx context.Context, candidateID uuid.UUID, viewerID *uuid.UUID) (string, error) {
	candSkills, err := e.skills.SkillCategoriesOf(ctx, candidateID)
	if err != nil {
		return "", fmt.Errorf("навыки кандидата: %w", err)
	}
	sort.Strings(candSkills)

	if viewerID != nil && len(candSkills) > 0 {
		viewerInterests, err := e.skills.InterestCategoriesOf(ctx, *viewerID)
		if err != nil {
			return "", fmt.Errorf("интересы зрителя: %w", err)
		}
		interested := make(map[string]bool, len(viewerInterests))
		for _, c := range viewerInterests {
			interested[c] = true
		}
		// candSkills отсортированы, первое совпадение и есть наименьшее
		for _, c := range candSkills {
			if interested[c] {
				return c, nil
			}
		}
	}

	if len(candSkills) > 0 {
		return candSkills[0], nil
	}

	fallback, err := e.skills.AnyCatalogCategory(ctx)
	if err != nil {
		return "", fmt.Errorf("категория из каталога: %w", err)
	}
	if fallback == "" {
		return DefaultCategory, nil
	}
	return fallback, nil
}
