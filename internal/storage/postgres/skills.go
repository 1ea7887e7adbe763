package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/expair-api/internal/models"
)

// SkillCategoriesOf возвращает общие категории, в которых у пользователя
// есть хотя бы один конкретный навык
func (s *Store) SkillCategoriesOf(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT DISTINCT g.gencateg
        FROM userskills_tbl us
        JOIN specskills_tbl sp ON sp.specskills_id = us.specskills_id
        JOIN genskills_tbl g ON g.genskills_id = sp.genskills_id
        WHERE us.user_id = $1
        ORDER BY g.gencateg
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("категории навыков пользователя: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// InterestCategoriesOf возвращает общие категории интересов пользователя
func (s *Store) InterestCategoriesOf(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT g.gencateg
        FROM userinterests_tbl ui
        JOIN genskills_tbl g ON g.genskills_id = ui.genskills_id
        WHERE ui.user_id = $1
        ORDER BY g.gencateg
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("категории интересов пользователя: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// AnyCatalogCategory возвращает лексикографически первую категорию каталога
func (s *Store) AnyCatalogCategory(ctx context.Context) (string, error) {
	var categ string
	err := s.pool.QueryRow(ctx, `
        SELECT gencateg FROM genskills_tbl ORDER BY gencateg LIMIT 1
    `).Scan(&categ)
	if errors.Is(err, pgx.ErrNoRows) {
		// Пустой каталог — не ошибка, у matching есть запасной вариант
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("категория из каталога: %w", err)
	}
	return categ, nil
}

// ListGeneralSkills возвращает весь каталог общих категорий
func (s *Store) ListGeneralSkills(ctx context.Context) ([]models.GenSkill, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT genskills_id, gencateg FROM genskills_tbl ORDER BY gencateg
    `)
	if err != nil {
		return nil, fmt.Errorf("каталог общих категорий: %w", err)
	}
	defer rows.Close()

	var out []models.GenSkill
	for rows.Next() {
		var g models.GenSkill
		if err := rows.Scan(&g.ID, &g.Category); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListSpecificSkills возвращает конкретные навыки, при genSkillID > 0 — только
// внутри указанной категории
func (s *Store) ListSpecificSkills(ctx context.Context, genSkillID int) ([]models.SpecSkill, error) {
	query := `SELECT specskills_id, speccateg, genskills_id FROM specskills_tbl ORDER BY speccateg`
	args := []any{}
	if genSkillID > 0 {
		query = `SELECT specskills_id, speccateg, genskills_id FROM specskills_tbl WHERE genskills_id = $1 ORDER BY speccateg`
		args = append(args, genSkillID)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("каталог конкретных навыков: %w", err)
	}
	defer rows.Close()

	var out []models.SpecSkill
	for rows.Next() {
		var sp models.SpecSkill
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.GenSkillID); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// UserSkillGroups возвращает навыки пользователя, сгруппированные по категориям
func (s *Store) UserSkillGroups(ctx context.Context, userID uuid.UUID) ([]models.SkillGroup, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT g.gencateg, sp.speccateg
        FROM userskills_tbl us
        JOIN specskills_tbl sp ON sp.specskills_id = us.specskills_id
        JOIN genskills_tbl g ON g.genskills_id = sp.genskills_id
        WHERE us.user_id = $1
        ORDER BY g.gencateg, sp.speccateg
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("навыки пользователя: %w", err)
	}
	defer rows.Close()

	var out []models.SkillGroup
	for rows.Next() {
		var categ, spec string
		if err := rows.Scan(&categ, &spec); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Category != categ {
			out = append(out, models.SkillGroup{Category: categ})
		}
		out[len(out)-1].Skills = append(out[len(out)-1].Skills, spec)
	}
	return out, rows.Err()
}

// SaveUserSkills заменяет набор конкретных навыков пользователя
func (s *Store) SaveUserSkills(ctx context.Context, userID uuid.UUID, specSkillIDs []int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM userskills_tbl WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("очистка навыков пользователя: %w", err)
	}
	for _, id := range specSkillIDs {
		if _, err := tx.Exec(ctx, `
            INSERT INTO userskills_tbl (user_id, specskills_id) VALUES ($1, $2)
        `, userID, id); err != nil {
			return fmt.Errorf("сохранение навыка %d: %w", id, err)
		}
	}
	return tx.Commit(ctx)
}

// SaveUserInterests заменяет набор категорий-интересов пользователя
func (s *Store) SaveUserInterests(ctx context.Context, userID uuid.UUID, genSkillIDs []int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM userinterests_tbl WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("очистка интересов пользователя: %w", err)
	}
	for _, id := range genSkillIDs {
		if _, err := tx.Exec(ctx, `
            INSERT INTO userinterests_tbl (user_id, genskills_id) VALUES ($1, $2)
        `, userID, id); err != nil {
			return fmt.Errorf("сохранение интереса %d: %w", id, err)
		}
	}
	return tx.Commit(ctx)
}

func scanStrings(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
