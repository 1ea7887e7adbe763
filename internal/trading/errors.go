package trading

import "errors"

// Ошибки ядра обмена. Хендлеры различают их через errors.Is и
// транслируют в HTTP-коды; ядро никогда не возвращает частично
// применённые изменения вместе с ошибкой.
var (
	// ErrNotFound — запрошенная сущность не существует
	ErrNotFound = errors.New("не найдено")

	// ErrForbidden — действие выполняет не та сторона
	ErrForbidden = errors.New("нет прав на это действие")

	// ErrInvalidState — операция вне допустимого состояния обмена
	ErrInvalidState = errors.New("недопустимое состояние обмена")

	// ErrInvalidChoice — значение не входит в список допустимых вариантов
	ErrInvalidChoice = errors.New("недопустимое значение")

	// ErrValidation — некорректные входные данные
	ErrValidation = errors.New("некорректные данные")

	// ErrAlreadyProcessed — отклик уже обработан или действие уже выполнено
	ErrAlreadyProcessed = errors.New("уже обработано")

	// ErrAlreadyAccepted — у запроса уже есть принятый отклик
	ErrAlreadyAccepted = errors.New("отклик по этому запросу уже принят")

	// ErrAlreadyResponded — сторона уже ответила на оценку
	ErrAlreadyResponded = errors.New("ответ на оценку уже дан")
)
