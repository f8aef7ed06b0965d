// Package domain содержит модель данных scrapeflow.
//
// Основные сущности:
//   - ScrapeConfig — декларативное описание сценария скрейпинга
//   - Step — один шаг сценария (request, extract, paginate, loop, condition, save)
//   - ExtractionRule — правило извлечения одного значения из документа
//   - Job — задание на выполнение сценария (единица работы очереди)
//   - Result — итог одного выполнения (данные + метаданные + ошибки)
//
// Шаги моделируются как данные, а не поведение: Step — tagged union
// по полю Type, интерпретируется рекурсивно движком (internal/engine).
package domain
