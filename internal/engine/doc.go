// Package engine реализует ядро scrapeflow: контекст переменных,
// разрешение шаблонов и интерпретатор шагов.
//
// Структура:
//   - context.go  — неизменяемый контекст переменных (функциональные обновления)
//   - template.go — разрешение выражений ${namespace.path|filter|default:x}
//   - validate.go — валидация сценария перед выполнением
//   - runner.go   — рекурсивный интерпретатор дерева шагов
//   - errors.go   — ошибки движка
//
// Каждый шаг выполняется через execute(step, ctx) → ctx': контекст никогда
// не мутируется, обновление возвращает новое значение. Это позволяет
// воспроизводить и отлаживать состояние на любом шаге.
package engine
