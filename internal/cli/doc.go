// Package cli реализует команды инструмента командной строки.
//
// Структура:
//   - client.go   — HTTP клиент для API
//   - output.go   — табличный и JSON вывод
//   - job.go      — команды управления jobs
//   - campaign.go — команды управления кампаниями
//   - inspect.go  — локальная разведка страницы без постановки job
package cli
