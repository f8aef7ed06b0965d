// Package worker выполняет jobs скрейпинга.
//
// Worker — stateless компонент системы, который:
//   - Получает jobs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет waiting jobs в БД (polling fallback)
//   - Запускает движок: один принятый job — один атомарный run
//   - Реализует повторы job-уровня через отложенную постановку
//   - Доставляет результаты в настроенные sinks
//   - Публикует событие завершения в очередь jobs.completed
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди. Параллелизм одного экземпляра
// задаётся prefetch очереди и семафором активных jobs.
//
// Глобальный rate limiter ограничивает суммарный темп HTTP запросов
// движка независимо от количества параллельных jobs.
package worker
