// Package queue предоставляет инфраструктуру очередей на RabbitMQ.
//
// Структура:
//   - connection.go — соединение с автоматическим reconnect
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий job
//   - consumer.go   — потребление событий job
//
// Типы сообщений:
//   - job.submitted — job поставлен в очередь на выполнение
//   - job.finished  — job завершён (completed или failed)
//
// Exchanges:
//   - scrapeflow.jobs — события jobs
//   - scrapeflow.dlq  — dead letter queue
//
// Очередь jobs.pending объявлена с x-max-priority: приоритет job
// (1-10) транслируется в AMQP приоритет сообщения.
package queue
