// Package mq предоставляет интеграцию с RabbitMQ для внешнего forwarding'а
// событий движка (Event Bus topics наружу — сторонним подписчикам, которым
// нужна история job-лайфцикла без поллинга HTTP API).
//
// Включает:
//   - connection.go — управление подключением с auto-reconnect
//   - publisher.go  — публикация сообщений в exchange
//   - topology.go   — декларация exchange и routing keys
package mq
