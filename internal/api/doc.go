// Package api содержит HTTP API движка диспетчеризации задач.
//
// Package — тонкий адаптер поверх ядра: парсит и валидирует запросы,
// вызывает internal/dispatcher и internal/queue, сам не владеет
// конкурентностью или политикой ретраев.
//
// Структура:
//   - handler.go       — Handler с DI (queue, dispatcher, registry, validator, logger)
//   - routes.go        — регистрация маршрутов chi, CORS, per-route rate limiting
//   - middleware.go    — middleware (logging, recovery)
//   - response.go      — унифицированные JSON-ответы и обработка ошибок
//   - dto.go           — Data Transfer Objects (request/response)
//   - queue_handler.go — обработчики для /queue/*
//   - image_handler.go — обработчики для /api/images/* (проекция на очередь)
//   - ws_handler.go     — апгрейд /ws до internal/wire.Client
package api
