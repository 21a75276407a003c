// Package cli реализует инструмент командной строки dispatchctl.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с HTTP API движка
// (internal/api). Работает только через HTTP и не импортирует внутренние
// пакеты движка (см. client.go — типы ответов продублированы оттуда же,
// откуда и в исходном automata cli).
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент. Инкапсулирует все запросы, парсинг ответов (DataResponse,
// ListResponse, ErrorResponse) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	status, err := client.QueueStatus()
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter, по умолчанию) или JSON
// (с флагом --json). Данные — в stdout, сообщения (Success/Error) — в
// stderr, что позволяет использовать pipe: dispatchctl queue status --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - queue: status, enqueue, show, cancel, dlq {list,retry,purge}
//   - sessions: list
//   - drain
//
// Каждая группа создаётся через фабричную функцию, принимающую clientFn и
// outputFn — замыкания для ленивого создания Client и Output после
// парсинга PersistentFlags.
package cli
