// Package engine содержит описание группы процессов и порядок их запуска.
//
// Включает:
//   - parser.go   — загрузка и валидация конфигурации из YAML
//   - dag.go      — построение DAG и топологическая сортировка one-shot шагов
//   - template.go — рендеринг команд и env через Go templates ({{ .Vars.port }})
//
// Engine отвечает за понимание структуры группы: какие задачи есть,
// в каком порядке их запускать и какой командой.
package engine
