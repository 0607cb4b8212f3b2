package engine

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/shaiso/Overseer/internal/domain"
)

// Context — контекст для рендеринга шаблонов в командах и env.
//
// Используется в Go templates для доступа к данным:
//   - {{ .Vars.port }}
//   - {{ .Env.DJANGO_SETTINGS_MODULE }}
//   - {{ .Task.Name }}
type Context struct {
	// Vars — переменные из секции vars конфигурации.
	Vars map[string]string `json:"vars"`

	// Env — окружение процесса оркестратора, дополненное env группы.
	Env map[string]string `json:"env"`

	// Task — задача, команда которой рендерится.
	Task *domain.TaskDef `json:"task,omitempty"`
}

// NewContext создаёт контекст с переменными.
func NewContext(vars map[string]string) *Context {
	if vars == nil {
		vars = make(map[string]string)
	}
	return &Context{
		Vars: vars,
		Env:  make(map[string]string),
	}
}

// NewGroupContext создаёт контекст для группы: vars, окружение процесса и env группы.
func NewGroupContext(spec *domain.GroupSpec) *Context {
	ctx := NewContext(spec.Vars)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			ctx.Env[k] = v
		}
	}
	for k, v := range spec.Env {
		ctx.Env[k] = v
	}
	return ctx
}

// ForTask возвращает копию контекста с заданной задачей.
func (c *Context) ForTask(task *domain.TaskDef) *Context {
	cp := *c
	cp.Task = task
	return &cp
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// default — возвращает def, если val пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	// join — объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
	"trim":    strings.TrimSpace,
	"replace": strings.ReplaceAll,
}

// Render рендерит строковый шаблон с контекстом.
//
// Отсутствующий ключ в Vars или Env — ошибка, а не пустая строка:
// "--bind 0.0.0.0:" без порта лучше поймать до запуска.
func Render(tmpl string, ctx *Context) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// ResolvedCommand — команда, готовая к запуску.
type ResolvedCommand struct {
	// Args — argv после рендеринга.
	Args []string

	// Env — окружение процесса в формате KEY=VALUE, отсортированное по ключу.
	Env []string
}

// ResolveCommand рендерит argv и env задачи.
//
// Окружение процесса = окружение оркестратора + env группы + env задачи
// (более поздние перекрывают более ранние).
func ResolveCommand(task *domain.TaskDef, ctx *Context) (*ResolvedCommand, error) {
	tctx := ctx.ForTask(task)

	args := make([]string, len(task.Command))
	for i, arg := range task.Command {
		rendered, err := Render(arg, tctx)
		if err != nil {
			return nil, NewConfigError(task.Name, "command", err.Error(), err)
		}
		args[i] = rendered
	}

	env := make(map[string]string, len(ctx.Env)+len(task.Env))
	for k, v := range ctx.Env {
		env[k] = v
	}
	for k, v := range task.Env {
		rendered, err := Render(v, tctx)
		if err != nil {
			return nil, NewConfigError(task.Name, "env", err.Error(), err)
		}
		env[k] = rendered
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	envList := make([]string, 0, len(keys))
	for _, k := range keys {
		envList = append(envList, k+"="+env[k])
	}

	return &ResolvedCommand{Args: args, Env: envList}, nil
}

// ResolveAll рендерит команды всех задач группы.
// Используется при загрузке, чтобы ошибки шаблонов проявились до первого запуска.
func ResolveAll(spec *domain.GroupSpec, ctx *Context) (map[string]*ResolvedCommand, error) {
	resolved := make(map[string]*ResolvedCommand, len(spec.Tasks))
	for i := range spec.Tasks {
		task := &spec.Tasks[i]
		cmd, err := ResolveCommand(task, ctx)
		if err != nil {
			return nil, err
		}
		resolved[task.Name] = cmd
	}
	return resolved, nil
}
