package cli

import (
	"github.com/shaiso/Overseer/internal/domain"
	"github.com/shaiso/Overseer/internal/engine"
)

// loaded — провалидированная конфигурация, готовая к запуску.
type loaded struct {
	Spec     *domain.GroupSpec
	Context  *engine.Context
	Commands map[string]*engine.ResolvedCommand
	OneShots []string
	Warnings []string
}

// load читает файл, валидирует граф и заранее рендерит все команды,
// чтобы ошибки шаблонов проявились до первого запуска.
func load(path string) (*loaded, error) {
	spec, err := engine.LoadFile(path)
	if err != nil {
		return nil, err
	}

	tmpl := engine.NewGroupContext(spec)
	commands, err := engine.ResolveAll(spec, tmpl)
	if err != nil {
		return nil, err
	}

	order, err := engine.Order(spec.OneShots())
	if err != nil {
		return nil, err
	}

	return &loaded{
		Spec:     spec,
		Context:  tmpl,
		Commands: commands,
		OneShots: order,
		Warnings: engine.Warnings(spec),
	}, nil
}
