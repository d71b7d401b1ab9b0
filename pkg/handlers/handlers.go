package handlers

import (
	"fmt"
	"sort"

	"github.com/theapemachine/a2a-runtime/pkg/service"
)

var registry = map[string]func() service.Handler{
	"echo":    func() service.Handler { return Echo() },
	"confirm": func() service.Handler { return Confirm() },
	"ticker":  func() service.Handler { return Ticker(DefaultTicks, DefaultTickInterval) },
}

/*
New returns the built-in handler registered under name.
*/
func New(name string) (service.Handler, error) {
	build, ok := registry[name]

	if !ok {
		return nil, fmt.Errorf("unknown handler %q, expected one of %v", name, Names())
	}

	return build(), nil
}

// Names lists the built-in handlers.
func Names() []string {
	names := make([]string, 0, len(registry))

	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
