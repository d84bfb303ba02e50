package main

import (
	"context"
	"sort"

	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/core"
	"github.com/legalpin/legalcert/pkg/ether"
	"github.com/legalpin/legalcert/pkg/mock"
)

// NewEngines constructs one engine per configured [engines.<name>] entry.
func NewEngines(ctx context.Context, conf pin.Config) (map[string]pin.Engine, error) {
	if len(conf.Engines) == 0 {
		return nil, pin.NewErr(pin.BadRequest, "no engines configured")
	}
	names := make([]string, 0, len(conf.Engines))
	for name := range conf.Engines {
		names = append(names, name)
	}
	sort.Strings(names)

	engines := make(map[string]pin.Engine, len(names))
	for _, name := range names {
		e, err := NewEngine(ctx, name, conf)
		if err != nil {
			return nil, err
		}
		engines[name] = e
	}
	return engines, nil
}

// NewEngine constructs the engine called name, by its configured kind.
func NewEngine(ctx context.Context, name string, conf pin.Config) (pin.Engine, error) {
	engineConf, ok := conf.Engines[name]
	if !ok {
		return nil, pin.NewErr(pin.NotFound, "engine not configured: %s", name)
	}
	tag := conf.EngineTag(name)
	switch engineConf.Kind {
	case pin.KindUTXO, "":
		return core.NewUTXOEngine(core.NewRPCClient(name, engineConf), engineConf, tag)
	case pin.KindAccount:
		client, err := ether.Dial(ctx, engineConf)
		if err != nil {
			return nil, err
		}
		return ether.NewAccountEngine(client, engineConf, tag)
	case pin.KindMock:
		return mock.NewEngine(engineConf, tag)
	default:
		return nil, pin.NewErr(pin.BadRequest, "engine %s: unknown kind %q", name, engineConf.Kind)
	}
}
