package config

import (
	"fmt"
	"reflect"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
)

// parsers adds support for field types caarlos0/env does not know about.
var parsers = map[reflect.Type]env.ParserFunc{
	reflect.TypeOf(decimal.Decimal{}): func(v string) (any, error) {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("parse decimal %q: %w", v, err)
		}
		return d, nil
	},
}

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings. Money amounts may be
// declared as decimal.Decimal.
//
// Example:
//
//	type Config struct {
//	    Port     int             `env:"HTTP_PORT" envDefault:"8080"`
//	    Shipping decimal.Decimal `env:"SHIPPING_COST" envDefault:"4.95"`
//	}
func Load(cfg any) error {
	if err := env.ParseWithOptions(cfg, env.Options{FuncMap: parsers}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
