//go:build wireinject

package di

import (
	"github.com/google/wire"
)

// InitializeApp is an injector function - Wire will generate the implementation
func InitializeApp(opts Options) (*App, error) {
	wire.Build(ChatSet)
	return nil, nil
}
