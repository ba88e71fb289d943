package paramstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvGetter resolves parameter names to environment variables. It stands in
// for SSM when the service runs outside AWS.
type EnvGetter struct {
	vars   map[string]string
	lookup func(string) (string, bool)
}

// NewEnvGetter maps each parameter name to the environment variable holding
// its value.
func NewEnvGetter(vars map[string]string) *EnvGetter {
	m := make(map[string]string, len(vars))
	for name, env := range vars {
		m[strings.TrimSpace(name)] = env
	}
	return &EnvGetter{vars: m, lookup: os.LookupEnv}
}

func (g *EnvGetter) GetParameter(_ context.Context, name string) (string, error) {
	env, ok := g.vars[strings.TrimSpace(name)]
	if !ok {
		return "", fmt.Errorf("paramstore: no environment mapping for %q", name)
	}
	v, ok := g.lookup(env)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrNotFound, env)
	}
	return strings.TrimSpace(v), nil
}
