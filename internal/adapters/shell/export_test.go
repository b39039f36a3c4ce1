package shell

var (
	ResolveEnvironment = resolveEnvironment
	LookPathIn         = lookPath
)

// NewExecutorWithEnv creates an Executor that sees sysEnv instead of the process environment.
func NewExecutorWithEnv(sysEnv []string, opts ...Option) *Executor {
	e := NewExecutor(nil, opts...)
	e.sysEnv = sysEnv
	return e
}
