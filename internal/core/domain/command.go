package domain

// Command is one toolchain process invocation.
type Command struct {
	// Name is the executable, resolved against PATH when not absolute.
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds KEY=VALUE entries applied over the inherited environment.
	Env []string
}

// Argv returns the full argument vector.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}
