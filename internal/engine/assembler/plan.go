package assembler

import (
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.trai.ch/wasmblock/internal/core/domain"
)

// defaultName replaces names that sanitize to nothing.
const defaultName = "block"

// Plan assigns every block a unique name and output slot, in block order.
// A repeated name gets the first free suffix -2, -3, ... that no block declared itself.
func (a *Assembler) Plan(blocks []domain.SourceBlock) []domain.Job {
	names := make([]string, len(blocks))
	declared := make(map[string]struct{}, len(blocks))
	for i, b := range blocks {
		names[i] = SanitizeName(b.Name)
		declared[names[i]] = struct{}{}
	}

	used := make(map[string]struct{}, len(blocks))
	jobs := make([]domain.Job, len(blocks))
	for i, b := range blocks {
		name := names[i]
		if _, taken := used[name]; taken {
			name = nextFree(names[i], used, declared)
		}
		used[name] = struct{}{}

		jobs[i] = domain.Job{
			Block: b.Clone(),
			Slot: domain.Slot{
				Name: name,
				Out:  path.Join(a.prefix, name),
				Dir:  filepath.Join(a.outDir, name),
			},
		}
	}
	return jobs
}

func nextFree(base string, used, declared map[string]struct{}) string {
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, ok := used[candidate]; ok {
			continue
		}
		if _, ok := declared[candidate]; ok {
			continue
		}
		return candidate
	}
}

// SanitizeName maps every character outside [A-Za-z0-9_-] to '_'.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultName
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
