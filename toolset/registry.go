package toolset

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gregoryerrl/pgtoolset/sqlguard"
	"github.com/gregoryerrl/pgtoolset/types"
)

// Registry holds a fixed allow-list of named statements with :name
// placeholders. It is the predefined-query variant of the executor: same
// gate, static SQL text instead of free input.
type Registry struct {
	statements map[string]*Statement
}

type Statement struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	SQL         string      `yaml:"sql"`
	Parameters  []Parameter `yaml:"parameters"`
}

type Parameter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

type registryFile struct {
	Statements []*Statement `yaml:"statements"`
}

// LoadRegistry reads a statement registry file. Statement texts are gated at
// load time so a registry can never smuggle a write past the policy.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.KindConfiguration, err, "failed to read statement registry")
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, types.WrapError(types.KindConfiguration, err, "failed to parse statement registry")
	}

	reg := &Registry{statements: make(map[string]*Statement, len(file.Statements))}
	for _, stmt := range file.Statements {
		if stmt.Name == "" {
			return nil, types.NewError(types.KindConfiguration, "statement registry entry is missing a name")
		}
		if _, dup := reg.statements[stmt.Name]; dup {
			return nil, types.Errorf(types.KindConfiguration, "duplicate statement name %q in registry", stmt.Name)
		}
		if err := sqlguard.Validate(stmt.SQL); err != nil {
			return nil, types.Errorf(types.KindConfiguration,
				"statement %q is not a read-only query: %v", stmt.Name, err)
		}
		reg.statements[stmt.Name] = stmt
	}
	return reg, nil
}

func (r *Registry) Get(name string) (*Statement, error) {
	stmt, ok := r.statements[name]
	if !ok {
		return nil, types.Errorf(types.KindNotFound, "named query %q not found in registry", name)
	}
	return stmt, nil
}

// Names returns the registered statement names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.statements))
	for name := range r.statements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Statement) checkParams(params map[string]any) error {
	for _, p := range s.Parameters {
		if !p.Required {
			continue
		}
		if _, ok := params[p.Name]; !ok {
			return types.Errorf(types.KindQuery, "missing required parameter %q for named query %q", p.Name, s.Name)
		}
	}
	return nil
}
