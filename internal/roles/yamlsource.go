package roles

import (
	"os"

	"github.com/orbitctl/agentplane/internal/wire"
	"gopkg.in/yaml.v3"
)

// yamlRole mirrors Role's JSON-tagged shape with yaml tags, since the
// catalog file is authored by hand, not produced by this program.
type yamlRole struct {
	ID                 string            `yaml:"id"`
	Name               string            `yaml:"name"`
	Description        string            `yaml:"description"`
	SystemPrompt       string            `yaml:"systemPrompt"`
	Tools              []string          `yaml:"tools"`
	Permissions        []string          `yaml:"permissions"`
	MaxIterations      int               `yaml:"maxIterations"`
	AutoSubmit         bool              `yaml:"autoSubmit"`
	RequireApproval    bool              `yaml:"requireApproval"`
	CanMessage         []string          `yaml:"canMessage"`
	BroadcastChannels  []string          `yaml:"broadcastChannels"`
	PreferredProvider  string            `yaml:"preferredProvider"`
	PreferredModel     string            `yaml:"preferredModel"`
	CostBudget         *float64          `yaml:"costBudget"`
	TimeoutMs          int               `yaml:"timeoutMs"`
	MaxConcurrentTasks int               `yaml:"maxConcurrentTasks"`
	Priority           int               `yaml:"priority"`
	Tags               []string          `yaml:"tags"`
	Metadata           map[string]string `yaml:"metadata"`
}

type yamlCatalog struct {
	Roles []yamlRole `yaml:"roles"`
}

func (y yamlRole) toRole() Role {
	perms := make([]Permission, 0, len(y.Permissions))
	for _, p := range y.Permissions {
		perms = append(perms, Permission(p))
	}
	return Role{
		ID: y.ID, Name: y.Name, Description: y.Description, SystemPrompt: y.SystemPrompt,
		Tools: y.Tools, Permissions: perms, MaxIterations: y.MaxIterations,
		AutoSubmit: y.AutoSubmit, RequireApproval: y.RequireApproval, CanMessage: y.CanMessage,
		BroadcastChannels: y.BroadcastChannels, PreferredProvider: y.PreferredProvider,
		PreferredModel: y.PreferredModel, CostBudget: y.CostBudget, TimeoutMs: y.TimeoutMs,
		MaxConcurrentTasks: y.MaxConcurrentTasks, Priority: y.Priority, Tags: y.Tags,
		Metadata: y.Metadata,
	}
}

// LoadCatalog reads additional user-defined roles from a YAML file at
// path and registers each with r. A missing path is not an error: the
// catalog is an optional supplement to the built-in roles.
func (r *Registry) LoadCatalog(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return wire.Wrap(wire.ErrInvalidSpec, err, "reading role catalog %s", path)
	}
	var catalog yamlCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return wire.Wrap(wire.ErrInvalidSpec, err, "parsing role catalog %s", path)
	}
	for _, yr := range catalog.Roles {
		if isBuiltinID(yr.ID) {
			continue // built-ins are never overridden by the catalog, per spec §4.6.
		}
		if _, err := r.Register(yr.toRole()); err != nil {
			return err
		}
	}
	return nil
}
