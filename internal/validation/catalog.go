package validation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
)

// LoadCatalog reads the YAML rule catalog and replaces the rule table
// with its contents. Runs once per worker start; rule texts are data,
// not code.
func LoadCatalog(dbc dbctx.Context, path string, rules repos.RuleRepo) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read rule catalog: %w", err)
	}
	var doc struct {
		Rules []*types.RuleSQL `yaml:"rules"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("parse rule catalog: %w", err)
	}
	seen := map[string]bool{}
	for _, rule := range doc.Rules {
		if rule.RuleLabel == "" || rule.Query == "" {
			return 0, fmt.Errorf("rule catalog entry missing label or query")
		}
		if seen[rule.RuleLabel] {
			return 0, fmt.Errorf("rule catalog has duplicate label %s", rule.RuleLabel)
		}
		seen[rule.RuleLabel] = true
		if rule.Severity == "" {
			rule.Severity = types.SeverityFatal
		}
	}
	if err := rules.ReplaceCatalog(dbc, doc.Rules); err != nil {
		return 0, err
	}
	return len(doc.Rules), nil
}
