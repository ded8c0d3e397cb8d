package maven

import (
	"strings"

	"github.com/git-pkgs/spdx"
)

// LicenseExpression returns the SPDX expression for the licenses declared
// by p, including those inherited from its parents. Maven lets consumers
// pick any listed license, so several entries are joined with OR. Names
// that do not normalize are kept as written. It returns "" when no
// license is declared.
func (p *POM) LicenseExpression() string {
	seen := make(map[string]bool, len(p.Licenses))
	var ids []string
	for _, l := range p.Licenses {
		id := normalizeLicense(l.Name)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return strings.Join(ids, " OR ")
}

func normalizeLicense(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	if id, err := spdx.Normalize(name); err == nil && id != "" {
		return id
	}
	return name
}
