package scraper

import (
	"fmt"
	"sort"
	"strings"
)

const (
	SiteHHRu = "hhru"
)

func Registry() map[string]Site {
	return map[string]Site{
		SiteHHRu: NewHHRu(),
	}
}

// Names lists registered sites in stable order.
func Names() []string {
	registry := Registry()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a user supplied site name, accepting common aliases.
func Lookup(name string) (Site, error) {
	sites := NormalizeSites([]string{name})
	if len(sites) == 0 {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownSite)
	}
	site, ok := Registry()[expandAlias(sites[0])]
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %s)", ErrUnknownSite, name, strings.Join(Names(), ", "))
	}
	return site, nil
}

func NormalizeSites(sites []string) []string {
	out := make([]string, 0, len(sites))
	for _, site := range sites {
		site = strings.ToLower(strings.TrimSpace(site))
		if site == "" {
			continue
		}
		site = strings.TrimPrefix(site, "www.")
		out = append(out, site)
	}
	return out
}

func expandAlias(site string) string {
	switch site {
	case "hh", "hh.ru", "headhunter":
		return SiteHHRu
	default:
		return site
	}
}
