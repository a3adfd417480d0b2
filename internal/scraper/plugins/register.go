package plugins

import "github.com/govchat-nl/policyscan/internal/scraper"

// Register adds every built-in plugin to the registry.
func Register(reg *scraper.Registry) {
	reg.Register(GemeentebladName,
		"Gemeentebladen.nl, Dutch municipal publication portal",
		NewGemeenteblad)
}
