package semantic

import "github.com/hazyhaar/elderly/livedom"

// Analysis is the full read-only pass over a page.
type Analysis struct {
	Identified []Block
	Blocks     []Block // after deduplication
	Zones      Zones
	Stats      Stats
	Strategy   Strategy
}

// Analyze identifies, deduplicates, classifies and decides the strategy.
func Analyze(doc *livedom.Document, p Policy) Analysis {
	identified, st := Identify(doc)
	blocks := Dedupe(identified)
	z := Classify(blocks)
	return Analysis{
		Identified: identified,
		Blocks:     blocks,
		Zones:      z,
		Stats:      st,
		Strategy:   DecideStrategy(z, st, p),
	}
}

// Report is the serialisable form of an Analysis.
type Report struct {
	Strategy   Strategy           `json:"strategy"`
	Stats      Stats              `json:"stats"`
	Identified int                `json:"identified"`
	Zones      map[Zone][]Summary `json:"zones"`
}

// Report summarises the analysis without live references.
func (a Analysis) Report() Report {
	r := Report{
		Strategy:   a.Strategy,
		Stats:      a.Stats,
		Identified: len(a.Identified),
		Zones:      make(map[Zone][]Summary),
	}
	add := func(zone Zone, blocks []Block) {
		for _, b := range blocks {
			r.Zones[zone] = append(r.Zones[zone], b.Summarize())
		}
	}
	add(ZoneContent, a.Zones.Content)
	add(ZoneAction, a.Zones.Action)
	add(ZoneRemove, a.Zones.Remove)
	add(ZoneKeep, a.Zones.Keep)
	return r
}
