package rank

import "strings"

// defaultPainLexicon is the built-in negative/frustration term list used by
// the pain-intensity booster when the configuration supplies none.
var defaultPainLexicon = []string{
	"frustrat",
	"annoy",
	"hate",
	"broken",
	"terrible",
	"awful",
	"useless",
	"waste",
	"struggle",
	"struggling",
	"painful",
	"nightmare",
	"impossible",
	"fed up",
	"sick of",
	"tired of",
	"can't stand",
	"cannot stand",
	"doesn't work",
	"does not work",
	"stopped working",
	"horrible",
	"worst",
	"disappointed",
	"ridiculous",
	"infuriating",
}

// painIntensity is the fraction of member texts containing any lexicon term,
// scaled to [0, 10]. Matching is case-insensitive substring containment, so
// stem entries like "frustrat" cover the common inflections.
func painIntensity(texts []string, lexicon []string) float64 {
	if len(texts) == 0 {
		return 0
	}
	if len(lexicon) == 0 {
		lexicon = defaultPainLexicon
	}
	matched := 0
	for _, text := range texts {
		lowered := strings.ToLower(text)
		for _, term := range lexicon {
			if strings.Contains(lowered, term) {
				matched++
				break
			}
		}
	}
	return clamp(float64(matched) / float64(len(texts)) * 10)
}
