package profile

import "github.com/dshills/amcorpus/internal/am"

func envinorma() *Profile {
	return &Profile{
		Name:      "envinorma",
		LegacyIDs: []string{"DEVP1706393A", "JORFTEXT000034429274"},
		MultiRegime: map[string][]am.Regime{
			"JORFTEXT000034429274": {am.RegimeA, am.RegimeE, am.RegimeD},
		},
		EmptyRatio: DefaultEmptyRatio,
	}
}
