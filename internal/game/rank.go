package game

// Rank is a title unlocked at a minimum cumulative score.
type Rank struct {
	MinScore int
	Title    string
}

// Ranks are ordered by ascending MinScore.
var Ranks = []Rank{
	{MinScore: 0, Title: "Novato"},
	{MinScore: 500, Title: "Explorador"},
	{MinScore: 1500, Title: "Conversador"},
	{MinScore: 3000, Title: "Poliglota"},
	{MinScore: 5000, Title: "Mestre Fluente"},
}

// RankFor returns the highest rank reached with score.
func RankFor(score int) Rank {
	r := Ranks[0]
	for _, candidate := range Ranks {
		if score >= candidate.MinScore {
			r = candidate
		}
	}
	return r
}

// NextRank returns the rank after the one reached with score, if any.
func NextRank(score int) (Rank, bool) {
	for _, candidate := range Ranks {
		if candidate.MinScore > score {
			return candidate, true
		}
	}
	return Rank{}, false
}
