package game

// Scoreboard maintains live standings for the active mode. The mode
// metric and its tie-break fold into a single composite score so the
// underlying list stays a one-key structure; the primary metric is
// scaled far enough that no realistic secondary value can cross
// between adjacent primary values.
type Scoreboard struct {
	mode   string
	list   *skipList
	scores map[string]float64 // stored composite per player
	teams  map[string]int     // team kill totals, team modes only
}

func NewScoreboard(mode string, seed int64) *Scoreboard {
	return &Scoreboard{
		mode:   mode,
		list:   newSkipList(seed),
		scores: make(map[string]float64),
		teams:  make(map[string]int),
	}
}

// compositeScore folds the mode metric and tie-break into one
// orderable value. Higher is better for every mode; tag mode negates
// time tagged so the least-tagged player ranks first.
func compositeScore(mode string, p *PlayerSession) float64 {
	switch mode {
	case ModeTag:
		return -float64(p.TimeTagged)*1e6 + float64(p.Tags)
	case ModeHopball:
		return float64(p.Score)*1e6 + float64(p.Kills)
	default:
		return float64(p.Kills)*1e6 + p.DamageDealt
	}
}

// displayScore is the number shown on podium lines and scoreboards.
func displayScore(mode string, p *PlayerSession) int {
	switch mode {
	case ModeTag:
		return p.TimeTagged
	case ModeHopball:
		return p.Score
	default:
		return p.Kills
	}
}

// Update re-ranks one player after their counters changed.
func (sb *Scoreboard) Update(p *PlayerSession) {
	score := compositeScore(sb.mode, p)
	if old, ok := sb.scores[p.ID]; ok {
		if old == score {
			return
		}
		sb.list.remove(p.ID, old)
	}
	sb.list.insert(p.ID, score)
	sb.scores[p.ID] = score
}

// Remove drops a departed player from the standings.
func (sb *Scoreboard) Remove(id string) {
	if old, ok := sb.scores[id]; ok {
		sb.list.remove(id, old)
		delete(sb.scores, id)
	}
}

// Rank returns the 1-indexed standing of a player, 0 if unranked.
func (sb *Scoreboard) Rank(id string) int {
	old, ok := sb.scores[id]
	if !ok {
		return 0
	}
	return sb.list.rank(id, old)
}

// TopIDs returns the first n player IDs in rank order.
func (sb *Scoreboard) TopIDs(n int) []string {
	entries := sb.list.top(n)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// ForEach visits standings in rank order until fn returns false.
func (sb *Scoreboard) ForEach(fn func(rank int, id string) bool) {
	sb.list.forEach(func(rank int, e RankedEntry) bool {
		return fn(rank, e.ID)
	})
}

// AddTeamKill bumps a team's kill total.
func (sb *Scoreboard) AddTeamKill(team string) {
	if team != "" {
		sb.teams[team]++
	}
}

// TeamScores returns a copy of the team totals.
func (sb *Scoreboard) TeamScores() map[string]int {
	out := make(map[string]int, len(sb.teams))
	for k, v := range sb.teams {
		out[k] = v
	}
	return out
}

// Len reports how many players are ranked.
func (sb *Scoreboard) Len() int { return sb.list.size() }
