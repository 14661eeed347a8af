package game

// Game mode identifiers. Modes arrive as plain strings from match
// configuration and select the scoring metric plus a few rule branches
// (friendly fire, initial tag designation, hopball spawning).
const (
	ModeDeathmatch     = "Deathmatch"
	ModeTeamDeathmatch = "Team Deathmatch"
	ModeTag            = "Tag"
	ModeHopball        = "Hopball"
)

// Team identifiers for team modes.
const (
	TeamRed  = "red"
	TeamBlue = "blue"
)

// ValidMode reports whether mode names a rule set the engine knows.
func ValidMode(mode string) bool {
	switch mode {
	case ModeDeathmatch, ModeTeamDeathmatch, ModeTag, ModeHopball:
		return true
	}
	return false
}

// ModeUsesTeams reports whether players group into scoring teams and
// friendly fire is blocked.
func ModeUsesTeams(mode string) bool {
	return mode == ModeTeamDeathmatch
}
