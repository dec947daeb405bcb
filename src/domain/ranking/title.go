package ranking

var titles = []struct {
	min   int
	title string
}{
	{50, "Stream Legend"},
	{40, "Epic Monster"},
	{30, "Speedrun Master"},
	{20, "Chat Sniper"},
	{15, "Epic Warrior"},
	{10, "Loyal Follower"},
	{5, "Stream Rookie"},
}

// TitleFor names the tier a round's score falls in.
func TitleFor(score int) string {
	for _, t := range titles {
		if score >= t.min {
			return t.title
		}
	}
	return "Lurker"
}
