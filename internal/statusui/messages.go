package statusui

import "math/rand"

var unsolvedMessages = []string{
	"Another day, another LeetCode problem, so go solve it buddy",
	"One LeetCode problem a day keeps the unemployment away",
	"Welcome to your daily dose of LeetCode",
	"Never back down, Never what",
}

var solvedMessages = []string{
	"Bro you only solved one problem, chill out",
	"You survived another day of LeetCode, congrats",
	"You're one step closer to getting that job, keep it up",
	"The LeetCode Torture gods are pleased. Rest, for tomorrow brings a new challenge",
	"Solved your problem for the day, nice, go treat yourself",
}

var escalatedMessages = []string{
	"Your code is compiling... just kidding, prepare for eternal agony.",
	"Infinite loop of despair activated.",
	"Feel the burn(out), keep those functions running.",
	"Error 404: Social life not found. Keep coding.",
	"Another day, another dollar... subtracted from your sanity budget.",
	"Commit to the code grind, the keyboard is your only friend.",
}

// Messages are the lines shown for each assignment state.
type Messages struct {
	Unsolved  string
	Solved    string
	Escalated string
}

// PickMessages chooses one line per state.
func PickMessages(rnd *rand.Rand) Messages {
	return Messages{
		Unsolved:  unsolvedMessages[rnd.Intn(len(unsolvedMessages))],
		Solved:    solvedMessages[rnd.Intn(len(solvedMessages))],
		Escalated: escalatedMessages[rnd.Intn(len(escalatedMessages))],
	}
}
