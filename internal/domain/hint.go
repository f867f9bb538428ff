package domain

// MaxHintLevel caps the progression of regeneration instructions.
const MaxHintLevel = 3

// ProgressiveHint is the instruction payload for one regeneration call.
// Level grows with the loop number: level 1 carries base directives, level 2
// adds literal framing examples, level 3 adds a full response template.
type ProgressiveHint struct {
	Level    int
	Hints    []string
	Examples []string
	Template string
}

// HintLevelFor returns min(loopNumber, MaxHintLevel), floored at 1.
func HintLevelFor(loopNumber int) int {
	if loopNumber < 1 {
		return 1
	}
	if loopNumber > MaxHintLevel {
		return MaxHintLevel
	}
	return loopNumber
}
