package interpret

// Phrase lists the opponent commonly uses when narrating what it sees and
// feels. Matching is case-insensitive substring search, so entries are short
// lowercase fragments rather than full sentences.

var weakEyeContactPhrases = []string{
	"look away", "looking away", "avoiding eye", "can't even look",
	"eyes darting", "not looking", "look at me", "eyes down",
	"staring at the floor", "look up", "where are you looking",
	"distracted", "not focused", "wandering eyes",
}

var strongEyeContactPhrases = []string{
	"strong eye contact", "looking right at", "staring me down",
	"eyes locked", "not backing down", "steady gaze", "focused",
	"looking confident", "direct eye",
}

var badPosturePhrases = []string{
	"slouching", "slumped", "hunched", "shrinking", "small", "curled up",
	"cowering", "leaning back", "sinking", "deflated", "shoulders down",
	"caved in",
}

var goodPosturePhrases = []string{
	"sitting up", "straight back", "confident posture", "shoulders back",
	"standing tall", "leaning forward", "engaged", "upright",
	"commanding presence", "strong stance",
}

var nervousPhrases = []string{
	"nervous", "fidgeting", "sweating", "shaking", "trembling", "anxious",
	"worried", "scared", "uncomfortable", "squirming", "twitching",
	"biting", "playing with", "touching face", "rubbing", "scratching",
}

var confidentPhrases = []string{
	"calm", "composed", "relaxed", "steady", "confident smile", "smirking",
	"unfazed", "cool", "collected", "poker face", "stone cold", "unshaken",
}

var impressedPhrases = []string{
	"interesting", "fair point", "not bad", "impressive",
	"you drive a hard bargain", "respect that", "good answer", "touché",
	"well played",
}

var frustratedPhrases = []string{
	"fine", "alright", "very well", "you win this round", "i suppose",
	"acceptable", "let me think", "you're persistent", "stubborn",
}

var dismissivePhrases = []string{
	"pathetic", "weak", "disappointing", "is that all", "you can do better",
	"seriously?", "laughable", "wasting my time", "unprepared", "amateur",
}
