// ABOUTME: Fixed utterance sets the flows match stripped text against

package flow

// Utterance sets. Stripped text has no whitespace or punctuation, so
// "ok!" and "O.K." both arrive as "ok".
var (
	Greetings = []Pattern{
		Exact("hi"),
		Exact("hello"),
		Exact("hey"),
		Exact("yo"),
		Exact(""),
	}

	Help = []Pattern{
		Exact("help"),
	}

	Human = []Pattern{
		Exact("human"),
	}

	Yes = []Pattern{
		Regex(`^(yes|yea|yup|yep|ya|sure|ok|yeah|yah)`),
	}

	No = []Pattern{
		Regex(`^(no|nah|nope)`),
	}
)
