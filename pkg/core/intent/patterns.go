package intent

// builtinPatterns is the seeded command table. Order is priority: entries
// whose phrases are more specific come before entries that could also
// match them, so "next topic" lands on SKIP and only a bare "next" falls
// through to NEXT.
var builtinPatterns = []Pattern{
	{
		Type:       Pause,
		Phrases:    []string{"pause", "hold on", "hold up", "hang on", "wait a second", "wait a moment", "wait"},
		Confidence: 0.9,
	},
	{
		Type:       Resume,
		Phrases:    []string{"resume", "keep going", "continue", "go on", "carry on", "where were we"},
		Confidence: 0.9,
	},
	{
		Type:       Stop,
		Phrases:    []string{"stop the briefing", "end the briefing", "that's enough", "we're done", "stop"},
		Confidence: 0.9,
	},
	{
		Type:       Skip,
		Phrases:    []string{"skip this topic", "skip topic", "next topic", "move on", "skip"},
		Confidence: 0.9,
	},
	{
		Type:       GoBack,
		Phrases:    []string{"go back", "previous one", "previous email", "previous", "back up", "last one"},
		Confidence: 0.85,
	},
	{
		Type:       GoDeeper,
		Phrases:    []string{"tell me more", "more detail", "more details", "go deeper", "expand on that", "dig in"},
		Confidence: 0.85,
	},
	{
		Type:       Next,
		Phrases:    []string{"next email", "move to next", "next one", "next"},
		Confidence: 0.85,
	},
	{
		Type:       Repeat,
		Phrases:    []string{"say that again", "read that again", "one more time", "repeat"},
		Confidence: 0.85,
	},
}
